package capability

import (
	"sort"
	"strings"

	"github.com/elee1766/orbital/src/aisdk"
)

// NormalizeModelID returns the registry id for a provider/model pair. Ids
// that already carry a provider prefix are returned unchanged.
func NormalizeModelID(providerID, modelID string) string {
	if strings.Contains(modelID, "/") || providerID == "" {
		return modelID
	}
	return providerID + "/" + modelID
}

// ProviderOf returns the provider prefix of a model id, or "".
func ProviderOf(modelID string) string {
	provider, _, ok := strings.Cut(modelID, "/")
	if !ok {
		return ""
	}
	return provider
}

// ProviderGroup is a provider and its models.
type ProviderGroup struct {
	Provider string             `json:"provider"`
	Models   []*aisdk.ModelInfo `json:"models"`
}

// GroupByProvider groups models by provider prefix. Groups are sorted by
// provider and models keep their registry order.
func GroupByProvider(models []*aisdk.ModelInfo) []ProviderGroup {
	index := make(map[string]int)
	var groups []ProviderGroup
	for _, m := range models {
		if m == nil {
			continue
		}
		provider := ProviderOf(m.ID)
		if provider == "" {
			provider = "other"
		}
		i, ok := index[provider]
		if !ok {
			i = len(groups)
			index[provider] = i
			groups = append(groups, ProviderGroup{Provider: provider})
		}
		groups[i].Models = append(groups[i].Models, m)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Provider < groups[b].Provider
	})
	return groups
}
