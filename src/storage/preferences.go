package storage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Setting keys for Preferences.
const (
	SettingSelectedProvider     = "selected_provider"
	SettingSelectedModel        = "selected_model"
	SettingActiveConversationID = "active_conversation_id"
	SettingReasoningVisible     = "reasoning_visible"
)

func preferencesFromSettings(settings []Setting) (*Preferences, error) {
	prefs := &Preferences{ReasoningVisible: map[string]bool{}}
	for _, s := range settings {
		switch s.Key {
		case SettingSelectedProvider:
			prefs.SelectedProvider = s.Value
		case SettingSelectedModel:
			prefs.SelectedModel = s.Value
		case SettingActiveConversationID:
			prefs.ActiveConversationID = s.Value
		case SettingReasoningVisible:
			if s.Value == "" {
				continue
			}
			if err := json.Unmarshal([]byte(s.Value), &prefs.ReasoningVisible); err != nil {
				return nil, fmt.Errorf("invalid %s setting: %w", s.Key, err)
			}
		}
	}
	return prefs, nil
}

func preferencesToSettings(prefs *Preferences) ([]Setting, error) {
	visible := prefs.ReasoningVisible
	if visible == nil {
		visible = map[string]bool{}
	}
	data, err := json.Marshal(visible)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reasoning visibility: %w", err)
	}
	return []Setting{
		{Key: SettingSelectedProvider, Value: prefs.SelectedProvider},
		{Key: SettingSelectedModel, Value: prefs.SelectedModel},
		{Key: SettingActiveConversationID, Value: prefs.ActiveConversationID},
		{Key: SettingReasoningVisible, Value: string(data)},
	}, nil
}

// backfill sets the default system prompt on conversations stored without
// one.
func backfill(conv *Conversation, systemPrompt string) {
	if strings.TrimSpace(conv.SystemPrompt) == "" {
		conv.SystemPrompt = systemPrompt
	}
}
