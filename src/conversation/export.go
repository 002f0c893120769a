package conversation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elee1766/orbital/src/aisdk"
)

// Export is the exported form of a conversation.
type Export struct {
	Title      string          `json:"title"`
	ProviderID string          `json:"providerId"`
	ModelID    string          `json:"modelId"`
	Messages   []ExportMessage `json:"messages"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// ExportMessage is one exported message.
type ExportMessage struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	Images    []aisdk.Image `json:"images,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Export writes conversation id to w as indented JSON.
func (s *Store) Export(id string, w io.Writer) error {
	conv, err := s.Get(id)
	if err != nil {
		return err
	}
	out := Export{
		Title:      conv.Title,
		ProviderID: conv.ProviderID,
		ModelID:    conv.ModelID,
		Messages:   make([]ExportMessage, 0, len(conv.Messages)),
		CreatedAt:  conv.CreatedAt,
	}
	for _, m := range conv.Messages {
		out.Messages = append(out.Messages, ExportMessage{
			Role:      m.Role,
			Content:   m.Content,
			Images:    m.Images,
			CreatedAt: m.CreatedAt,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

// ExportFilename is the file name an export of conv is saved under.
func ExportFilename(conv *Conversation) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, strings.TrimSpace(conv.Title))
	if name == "" {
		name = conv.ID
	}
	return name + ".json"
}
