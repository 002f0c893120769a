package conversation

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/elee1766/orbital/src/aisdk"
)

// State is the lifecycle state of a conversation.
type State string

const (
	StateDraft     State = "draft"
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
	StateDeleted   State = "deleted"
)

// DefaultTitle is the title of a fresh draft.
const DefaultTitle = "New Chat"

// Title lengths: text up to titleKeep runes is used whole, longer text is
// cut to titleCut runes plus an ellipsis.
const (
	titleKeep = 30
	titleCut  = 20
)

// Message is a message of a conversation. Content and Reasoning of the
// trailing assistant message grow while a stream is open.
type Message struct {
	ID        string        `json:"id"`
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	Reasoning string        `json:"reasoning,omitempty"`
	Images    []aisdk.Image `json:"images,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (m *Message) clone() *Message {
	c := *m
	if m.Images != nil {
		c.Images = append([]aisdk.Image(nil), m.Images...)
	}
	return &c
}

// Conversation is a conversation and its messages.
type Conversation struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	ProviderID   string     `json:"providerId"`
	ModelID      string     `json:"modelId"`
	SystemPrompt string     `json:"systemPrompt,omitempty"`
	Messages     []*Message `json:"messages"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy safe to hand out of the store.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Messages = make([]*Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.clone()
	}
	return &out
}

// Last returns the trailing message, or nil.
func (c *Conversation) Last() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// History converts the messages to wire messages.
func (c *Conversation) History() []*aisdk.Message {
	out := make([]*aisdk.Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		out = append(out, &aisdk.Message{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return out
}

// TitleFrom derives a conversation title from the first user message.
func TitleFrom(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return DefaultTitle
	}
	if utf8.RuneCountInString(text) <= titleKeep {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:titleCut])) + "..."
}

// applyDelta folds d into m. Images already present by URL are skipped.
func applyDelta(m *Message, d aisdk.Delta) {
	m.Content += d.Content
	m.Reasoning += d.Reasoning
	for _, img := range d.Images {
		if hasImage(m.Images, img.URL) {
			continue
		}
		m.Images = append(m.Images, img)
	}
}

func hasImage(images []aisdk.Image, url string) bool {
	for _, img := range images {
		if img.URL == url {
			return true
		}
	}
	return false
}
