package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	conversationsBucket = []byte("conversations")
	preferencesBucket   = []byte("preferences")
	preferencesKey      = []byte("preferences")
)

// BoltStore keeps each conversation as one JSON document. Dates are
// serialized as ISO-8601 strings.
type BoltStore struct {
	db           *bolt.DB
	systemPrompt string
	logger       *slog.Logger
}

var _ Repository = (*BoltStore)(nil)

// NewBoltStore opens or creates the bbolt file at path.
func NewBoltStore(path, defaultSystemPrompt string, logger *slog.Logger) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(conversationsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(preferencesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &BoltStore{
		db:           db,
		systemPrompt: defaultSystemPrompt,
		logger:       logger.With("component", "bolt_store"),
	}, nil
}

func (s *BoltStore) ListConversations(ctx context.Context) ([]*Conversation, error) {
	convs, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, conv := range convs {
		conv.Messages = nil
	}
	return convs, nil
}

func (s *BoltStore) LoadAll(ctx context.Context) ([]*Conversation, error) {
	var convs []*Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).ForEach(func(k, v []byte) error {
			var conv Conversation
			if err := json.Unmarshal(v, &conv); err != nil {
				return fmt.Errorf("decoding conversation %s: %w", k, err)
			}
			convs = append(convs, &conv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	for _, conv := range convs {
		s.prepare(conv)
	}
	sort.SliceStable(convs, func(i, j int) bool {
		if !convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
		}
		return convs[i].ID < convs[j].ID
	})
	return convs, nil
}

func (s *BoltStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv *Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(conversationsBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		conv = &Conversation{}
		return json.Unmarshal(v, conv)
	})
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	s.prepare(conv)
	return conv, nil
}

func (s *BoltStore) SaveConversation(ctx context.Context, conv *Conversation) error {
	if conv.ID == "" {
		return fmt.Errorf("conversation has no id")
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
	for i, m := range conv.Messages {
		m.ConversationID = conv.ID
		m.Position = i
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(conv)
		if err != nil {
			return err
		}
		return tx.Bucket(conversationsBucket).Put([]byte(conv.ID), data)
	})
}

func (s *BoltStore) DeleteConversation(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationsBucket)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
		}
		return b.Delete([]byte(id))
	})
}

func (s *BoltStore) LoadPreferences(ctx context.Context) (*Preferences, error) {
	prefs := &Preferences{}
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(preferencesBucket).Get(preferencesKey)
		if len(bytes.TrimSpace(v)) == 0 {
			return nil
		}
		return json.Unmarshal(v, prefs)
	})
	if err != nil {
		return nil, err
	}
	if prefs.ReasoningVisible == nil {
		prefs.ReasoningVisible = map[string]bool{}
	}
	return prefs, nil
}

func (s *BoltStore) SavePreferences(ctx context.Context, prefs *Preferences) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(prefs)
		if err != nil {
			return err
		}
		return tx.Bucket(preferencesBucket).Put(preferencesKey, data)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// prepare restores what JSON does not carry and backfills the prompt.
func (s *BoltStore) prepare(conv *Conversation) {
	for i, m := range conv.Messages {
		m.ConversationID = conv.ID
		m.Position = i
	}
	backfill(conv, s.systemPrompt)
}
