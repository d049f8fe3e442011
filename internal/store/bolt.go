package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/farhanshk/dbchat/internal/ai"
)

var conversationsBucket = []byte("conversations")

// Conversations longer than this are trimmed from the front on save.
// The cut always lands on a user message, so no retained tool result
// is separated from the tool call that produced it.
const maxConversationLen = 100

// Store persists server-held conversation history keyed by
// conversation id, for clients that do not retain history locally.
type Store interface {
	GetConversation(id string) (ai.Conversation, error)
	SaveConversation(id string, conv ai.Conversation) error
	DeleteConversation(id string) error
	Close() error
}

type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(conversationsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating conversations bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) GetConversation(id string) (ai.Conversation, error) {
	var conv ai.Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(conversationsBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &conv)
	})
	return conv, err
}

func (s *BoltStore) SaveConversation(id string, conv ai.Conversation) error {
	conv = trimConversation(conv)
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(conv)
		if err != nil {
			return err
		}
		return tx.Bucket(conversationsBucket).Put([]byte(id), data)
	})
}

// trimConversation drops the oldest messages once the conversation
// exceeds maxConversationLen, then advances the cut to the next user
// message. Cutting into the middle of an assistant exchange would leave
// tool results whose calls were dropped, and such a conversation no
// longer validates.
func trimConversation(conv ai.Conversation) ai.Conversation {
	if len(conv) <= maxConversationLen {
		return conv
	}
	cut := len(conv) - maxConversationLen
	for cut < len(conv) && conv[cut].Role != ai.RoleUser {
		cut++
	}
	if cut == len(conv) {
		// No user message past the cut; keep everything rather than
		// persist an empty history.
		return conv
	}
	return conv[cut:]
}

func (s *BoltStore) DeleteConversation(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).Delete([]byte(id))
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
