// Package chat manages per-pair message threads: canonical thread
// identifiers, an append-only message log per thread, and read/unread
// bookkeeping derived from that log.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PopAlexandra2004/furryfriends/internal/store"
	"go.uber.org/zap"
)

const (
	chatsKey          = "chats"
	threadIDDelimiter = "_"
)

var (
	errMissingStore      = errors.New("chat: document store is required")
	errMissingIDProvider = errors.New("chat: id provider is required")

	// ErrEmptyMessage rejects sending a blank message.
	ErrEmptyMessage = errors.New("chat: message text is required")
	// ErrSelfThread rejects a thread between a user and themselves.
	ErrSelfThread = errors.New("chat: thread requires two distinct participants")
)

// IDProvider issues unique identifiers for appended messages.
type IDProvider interface {
	NewID() (string, error)
}

// Message is one immutable entry in a thread's append-only log.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	DogName   string    `json:"dogName,omitempty"`
	Read      bool      `json:"read"`
}

// ThreadPreview summarizes one thread for a participant's chat list.
type ThreadPreview struct {
	ThreadID    string  `json:"threadId"`
	Participant string  `json:"participant"`
	LastMessage Message `json:"lastMessage"`
}

// ThreadID derives the canonical identifier for the unordered pair of
// usernames: the sorted pair joined with an underscore, so
// ThreadID(a, b) == ThreadID(b, a).
func ThreadID(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return strings.Join(pair, threadIDDelimiter)
}

// ServiceConfig describes the dependencies of the chat manager.
type ServiceConfig struct {
	Store      *store.Store
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service implements thread operations over the document store.
type Service struct {
	store      *store.Store
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the chat manager.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      cfg.Store,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Send appends a message to the pair's thread with read=false. Messages
// within a thread keep strict append order.
func (s *Service) Send(ctx context.Context, sender, recipient, text, dogName string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}
	if sender == recipient {
		return Message{}, ErrSelfThread
	}
	messageID, err := s.idProvider.NewID()
	if err != nil {
		return Message{}, fmt.Errorf("chat: new message id: %w", err)
	}

	appended := Message{
		ID:        messageID,
		Sender:    sender,
		Recipient: recipient,
		Message:   text,
		Timestamp: s.clock().UTC(),
		DogName:   dogName,
		Read:      false,
	}
	threadID := ThreadID(sender, recipient)
	err = s.store.Update(ctx, chatsKey, func(raw json.RawMessage) (any, error) {
		threads, err := decodeThreads(raw)
		if err != nil {
			return nil, err
		}
		threads[threadID] = append(threads[threadID], appended)
		return threads, nil
	})
	if err != nil {
		return Message{}, err
	}
	return appended, nil
}

// Messages returns the ordered log for the pair's thread, empty when no
// thread exists yet.
func (s *Service) Messages(ctx context.Context, userA, userB string) ([]Message, error) {
	threads, err := s.loadThreads(ctx)
	if err != nil {
		return nil, err
	}
	messages := threads[ThreadID(userA, userB)]
	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}

// ThreadsFor lists every thread the user participates in, each with the
// other participant and the last message as a preview. Threads are
// ordered by identifier for stable listings.
func (s *Service) ThreadsFor(ctx context.Context, username string) ([]ThreadPreview, error) {
	threads, err := s.loadThreads(ctx)
	if err != nil {
		return nil, err
	}
	previews := []ThreadPreview{}
	for threadID, messages := range threads {
		other, ok := otherParticipant(threadID, username)
		if !ok || len(messages) == 0 {
			continue
		}
		previews = append(previews, ThreadPreview{
			ThreadID:    threadID,
			Participant: other,
			LastMessage: messages[len(messages)-1],
		})
	}
	sort.Slice(previews, func(left, right int) bool {
		return previews[left].ThreadID < previews[right].ThreadID
	})
	return previews, nil
}

// CountUnread counts messages addressed to username that have not been
// marked read, across all threads.
func (s *Service) CountUnread(ctx context.Context, username string) (int, error) {
	threads, err := s.loadThreads(ctx)
	if err != nil {
		return 0, err
	}
	unread := 0
	for _, messages := range threads {
		for _, message := range messages {
			if message.Recipient == username && !message.Read {
				unread++
			}
		}
	}
	return unread, nil
}

// MarkRead flips the read flag on every message in the pair's thread
// that is addressed to reader.
func (s *Service) MarkRead(ctx context.Context, reader, other string) error {
	threadID := ThreadID(reader, other)
	return s.store.Update(ctx, chatsKey, func(raw json.RawMessage) (any, error) {
		threads, err := decodeThreads(raw)
		if err != nil {
			return nil, err
		}
		messages := threads[threadID]
		for index := range messages {
			if messages[index].Recipient == reader {
				messages[index].Read = true
			}
		}
		return threads, nil
	})
}

func (s *Service) loadThreads(ctx context.Context) (map[string][]Message, error) {
	threads := map[string][]Message{}
	if err := s.store.Load(ctx, chatsKey, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

func decodeThreads(raw json.RawMessage) (map[string][]Message, error) {
	threads := map[string][]Message{}
	if raw == nil {
		return threads, nil
	}
	if err := json.Unmarshal(raw, &threads); err != nil {
		return nil, fmt.Errorf("chat: decode threads: %w", err)
	}
	return threads, nil
}

// otherParticipant resolves the counterpart from a thread identifier,
// reporting false when username is not one of the two components.
func otherParticipant(threadID, username string) (string, bool) {
	participants := strings.SplitN(threadID, threadIDDelimiter, 2)
	if len(participants) != 2 {
		return "", false
	}
	switch username {
	case participants[0]:
		return participants[1], true
	case participants[1]:
		return participants[0], true
	default:
		return "", false
	}
}
