// Package interest implements the swipe-right interest queue: pending
// notifications a pet's owner accepts or denies. Accepting seeds the
// chat thread with a greeting before the notification is consumed.
package interest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PopAlexandra2004/furryfriends/internal/chat"
	"github.com/PopAlexandra2004/furryfriends/internal/store"
	"go.uber.org/zap"
)

const notificationsKey = "notifications"

var (
	errMissingStore      = errors.New("interest: document store is required")
	errMissingChat       = errors.New("interest: chat service is required")
	errMissingIDProvider = errors.New("interest: id provider is required")

	// ErrNotFound indicates no pending notification matches the id for
	// the given owner.
	ErrNotFound = errors.New("interest: notification not found")
	// ErrMissingDogName rejects an interest with no pet named.
	ErrMissingDogName = errors.New("interest: dog name is required")
)

// Notification is one pending interest signal awaiting accept/deny.
type Notification struct {
	ID      string `json:"id"`
	Owner   string `json:"owner"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
	DogName string `json:"dogName"`
}

// ServiceConfig describes the dependencies of the interest queue.
type ServiceConfig struct {
	Store      *store.Store
	Chat       *chat.Service
	IDProvider chat.IDProvider
	Logger     *zap.Logger
}

// Service implements the interest queue over the document store.
type Service struct {
	store      *store.Store
	chat       *chat.Service
	idProvider chat.IDProvider
	logger     *zap.Logger
}

// NewService constructs the interest queue.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Chat == nil {
		return nil, errMissingChat
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      cfg.Store,
		chat:       cfg.Chat,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Raise records sender's interest in the owner's pet.
func (s *Service) Raise(ctx context.Context, owner, sender, dogName string) (Notification, error) {
	if dogName == "" {
		return Notification{}, ErrMissingDogName
	}
	notificationID, err := s.idProvider.NewID()
	if err != nil {
		return Notification{}, fmt.Errorf("interest: new notification id: %w", err)
	}

	raised := Notification{
		ID:      notificationID,
		Owner:   owner,
		Sender:  sender,
		Message: fmt.Sprintf("Someone is interested in scheduling a playdate with %s.", dogName),
		DogName: dogName,
	}
	err = s.store.Update(ctx, notificationsKey, func(raw json.RawMessage) (any, error) {
		notifications, err := decodeNotifications(raw)
		if err != nil {
			return nil, err
		}
		return append(notifications, raised), nil
	})
	if err != nil {
		return Notification{}, err
	}

	s.logger.Info("interest raised",
		zap.String("owner", owner),
		zap.String("sender", sender),
		zap.String("dog", dogName))
	return raised, nil
}

// ListFor returns the owner's pending notifications in insertion order.
func (s *Service) ListFor(ctx context.Context, owner string) ([]Notification, error) {
	notifications := []Notification{}
	if err := s.store.Load(ctx, notificationsKey, &notifications); err != nil {
		return nil, err
	}
	pending := []Notification{}
	for _, notification := range notifications {
		if notification.Owner == owner {
			pending = append(pending, notification)
		}
	}
	return pending, nil
}

// Accept sends the greeting message to the interested user and then
// removes the notification. Only the owning user may accept. The
// notification is consumed only after the greeting is delivered, so a
// failed send leaves it pending.
func (s *Service) Accept(ctx context.Context, notificationID, owner string) (chat.Message, error) {
	notification, err := s.find(ctx, notificationID, owner)
	if err != nil {
		return chat.Message{}, err
	}

	greeting := fmt.Sprintf("Hi! Let's schedule a playdate for %s.", notification.DogName)
	message, err := s.chat.Send(ctx, owner, notification.Sender, greeting, notification.DogName)
	if err != nil {
		return chat.Message{}, err
	}
	if _, err := s.take(ctx, notificationID, owner); err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// Deny removes the notification without sending anything.
func (s *Service) Deny(ctx context.Context, notificationID, owner string) error {
	_, err := s.take(ctx, notificationID, owner)
	return err
}

// find returns the pending notification matching id and owner without
// consuming it.
func (s *Service) find(ctx context.Context, notificationID, owner string) (Notification, error) {
	notifications := []Notification{}
	if err := s.store.Load(ctx, notificationsKey, &notifications); err != nil {
		return Notification{}, err
	}
	for _, notification := range notifications {
		if notification.ID == notificationID && notification.Owner == owner {
			return notification, nil
		}
	}
	return Notification{}, ErrNotFound
}

// take removes and returns the notification matching id and owner.
func (s *Service) take(ctx context.Context, notificationID, owner string) (Notification, error) {
	var taken Notification
	err := s.store.Update(ctx, notificationsKey, func(raw json.RawMessage) (any, error) {
		notifications, err := decodeNotifications(raw)
		if err != nil {
			return nil, err
		}
		kept := notifications[:0]
		found := false
		for _, notification := range notifications {
			if !found && notification.ID == notificationID && notification.Owner == owner {
				taken = notification
				found = true
				continue
			}
			kept = append(kept, notification)
		}
		if !found {
			return nil, ErrNotFound
		}
		return kept, nil
	})
	if err != nil {
		return Notification{}, err
	}
	return taken, nil
}

func decodeNotifications(raw json.RawMessage) ([]Notification, error) {
	notifications := []Notification{}
	if raw == nil {
		return notifications, nil
	}
	if err := json.Unmarshal(raw, &notifications); err != nil {
		return nil, fmt.Errorf("interest: decode notifications: %w", err)
	}
	return notifications, nil
}
