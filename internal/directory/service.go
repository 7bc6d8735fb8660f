// Package directory manages user accounts: registration, credentials,
// one-shot role selection, pet profiles and administrative removal.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/PopAlexandra2004/furryfriends/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const usersKey = "users"

// defaultOwnerCode is the access code accepted for the administrative
// Owner role when no override is configured. It is a documented shared
// secret carried over from the original flow, not a security boundary.
const defaultOwnerCode = "12345678"

var (
	errMissingStore = errors.New("directory: document store is required")

	// ErrDuplicateUsername rejects registration of an already-taken username.
	ErrDuplicateUsername = errors.New("directory: username already exists")
	// ErrUserNotFound indicates the username has no account record.
	ErrUserNotFound = errors.New("directory: user not found")
	// ErrWrongPassword indicates a failed credential check.
	ErrWrongPassword = errors.New("directory: incorrect password")
	// ErrRoleAlreadySet rejects a second role selection.
	ErrRoleAlreadySet = errors.New("directory: role already selected")
	// ErrInvalidCode rejects a wrong Owner access code.
	ErrInvalidCode = errors.New("directory: incorrect owner code")
	// ErrPetNotFound indicates the named pet is not on the user's profile.
	ErrPetNotFound = errors.New("directory: pet not found")
)

// ServiceConfig describes the dependencies of the user directory.
type ServiceConfig struct {
	Store     *store.Store
	Clock     func() time.Time
	Logger    *zap.Logger
	OwnerCode string
}

// Service implements account operations over the document store.
type Service struct {
	store     *store.Store
	clock     func() time.Time
	logger    *zap.Logger
	ownerCode string
}

// NewService constructs the directory service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ownerCode := cfg.OwnerCode
	if ownerCode == "" {
		ownerCode = defaultOwnerCode
	}
	return &Service{
		store:     cfg.Store,
		clock:     clock,
		logger:    logger,
		ownerCode: ownerCode,
	}, nil
}

// Register creates a new account with no role and an empty pet list.
// The raw password is stored only as a bcrypt hash.
func (s *Service) Register(ctx context.Context, username, password string) (User, error) {
	if err := ValidateUsername(username); err != nil {
		return User{}, err
	}
	if password == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("directory: hash password: %w", err)
	}

	created := User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         RoleNone,
		Pets:         []Pet{},
	}
	err = s.store.Update(ctx, usersKey, func(raw json.RawMessage) (any, error) {
		users, err := decodeUsers(raw)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			if user.Username == username {
				return nil, ErrDuplicateUsername
			}
		}
		return append(users, created), nil
	})
	if err != nil {
		return User{}, err
	}

	s.logger.Info("user registered", zap.String("username", username))
	return created, nil
}

// Login verifies credentials and appends a login timestamp on success.
func (s *Service) Login(ctx context.Context, username, password string) (User, error) {
	var authenticated User
	err := s.store.Update(ctx, usersKey, func(raw json.RawMessage) (any, error) {
		users, err := decodeUsers(raw)
		if err != nil {
			return nil, err
		}
		index := indexOf(users, username)
		if index < 0 {
			return nil, ErrUserNotFound
		}
		if bcrypt.CompareHashAndPassword([]byte(users[index].PasswordHash), []byte(password)) != nil {
			return nil, ErrWrongPassword
		}
		users[index].Logins = append(users[index].Logins, s.clock().UTC())
		authenticated = users[index]
		return users, nil
	})
	if err != nil {
		return User{}, err
	}
	return authenticated, nil
}

// Get returns the account record for username.
func (s *Service) Get(ctx context.Context, username string) (User, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return User{}, err
	}
	index := indexOf(users, username)
	if index < 0 {
		return User{}, ErrUserNotFound
	}
	return users[index], nil
}

// SelectRole records the user's role. The transition is one-shot: any
// attempt after a role is set fails with ErrRoleAlreadySet.
func (s *Service) SelectRole(ctx context.Context, username string, role Role) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	return s.store.Update(ctx, usersKey, func(raw json.RawMessage) (any, error) {
		users, err := decodeUsers(raw)
		if err != nil {
			return nil, err
		}
		index := indexOf(users, username)
		if index < 0 {
			return nil, ErrUserNotFound
		}
		if users[index].Role != RoleNone {
			return nil, ErrRoleAlreadySet
		}
		users[index].Role = role
		return users, nil
	})
}

// VerifyOwnerCode gates the administrative Owner role behind the shared
// access code. On success the user's role is confirmed as Owner.
func (s *Service) VerifyOwnerCode(ctx context.Context, username, code string) error {
	if code != s.ownerCode {
		return ErrInvalidCode
	}
	return s.store.Update(ctx, usersKey, func(raw json.RawMessage) (any, error) {
		users, err := decodeUsers(raw)
		if err != nil {
			return nil, err
		}
		index := indexOf(users, username)
		if index < 0 {
			return nil, ErrUserNotFound
		}
		users[index].Role = RoleOwner
		return users, nil
	})
}

// AddPet appends a pet profile to the user's pet list.
func (s *Service) AddPet(ctx context.Context, username string, pet Pet) error {
	if err := pet.validate(); err != nil {
		return err
	}
	return s.store.Update(ctx, usersKey, func(raw json.RawMessage) (any, error) {
		users, err := decodeUsers(raw)
		if err != nil {
			return nil, err
		}
		index := indexOf(users, username)
		if index < 0 {
			return nil, ErrUserNotFound
		}
		users[index].Pets = append(users[index].Pets, pet)
		return users, nil
	})
}

// RemovePet deletes the named pet from the user's profile.
func (s *Service) RemovePet(ctx context.Context, username, petName string) error {
	return s.store.Update(ctx, usersKey, func(raw json.RawMessage) (any, error) {
		users, err := decodeUsers(raw)
		if err != nil {
			return nil, err
		}
		index := indexOf(users, username)
		if index < 0 {
			return nil, ErrUserNotFound
		}
		pets := users[index].Pets
		for petIndex, pet := range pets {
			if pet.Name == petName {
				users[index].Pets = append(pets[:petIndex], pets[petIndex+1:]...)
				return users, nil
			}
		}
		return nil, ErrPetNotFound
	})
}

// BanUser removes the account record entirely. Authorization (caller
// must hold the Owner role) is enforced at the API boundary, not here.
func (s *Service) BanUser(ctx context.Context, username string) error {
	err := s.store.Update(ctx, usersKey, func(raw json.RawMessage) (any, error) {
		users, err := decodeUsers(raw)
		if err != nil {
			return nil, err
		}
		kept := users[:0]
		for _, user := range users {
			if user.Username != username {
				kept = append(kept, user)
			}
		}
		return kept, nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("user banned", zap.String("username", username))
	return nil
}

// ListUsers returns every account record in registration order.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.loadUsers(ctx)
}

// BrowsePets returns all pets owned by users other than viewer, each
// tagged with its owner, in stored order.
func (s *Service) BrowsePets(ctx context.Context, viewer string) ([]BrowsePet, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	browsable := []BrowsePet{}
	for _, user := range users {
		if user.Username == viewer {
			continue
		}
		for _, pet := range user.Pets {
			browsable = append(browsable, BrowsePet{Pet: pet, Owner: user.Username})
		}
	}
	return browsable, nil
}

// LoginStatistics aggregates recorded login timestamps per calendar
// month across all users, ordered chronologically.
func (s *Service) LoginStatistics(ctx context.Context) ([]LoginStat, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, user := range users {
		for _, login := range user.Logins {
			counts[login.UTC().Format("2006-01")]++
		}
	}
	months := make([]string, 0, len(counts))
	for month := range counts {
		months = append(months, month)
	}
	sort.Strings(months)
	stats := make([]LoginStat, 0, len(months))
	for _, month := range months {
		stats = append(stats, LoginStat{Month: month, Count: counts[month]})
	}
	return stats, nil
}

func (s *Service) loadUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	if err := s.store.Load(ctx, usersKey, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func decodeUsers(raw json.RawMessage) ([]User, error) {
	users := []User{}
	if raw == nil {
		return users, nil
	}
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("directory: decode users: %w", err)
	}
	return users, nil
}

func indexOf(users []User, username string) int {
	for index, user := range users {
		if user.Username == username {
			return index
		}
	}
	return -1
}
