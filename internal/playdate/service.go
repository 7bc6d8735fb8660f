// Package playdate implements the negotiation handshake layered on a
// chat thread: one side proposes meeting details, the other accepts,
// and phone numbers are exchanged once the proposal is accepted. It
// also keeps per-user reminder snapshots of accepted playdates.
package playdate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PopAlexandra2004/furryfriends/internal/store"
	"go.uber.org/zap"
)

const (
	detailsKey        = "playdateDetails"
	reminderKeyPrefix = "acceptedPlaydate_"

	startLayout = "2006-01-02T15:04"

	// reminderLead is how far before the playdate start the reminder
	// becomes due.
	reminderLead = time.Hour
)

// Status tracks how far the negotiation has advanced.
type Status string

const (
	// StatusInitial marks the first proposal on a thread with no prior record.
	StatusInitial Status = "Initial"
	// StatusProposed marks a proposal that replaced an earlier record.
	StatusProposed Status = "Proposed"
	// StatusAccepted is terminal for scheduling and unlocks contact exchange.
	StatusAccepted Status = "Accepted"
)

var (
	errMissingStore = errors.New("playdate: document store is required")

	// ErrMissingDetail rejects a proposal with an empty mandatory field.
	ErrMissingDetail = errors.New("playdate: all details are required")
	// ErrNoProposal indicates the thread has no playdate record yet.
	ErrNoProposal = errors.New("playdate: no proposal for thread")
	// ErrSelfAccept rejects a submitter accepting their own proposal.
	ErrSelfAccept = errors.New("playdate: cannot accept own proposal")
	// ErrEmptyPhone rejects a blank phone number submission.
	ErrEmptyPhone = errors.New("playdate: phone number is required")
	// ErrInvalidStart indicates the record's date and time do not parse.
	ErrInvalidStart = errors.New("playdate: invalid date or time")
)

// Details are the four mandatory fields of a proposal.
type Details struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Location string `json:"location"`
	Duration string `json:"duration"`
}

func (d Details) validate() error {
	for field, value := range map[string]string{
		"date":     d.Date,
		"time":     d.Time,
		"location": d.Location,
		"duration": d.Duration,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: missing %s", ErrMissingDetail, field)
		}
	}
	return nil
}

// Record is the per-thread negotiation document, mutated in place as
// the handshake advances.
type Record struct {
	Details
	SubmittedBy string            `json:"submittedBy"`
	Status      Status            `json:"status"`
	Phones      map[string]string `json:"phones,omitempty"`
}

// Start parses the record's date and time into the playdate start.
func (r Record) Start() (time.Time, error) {
	start, err := time.Parse(startLayout, r.Date+"T"+r.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q %q", ErrInvalidStart, r.Date, r.Time)
	}
	return start, nil
}

// ReminderTime is one hour before the playdate start.
func (r Record) ReminderTime() (time.Time, error) {
	start, err := r.Start()
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(-reminderLead), nil
}

// ServiceConfig describes the dependencies of the negotiation service.
type ServiceConfig struct {
	Store  *store.Store
	Clock  func() time.Time
	Logger *zap.Logger
}

// Service implements the proposal/accept/contact-exchange handshake.
type Service struct {
	store  *store.Store
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the negotiation service.
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
	return &Service{
		store:  cfg.Store,
		clock:  clock,
		logger: logger,
	}, nil
}

// SubmitDetails records a proposal for the thread, overwriting any
// prior record wholesale. The first proposal on a thread is Initial;
// replacing an existing record yields Proposed.
func (s *Service) SubmitDetails(ctx context.Context, threadID, submitter string, details Details) (Record, error) {
	if err := details.validate(); err != nil {
		return Record{}, err
	}

	var submitted Record
	err := s.store.Update(ctx, detailsKey, func(raw json.RawMessage) (any, error) {
		records, err := decodeRecords(raw)
		if err != nil {
			return nil, err
		}
		status := StatusInitial
		if _, exists := records[threadID]; exists {
			status = StatusProposed
		}
		submitted = Record{
			Details:     details,
			SubmittedBy: submitter,
			Status:      status,
		}
		records[threadID] = submitted
		return records, nil
	})
	if err != nil {
		return Record{}, err
	}
	return submitted, nil
}

// Record returns the thread's negotiation record, reporting false when
// no proposal exists.
func (s *Service) Record(ctx context.Context, threadID string) (Record, bool, error) {
	records := map[string]Record{}
	if err := s.store.Load(ctx, detailsKey, &records); err != nil {
		return Record{}, false, err
	}
	record, found := records[threadID]
	return record, found, nil
}

// Accept transitions the thread's proposal to Accepted and stores a
// reminder snapshot under the acceptor's key. The submitter may not
// accept their own proposal.
func (s *Service) Accept(ctx context.Context, threadID, acceptor string) (Record, error) {
	var accepted Record
	err := s.store.Update(ctx, detailsKey, func(raw json.RawMessage) (any, error) {
		records, err := decodeRecords(raw)
		if err != nil {
			return nil, err
		}
		record, found := records[threadID]
		if !found {
			return nil, ErrNoProposal
		}
		if record.SubmittedBy == acceptor {
			return nil, ErrSelfAccept
		}
		record.Status = StatusAccepted
		records[threadID] = record
		accepted = record
		return records, nil
	})
	if err != nil {
		return Record{}, err
	}

	if err := s.store.Save(ctx, reminderKey(acceptor), accepted); err != nil {
		return Record{}, err
	}
	if reminderAt, err := accepted.ReminderTime(); err == nil {
		s.logger.Info("playdate accepted",
			zap.String("thread_id", threadID),
			zap.String("acceptor", acceptor),
			zap.Time("reminder_at", reminderAt))
	}
	return accepted, nil
}

// SubmitPhone records the participant's phone number on the thread's
// record. The returned flag reports whether the counterpart's number is
// also present, completing the exchange.
func (s *Service) SubmitPhone(ctx context.Context, threadID, username, phone string) (Record, bool, error) {
	if strings.TrimSpace(phone) == "" {
		return Record{}, false, ErrEmptyPhone
	}

	var updated Record
	err := s.store.Update(ctx, detailsKey, func(raw json.RawMessage) (any, error) {
		records, err := decodeRecords(raw)
		if err != nil {
			return nil, err
		}
		record, found := records[threadID]
		if !found {
			return nil, ErrNoProposal
		}
		if record.Phones == nil {
			record.Phones = map[string]string{}
		}
		record.Phones[username] = phone
		records[threadID] = record
		updated = record
		return records, nil
	})
	if err != nil {
		return Record{}, false, err
	}

	complete := updated.Phones[counterpart(threadID, username)] != ""
	return updated, complete, nil
}

// ActiveReminder returns the user's reminder snapshot when its playdate
// is still in the future relative to now. A snapshot whose start has
// passed is deleted as a side effect, the only cleanup the reminder
// store gets.
func (s *Service) ActiveReminder(ctx context.Context, username string, now time.Time) (Record, bool, error) {
	key := reminderKey(username)
	var record Record
	raw, found, err := s.store.Get(ctx, key)
	if err != nil {
		return Record{}, false, err
	}
	if !found {
		return Record{}, false, nil
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, false, fmt.Errorf("playdate: decode reminder %q: %w", key, err)
	}

	start, err := record.Start()
	if err != nil || !start.After(now) {
		if removeErr := s.store.Remove(ctx, key); removeErr != nil {
			return Record{}, false, removeErr
		}
		return Record{}, false, nil
	}
	return record, true, nil
}

// ClearReminder deletes the user's reminder snapshot.
func (s *Service) ClearReminder(ctx context.Context, username string) error {
	return s.store.Remove(ctx, reminderKey(username))
}

func decodeRecords(raw json.RawMessage) (map[string]Record, error) {
	records := map[string]Record{}
	if raw == nil {
		return records, nil
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("playdate: decode records: %w", err)
	}
	return records, nil
}

func reminderKey(username string) string {
	return reminderKeyPrefix + username
}

// counterpart resolves the thread participant other than username.
func counterpart(threadID, username string) string {
	participants := strings.SplitN(threadID, "_", 2)
	if len(participants) != 2 {
		return ""
	}
	if participants[0] == username {
		return participants[1]
	}
	return participants[0]
}
