package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Fixed row IDs for the singleton documents.
const (
	MemoryID    = "memory"
	NorthstarID = "northstar"
)

// DateLayout is the calendar-day format used in filenames and date columns.
const DateLayout = "2006-01-02"

// SyncStatus tracks where an entity stands relative to the remote store.
type SyncStatus string

const (
	// SyncPending means the entity has local changes not yet uploaded.
	SyncPending SyncStatus = "pending"
	// SyncSynced means the last upload succeeded.
	SyncSynced SyncStatus = "synced"
	// SyncError means upload attempts exhausted their retries.
	SyncError SyncStatus = "error"
)

// Syncable is the base shape shared by every entity kind.
//
// An entity with a non-empty RemoteFileID has been uploaded at least once;
// local content may since have changed, which is visible as
// UpdatedAt > SyncedAt.
type Syncable struct {
	ID           string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	RemoteFileID string
	SyncedAt     *time.Time
	SyncStatus   SyncStatus
}

// MarkSynced stamps the entity with its remote file ID and a successful
// sync at the given time.
func (s *Syncable) MarkSynced(remoteID string, at time.Time) {
	s.RemoteFileID = remoteID
	s.SyncedAt = &at
	s.SyncStatus = SyncSynced
}

// Touch bumps UpdatedAt. Call whenever any field is modified.
func (s *Syncable) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.NewString()
}

// CaptureStatus is the done/not-done state of an inbox item.
type CaptureStatus string

const (
	CapturePending CaptureStatus = "pending"
	CaptureDone    CaptureStatus = "done"
)

// Capture is a quick inbox item. All captures sharing a Date serialize
// into a single remote day file.
type Capture struct {
	Syncable
	Date    string // YYYY-MM-DD
	Content string
	Status  CaptureStatus
}

// NewCapture creates a pending capture for the given day.
func NewCapture(date, content string) *Capture {
	now := time.Now().UTC()
	return &Capture{
		Syncable: Syncable{
			ID:         NewID(),
			CreatedAt:  now,
			UpdatedAt:  now,
			SyncStatus: SyncPending,
		},
		Date:    date,
		Content: content,
		Status:  CapturePending,
	}
}

// Validate checks required capture fields.
func (c *Capture) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.Content == "" {
		return fmt.Errorf("content is required")
	}
	if _, err := time.Parse(DateLayout, c.Date); err != nil {
		return fmt.Errorf("invalid date %q: %w", c.Date, err)
	}
	switch c.Status {
	case CapturePending, CaptureDone:
	default:
		return fmt.Errorf("invalid capture status %q", c.Status)
	}
	return nil
}

// TimeOfDay distinguishes the two daily check-in slots.
type TimeOfDay string

const (
	Morning TimeOfDay = "morning"
	Evening TimeOfDay = "evening"
)

// ParseTimeOfDay validates a stored time-of-day tag.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	switch TimeOfDay(s) {
	case Morning, Evening:
		return TimeOfDay(s), nil
	}
	return "", fmt.Errorf("invalid time of day %q", s)
}

// QA is one question/response pair in a guided flow.
type QA struct {
	Question string
	Response string
}

// Checkin is a structured Q&A session, one per day and time-of-day.
type Checkin struct {
	Syncable
	Date      string // YYYY-MM-DD
	TimeOfDay TimeOfDay
	Stage     CheckinStage
	Entries   []QA
}

// NewCheckin creates a check-in at the opening stage.
func NewCheckin(date string, tod TimeOfDay) *Checkin {
	now := time.Now().UTC()
	return &Checkin{
		Syncable: Syncable{
			ID:         NewID(),
			CreatedAt:  now,
			UpdatedAt:  now,
			SyncStatus: SyncPending,
		},
		Date:      date,
		TimeOfDay: tod,
		Stage:     StageOpening,
	}
}

// Validate checks required check-in fields.
func (c *Checkin) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if _, err := time.Parse(DateLayout, c.Date); err != nil {
		return fmt.Errorf("invalid date %q: %w", c.Date, err)
	}
	if _, err := ParseTimeOfDay(string(c.TimeOfDay)); err != nil {
		return err
	}
	if !c.Stage.Valid() {
		return fmt.Errorf("invalid checkin stage %q", c.Stage)
	}
	return nil
}

// ChatRole identifies the speaker of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "you"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    ChatRole
	Content string
	At      time.Time
}

// Chat is a free-form conversation, one remote file per day.
type Chat struct {
	Syncable
	Date     string // YYYY-MM-DD
	Messages []ChatMessage
}

// NewChat creates an empty conversation for the given day.
func NewChat(date string) *Chat {
	now := time.Now().UTC()
	return &Chat{
		Syncable: Syncable{
			ID:         NewID(),
			CreatedAt:  now,
			UpdatedAt:  now,
			SyncStatus: SyncPending,
		},
		Date: date,
	}
}

// Validate checks required chat fields.
func (c *Chat) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if _, err := time.Parse(DateLayout, c.Date); err != nil {
		return fmt.Errorf("invalid date %q: %w", c.Date, err)
	}
	for i, m := range c.Messages {
		switch m.Role {
		case RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d: invalid role %q", i, m.Role)
		}
	}
	return nil
}

// Section is a titled block of prose in a long-lived document.
type Section struct {
	Heading string
	Body    string
}

// Memory is the singleton profile document. Its row ID is always MemoryID.
type Memory struct {
	Syncable
	Sections []Section
}

// NewMemory creates the singleton memory document.
func NewMemory() *Memory {
	now := time.Now().UTC()
	return &Memory{
		Syncable: Syncable{
			ID:         MemoryID,
			CreatedAt:  now,
			UpdatedAt:  now,
			SyncStatus: SyncPending,
		},
	}
}

// Validate checks the memory document invariants.
func (m *Memory) Validate() error {
	if m.ID != MemoryID {
		return fmt.Errorf("memory id must be %q (got %q)", MemoryID, m.ID)
	}
	return nil
}

// Northstar is the singleton personal-mission document.
type Northstar struct {
	Syncable
	Statement string
	Values    []string
}

// NewNorthstar creates the singleton northstar document.
func NewNorthstar(statement string) *Northstar {
	now := time.Now().UTC()
	return &Northstar{
		Syncable: Syncable{
			ID:         NorthstarID,
			CreatedAt:  now,
			UpdatedAt:  now,
			SyncStatus: SyncPending,
		},
		Statement: statement,
	}
}

// Validate checks the northstar document invariants.
func (n *Northstar) Validate() error {
	if n.ID != NorthstarID {
		return fmt.Errorf("northstar id must be %q (got %q)", NorthstarID, n.ID)
	}
	return nil
}

// Review is a periodic reflection keyed by its period bounds.
type Review struct {
	Syncable
	Period      ReviewPeriod
	PeriodStart time.Time
	PeriodEnd   time.Time
	Sections    []QA
}

// NewReview creates a review covering [start, end].
func NewReview(period ReviewPeriod, start, end time.Time) *Review {
	now := time.Now().UTC()
	return &Review{
		Syncable: Syncable{
			ID:         NewID(),
			CreatedAt:  now,
			UpdatedAt:  now,
			SyncStatus: SyncPending,
		},
		Period:      period,
		PeriodStart: start,
		PeriodEnd:   end,
	}
}

// Validate checks required review fields.
func (r *Review) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !r.Period.Valid() {
		return fmt.Errorf("invalid review period %q", r.Period)
	}
	if r.PeriodStart.IsZero() || r.PeriodEnd.IsZero() {
		return fmt.Errorf("period bounds are required")
	}
	if r.PeriodEnd.Before(r.PeriodStart) {
		return fmt.Errorf("period end before start")
	}
	return nil
}

// FrameworkSession is a guided exercise (e.g. a values inventory) worked
// through in stages across one or more sittings.
type FrameworkSession struct {
	Syncable
	FrameworkType string // e.g. "ikigai", "wheel-of-life"
	StartDate     string // YYYY-MM-DD
	Stage         FrameworkStage
	Entries       []QA
}

// NewFrameworkSession starts a session of the given framework type.
func NewFrameworkSession(frameworkType, startDate string) *FrameworkSession {
	now := time.Now().UTC()
	return &FrameworkSession{
		Syncable: Syncable{
			ID:         NewID(),
			CreatedAt:  now,
			UpdatedAt:  now,
			SyncStatus: SyncPending,
		},
		FrameworkType: frameworkType,
		StartDate:     startDate,
		Stage:         FrameworkIntro,
	}
}

// Validate checks required framework-session fields.
func (f *FrameworkSession) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("id is required")
	}
	if f.FrameworkType == "" {
		return fmt.Errorf("framework type is required")
	}
	if _, err := time.Parse(DateLayout, f.StartDate); err != nil {
		return fmt.Errorf("invalid start date %q: %w", f.StartDate, err)
	}
	if !f.Stage.Valid() {
		return fmt.Errorf("invalid framework stage %q", f.Stage)
	}
	return nil
}
