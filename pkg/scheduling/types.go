package scheduling

import (
	"maps"
	"slices"
	"time"

	"github.com/dmitrymomot/schedkit/pkg/availability"
)

// Status is the lifecycle state of a suggestion.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusReady     Status = "READY"
	StatusFailed    Status = "FAILED"
	StatusCommitted Status = "COMMITTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReady, StatusFailed, StatusCommitted:
		return true
	}
	return false
}

// Error codes recorded on failed suggestions.
const (
	CodeDispatchRejected  = "DISPATCH_REJECTED"
	CodeEnqueueFailed     = "QUEUE_ENQUEUE_FAILED"
	CodeQueueJobCancelled = "QUEUE_JOB_CANCELLED"
	CodeNoFeasibleWindow  = "NO_FEASIBLE_WINDOW"
	CodeAvailabilityError = "AVAILABILITY_ERROR"
	CodeInternalError     = "INTERNAL_ERROR"
)

// JobType is the queue job type of correlated suggestion jobs.
const JobType = "scheduling.suggestion"

// Request asks for a time slot for a group of users.
type Request struct {
	OrganizationID  string         `json:"organizationId" bson:"organizationId"`
	UserIDs         []string       `json:"userIds" bson:"userIds"`
	RangeStart      time.Time      `json:"rangeStart" bson:"rangeStart"`
	RangeEnd        time.Time      `json:"rangeEnd" bson:"rangeEnd"`
	DurationMinutes int            `json:"durationMinutes" bson:"durationMinutes"`
	Title           string         `json:"title,omitempty" bson:"title,omitempty"`
	Description     string         `json:"description,omitempty" bson:"description,omitempty"`
	Color           string         `json:"color,omitempty" bson:"color,omitempty"`
	Solver          string         `json:"solver,omitempty" bson:"solver,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	// RequireQueue fails the request with ErrQueueUnavailable when the engine
	// has no job queue attached.
	RequireQueue bool `json:"requireQueue,omitempty" bson:"requireQueue,omitempty"`
}

func (r Request) Clone() Request {
	r.UserIDs = slices.Clone(r.UserIDs)
	r.Metadata = maps.Clone(r.Metadata)
	return r
}

func (r Request) duration() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}

// rangeMinutes is the length of the requested range in whole minutes, rounded up.
func (r Request) rangeMinutes() int64 {
	return ceilMinutes(r.RangeEnd.Sub(r.RangeStart))
}

func ceilMinutes(d time.Duration) int64 {
	n := int64(d / time.Minute)
	if d%time.Minute != 0 {
		n++
	}
	return n
}

// DraftEvent is a calendar event proposed by a plan.
type DraftEvent struct {
	Title       string         `json:"title" bson:"title"`
	Description string         `json:"description,omitempty" bson:"description,omitempty"`
	Color       string         `json:"color,omitempty" bson:"color,omitempty"`
	Start       time.Time      `json:"start" bson:"start"`
	End         time.Time      `json:"end" bson:"end"`
	AssigneeIDs []string       `json:"assigneeIds" bson:"assigneeIds"`
	Metadata    map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

func (d DraftEvent) Clone() DraftEvent {
	d.AssigneeIDs = slices.Clone(d.AssigneeIDs)
	d.Metadata = maps.Clone(d.Metadata)
	return d
}

// Plan is the selected window and the events to create on commit.
type Plan struct {
	Window availability.Window `json:"window" bson:"window"`
	Events []DraftEvent        `json:"events" bson:"events"`
}

func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := &Plan{Window: p.Window, Events: make([]DraftEvent, len(p.Events))}
	for i, ev := range p.Events {
		c.Events[i] = ev.Clone()
	}
	return c
}

// ScoreBreakdown carries solver diagnostics.
type ScoreBreakdown struct {
	FeasibleWindowCount int    `json:"feasibleWindowCount" bson:"feasibleWindowCount"`
	SelectedIndex       int    `json:"selectedIndex" bson:"selectedIndex"`
	CoverageMinutes     int    `json:"coverageMinutes" bson:"coverageMinutes"`
	SlotMinutes         int    `json:"slotMinutes" bson:"slotMinutes"`
	Solver              string `json:"solver" bson:"solver"`
}

// SuggestionError is one entry of a suggestion's error log.
type SuggestionError struct {
	Code    string    `json:"code" bson:"code"`
	Message string    `json:"message" bson:"message"`
	At      time.Time `json:"at" bson:"at"`
}

// Suggestion is a proposed schedule for a Request.
//
// Plan is set iff Status is READY or COMMITTED. ResultingEventIDs is non-empty
// iff Status is COMMITTED. A COMMITTED suggestion never changes.
type Suggestion struct {
	ID                string            `json:"id" bson:"_id"`
	OrganizationID    string            `json:"organizationId" bson:"organizationId"`
	Solver            string            `json:"solver" bson:"solver"`
	Status            Status            `json:"status" bson:"status"`
	CreatedBy         string            `json:"createdBy,omitempty" bson:"createdBy,omitempty"`
	CreatedAt         time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt" bson:"updatedAt"`
	CommittedAt       *time.Time        `json:"committedAt,omitempty" bson:"committedAt,omitempty"`
	CommittedBy       string            `json:"committedBy,omitempty" bson:"committedBy,omitempty"`
	QueueJobID        string            `json:"queueJobId,omitempty" bson:"queueJobId,omitempty"`
	Input             Request           `json:"input" bson:"input"`
	Plan              *Plan             `json:"plan" bson:"plan"`
	Score             ScoreBreakdown    `json:"score" bson:"score"`
	Errors            []SuggestionError `json:"errors" bson:"errors"`
	ResultingEventIDs []string          `json:"resultingEventIds" bson:"resultingEventIds"`
}

// Clone returns a deep copy. Stores hand out clones only.
func (s *Suggestion) Clone() *Suggestion {
	if s == nil {
		return nil
	}
	c := *s
	c.Input = s.Input.Clone()
	c.Plan = s.Plan.Clone()
	c.Errors = slices.Clone(s.Errors)
	c.ResultingEventIDs = slices.Clone(s.ResultingEventIDs)
	if s.CommittedAt != nil {
		t := *s.CommittedAt
		c.CommittedAt = &t
	}
	return &c
}

// EventOverride replaces fields of the draft event at Index on commit.
// Nil fields keep the drafted value.
type EventOverride struct {
	Index       int        `json:"index"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Color       *string    `json:"color,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	AssigneeIDs []string   `json:"assigneeIds,omitempty"`
}

// CommitParams describes a commit.
type CommitParams struct {
	OrganizationID string
	SuggestionID   string
	ActorID        string
	Overrides      []EventOverride
}

// ListOptions filters ListSuggestionsForOrg. Results are newest first.
type ListOptions struct {
	Statuses []Status
	Limit    int
}
