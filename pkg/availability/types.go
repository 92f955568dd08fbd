package availability

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Source tells where a busy interval came from.
type Source string

const (
	SourceEvent Source = "event"
	SourceCache Source = "cache"
)

// BusyInterval is time during which a user is unavailable.
type BusyInterval struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Source      Source    `json:"source"`
	ReferenceID string    `json:"referenceId,omitempty"`
	Label       string    `json:"label,omitempty"`
}

func (b BusyInterval) sameOrigin(o BusyInterval) bool {
	return b.Source == o.Source && b.ReferenceID == o.ReferenceID && b.Label == o.Label
}

// Window is a span free for every requested user.
type Window struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"durationMinutes"`
}

// Conflict lists the coalesced busy intervals of one user inside the range.
type Conflict struct {
	UserID    string         `json:"userId"`
	Intervals []BusyInterval `json:"intervals"`
}

// Result is the outcome of GetWindows.
type Result struct {
	Windows     []Window   `json:"windows"`
	Conflicts   []Conflict `json:"conflicts"`
	GeneratedAt time.Time  `json:"generatedAt"`
}

// Query describes an availability lookup.
type Query struct {
	OrganizationID string
	UserIDs        []string
	RangeStart     time.Time
	RangeEnd       time.Time
	SlotMinutes    int
}

// BusySpan is one busy entry of a cache record.
type BusySpan struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Label       string    `json:"label,omitempty"`
	ReferenceID string    `json:"referenceId,omitempty"`
}

// UnmarshalJSON accepts the formats of ParseTimestamp and reports bad
// timestamps as ErrInvalidDate.
func (s *BusySpan) UnmarshalJSON(data []byte) error {
	var raw struct {
		Start       string `json:"start"`
		End         string `json:"end"`
		Label       string `json:"label"`
		ReferenceID string `json:"referenceId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDate, err)
	}

	start, err := ParseTimestamp(raw.Start)
	if err != nil {
		return fmt.Errorf("busy span start: %w", err)
	}
	end, err := ParseTimestamp(raw.End)
	if err != nil {
		return fmt.Errorf("busy span end: %w", err)
	}

	*s = BusySpan{Start: start, End: end, Label: raw.Label, ReferenceID: raw.ReferenceID}
	return nil
}

// CacheRecord is the externally synchronized busy time of one user.
type CacheRecord struct {
	OrganizationID string     `json:"organizationId"`
	UserID         string     `json:"userId"`
	RangeStart     time.Time  `json:"rangeStart"`
	RangeEnd       time.Time  `json:"rangeEnd"`
	Busy           []BusySpan `json:"busy"`
	Source         string     `json:"source,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Clone returns a copy that shares no slices with r.
func (r *CacheRecord) Clone() *CacheRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Busy = slices.Clone(r.Busy)
	return &c
}

// CacheUpdate replaces the busy list of one (organization, user) pair.
type CacheUpdate struct {
	OrganizationID string
	UserID         string
	RangeStart     time.Time
	RangeEnd       time.Time
	Busy           []BusySpan
	Source         string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without a zone are UTC.
// Failures wrap ErrInvalidDate.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrInvalidDate)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
}
