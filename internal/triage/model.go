package triage

import (
	"fmt"
	"time"
)

// Status tracks where a feedback item is in its lifecycle.
type Status string

const (
	// StatusPending means created, nobody has picked it up yet
	StatusPending Status = "pending"

	// StatusInProgress means someone is working on it
	StatusInProgress Status = "in_progress"

	// StatusResolved means done, terminal
	StatusResolved Status = "resolved"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// rank orders statuses for the triage queue.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusInProgress:
		return 2
	case StatusResolved:
		return 3
	}
	return 4
}

// Origin records how a feedback item entered the system.
type Origin string

const (
	OriginManual Origin = "manual"
	OriginAPI    Origin = "api"
	OriginCSV    Origin = "csv"
	OriginSample Origin = "sample"
)

// Valid reports whether o is one of the known origins.
func (o Origin) Valid() bool {
	switch o {
	case OriginManual, OriginAPI, OriginCSV, OriginSample:
		return true
	}
	return false
}

// Action is the kind of mutation an audit entry records.
type Action string

const (
	ActionCreated         Action = "created"
	ActionStatusChange    Action = "status_change"
	ActionPriorityLowered Action = "priority_lowered"
)

// Category is the closed set of feedback categories, declared from most to
// least severe. The declaration order is the tie-break order.
type Category uint8

const (
	CategorySystemFailure Category = iota
	CategoryBug
	CategoryUI
	CategoryFeature

	numCategories = iota
)

// Categories lists every category in severity order.
var Categories = [numCategories]Category{
	CategorySystemFailure,
	CategoryBug,
	CategoryUI,
	CategoryFeature,
}

var categoryLabels = [numCategories]string{
	CategorySystemFailure: "System Failure",
	CategoryBug:           "Bug",
	CategoryUI:            "UI",
	CategoryFeature:       "Feature",
}

// String returns the display and storage label for c.
func (c Category) String() string {
	if int(c) < len(categoryLabels) {
		return categoryLabels[c]
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// ParseCategory maps a storage label back to a Category.
func ParseCategory(s string) (Category, error) {
	for i, label := range categoryLabels {
		if label == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if int(c) >= len(categoryLabels) {
		return nil, fmt.Errorf("invalid category %d", uint8(c))
	}
	return []byte(categoryLabels[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// FeedbackItem is a single piece of triaged feedback.
type FeedbackItem struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Origin    Origin    `json:"source"`
	Category  Category  `json:"category"`
	Score     int       `json:"priority_score"`
	Reason    string    `json:"priority_reason"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsSample  bool      `json:"is_sample"`
}

// AuditEntry is an immutable record of one mutation. FeedbackID is a weak
// reference: entries are removed together with their item by bulk clears.
type AuditEntry struct {
	ID         string    `json:"id"`
	FeedbackID *string   `json:"feedback_id"`
	Action     Action    `json:"action"`
	OldValue   *string   `json:"old_value"`
	NewValue   *string   `json:"new_value"`
	CreatedAt  time.Time `json:"created_at"`
}

// Scope selects which rows a bulk delete touches.
type Scope int

const (
	// ScopeAll matches every row
	ScopeAll Scope = iota

	// ScopeSamples matches sample-flagged items and the audit entries referencing them
	ScopeSamples
)

// ImportRecord is one row of a batch import. The analysis text is the
// trimmed concatenation of all three fields.
type ImportRecord struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Content     string `json:"content" yaml:"content"`
}

// QueueLess orders items for the triage queue: status (pending first), then
// score descending, then newest first.
func QueueLess(a, b *FeedbackItem) bool {
	if ra, rb := a.Status.rank(), b.Status.rank(); ra != rb {
		return ra < rb
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func strPtr(s string) *string { return &s }
