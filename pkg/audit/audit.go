// Package audit records user-visible activity such as report exports and
// cache invalidations. Entries go to one of the sinks configured by
// audit.backend.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Category groups activity entries in the log.
type Category string

const (
	// CategoryReport marks report exports.
	CategoryReport Category = "report"
	// CategoryCache marks administrative cache operations.
	CategoryCache Category = "cache"
)

// Action represents what was done.
type Action string

const (
	// ActionExport indicates a generated downloadable artifact.
	ActionExport Action = "EXPORT"
	// ActionInvalidate indicates cache eviction of one module.
	ActionInvalidate Action = "INVALIDATE"
	// ActionFlush indicates eviction of the whole cache namespace.
	ActionFlush Action = "FLUSH"
)

// Entry represents a single activity log record.
type Entry struct {
	ID          string         `json:"id"`                   // Unique identifier (UUID).
	Timestamp   time.Time      `json:"timestamp"`            // Time when the event occurred.
	Service     string         `json:"service,omitempty"`    // Service that produced the entry.
	Category    Category       `json:"category"`             // Category, e.g. "report".
	Action      Action         `json:"action,omitempty"`     // Action performed.
	DisplayName string         `json:"display_name"`         // Human-readable name shown in the activity feed.
	RequestID   string         `json:"request_id,omitempty"` // ID of the originating request, if any.
	Extra       map[string]any `json:"extra,omitempty"`      // Free-form details.
}

// Logger is the interface that audit sinks must implement.
type Logger interface {
	// Log records an entry.
	Log(ctx context.Context, entry *Entry) error

	// Query retrieves entries. Not all sinks support querying.
	Query(ctx context.Context, filter *QueryFilter) ([]*Entry, error)

	// Close flushes pending entries and releases resources.
	Close() error
}

// QueryFilter defines criteria for querying the activity log.
type QueryFilter struct {
	Category  Category   // Filter by category.
	Service   string     // Filter by service name.
	StartTime *time.Time // Inclusive lower bound.
	EndTime   *time.Time // Exclusive upper bound.
	Limit     int        // Maximum number of results, 100 by default.
}

// NewEntry creates an entry with a fresh UUID. The timestamp is stored in UTC.
func NewEntry(at time.Time, category Category, action Action, displayName string) *Entry {
	return &Entry{
		ID:          uuid.NewString(),
		Timestamp:   at.UTC(),
		Category:    category,
		Action:      action,
		DisplayName: displayName,
	}
}

// From sets the producing service and the originating request.
func (e *Entry) From(service, requestID string) *Entry {
	e.Service = service
	e.RequestID = requestID
	return e
}

// With adds a detail. Empty strings are skipped.
func (e *Entry) With(key string, value any) *Entry {
	if s, ok := value.(string); ok && s == "" {
		return e
	}
	if e.Extra == nil {
		e.Extra = make(map[string]any)
	}
	e.Extra[key] = value
	return e
}
