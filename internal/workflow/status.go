// Package workflow defines the publication status workflow: which status
// transitions are legal and when a scheduled timestamp is acceptable. It is
// pure lookup and validation; callers talk to the gateway after a
// transition has been approved.
package workflow

import (
	"fmt"
	"time"

	"go-blog-cms/internal/data"
)

// Scheduling window bounds, relative to the moment of validation.
const (
	MinScheduleLead = 5 * time.Minute
	MaxScheduleLead = 365 * 24 * time.Hour
)

// transitions is the full status graph. Statuses absent from the map have
// no legal transitions (fail closed).
var transitions = map[data.Status]map[data.Status]bool{
	data.StatusDraft: {
		data.StatusPublished: true,
		data.StatusScheduled: true,
		data.StatusPrivate:   true,
		data.StatusTrash:     true,
	},
	data.StatusPublished: {
		data.StatusDraft:    true,
		data.StatusPrivate:  true,
		data.StatusArchived: true,
		data.StatusTrash:    true,
	},
	data.StatusScheduled: {
		data.StatusDraft:     true,
		data.StatusPublished: true,
		data.StatusPrivate:   true,
		data.StatusTrash:     true,
	},
	data.StatusPrivate: {
		data.StatusDraft:     true,
		data.StatusPublished: true,
		data.StatusScheduled: true,
		data.StatusTrash:     true,
	},
	data.StatusArchived: {
		data.StatusDraft:     true,
		data.StatusPublished: true,
		data.StatusPrivate:   true,
		data.StatusTrash:     true,
	},
	data.StatusTrash: {
		data.StatusDraft:     true,
		data.StatusPublished: true,
		data.StatusPrivate:   true,
		data.StatusArchived:  true,
	},
}

// TransitionsFrom returns the set of statuses a post may legally move to
// from the given status. Unknown statuses yield an empty set.
func TransitionsFrom(from data.Status) []data.Status {
	set := transitions[from]
	out := make([]data.Status, 0, len(set))
	// Fixed enumeration order keeps the result deterministic for the API.
	for _, s := range []data.Status{
		data.StatusDraft, data.StatusPublished, data.StatusScheduled,
		data.StatusPrivate, data.StatusArchived, data.StatusTrash,
	} {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}

// CanTransition reports whether moving from one status to another is legal
// per the transition table. It does not check scheduling timestamps; use
// ValidateTransition for the full check.
func CanTransition(from, to data.Status) bool {
	return transitions[from][to]
}

// ValidationError is a locally detected rule violation; it never reaches
// the gateway and always carries the specific rule that was broken.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ValidateSchedule checks a scheduled-publish timestamp against the allowed
// window. The error message distinguishes a missing timestamp, one that is
// too soon, and one that is too far out, so the UI can explain the failure.
func ValidateSchedule(scheduledAt *time.Time, now time.Time) error {
	if scheduledAt == nil || scheduledAt.IsZero() {
		return &ValidationError{Reason: "scheduled time is required for scheduled posts"}
	}
	if scheduledAt.Before(now.Add(MinScheduleLead)) {
		return &ValidationError{Reason: fmt.Sprintf("scheduled time is too soon: must be at least %s from now", MinScheduleLead)}
	}
	if scheduledAt.After(now.Add(MaxScheduleLead)) {
		return &ValidationError{Reason: "scheduled time is too far out: must be within one year"}
	}
	return nil
}

// ValidateTransition combines the table lookup with schedule validation.
// A transition to scheduled requires a timestamp inside the allowed window.
func ValidateTransition(from, to data.Status, scheduledAt *time.Time, now time.Time) error {
	if !CanTransition(from, to) {
		return &ValidationError{Reason: fmt.Sprintf("cannot transition from %s to %s", from, to)}
	}
	if to == data.StatusScheduled {
		return ValidateSchedule(scheduledAt, now)
	}
	return nil
}
