// Package workflow encodes the editorial state machine for notes.
package workflow

import "github.com/starford/folio/internal/models"

// Transitions is the single source of truth for legal status changes.
// Publishing is only reachable from ready or scheduled, and archived notes
// can only be revived into pre-publication states.
var Transitions = map[models.Status][]models.Status{
	models.StatusIdea:      {models.StatusDraft, models.StatusArchived},
	models.StatusDraft:     {models.StatusReady, models.StatusArchived, models.StatusIdea},
	models.StatusReady:     {models.StatusScheduled, models.StatusPublished, models.StatusDraft, models.StatusArchived},
	models.StatusScheduled: {models.StatusPublished, models.StatusReady, models.StatusArchived},
	models.StatusPublished: {models.StatusArchived, models.StatusDraft},
	models.StatusArchived:  {models.StatusIdea, models.StatusDraft},
}

// IsValidTransition reports whether a note may move from one status to another.
// Staying in the same status is always allowed.
func IsValidTransition(from, to models.Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next returns the statuses reachable from s, excluding s itself.
func Next(s models.Status) []models.Status {
	out := make([]models.Status, len(Transitions[s]))
	copy(out, Transitions[s])
	return out
}
