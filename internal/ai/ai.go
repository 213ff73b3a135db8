// Package ai suggests split plan refinements. With an OpenAI API key it asks
// the model for structured suggestions; without one it falls back to a local
// heuristic so the feature degrades instead of disappearing.
package ai

import (
	"context"
	"log/slog"
)

// Refiner turns a free-form coaching instruction into a structured
// suggestion for the given split.
type Refiner interface {
	RefineSplit(ctx context.Context, req RefinementRequest) (Refinement, error)
}

// SessionSummary is the slice of a split session the refiner needs.
type SessionSummary struct {
	Day          int      `json:"day"`
	Name         string   `json:"name"`
	MuscleGroups []string `json:"muscle_groups"`
}

// RefinementRequest describes the current split and what the user wants
// changed.
type RefinementRequest struct {
	SplitType    string           `json:"split_type"`
	CycleDays    int              `json:"cycle_days"`
	Sessions     []SessionSummary `json:"sessions"`
	FrequencyMap map[string]int   `json:"frequency_map"`
	Instruction  string           `json:"instruction"`
}

// Refinement is an advisory suggestion. Nothing in it is applied
// automatically.
type Refinement struct {
	Summary       string   `json:"summary"`
	NotesMarkdown string   `json:"notes_markdown"`
	Changes       []Change `json:"changes"`
}

// Change is one concrete suggested adjustment.
type Change struct {
	Action string `json:"action"` // add_muscle, remove_muscle, swap_days, adjust_volume
	Target string `json:"target"`
	Detail string `json:"detail"`
}

// NewRefiner picks the OpenAI-backed refiner when an API key is configured
// and the local heuristic otherwise.
func NewRefiner(apiKey string, logger *slog.Logger) Refiner {
	if apiKey == "" {
		return &heuristicRefiner{}
	}
	return newOpenAIRefiner(apiKey, logger)
}
