package models

import (
	"strings"
	"time"
)

// ActivityCategory is the therapy area an activity targets
type ActivityCategory string

const (
	CategoryArticulation ActivityCategory = "articulation"
	CategoryLanguage     ActivityCategory = "language"
	CategoryFluency      ActivityCategory = "fluency"
	CategoryVoice        ActivityCategory = "voice"
	CategoryPhonology    ActivityCategory = "phonology"
	CategoryPragmatics   ActivityCategory = "pragmatics"
)

// Categories lists every category in display order
var Categories = []ActivityCategory{
	CategoryArticulation,
	CategoryLanguage,
	CategoryFluency,
	CategoryVoice,
	CategoryPhonology,
	CategoryPragmatics,
}

// Valid reports whether c is one of the known categories
func (c ActivityCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// DisplayName returns the category as shown to therapists
func (c ActivityCategory) DisplayName() string {
	s := strings.ReplaceAll(string(c), "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// TherapyActivity is reference data for a trial run: a named exercise and its prompt items
type TherapyActivity struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Description     string           `json:"description,omitempty"`
	Category        ActivityCategory `json:"category"`
	Instructions    string           `json:"instructions,omitempty"`
	TargetSounds    string           `json:"target_sounds,omitempty"`
	DifficultyLevel int              `json:"difficulty_level"` // 1-5 scale
	IsActive        bool             `json:"is_active"`
	Items           []TrialItem      `json:"items"`
	CreatedAt       time.Time        `json:"created_at"`
}

// TrialItem is one prompt in an activity's word list. It has no identity beyond
// its position in the list.
type TrialItem struct {
	Word      string `json:"word"`
	Phonetic  string `json:"phonetic,omitempty"`
	Position  string `json:"position,omitempty"` // initial, medial, final
	Syllables int    `json:"syllables,omitempty"`
}

// CategoryCount pairs a category with the number of active activities in it
type CategoryCount struct {
	Category    ActivityCategory `json:"category"`
	DisplayName string           `json:"display_name"`
	Count       int              `json:"count"`
}

// ActivityFilter narrows a catalog listing. Zero values mean "any".
type ActivityFilter struct {
	Category        ActivityCategory
	DifficultyLevel int
	Search          string
	IncludeInactive bool
}
