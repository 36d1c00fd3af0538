package recommendation

import (
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
)

var (
	// errors
	ErrNotFound          = errors.New("recommendation not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status of a recommendation. Only Status may change once a
// recommendation is created: pending -> {accepted, dismissed} -> completed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDismissed Status = "dismissed"
	StatusCompleted Status = "completed"
)

var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusDismissed},
	StatusAccepted:  {StatusCompleted},
	StatusDismissed: {StatusCompleted},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDismissed, StatusCompleted:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Difficulty of the recommended content.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Metadata carries optional content pointers and weakness signals.
type Metadata struct {
	SubjectID            string     `json:"subject_id,omitempty"`
	TopicID              string     `json:"topic_id,omitempty"`
	Difficulty           Difficulty `json:"difficulty,omitempty"`
	WeaknessScore        float64    `json:"weakness_score,omitempty"`
	ImprovementPotential float64    `json:"improvement_potential,omitempty"`
}

// Recommendation is a single learning recommendation. Immutable once
// created except for Status; the scorer only reads and re-ranks.
type Recommendation struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Reason        string    `json:"reason"`
	Priority      float64   `json:"priority"`   // 0..100
	Urgency       float64   `json:"urgency"`    // 0..100
	Confidence    float64   `json:"confidence"` // 0..1
	EstimatedTime int       `json:"estimated_time"` // minutes
	Status        Status    `json:"status"`
	Metadata      Metadata  `json:"metadata"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Raw is the recommendation shape as read from the store, before
// defaulting. All default policy lives in Normalize; callers never
// fill in missing fields themselves.
type Raw struct {
	ID                   string       `db:"id"`
	UserID               string       `db:"user_id"`
	Type                 string       `db:"type"`
	Title                string       `db:"title"`
	Description          string       `db:"description"`
	Reason               string       `db:"reason"`
	Priority             null.Float64 `db:"priority"`
	Urgency              null.Float64 `db:"urgency"`
	Confidence           null.Float64 `db:"confidence"`
	EstimatedTime        null.Int     `db:"estimated_time"` // minutes
	Status               null.String  `db:"status"`
	SubjectID            null.String  `db:"subject_id"`
	TopicID              null.String  `db:"topic_id"`
	Difficulty           null.String  `db:"difficulty"`
	WeaknessScore        null.Float64 `db:"weakness_score"`
	ImprovementPotential null.Float64 `db:"improvement_potential"`
	CreatedAt            time.Time    `db:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at"`
}

// Normalize converts a Raw record into a Recommendation, applying the
// default policy for missing fields: priority 50, confidence 0.5,
// status pending, estimated time derived from difficulty and urgency
// derived from age at `now`.
func Normalize(raw Raw, now time.Time) Recommendation {
	difficulty := Difficulty(raw.Difficulty.String)

	rec := Recommendation{
		ID:            raw.ID,
		UserID:        raw.UserID,
		Type:          raw.Type,
		Title:         raw.Title,
		Description:   raw.Description,
		Reason:        raw.Reason,
		Priority:      50,
		Urgency:       ComputeUrgency(now.Sub(raw.CreatedAt)),
		Confidence:    0.5,
		EstimatedTime: EstimateTime(difficulty),
		Status:        StatusPending,
		Metadata: Metadata{
			SubjectID:            raw.SubjectID.String,
			TopicID:              raw.TopicID.String,
			Difficulty:           difficulty,
			WeaknessScore:        raw.WeaknessScore.Float64,
			ImprovementPotential: raw.ImprovementPotential.Float64,
		},
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
	if raw.Priority.Valid {
		rec.Priority = raw.Priority.Float64
	}
	if raw.Urgency.Valid {
		rec.Urgency = raw.Urgency.Float64
	}
	if raw.Confidence.Valid {
		rec.Confidence = raw.Confidence.Float64
	}
	if raw.EstimatedTime.Valid {
		rec.EstimatedTime = raw.EstimatedTime.Int
	}
	if s := Status(raw.Status.String); s.IsValid() {
		rec.Status = s
	}
	return rec
}

// PerformanceSignal is a per-subject aggregate of a user's attempt
// history. Recomputed on each fetch, never persisted.
type PerformanceSignal struct {
	SubjectID    string     `json:"subject_id"`
	AverageScore float64    `json:"average_score"` // 0..100
	RecentScores []float64  `json:"recent_scores"`
	Trend        Trajectory `json:"trend"`
}

// NewRecommendation contains information needed to create a Recommendation.
type NewRecommendation struct {
	UserID        string     `json:"user_id" validate:"required"`
	Type          string     `json:"type" validate:"required"`
	Title         string     `json:"title" validate:"required"`
	Description   string     `json:"description"`
	Reason        string     `json:"reason"`
	Priority      float64    `json:"priority" validate:"gte=0,lte=100"`
	Confidence    float64    `json:"confidence" validate:"gte=0,lte=1"`
	SubjectID     string     `json:"subject_id"`
	TopicID       string     `json:"topic_id"`
	Difficulty    Difficulty `json:"difficulty" validate:"omitempty,oneof=Easy Medium Hard"`
	WeaknessScore float64    `json:"weakness_score" validate:"gte=0,lte=100"`
}
