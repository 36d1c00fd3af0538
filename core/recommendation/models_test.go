package recommendation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func TestNormalize_defaults(t *testing.T) {
	now := time.Now().UTC()

	raw := Raw{
		ID:        "rec1",
		UserID:    "usr1",
		Type:      "practice",
		Title:     "Fractions drill",
		CreatedAt: now.Add(-2 * 24 * time.Hour),
		UpdatedAt: now,
	}

	rec := Normalize(raw, now)
	assert.Equal(t, 50.0, rec.Priority)
	assert.Equal(t, 0.5, rec.Confidence)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, 20, rec.EstimatedTime) // unknown difficulty
	assert.Equal(t, 30.0, rec.Urgency)     // 2 days old
}

func TestNormalize_setFieldsKept(t *testing.T) {
	now := time.Now().UTC()

	raw := Raw{
		ID:         "rec2",
		Priority:   null.Float64From(88),
		Urgency:    null.Float64From(5),
		Confidence: null.Float64From(0.9),
		Status:     null.StringFrom("accepted"),
		Difficulty: null.StringFrom("Hard"),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	rec := Normalize(raw, now)
	assert.Equal(t, 88.0, rec.Priority)
	assert.Equal(t, 5.0, rec.Urgency)
	assert.Equal(t, 0.9, rec.Confidence)
	assert.Equal(t, StatusAccepted, rec.Status)
	assert.Equal(t, 40, rec.EstimatedTime)
	assert.Equal(t, DifficultyHard, rec.Metadata.Difficulty)
}

func TestNormalize_invalidStatusDefaultsToPending(t *testing.T) {
	now := time.Now().UTC()
	raw := Raw{ID: "rec3", Status: null.StringFrom("archived"), CreatedAt: now, UpdatedAt: now}

	rec := Normalize(raw, now)
	assert.Equal(t, StatusPending, rec.Status)
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusDismissed, true},
		{StatusPending, StatusCompleted, false},
		{StatusAccepted, StatusCompleted, true},
		{StatusAccepted, StatusPending, false},
		{StatusDismissed, StatusCompleted, true},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusAccepted, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%v -> %v = %v; want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
