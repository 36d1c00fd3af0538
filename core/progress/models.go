package progress

import (
	"errors"
	"math"
	"time"
)

var ErrNotFound = errors.New("progress not found")

// XP constants.
const (
	xpPerLevel  = 500
	xpQuizBase  = 50 // completing any quiz
	xpScoreStep = 2  // 1 extra XP per 2 score points
)

// Badge codes.
const (
	BadgeFirstQuiz    = "first_quiz"
	BadgePerfectScore = "perfect_score"
	BadgeStreak7      = "streak_7"
	BadgeStreak30     = "streak_30"
)

var badgeNames = map[string]string{
	BadgeFirstQuiz:    "First Steps",
	BadgePerfectScore: "Perfectionist",
	BadgeStreak7:      "One Week Strong",
	BadgeStreak30:     "Unstoppable",
}

type (
	// Progress is a user's gamification state.
	Progress struct {
		UserID       string    `json:"user_id" db:"user_id"`
		XP           int       `json:"xp" db:"xp"`
		Level        int       `json:"level" db:"level"`
		Streak       int       `json:"streak" db:"streak"` // consecutive days with activity
		QuizCount    int       `json:"quiz_count" db:"quiz_count"`
		LastActivity time.Time `json:"last_activity" db:"last_activity"`
		Badges       []Badge   `json:"badges" db:"-"`
		UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
	}

	Badge struct {
		Code     string    `json:"code" db:"code"`
		Name     string    `json:"name" db:"name"`
		EarnedAt time.Time `json:"earned_at" db:"earned_at"`
	}

	// QuizResult is the outcome of a completed quiz attempt.
	QuizResult struct {
		QuizID    string  `json:"quiz_id" validate:"required"`
		SubjectID string  `json:"subject_id" validate:"required"`
		Score     float64 `json:"score" validate:"gte=0,lte=100"`
		Rating    float64 `json:"rating" validate:"gte=0,lte=5"` // optional user rating
	}

	// Activity is a recent-activity feed entry.
	Activity struct {
		UserID string    `json:"user_id" db:"user_id"`
		Type   string    `json:"type" db:"type"`
		Title  string    `json:"title" db:"title"`
		XP     int       `json:"xp" db:"xp"`
		At     time.Time `json:"at" db:"at"`
	}

	LeaderboardEntry struct {
		UserID   string `json:"user_id" db:"user_id"`
		Username string `json:"username" db:"username"`
		XP       int    `json:"xp" db:"xp"`
	}
)

// NewProgress returns the starting state for a user.
func NewProgress(userID string, now time.Time) Progress {
	return Progress{UserID: userID, Level: 1, UpdatedAt: now}
}

// LevelForXP maps total XP to a level; levels start at 1 and each
// level spans 500 XP.
func LevelForXP(xp int) int {
	if xp < 0 {
		return 1
	}
	return xp/xpPerLevel + 1
}

// XPForQuiz awards a base amount for completing a quiz plus a
// score-proportional bonus; a perfect score yields 100 XP.
func XPForQuiz(score float64) int {
	return xpQuizBase + int(math.Round(score))/xpScoreStep
}

func (p Progress) HasBadge(code string) bool {
	for _, b := range p.Badges {
		if b.Code == code {
			return true
		}
	}
	return false
}

// addXP accumulates XP and recomputes the level.
func (p Progress) addXP(amount int, now time.Time) Progress {
	p.XP += amount
	p.Level = LevelForXP(p.XP)
	p.UpdatedAt = now
	return p
}

// touchStreak advances the consecutive-day streak: same-day activity
// keeps it, next-day activity increments it, a gap resets it to 1.
func (p Progress) touchStreak(now time.Time) Progress {
	today := now.Truncate(24 * time.Hour)
	last := p.LastActivity.Truncate(24 * time.Hour)
	switch {
	case p.LastActivity.IsZero() || today.Sub(last) > 24*time.Hour:
		p.Streak = 1
	case today.After(last):
		p.Streak++
	}
	p.LastActivity = now
	return p
}

// ApplyQuiz folds a quiz result into the progress state: XP, streak,
// quiz count and any newly earned badges.
func ApplyQuiz(p Progress, res QuizResult, now time.Time) (Progress, int, []Badge) {
	gained := XPForQuiz(res.Score)
	p = p.addXP(gained, now)
	p = p.touchStreak(now)
	p.QuizCount++

	var earned []Badge
	award := func(code string) {
		if !p.HasBadge(code) {
			earned = append(earned, Badge{Code: code, Name: badgeNames[code], EarnedAt: now})
		}
	}
	if p.QuizCount == 1 {
		award(BadgeFirstQuiz)
	}
	if res.Score >= 100 {
		award(BadgePerfectScore)
	}
	if p.Streak >= 30 {
		award(BadgeStreak30)
	} else if p.Streak >= 7 {
		award(BadgeStreak7)
	}

	p.Badges = append(p.Badges, earned...)
	return p, gained, earned
}
