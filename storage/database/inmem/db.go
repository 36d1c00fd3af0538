package inmemdb

import (
	"sync"
	"time"

	"github.com/trezcool/eduassist/core/progress"
	"github.com/trezcool/eduassist/core/recommendation"
	"github.com/trezcool/eduassist/core/user"
)

// DB is an in-memory store backing all repositories; used in tests and
// when running without Postgres.
type DB struct {
	mutex sync.RWMutex

	users    map[string]*user.User
	recs     map[string]*recommendation.Raw
	progress map[string]*progress.Progress
	badges   map[string][]progress.Badge
	attempts []quizAttempt
	feed     []progress.Activity
}

type quizAttempt struct {
	UserID    string
	QuizID    string
	SubjectID string
	Score     float64
	Rating    float64
	CreatedAt time.Time
}

func Open() *DB {
	return &DB{
		users:    make(map[string]*user.User),
		recs:     make(map[string]*recommendation.Raw),
		progress: make(map[string]*progress.Progress),
		badges:   make(map[string][]progress.Badge),
	}
}
