package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/eduassist/core/progress"
	"github.com/trezcool/eduassist/core/recommendation"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) GetProgress(ctx context.Context, userID string) (progress.Progress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	p, ok := repo.db.progress[userID]
	if !ok {
		return progress.Progress{}, progress.ErrNotFound
	}
	got := *p
	got.Badges = append([]progress.Badge(nil), repo.db.badges[userID]...)
	return got, nil
}

func (repo *progressRepository) SaveProgress(ctx context.Context, p progress.Progress) (progress.Progress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.progress[p.UserID] = &p
	return p, nil
}

func (repo *progressRepository) SaveQuizResult(
	ctx context.Context,
	p progress.Progress,
	earned []progress.Badge,
	res progress.QuizResult,
	act progress.Activity,
) (progress.Progress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.progress[p.UserID] = &p
	for _, b := range earned {
		repo.db.badges[p.UserID] = appendBadge(repo.db.badges[p.UserID], b)
	}
	repo.db.attempts = append(repo.db.attempts, quizAttempt{
		UserID:    p.UserID,
		QuizID:    res.QuizID,
		SubjectID: res.SubjectID,
		Score:     res.Score,
		Rating:    res.Rating,
		CreatedAt: act.At,
	})
	repo.db.feed = append(repo.db.feed, act)
	return p, nil
}

func (repo *progressRepository) SaveBadge(ctx context.Context, userID string, badge progress.Badge) (progress.Progress, error) {
	repo.db.mutex.Lock()
	repo.db.badges[userID] = appendBadge(repo.db.badges[userID], badge)
	repo.db.mutex.Unlock()

	return repo.GetProgress(ctx, userID)
}

func (repo *progressRepository) RecentActivity(ctx context.Context, userID string, limit int) ([]progress.Activity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var feed []progress.Activity
	for _, act := range repo.db.feed {
		if act.UserID == userID {
			feed = append(feed, act)
		}
	}
	sort.Slice(feed, func(i, j int) bool { return feed[i].At.After(feed[j].At) })
	if limit > 0 && len(feed) > limit {
		feed = feed[:limit]
	}
	return feed, nil
}

func (repo *progressRepository) TopByXP(ctx context.Context, limit int) ([]progress.LeaderboardEntry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	board := make([]progress.LeaderboardEntry, 0, len(repo.db.progress))
	for userID, p := range repo.db.progress {
		entry := progress.LeaderboardEntry{UserID: userID, XP: p.XP}
		if usr, ok := repo.db.users[userID]; ok {
			if !usr.IsActive {
				continue
			}
			entry.Username = usr.Username
		}
		board = append(board, entry)
	}
	sort.SliceStable(board, func(i, j int) bool { return board[i].XP > board[j].XP })
	if limit > 0 && len(board) > limit {
		board = board[:limit]
	}
	return board, nil
}

func appendBadge(badges []progress.Badge, badge progress.Badge) []progress.Badge {
	for _, b := range badges {
		if b.Code == badge.Code {
			return badges
		}
	}
	return append(badges, badge)
}

type performanceRepository struct {
	db *DB
}

var _ recommendation.PerformanceRepository = (*performanceRepository)(nil)

func NewPerformanceRepository(db *DB) recommendation.PerformanceRepository {
	return &performanceRepository{db: db}
}

func (repo *performanceRepository) RecentScoresBySubject(ctx context.Context, userID string, limit int) (map[string][]float64, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	attempts := make([]quizAttempt, 0, len(repo.db.attempts))
	for _, at := range repo.db.attempts {
		if at.UserID == userID {
			attempts = append(attempts, at)
		}
	}
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].CreatedAt.Before(attempts[j].CreatedAt) })

	scores := make(map[string][]float64)
	for _, at := range attempts {
		scores[at.SubjectID] = append(scores[at.SubjectID], at.Score)
	}
	for subjectID, subjScores := range scores {
		if limit > 0 && len(subjScores) > limit {
			scores[subjectID] = subjScores[len(subjScores)-limit:]
		}
	}
	return scores, nil
}

func (repo *performanceRepository) AverageRating(ctx context.Context, userID string) (float64, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var sum float64
	var n int
	for _, at := range repo.db.attempts {
		if at.UserID == userID && at.Rating > 0 {
			sum += at.Rating
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}
