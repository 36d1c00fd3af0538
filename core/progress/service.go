package progress

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/eduassist/core"
	"github.com/trezcool/eduassist/core/cache"
)

// Cache key namespaces.
const (
	CacheNSProgress    = "progress"
	CacheNSActivity    = "activity"
	CacheNSLeaderboard = "leaderboard"
)

const activityFeedSize = 10

type (
	Repository interface {
		GetProgress(ctx context.Context, userID string) (Progress, error)
		SaveProgress(ctx context.Context, p Progress) (Progress, error)
		// SaveQuizResult persists the attempt, the updated progress, the
		// newly earned badges and the activity entry atomically.
		SaveQuizResult(ctx context.Context, p Progress, earned []Badge, res QuizResult, act Activity) (Progress, error)
		SaveBadge(ctx context.Context, userID string, badge Badge) (Progress, error)
		RecentActivity(ctx context.Context, userID string, limit int) ([]Activity, error)
		TopByXP(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	}

	Service struct {
		conf    *core.Config
		repo    Repository
		mutator *cache.Mutator
	}
)

func NewService(conf *core.Config, repo Repository, mutator *cache.Mutator) *Service {
	return &Service{conf: conf, repo: repo, mutator: mutator}
}

func progressKey(userID string) cache.Key { return cache.NewKey(CacheNSProgress, userID) }
func activityKey(userID string) cache.Key { return cache.NewKey(CacheNSActivity, userID) }
func leaderboardKey() cache.Key { return cache.NewKey(CacheNSLeaderboard) }

// Get returns the user's progress, reading through the cache.
func (svc *Service) Get(ctx context.Context, userID string) (Progress, error) {
	key := progressKey(userID)
	if cached, ok, err := svc.mutator.Cache().Get(ctx, key); err == nil && ok {
		if p, ok := cached.(Progress); ok {
			return p, nil
		}
	}

	p, err := svc.repo.GetProgress(ctx, userID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return Progress{}, err
		}
		p = NewProgress(userID, time.Now().UTC())
	}
	_ = svc.mutator.Cache().Set(ctx, key, p)
	return p, nil
}

// AwardXP adds XP optimistically: the cached progress is bumped before
// the write lands, and restored verbatim if it fails.
func (svc *Service) AwardXP(ctx context.Context, userID string, amount int) (Progress, error) {
	now := time.Now().UTC()

	result, err := svc.mutator.Perform(ctx,
		progressKey(userID),
		func(current interface{}) interface{} {
			p, ok := current.(Progress)
			if !ok {
				return current
			}
			return p.addXP(amount, now)
		},
		func(ctx context.Context) (interface{}, error) {
			p, err := svc.getOrNew(ctx, userID, now)
			if err != nil {
				return nil, err
			}
			return svc.repo.SaveProgress(ctx, p.addXP(amount, now))
		},
		cache.WithReconcile(asCached),
		cache.WithSuccessMessage(fmt.Sprintf("+%d XP", amount)),
		cache.WithErrorMessage("Could not update your XP. Please try again."),
	)
	if err != nil {
		return Progress{}, errors.Wrap(err, "awarding XP")
	}
	return result.(Progress), nil
}

// CompleteQuiz records a quiz result. The progress, recent-activity
// feed and leaderboard caches are all updated speculatively as a group
// and rolled back together if the write fails.
func (svc *Service) CompleteQuiz(ctx context.Context, userID string, res QuizResult) (Progress, error) {
	now := time.Now().UTC()
	act := Activity{
		UserID: userID,
		Type:   "quiz_completed",
		Title:  fmt.Sprintf("Completed a quiz with %.0f%%", res.Score),
		XP:     XPForQuiz(res.Score),
		At:     now,
	}

	updates := []cache.KeyedUpdate{
		{
			Key: progressKey(userID),
			Update: func(current interface{}) interface{} {
				p, ok := current.(Progress)
				if !ok {
					return current
				}
				p, _, _ = ApplyQuiz(p, res, now)
				return p
			},
		},
		{
			Key: activityKey(userID),
			Update: func(current interface{}) interface{} {
				feed, ok := current.([]Activity)
				if !ok {
					return current
				}
				next := make([]Activity, 0, len(feed)+1)
				next = append(next, act)
				next = append(next, feed...)
				if len(next) > activityFeedSize {
					next = next[:activityFeedSize]
				}
				return next
			},
		},
		{
			Key: leaderboardKey(),
			Update: func(current interface{}) interface{} {
				board, ok := current.([]LeaderboardEntry)
				if !ok {
					return current
				}
				next := make([]LeaderboardEntry, len(board))
				copy(next, board)
				for i := range next {
					if next[i].UserID == userID {
						next[i].XP += act.XP
					}
				}
				sort.SliceStable(next, func(i, j int) bool { return next[i].XP > next[j].XP })
				return next
			},
		},
	}

	result, err := svc.mutator.PerformGroup(ctx, updates,
		func(ctx context.Context) (interface{}, error) {
			p, err := svc.getOrNew(ctx, userID, now)
			if err != nil {
				return nil, err
			}
			p, _, earned := ApplyQuiz(p, res, now)
			return svc.repo.SaveQuizResult(ctx, p, earned, res, act)
		},
		cache.WithSuccessMessage("Quiz completed!"),
		cache.WithErrorMessage("Could not save your quiz result. Please try again."),
	)
	if err != nil {
		return Progress{}, errors.Wrap(err, "completing quiz")
	}

	p := result.(Progress)
	// the group committed with speculative values; re-key progress with
	// the server-confirmed state, and refresh the board since the
	// speculative bump cannot insert a user not already on it
	_ = svc.mutator.Cache().Set(ctx, progressKey(userID), p)
	if size := svc.conf.LeaderboardLimit; size > 0 {
		if board, err := svc.repo.TopByXP(ctx, size); err == nil {
			_ = svc.mutator.Cache().Set(ctx, leaderboardKey(), board)
		}
	}
	return p, nil
}

// UnlockBadge awards a badge optimistically.
func (svc *Service) UnlockBadge(ctx context.Context, userID string, code string) (Progress, error) {
	now := time.Now().UTC()
	badge := Badge{Code: code, Name: badgeNames[code], EarnedAt: now}

	result, err := svc.mutator.Perform(ctx,
		progressKey(userID),
		func(current interface{}) interface{} {
			p, ok := current.(Progress)
			if !ok || p.HasBadge(code) {
				return current
			}
			p.Badges = append(append([]Badge(nil), p.Badges...), badge)
			p.UpdatedAt = now
			return p
		},
		func(ctx context.Context) (interface{}, error) {
			return svc.repo.SaveBadge(ctx, userID, badge)
		},
		cache.WithReconcile(asCached),
		cache.WithSuccessMessage("Badge unlocked: "+badge.Name),
		cache.WithErrorMessage("Could not unlock the badge. Please try again."),
	)
	if err != nil {
		return Progress{}, errors.Wrap(err, "unlocking badge")
	}
	return result.(Progress), nil
}

// RecentActivity returns the user's activity feed, reading through the cache.
func (svc *Service) RecentActivity(ctx context.Context, userID string) ([]Activity, error) {
	key := activityKey(userID)
	if cached, ok, err := svc.mutator.Cache().Get(ctx, key); err == nil && ok {
		if feed, ok := cached.([]Activity); ok {
			return feed, nil
		}
	}

	feed, err := svc.repo.RecentActivity(ctx, userID, activityFeedSize)
	if err != nil {
		return nil, err
	}
	_ = svc.mutator.Cache().Set(ctx, key, feed)
	return feed, nil
}

// Leaderboard returns the top users by XP, reading through the cache.
// The cache always holds the full configured board so a small request
// cannot starve subsequent callers.
func (svc *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	key := leaderboardKey()
	if cached, ok, err := svc.mutator.Cache().Get(ctx, key); err == nil && ok {
		if board, ok := cached.([]LeaderboardEntry); ok {
			return trim(board, limit), nil
		}
	}

	size := svc.conf.LeaderboardLimit
	if size < limit {
		size = limit
	}
	board, err := svc.repo.TopByXP(ctx, size)
	if err != nil {
		return nil, err
	}
	_ = svc.mutator.Cache().Set(ctx, key, board)
	return trim(board, limit), nil
}

func (svc *Service) getOrNew(ctx context.Context, userID string, now time.Time) (Progress, error) {
	p, err := svc.repo.GetProgress(ctx, userID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return Progress{}, err
		}
		p = NewProgress(userID, now)
	}
	return p, nil
}

func asCached(result interface{}) (interface{}, bool) {
	p, ok := result.(Progress)
	return p, ok
}

func trim(board []LeaderboardEntry, limit int) []LeaderboardEntry {
	if limit > 0 && len(board) > limit {
		return board[:limit]
	}
	return board
}
