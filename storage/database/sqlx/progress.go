package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/eduassist/core/progress"
)

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *sqlx.DB) progress.Repository {
	return &progressRepository{db: db}
}

const upsertProgressQ = `
	INSERT INTO progress (user_id, xp, level, streak, quiz_count, last_activity, updated_at)
	VALUES (:user_id, :xp, :level, :streak, :quiz_count, :last_activity, :updated_at)
	ON CONFLICT (user_id) DO UPDATE
		SET xp            = EXCLUDED.xp,
		    level         = EXCLUDED.level,
		    streak        = EXCLUDED.streak,
		    quiz_count    = EXCLUDED.quiz_count,
		    last_activity = EXCLUDED.last_activity,
		    updated_at    = EXCLUDED.updated_at`

func (repo *progressRepository) GetProgress(ctx context.Context, userID string) (progress.Progress, error) {
	var p progress.Progress
	err := repo.db.GetContext(ctx, &p, `SELECT * FROM progress WHERE user_id = $1`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return progress.Progress{}, progress.ErrNotFound
		}
		return progress.Progress{}, errors.Wrap(err, "getting progress")
	}

	err = repo.db.SelectContext(ctx, &p.Badges,
		`SELECT code, name, earned_at FROM badge WHERE user_id = $1 ORDER BY earned_at`, userID)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "getting badges")
	}
	return p, nil
}

func (repo *progressRepository) SaveProgress(ctx context.Context, p progress.Progress) (progress.Progress, error) {
	if _, err := repo.db.NamedExecContext(ctx, upsertProgressQ, p); err != nil {
		return progress.Progress{}, errors.Wrap(err, "saving progress")
	}
	return p, nil
}

func (repo *progressRepository) SaveQuizResult(
	ctx context.Context,
	p progress.Progress,
	earned []progress.Badge,
	res progress.QuizResult,
	act progress.Activity,
) (progress.Progress, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.NamedExecContext(ctx, upsertProgressQ, p); err != nil {
		return progress.Progress{}, errors.Wrap(err, "saving progress")
	}

	for _, b := range earned {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO badge (user_id, code, name, earned_at) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
			p.UserID, b.Code, b.Name, b.EarnedAt)
		if err != nil {
			return progress.Progress{}, errors.Wrap(err, "saving badge")
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO quiz_attempt (user_id, quiz_id, subject_id, score, rating, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.UserID, res.QuizID, res.SubjectID, res.Score, res.Rating, act.At)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "saving quiz attempt")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO activity (user_id, type, title, xp, at) VALUES ($1, $2, $3, $4, $5)`,
		act.UserID, act.Type, act.Title, act.XP, act.At)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "saving activity")
	}

	if err = tx.Commit(); err != nil {
		return progress.Progress{}, errors.Wrap(err, "committing tx")
	}
	return p, nil
}

func (repo *progressRepository) SaveBadge(ctx context.Context, userID string, badge progress.Badge) (progress.Progress, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO badge (user_id, code, name, earned_at) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		userID, badge.Code, badge.Name, badge.EarnedAt)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "saving badge")
	}
	return repo.GetProgress(ctx, userID)
}

func (repo *progressRepository) RecentActivity(ctx context.Context, userID string, limit int) ([]progress.Activity, error) {
	var feed []progress.Activity
	err := repo.db.SelectContext(ctx, &feed,
		`SELECT user_id, type, title, xp, at FROM activity WHERE user_id = $1 ORDER BY at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "getting recent activity")
	}
	return feed, nil
}

func (repo *progressRepository) TopByXP(ctx context.Context, limit int) ([]progress.LeaderboardEntry, error) {
	var board []progress.LeaderboardEntry
	err := repo.db.SelectContext(ctx, &board,
		`SELECT p.user_id, u.username, p.xp
		 FROM progress p
		          JOIN "user" u ON u.id = p.user_id
		 WHERE u.is_active
		 ORDER BY p.xp DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "getting leaderboard")
	}
	return board, nil
}
