package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/eduassist/core/recommendation"
)

type recommendationRepository struct {
	db *sqlx.DB
}

var _ recommendation.Repository = (*recommendationRepository)(nil)

func NewRecommendationRepository(db *sqlx.DB) recommendation.Repository {
	return &recommendationRepository{db: db}
}

func (repo *recommendationRepository) CreateRecommendation(ctx context.Context, raw recommendation.Raw) (recommendation.Raw, error) {
	q := `
		INSERT INTO recommendation (id, user_id, type, title, description, reason, priority, urgency, confidence,
		                            estimated_time, status, subject_id, topic_id, difficulty, weakness_score,
		                            improvement_potential, created_at, updated_at)
		VALUES (:id, :user_id, :type, :title, :description, :reason, :priority, :urgency, :confidence,
		        :estimated_time, :status, :subject_id, :topic_id, :difficulty, :weakness_score,
		        :improvement_potential, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, raw); err != nil {
		return recommendation.Raw{}, errors.Wrap(err, "inserting recommendation")
	}
	return raw, nil
}

func (repo *recommendationRepository) GetRecommendation(ctx context.Context, id string) (recommendation.Raw, error) {
	var raw recommendation.Raw
	err := repo.db.GetContext(ctx, &raw, `SELECT * FROM recommendation WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return recommendation.Raw{}, recommendation.ErrNotFound
		}
		return recommendation.Raw{}, errors.Wrap(err, "getting recommendation")
	}
	return raw, nil
}

func (repo *recommendationRepository) FilterRecommendations(ctx context.Context, filter recommendation.QueryFilter) ([]recommendation.Raw, error) {
	q := `SELECT * FROM recommendation WHERE true`
	var args []interface{}

	if filter.UserID != "" {
		q += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		var err error
		q, args, err = appendIn(q+" AND status IN (?)", args, statuses)
		if err != nil {
			return nil, errors.Wrap(err, "expanding status filter")
		}
	}
	q += " ORDER BY created_at"
	q = repo.db.Rebind(q)

	var raws []recommendation.Raw
	if err := repo.db.SelectContext(ctx, &raws, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering recommendations")
	}
	return raws, nil
}

func (repo *recommendationRepository) UpdateRecommendationStatus(
	ctx context.Context, id string, status recommendation.Status, reason string, updatedAt time.Time,
) (recommendation.Raw, error) {
	q := `UPDATE recommendation SET status = $2, updated_at = $3 WHERE id = $1`
	args := []interface{}{id, string(status), updatedAt}
	if reason != "" {
		q = `UPDATE recommendation SET status = $2, updated_at = $3, reason = $4 WHERE id = $1`
		args = append(args, reason)
	}

	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		return recommendation.Raw{}, errors.Wrap(err, "updating recommendation status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return recommendation.Raw{}, recommendation.ErrNotFound
	}
	return repo.GetRecommendation(ctx, id)
}

// appendIn expands an IN (?) clause; sqlx.In flattens the slice arg.
func appendIn(q string, args []interface{}, slice interface{}) (string, []interface{}, error) {
	return sqlx.In(q, append(args, slice)...)
}
