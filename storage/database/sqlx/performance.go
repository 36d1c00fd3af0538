package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/eduassist/core/recommendation"
)

type performanceRepository struct {
	db *sqlx.DB
}

var _ recommendation.PerformanceRepository = (*performanceRepository)(nil)

func NewPerformanceRepository(db *sqlx.DB) recommendation.PerformanceRepository {
	return &performanceRepository{db: db}
}

func (repo *performanceRepository) RecentScoresBySubject(ctx context.Context, userID string, limit int) (map[string][]float64, error) {
	// last `limit` attempts per subject, oldest to newest
	q := `
		SELECT subject_id, score
		FROM (SELECT subject_id,
		             score,
		             created_at,
		             ROW_NUMBER() OVER (PARTITION BY subject_id ORDER BY created_at DESC) AS rn
		      FROM quiz_attempt
		      WHERE user_id = $1) sub
		WHERE rn <= $2
		ORDER BY subject_id, created_at`

	var rows []struct {
		SubjectID string  `db:"subject_id"`
		Score     float64 `db:"score"`
	}
	if err := repo.db.SelectContext(ctx, &rows, q, userID, limit); err != nil {
		return nil, errors.Wrap(err, "getting recent scores")
	}

	scores := make(map[string][]float64)
	for _, row := range rows {
		scores[row.SubjectID] = append(scores[row.SubjectID], row.Score)
	}
	return scores, nil
}

func (repo *performanceRepository) AverageRating(ctx context.Context, userID string) (float64, error) {
	var avg float64
	err := repo.db.GetContext(ctx, &avg,
		`SELECT COALESCE(AVG(rating), 0) FROM quiz_attempt WHERE user_id = $1 AND rating > 0`, userID)
	if err != nil {
		return 0, errors.Wrap(err, "getting average rating")
	}
	return avg, nil
}
