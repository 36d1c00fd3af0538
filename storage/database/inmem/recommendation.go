package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eduassist/core/recommendation"
)

type recommendationRepository struct {
	db *DB
}

var _ recommendation.Repository = (*recommendationRepository)(nil)

func NewRecommendationRepository(db *DB) recommendation.Repository {
	return &recommendationRepository{db: db}
}

func (repo *recommendationRepository) CreateRecommendation(ctx context.Context, raw recommendation.Raw) (recommendation.Raw, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.recs[raw.ID] = &raw
	return raw, nil
}

func (repo *recommendationRepository) GetRecommendation(ctx context.Context, id string) (recommendation.Raw, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if raw, ok := repo.db.recs[id]; ok {
		return *raw, nil
	}
	return recommendation.Raw{}, recommendation.ErrNotFound
}

func (repo *recommendationRepository) FilterRecommendations(ctx context.Context, filter recommendation.QueryFilter) ([]recommendation.Raw, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var raws []recommendation.Raw
	for _, raw := range repo.db.recs {
		if filter.UserID != "" && raw.UserID != filter.UserID {
			continue
		}
		if len(filter.Statuses) > 0 && !statusIn(raw.Status, filter.Statuses) {
			continue
		}
		raws = append(raws, *raw)
	}
	sort.Slice(raws, func(i, j int) bool { return raws[i].CreatedAt.Before(raws[j].CreatedAt) })
	return raws, nil
}

func (repo *recommendationRepository) UpdateRecommendationStatus(
	ctx context.Context, id string, status recommendation.Status, reason string, updatedAt time.Time,
) (recommendation.Raw, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	raw, ok := repo.db.recs[id]
	if !ok {
		return recommendation.Raw{}, recommendation.ErrNotFound
	}
	raw.Status = null.StringFrom(string(status))
	if reason != "" {
		raw.Reason = reason
	}
	raw.UpdatedAt = updatedAt
	return *raw, nil
}

func statusIn(status null.String, statuses []recommendation.Status) bool {
	// absent status defaults to pending
	s := recommendation.StatusPending
	if v := recommendation.Status(status.String); v.IsValid() {
		s = v
	}
	for _, want := range statuses {
		if s == want {
			return true
		}
	}
	return false
}
