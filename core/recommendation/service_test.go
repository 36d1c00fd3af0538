package recommendation

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eduassist/core"
	"github.com/trezcool/eduassist/core/user"
)

type fakeRepo struct {
	mu   sync.Mutex
	recs map[string]Raw
}

func newFakeRepo() *fakeRepo { return &fakeRepo{recs: make(map[string]Raw)} }

func (r *fakeRepo) CreateRecommendation(_ context.Context, raw Raw) (Raw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[raw.ID] = raw
	return raw, nil
}

func (r *fakeRepo) GetRecommendation(_ context.Context, id string) (Raw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if raw, ok := r.recs[id]; ok {
		return raw, nil
	}
	return Raw{}, ErrNotFound
}

func (r *fakeRepo) FilterRecommendations(_ context.Context, filter QueryFilter) ([]Raw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var raws []Raw
	for _, raw := range r.recs {
		if filter.UserID != "" && raw.UserID != filter.UserID {
			continue
		}
		if len(filter.Statuses) > 0 {
			var match bool
			for _, s := range filter.Statuses {
				if raw.Status.String == string(s) {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		raws = append(raws, raw)
	}
	sort.Slice(raws, func(i, j int) bool { return raws[i].ID < raws[j].ID })
	return raws, nil
}

func (r *fakeRepo) UpdateRecommendationStatus(_ context.Context, id string, status Status, reason string, updatedAt time.Time) (Raw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, ok := r.recs[id]
	if !ok {
		return Raw{}, ErrNotFound
	}
	raw.Status = null.StringFrom(string(status))
	if reason != "" {
		raw.Reason = reason
	}
	raw.UpdatedAt = updatedAt
	r.recs[id] = raw
	return raw, nil
}

type fakePerfRepo struct {
	scores    map[string][]float64
	avgRating float64
}

func (r *fakePerfRepo) RecentScoresBySubject(context.Context, string, int) (map[string][]float64, error) {
	return r.scores, nil
}

func (r *fakePerfRepo) AverageRating(context.Context, string) (float64, error) {
	return r.avgRating, nil
}

type fakeMailSvc struct {
	mu       sync.Mutex
	messages []*core.EmailMessage
}

func (svc *fakeMailSvc) SendMessages(messages ...*core.EmailMessage) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.messages = append(svc.messages, messages...)
}

func testConf() *core.Config {
	return &core.Config{
		AppName:        "EduAssist",
		TestMode:       true,
		WeakAreaCutoff: 60,
		DigestMaxItems: 2,
	}
}

func seedRaw(t *testing.T, repo *fakeRepo, id, userID, subjectID string, base float64, difficulty Difficulty, status Status) Raw {
	t.Helper()
	now := time.Now().UTC()
	raw := Raw{
		ID:        id,
		UserID:    userID,
		Type:      "practice",
		Title:     "Practice " + id,
		Priority:  null.Float64From(base),
		Status:    null.StringFrom(string(status)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if subjectID != "" {
		raw.SubjectID = null.StringFrom(subjectID)
	}
	if difficulty != "" {
		raw.Difficulty = null.StringFrom(string(difficulty))
	}
	raw, err := repo.CreateRecommendation(context.Background(), raw)
	require.NoError(t, err)
	return raw
}

func TestService_PrioritizedForUser(t *testing.T) {
	repo := newFakeRepo()
	perfRepo := &fakePerfRepo{scores: map[string][]float64{
		"math":    {40, 50, 60},
		"physics": {85, 90, 95},
	}}
	svc := NewService(testConf(), repo, perfRepo, &fakeMailSvc{})
	ctx := context.Background()

	seedRaw(t, repo, "r1", "usr1", "math", 50, DifficultyEasy, StatusPending)
	seedRaw(t, repo, "r2", "usr1", "physics", 60, DifficultyHard, StatusAccepted)
	seedRaw(t, repo, "r3", "usr1", "math", 99, DifficultyEasy, StatusCompleted) // closed, excluded
	seedRaw(t, repo, "r4", "usr2", "math", 99, DifficultyEasy, StatusPending)   // other user

	recs, err := svc.PrioritizedForUser(ctx, "usr1")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// fresh recs: urgency 10, contribution 2
	assert.Equal(t, "r1", recs[0].ID)
	assert.Equal(t, 82.0, recs[0].Priority) // 50 + 30 + 2
	assert.Equal(t, "r2", recs[1].ID)
	assert.Equal(t, 72.0, recs[1].Priority) // 60 + 10 + 2
}

func TestService_PrioritizedForUser_advancedFilter(t *testing.T) {
	repo := newFakeRepo()
	// single strong subject: mastery 90 -> advanced
	perfRepo := &fakePerfRepo{scores: map[string][]float64{"math": {88, 90, 92}}}
	svc := NewService(testConf(), repo, perfRepo, &fakeMailSvc{})

	seedRaw(t, repo, "r1", "usr1", "math", 30, DifficultyEasy, StatusPending) // 62 < 80: dropped
	seedRaw(t, repo, "r2", "usr1", "math", 50, DifficultyEasy, StatusPending) // 82 >= 80: kept
	seedRaw(t, repo, "r3", "usr1", "math", 40, DifficultyHard, StatusPending) // hard: kept

	recs, err := svc.PrioritizedForUser(context.Background(), "usr1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r3"}, ids(recs))
}

func TestService_WeakAreaViewForUser(t *testing.T) {
	repo := newFakeRepo()
	perfRepo := &fakePerfRepo{scores: map[string][]float64{
		"math":    {40, 50, 60}, // avg 50 < 60: weak
		"physics": {85, 90, 95},
	}}
	svc := NewService(testConf(), repo, perfRepo, &fakeMailSvc{})

	seedRaw(t, repo, "r1", "usr1", "math", 50, DifficultyEasy, StatusPending)     // weak subject: kept
	seedRaw(t, repo, "r2", "usr1", "physics", 60, DifficultyHard, StatusPending)  // 72 < 75: dropped
	seedRaw(t, repo, "r3", "usr1", "history", 80, DifficultyMedium, StatusPending) // 82 >= 75: kept

	recs, err := svc.WeakAreaViewForUser(context.Background(), "usr1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r3"}, ids(recs))
}

func TestService_UpdateStatus(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(testConf(), repo, &fakePerfRepo{}, &fakeMailSvc{})
	ctx := context.Background()

	seedRaw(t, repo, "r1", "usr1", "", 50, "", StatusPending)

	rec, err := svc.UpdateStatus(ctx, "r1", StatusAccepted, "looks useful")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, rec.Status)
	assert.Equal(t, "looks useful", rec.Reason)

	// pending -> completed is not allowed anymore
	_, err = svc.UpdateStatus(ctx, "r1", StatusAccepted, "")
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)

	rec, err = svc.UpdateStatus(ctx, "r1", StatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)

	_, err = svc.UpdateStatus(ctx, "missing", StatusAccepted, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Analytics(t *testing.T) {
	repo := newFakeRepo()
	perfRepo := &fakePerfRepo{
		scores:    map[string][]float64{"math": {40, 100}},
		avgRating: 4,
	}
	svc := NewService(testConf(), repo, perfRepo, &fakeMailSvc{})

	seedRaw(t, repo, "r1", "usr1", "math", 80, "", StatusCompleted)
	seedRaw(t, repo, "r2", "usr1", "math", 60, "", StatusPending)

	summary, variance, err := svc.Analytics(context.Background(), "usr1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 50.0, summary.CompletionRate)
	assert.Equal(t, 62, summary.Effectiveness) // 50*0.6 + 80*0.4
	assert.True(t, variance.HasVariance)       // variance 900 > 400
	assert.Equal(t, 70.0, variance.Average)
}

func TestService_SendDigest(t *testing.T) {
	repo := newFakeRepo()
	perfRepo := &fakePerfRepo{scores: map[string][]float64{"math": {60, 65, 70}}}
	mailSvc := &fakeMailSvc{}
	svc := NewService(testConf(), repo, perfRepo, mailSvc)
	ctx := context.Background()

	usr := user.User{ID: "usr1", Name: "Jane Doe", Email: "jane@test.eduassist"}

	// no open recommendations: no mail
	require.NoError(t, svc.SendDigest(ctx, usr))
	assert.Empty(t, mailSvc.messages)

	seedRaw(t, repo, "r1", usr.ID, "math", 50, DifficultyEasy, StatusPending)
	seedRaw(t, repo, "r2", usr.ID, "math", 60, DifficultyEasy, StatusPending)
	seedRaw(t, repo, "r3", usr.ID, "math", 70, DifficultyEasy, StatusPending)

	require.NoError(t, svc.SendDigest(ctx, usr))
	require.Len(t, mailSvc.messages, 1)

	msg := mailSvc.messages[0]
	assert.Equal(t, "Your recommended next steps", msg.Subject)
	assert.Equal(t, "recommendation-digest", msg.TemplateName)

	data := msg.TemplateData.(struct {
		Name            string
		Recommendations []Recommendation
	})
	// capped at DigestMaxItems, highest priority first
	require.Len(t, data.Recommendations, 2)
	assert.Equal(t, "r3", data.Recommendations[0].ID)
}
