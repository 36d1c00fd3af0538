package recommendation

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eduassist/core"
	"github.com/trezcool/eduassist/core/user"
)

type (
	// QueryFilter applies an AND operation on available fields.
	QueryFilter struct {
		UserID   string
		Statuses []Status
	}

	Repository interface {
		CreateRecommendation(ctx context.Context, raw Raw) (Raw, error)
		GetRecommendation(ctx context.Context, id string) (Raw, error)
		FilterRecommendations(ctx context.Context, filter QueryFilter) ([]Raw, error)
		// UpdateRecommendationStatus persists a status change; the rest of the
		// record is immutable.
		UpdateRecommendationStatus(ctx context.Context, id string, status Status, reason string, updatedAt time.Time) (Raw, error)
	}

	// PerformanceRepository exposes attempt-history aggregates.
	PerformanceRepository interface {
		// RecentScoresBySubject returns each subject's recent scores ordered
		// oldest to newest.
		RecentScoresBySubject(ctx context.Context, userID string, limit int) (map[string][]float64, error)
		// AverageRating returns the user's average content rating out of 5.
		AverageRating(ctx context.Context, userID string) (float64, error)
	}

	Service struct {
		conf     *core.Config
		repo     Repository
		perfRepo PerformanceRepository
		mailSvc  core.EmailService
		weights  Weights
	}
)

// recentScoreWindow is how many attempts per subject feed the signals.
const recentScoreWindow = 10

func NewService(
	conf *core.Config,
	repo Repository,
	perfRepo PerformanceRepository,
	mailSvc core.EmailService,
) *Service {
	return &Service{
		conf:     conf,
		repo:     repo,
		perfRepo: perfRepo,
		mailSvc:  mailSvc,
		weights:  DefaultWeights(),
	}
}

func (svc *Service) Weights() Weights { return svc.weights }

func (svc *Service) Create(ctx context.Context, nr NewRecommendation) (Recommendation, error) {
	now := time.Now().UTC()
	raw := Raw{
		ID:          uuid.New().String(),
		UserID:      nr.UserID,
		Type:        nr.Type,
		Title:       core.CleanString(nr.Title),
		Description: core.CleanString(nr.Description),
		Reason:      core.CleanString(nr.Reason),
		Priority:    null.Float64From(nr.Priority),
		Confidence:  null.Float64From(nr.Confidence),
		Status:      null.StringFrom(string(StatusPending)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if nr.SubjectID != "" {
		raw.SubjectID = null.StringFrom(nr.SubjectID)
	}
	if nr.TopicID != "" {
		raw.TopicID = null.StringFrom(nr.TopicID)
	}
	if nr.Difficulty != "" {
		raw.Difficulty = null.StringFrom(string(nr.Difficulty))
	}
	if nr.WeaknessScore > 0 {
		raw.WeaknessScore = null.Float64From(nr.WeaknessScore)
	}

	raw, err := svc.repo.CreateRecommendation(ctx, raw)
	if err != nil {
		return Recommendation{}, errors.Wrap(err, "creating recommendation")
	}
	return Normalize(raw, now), nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Recommendation, error) {
	raw, err := svc.repo.GetRecommendation(ctx, id)
	if err != nil {
		return Recommendation{}, err
	}
	return Normalize(raw, time.Now().UTC()), nil
}

// PrioritizedForUser returns the user's open recommendations re-scored,
// filtered for their level and sorted by priority. Scores are derived
// per call and never cached; they must track user progress.
func (svc *Service) PrioritizedForUser(ctx context.Context, userID string) ([]Recommendation, error) {
	recs, err := svc.scoredOpenRecommendations(ctx, userID)
	if err != nil {
		return nil, err
	}

	signals, err := svc.Signals(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching performance signals")
	}

	recs = svc.weights.FilterForLevel(recs, mastery(signals))
	SortByPriority(recs)
	return recs, nil
}

// WeakAreaViewForUser returns the user's open recommendations narrowed
// to known weak subjects, keeping high-priority items regardless.
// Deliberately a separate view from PrioritizedForUser; the two filters
// are never composed.
func (svc *Service) WeakAreaViewForUser(ctx context.Context, userID string) ([]Recommendation, error) {
	recs, err := svc.scoredOpenRecommendations(ctx, userID)
	if err != nil {
		return nil, err
	}

	signals, err := svc.Signals(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching performance signals")
	}

	weakSubjects := make([]string, 0, len(signals))
	for _, sig := range signals {
		if sig.AverageScore < svc.conf.WeakAreaCutoff {
			weakSubjects = append(weakSubjects, sig.SubjectID)
		}
	}

	recs = svc.weights.PrioritizeWeakAreas(recs, weakSubjects)
	SortByPriority(recs)
	return recs, nil
}

// Signals derives per-subject performance signals from attempt history.
func (svc *Service) Signals(ctx context.Context, userID string) ([]PerformanceSignal, error) {
	scoresBySubject, err := svc.perfRepo.RecentScoresBySubject(ctx, userID, recentScoreWindow)
	if err != nil {
		return nil, err
	}

	signals := make([]PerformanceSignal, 0, len(scoresBySubject))
	for subjectID, scores := range scoresBySubject {
		signals = append(signals, PerformanceSignal{
			SubjectID:    subjectID,
			AverageScore: average(scores),
			RecentScores: scores,
			Trend:        svc.weights.IdentifyTrajectory(scores),
		})
	}
	return signals, nil
}

// Analytics aggregates all of the user's recommendations plus a
// variance report over their recent scores.
func (svc *Service) Analytics(ctx context.Context, userID string) (Summary, VarianceReport, error) {
	raws, err := svc.repo.FilterRecommendations(ctx, QueryFilter{UserID: userID})
	if err != nil {
		return Summary{}, VarianceReport{}, errors.Wrap(err, "querying recommendations")
	}
	now := time.Now().UTC()
	recs := make([]Recommendation, 0, len(raws))
	for _, raw := range raws {
		recs = append(recs, Normalize(raw, now))
	}

	avgRating, err := svc.perfRepo.AverageRating(ctx, userID)
	if err != nil {
		return Summary{}, VarianceReport{}, errors.Wrap(err, "querying average rating")
	}

	scoresBySubject, err := svc.perfRepo.RecentScoresBySubject(ctx, userID, recentScoreWindow)
	if err != nil {
		return Summary{}, VarianceReport{}, errors.Wrap(err, "querying recent scores")
	}
	var allScores []float64
	for _, scores := range scoresBySubject {
		allScores = append(allScores, scores...)
	}

	return svc.weights.Summarize(recs, avgRating), svc.weights.AnalyzeVariance(allScores), nil
}

// UpdateStatus transitions a recommendation's status:
// pending -> {accepted, dismissed} -> completed.
func (svc *Service) UpdateStatus(ctx context.Context, id string, status Status, reason string) (Recommendation, error) {
	raw, err := svc.repo.GetRecommendation(ctx, id)
	if err != nil {
		return Recommendation{}, err
	}

	now := time.Now().UTC()
	current := Normalize(raw, now).Status
	if !current.CanTransitionTo(status) {
		return Recommendation{}, core.NewValidationError(
			ErrInvalidTransition,
			core.FieldError{Field: "status", Error: fmt.Sprintf("cannot transition from %q to %q", current, status)},
		)
	}

	raw, err = svc.repo.UpdateRecommendationStatus(ctx, id, status, core.CleanString(reason), now)
	if err != nil {
		return Recommendation{}, errors.Wrap(err, "updating recommendation status")
	}
	return Normalize(raw, now), nil
}

// SendDigest emails the user their current top recommendations.
func (svc *Service) SendDigest(ctx context.Context, usr user.User) error {
	recs, err := svc.PrioritizedForUser(ctx, usr.ID)
	if err != nil {
		return errors.Wrap(err, "prioritizing recommendations")
	}
	if len(recs) == 0 {
		return nil
	}
	if len(recs) > svc.conf.DigestMaxItems {
		recs = recs[:svc.conf.DigestMaxItems]
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your recommended next steps",
		TemplateName: "recommendation-digest",
		TemplateData: struct {
			Name            string
			Recommendations []Recommendation
		}{usr.Name, recs},
	})
	return nil
}

// scoredOpenRecommendations fetches pending/accepted recommendations
// and derives fresh urgency and priority for each.
func (svc *Service) scoredOpenRecommendations(ctx context.Context, userID string) ([]Recommendation, error) {
	raws, err := svc.repo.FilterRecommendations(ctx, QueryFilter{
		UserID:   userID,
		Statuses: []Status{StatusPending, StatusAccepted},
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying recommendations")
	}

	now := time.Now().UTC()
	recs := make([]Recommendation, 0, len(raws))
	for _, raw := range raws {
		rec := Normalize(raw, now)
		rec.Urgency = ComputeUrgency(now.Sub(rec.CreatedAt))
		rec.Priority = svc.weights.ComputePriority(rec.Priority, rec.Metadata.Difficulty, rec.Urgency)
		recs = append(recs, rec)
	}
	return recs, nil
}

func mastery(signals []PerformanceSignal) float64 {
	if len(signals) == 0 {
		return 0
	}
	var sum float64
	for _, sig := range signals {
		sum += sig.AverageScore
	}
	return sum / float64(len(signals))
}
