package recommendation

import (
	"math"
	"sort"
	"time"
)

// Weights groups the scoring constants so they can be tuned without
// touching the scoring logic.
type Weights struct {
	// EasyBonus boosts easy wins to encourage quick completions.
	EasyBonus float64
	// HardBonus slightly rewards hard content for its payoff.
	HardBonus float64
	// UrgencyFactor scales urgency into the priority score; UrgencyCap
	// bounds its contribution so urgency cannot dominate base relevance.
	UrgencyFactor float64
	UrgencyCap    float64

	// CompletionWeight/RatingWeight split the effectiveness score
	// between completion rate and user rating.
	CompletionWeight float64
	RatingWeight     float64

	// VarianceThreshold flags inconsistent performance; 400 corresponds
	// to a spread of roughly +/-20 points.
	VarianceThreshold float64
	// TrajectoryDelta is the score movement (over the last 3 scores)
	// below which a trend counts as stable.
	TrajectoryDelta float64

	// HighPriorityFloor lets strong generic recommendations bypass the
	// weak-area filter.
	HighPriorityFloor float64
	// AdvancedEasyFloor is the minimum priority for easy content to
	// survive filtering for advanced users.
	AdvancedEasyFloor float64

	// Mastery thresholds bucketing users into levels.
	AdvancedMastery     float64
	IntermediateMastery float64
}

// DefaultWeights returns the canonical scoring constants.
func DefaultWeights() Weights {
	return Weights{
		EasyBonus:           30,
		HardBonus:           10,
		UrgencyFactor:       0.2,
		UrgencyCap:          20,
		CompletionWeight:    0.6,
		RatingWeight:        0.4,
		VarianceThreshold:   400,
		TrajectoryDelta:     10,
		HighPriorityFloor:   75,
		AdvancedEasyFloor:   80,
		AdvancedMastery:     80,
		IntermediateMastery: 60,
	}
}

// Level buckets a user by mastery score.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Trajectory of recent performance.
type Trajectory string

const (
	TrajectoryImproving    Trajectory = "improving"
	TrajectoryDeclining    Trajectory = "declining"
	TrajectoryStable       Trajectory = "stable"
	TrajectoryInsufficient Trajectory = "insufficient_data"
)

// VarianceReport flags inconsistent performance as a signal for
// recommending stabilization content.
type VarianceReport struct {
	HasVariance bool    `json:"has_variance"`
	Variance    float64 `json:"variance"`
	Average     float64 `json:"average"`
}

// All scoring functions are pure and total: degenerate inputs yield
// defined defaults, never errors. Ranking must never fail a dashboard.

// ComputePriority combines a base score with a difficulty bonus and a
// capped urgency contribution, clamped to 0..100.
func (w Weights) ComputePriority(baseScore float64, difficulty Difficulty, urgency float64) float64 {
	priority := baseScore + w.difficultyBonus(difficulty) + math.Min(urgency*w.UrgencyFactor, w.UrgencyCap)
	return clamp(priority, 0, 100)
}

func (w Weights) difficultyBonus(difficulty Difficulty) float64 {
	switch difficulty {
	case DifficultyEasy:
		return w.EasyBonus
	case DifficultyHard:
		return w.HardBonus
	}
	return 0
}

// ComputeUrgency maps a recommendation's age to an urgency step.
// Untouched recommendations become more urgent to resurface, not less.
func ComputeUrgency(age time.Duration) float64 {
	days := age.Hours() / 24
	switch {
	case days > 7:
		return 90
	case days > 3:
		return 60
	case days > 1:
		return 30
	default:
		return 10
	}
}

// EstimateTime returns the estimated completion time in minutes.
func EstimateTime(difficulty Difficulty) int {
	switch difficulty {
	case DifficultyEasy:
		return 15
	case DifficultyMedium:
		return 25
	case DifficultyHard:
		return 40
	default:
		return 20
	}
}

// LevelForMastery buckets a mastery score into a user level.
func (w Weights) LevelForMastery(mastery float64) Level {
	switch {
	case mastery >= w.AdvancedMastery:
		return LevelAdvanced
	case mastery >= w.IntermediateMastery:
		return LevelIntermediate
	default:
		return LevelBeginner
	}
}

// FilterForLevel drops recommendations that don't fit the user's level:
// advanced users lose low-priority easy content, beginners lose hard
// content entirely. This is a hard policy filter, not a re-score.
func (w Weights) FilterForLevel(recs []Recommendation, mastery float64) []Recommendation {
	level := w.LevelForMastery(mastery)
	if level == LevelIntermediate {
		return recs
	}

	filtered := make([]Recommendation, 0, len(recs))
	for _, rec := range recs {
		switch level {
		case LevelAdvanced:
			if rec.Metadata.Difficulty == DifficultyEasy && rec.Priority < w.AdvancedEasyFloor {
				continue
			}
		case LevelBeginner:
			if rec.Metadata.Difficulty == DifficultyHard {
				continue
			}
		}
		filtered = append(filtered, rec)
	}
	return filtered
}

// PrioritizeWeakAreas keeps recommendations matching a known weak
// subject, with a high-priority escape hatch so strong generic
// recommendations aren't starved.
func (w Weights) PrioritizeWeakAreas(recs []Recommendation, weakSubjectIDs []string) []Recommendation {
	weak := make(map[string]struct{}, len(weakSubjectIDs))
	for _, id := range weakSubjectIDs {
		weak[id] = struct{}{}
	}

	filtered := make([]Recommendation, 0, len(recs))
	for _, rec := range recs {
		if _, ok := weak[rec.Metadata.SubjectID]; ok || rec.Priority >= w.HighPriorityFloor {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// AnalyzeVariance computes the population variance of a score list.
// Fewer than 2 scores yields {false, 0, avg}.
func (w Weights) AnalyzeVariance(scores []float64) VarianceReport {
	avg := average(scores)
	if len(scores) < 2 {
		return VarianceReport{HasVariance: false, Variance: 0, Average: avg}
	}

	var sumSq float64
	for _, s := range scores {
		d := s - avg
		sumSq += d * d
	}
	variance := sumSq / float64(len(scores))

	return VarianceReport{
		HasVariance: variance > w.VarianceThreshold,
		Variance:    variance,
		Average:     avg,
	}
}

// IdentifyTrajectory compares the last 3 scores to detect a trend.
func (w Weights) IdentifyTrajectory(recentScores []float64) Trajectory {
	if len(recentScores) < 3 {
		return TrajectoryInsufficient
	}
	delta := recentScores[len(recentScores)-1] - recentScores[len(recentScores)-3]
	switch {
	case delta > w.TrajectoryDelta:
		return TrajectoryImproving
	case delta < -w.TrajectoryDelta:
		return TrajectoryDeclining
	default:
		return TrajectoryStable
	}
}

// CalculateEffectiveness scores how well recommendations are working
// out, from completion rate and average rating (out of 5), as 0..100.
func (w Weights) CalculateEffectiveness(completed, total int, avgRating float64) int {
	var completionRate float64
	if total > 0 {
		completionRate = float64(completed) / float64(total) * 100
	}
	ratingScore := avgRating / 5 * 100
	return int(math.Round(completionRate*w.CompletionWeight + ratingScore*w.RatingWeight))
}

// SortByPriority orders by priority desc, urgency desc, confidence desc.
func SortByPriority(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Urgency != b.Urgency {
			return a.Urgency > b.Urgency
		}
		return a.Confidence > b.Confidence
	})
}

func average(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
