package recommendation

// Summary aggregates a user's recommendations for dashboard analytics.
type Summary struct {
	Total           int            `json:"total"`
	ByStatus        map[Status]int `json:"by_status"`
	ByType          map[string]int `json:"by_type"`
	CompletionRate  float64        `json:"completion_rate"` // 0..100
	Effectiveness   int            `json:"effectiveness"`   // 0..100
	AveragePriority float64        `json:"average_priority"`
}

// Summarize aggregates recommendations into a Summary. avgRating is the
// user's average content rating out of 5 and feeds effectiveness.
func (w Weights) Summarize(recs []Recommendation, avgRating float64) Summary {
	s := Summary{
		Total:    len(recs),
		ByStatus: make(map[Status]int),
		ByType:   make(map[string]int),
	}

	var prioritySum float64
	for _, rec := range recs {
		s.ByStatus[rec.Status]++
		s.ByType[rec.Type]++
		prioritySum += rec.Priority
	}

	completed := s.ByStatus[StatusCompleted]
	if s.Total > 0 {
		s.CompletionRate = float64(completed) / float64(s.Total) * 100
		s.AveragePriority = prioritySum / float64(s.Total)
	}
	s.Effectiveness = w.CalculateEffectiveness(completed, s.Total, avgRating)
	return s
}
