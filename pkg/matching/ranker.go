package matching

import "github.com/Ramsey-B/fescue/pkg/models"

// Candidate is the best-scoring CRM customer for a subject.
type Candidate struct {
	Customer   *models.ExternalCustomer
	Confidence float64
	Reasons    []string
}

// FindBestMatch scores every customer and keeps the one with the strictly
// greatest confidence, so the first of equally scored customers wins.
// It returns nil for an empty list and never applies a threshold.
func FindBestMatch(scorer *Scorer, subject Subject, customers []models.ExternalCustomer) *Candidate {
	var best *Candidate
	for i := range customers {
		score := scorer.Score(subject, &customers[i])
		if best == nil || score.Confidence > best.Confidence {
			best = &Candidate{
				Customer:   &customers[i],
				Confidence: score.Confidence,
				Reasons:    score.Reasons,
			}
		}
	}
	return best
}
