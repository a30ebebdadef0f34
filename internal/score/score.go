// Package score computes quiz results. It is pure: no I/O, no state.
package score

import (
	"math"

	"quizle/internal/model"
)

// Tier is the qualitative band for a percentage score.
type Tier string

const (
	TierMastery     Tier = "mastery"
	TierProficient  Tier = "proficient"
	TierDeveloping  Tier = "developing"
	TierNeedsReview Tier = "needs_review"
)

// Score counts correct answers and derives the rounded percentage.
// Unanswered questions never count as correct, so the same formula serves
// both live feedback on a partial record and the final result.
func Score(qs model.QuizSet, answers model.AnswerRecord) (correct, percentage int) {
	for i, q := range qs {
		if selected, ok := answers[i]; ok && selected == q.CorrectIndex {
			correct++
		}
	}
	if len(qs) > 0 {
		percentage = int(math.Round(float64(correct) / float64(len(qs)) * 100))
	}
	return correct, percentage
}

// TierFor maps a percentage to its band. The thresholds are the contract;
// message wording is a presentation concern handled by i18n.
func TierFor(percentage int) Tier {
	switch {
	case percentage >= 90:
		return TierMastery
	case percentage >= 70:
		return TierProficient
	case percentage >= 50:
		return TierDeveloping
	default:
		return TierNeedsReview
	}
}
