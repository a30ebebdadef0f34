package score

import (
	"testing"

	"quizle/internal/model"
)

func quizOfLen(n int, correctIndexes ...int) model.QuizSet {
	qs := make(model.QuizSet, n)
	for i := range qs {
		idx := 0
		if i < len(correctIndexes) {
			idx = correctIndexes[i]
		}
		qs[i] = model.Question{
			Text:         "Q",
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: idx,
		}
	}
	return qs
}

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		quiz     model.QuizSet
		answers  model.AnswerRecord
		wantHits int
		wantPct  int
	}{
		{"all correct", quizOfLen(4), model.AnswerRecord{0: 0, 1: 0, 2: 0, 3: 0}, 4, 100},
		{"none correct", quizOfLen(4), model.AnswerRecord{0: 1, 1: 1, 2: 1, 3: 1}, 0, 0},
		{"no answers", quizOfLen(4), model.AnswerRecord{}, 0, 0},
		{"partial record", quizOfLen(4), model.AnswerRecord{0: 0, 1: 0}, 2, 50},
		{"round half up", quizOfLen(3), model.AnswerRecord{0: 0, 1: 0, 2: 1}, 2, 67},
		{"round half exactly", quizOfLen(8), model.AnswerRecord{0: 0, 1: 0, 2: 0, 3: 0, 4: 0}, 5, 63},
		{"unanswered never correct", quizOfLen(2), model.AnswerRecord{1: 0}, 1, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, pct := Score(tt.quiz, tt.answers)
			if hits != tt.wantHits || pct != tt.wantPct {
				t.Errorf("Score() = (%d, %d), want (%d, %d)", hits, pct, tt.wantHits, tt.wantPct)
			}
		})
	}
}

func TestScoreScenario(t *testing.T) {
	// 5 questions, the user answers [2 1 0 1 1]; index 3 is wrong (correct is 0).
	quiz := quizOfLen(5, 2, 1, 0, 0, 1)
	answers := model.AnswerRecord{0: 2, 1: 1, 2: 0, 3: 1, 4: 1}

	correct, pct := Score(quiz, answers)
	if correct != 4 {
		t.Errorf("expected 4 correct, got %d", correct)
	}
	if pct != 80 {
		t.Errorf("expected 80%%, got %d", pct)
	}
	if tier := TierFor(pct); tier != TierProficient {
		t.Errorf("expected proficient tier, got %q", tier)
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		pct  int
		want Tier
	}{
		{100, TierMastery},
		{90, TierMastery},
		{89, TierProficient},
		{70, TierProficient},
		{69, TierDeveloping},
		{50, TierDeveloping},
		{49, TierNeedsReview},
		{0, TierNeedsReview},
	}
	for _, tt := range tests {
		if got := TierFor(tt.pct); got != tt.want {
			t.Errorf("TierFor(%d) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}
