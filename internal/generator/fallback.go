package generator

import "quizle/internal/model"

// fallbackSet is served whenever generation fails or no API key is
// configured. A degraded quiz is preferable to no quiz.
var fallbackSet = model.QuizSet{
	{
		Text:         "What is the capital of France?",
		Options:      []string{"Berlin", "London", "Paris", "Madrid"},
		CorrectIndex: 2,
	},
	{
		Text:         "Which planet is known as the Red Planet?",
		Options:      []string{"Earth", "Mars", "Jupiter", "Venus"},
		CorrectIndex: 1,
	},
	{
		Text:         "What is the chemical symbol for water?",
		Options:      []string{"H2O", "CO2", "NaCl", "O2"},
		CorrectIndex: 0,
	},
	{
		Text:         "Who wrote 'Romeo and Juliet'?",
		Options:      []string{"Charles Dickens", "William Shakespeare", "Jane Austen", "Mark Twain"},
		CorrectIndex: 1,
	},
	{
		Text:         "What is the largest mammal?",
		Options:      []string{"Elephant", "Blue Whale", "Giraffe", "Polar Bear"},
		CorrectIndex: 1,
	},
}

// Fallback returns a fresh copy of the built-in quiz set.
func Fallback() model.QuizSet {
	out := make(model.QuizSet, len(fallbackSet))
	for i, q := range fallbackSet {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		out[i] = model.Question{Text: q.Text, Options: opts, CorrectIndex: q.CorrectIndex}
	}
	return out
}
