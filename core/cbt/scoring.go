package cbt

import (
	"sort"

	"github.com/trezcool/shule/core"
)

// ErrMismatchedKey means an answer refers to a question missing from the answer key.
var ErrMismatchedKey = core.NewIntegrityError("answer refers to a question outside the answer key")

type Score struct {
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// ScoreAnswers counts the answers matching key. Total is the number of answers recorded,
// so unanswered questions do not count against the student.
func ScoreAnswers(answers []Answer, key map[string]string) (Score, error) {
	var s Score
	for _, a := range answers {
		correct, ok := key[a.QuestionID]
		if !ok {
			return Score{}, ErrMismatchedKey
		}
		s.Total++
		if a.SelectedOption == correct {
			s.Correct++
		}
	}
	if s.Total > 0 {
		s.Percentage = core.Round(float64(s.Correct)/float64(s.Total)*100, 2)
	}
	return s, nil
}

// Rank orders results by correct answers, highest first, and gives tied results the
// position of the first of them: 8, 8, 6 rank 1, 1, 3. Ties keep their input order.
// results is left untouched.
func Rank(results []SubmissionResult) []SubmissionResult {
	ranked := make([]SubmissionResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Correct > ranked[j].Correct
	})
	for i := range ranked {
		if i > 0 && ranked[i].Correct == ranked[i-1].Correct {
			ranked[i].Rank = ranked[i-1].Rank
		} else {
			ranked[i].Rank = i + 1
		}
	}
	return ranked
}
