// Package scoring computes point values for answers. Everything here is pure:
// callers load the answers and apply the resulting updates transactionally.
package scoring

import (
	"fmt"
	"sort"

	"onlyconnect-service/internal/domain"
)

// clueScores is indexed by the position of the clue the answer was given on.
var clueScores = [...]int{5, 3, 2, 1}

// ClueScore returns the points for a first-time correct guess at a
// Connection or Sequence question given on clue clueIndex.
func ClueScore(t domain.QuestionType, clueIndex int) (int, error) {
	limit := 0
	switch t {
	case domain.QuestionTypeConnection:
		limit = 4
	case domain.QuestionTypeSequence:
		limit = 3
	default:
		return 0, domain.InvalidArgument("%s questions are not scored by clue", t)
	}
	if clueIndex < 0 || clueIndex >= limit {
		return 0, domain.InvalidArgument("clue index %d out of range for %s", clueIndex, t)
	}
	return clueScores[clueIndex], nil
}

// RankScore returns the points for the rank-th correct missing vowels answer (1-indexed).
func RankScore(rank int) int {
	switch {
	case rank == 1:
		return 4
	case rank <= 3:
		return 3
	case rank <= 6:
		return 2
	default:
		return 1
	}
}

// Update is one answer's new score. Correct is nil for cascaded re-scores
// that leave correctness untouched.
type Update struct {
	AnswerID string `json:"answerId"`
	Score    int    `json:"score"`
	Correct  *bool  `json:"correct,omitempty"`
}

// Recalculate returns the updates needed to mark targetID as correct or
// incorrect. answers is the scope: the target clue's answers for Connection
// and Sequence questions, every answer of the question for MissingVowels.
// The target update always comes first; cascaded updates follow in
// submission order. The returned slice must be applied as one batch.
func Recalculate(targetID string, correct bool, question domain.Question, clueIndex int, answers []domain.SimpleAnswer) ([]Update, error) {
	var target *domain.SimpleAnswer
	for i := range answers {
		if answers[i].ID == targetID {
			target = &answers[i]
			break
		}
	}
	if target == nil {
		return nil, domain.ErrAnswerNotFound
	}

	switch q := question.(type) {
	case domain.ConnectionQuestion, domain.SequenceQuestion:
		score := 0
		if correct {
			s, err := ClueScore(q.Type(), clueIndex)
			if err != nil {
				return nil, err
			}
			score = s
		}
		return []Update{{AnswerID: targetID, Score: score, Correct: &correct}}, nil
	case domain.MissingVowelsQuestion:
		return recalculateRanked(*target, correct, answers), nil
	case domain.WallQuestion:
		return nil, domain.InvalidArgument("wall answers are scored per connection")
	default:
		return nil, domain.BadQuestionTypeError{Question: question}
	}
}

func recalculateRanked(target domain.SimpleAnswer, correct bool, answers []domain.SimpleAnswer) []Update {
	earlierCorrect := 0
	var later []domain.SimpleAnswer
	for _, a := range answers {
		if a.ID == target.ID || !a.IsCorrect() {
			continue
		}
		if submittedBefore(a, target) {
			earlierCorrect++
		} else {
			later = append(later, a)
		}
	}

	updates := make([]Update, 0, len(later)+1)
	score := 0
	if correct {
		score = RankScore(earlierCorrect + 1)
	}
	updates = append(updates, Update{AnswerID: target.ID, Score: score, Correct: &correct})

	if target.IsCorrect() == correct {
		return updates
	}
	shift := 1
	if !correct {
		shift = -1
	}
	sort.SliceStable(later, func(i, j int) bool { return submittedBefore(later[i], later[j]) })
	// later[i] currently holds rank earlierCorrect+i+1 (+1 if the target was correct).
	base := earlierCorrect + 1
	if target.IsCorrect() {
		base++
	}
	for i, a := range later {
		updates = append(updates, Update{AnswerID: a.ID, Score: RankScore(base + i + shift)})
	}
	return updates
}

// submittedBefore orders answers by submission time, breaking ties by id.
func submittedBefore(a, b domain.SimpleAnswer) bool {
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.ID < b.ID
}

// WallPoints scores a wall answer: one point per group found and per correct
// connection, with a clean sweep of all eight worth ten.
func WallPoints(groupsFound, connectionsCorrect int) (int, error) {
	if groupsFound < 0 || groupsFound > 4 || connectionsCorrect < 0 || connectionsCorrect > 4 {
		return 0, fmt.Errorf("%w: wall score out of range: %d groups, %d connections", domain.ErrInvalidArgument, groupsFound, connectionsCorrect)
	}
	total := groupsFound + connectionsCorrect
	if total == 8 {
		return 10, nil
	}
	return total, nil
}
