// Package marking derives, from already-loaded answers, which answers the quiz
// owner may mark and which answer should be presented next.
package marking

import (
	"onlyconnect-service/internal/domain"
)

// Eligibility describes the marking controls available for one answer.
type Eligibility struct {
	AnswerID         string `json:"answerId"`
	CanMarkCorrect   bool   `json:"canMarkCorrect"`
	CanMarkIncorrect bool   `json:"canMarkIncorrect"`
	// Superseded answers belong to a team that already scored in the same scope.
	Superseded bool `json:"supersededByCorrectAnswer"`
}

// Evaluate computes eligibility for every answer to question. answers holds
// all of the question's answers across its clues.
func Evaluate(question domain.Question, answers []domain.SimpleAnswer) (map[string]Eligibility, error) {
	scope, err := scopeFunc(question)
	if err != nil {
		return nil, err
	}
	_, oldestFirst := question.(domain.MissingVowelsQuestion)

	type teamScope struct{ team, scope string }
	correctBy := make(map[teamScope][]string)
	teamsWithCorrect := make(map[string]bool)
	for _, a := range answers {
		if a.IsCorrect() {
			key := teamScope{a.TeamID, scope(a)}
			correctBy[key] = append(correctBy[key], a.ID)
			teamsWithCorrect[a.TeamID] = true
		}
	}

	out := make(map[string]Eligibility, len(answers))
	for _, a := range answers {
		e := Eligibility{AnswerID: a.ID}
		for _, id := range correctBy[teamScope{a.TeamID, scope(a)}] {
			if id != a.ID {
				e.Superseded = true
				break
			}
		}
		if !e.Superseded {
			e.CanMarkIncorrect = !a.IsIncorrect()
			e.CanMarkCorrect = !a.IsCorrect()
			if e.CanMarkCorrect && oldestFirst {
				e.CanMarkCorrect = !blockedByOlder(a, answers, teamsWithCorrect)
			}
		}
		out[a.ID] = e
	}
	return out, nil
}

// blockedByOlder reports whether an unmarked answer submitted before a is
// still outstanding. Answers from teams that already scored do not block.
func blockedByOlder(a domain.SimpleAnswer, answers []domain.SimpleAnswer, teamsWithCorrect map[string]bool) bool {
	for _, b := range answers {
		if b.ID == a.ID || !b.IsUnmarked() || teamsWithCorrect[b.TeamID] {
			continue
		}
		if earlier(b, a) {
			return true
		}
	}
	return false
}

func scopeFunc(question domain.Question) (func(domain.SimpleAnswer) string, error) {
	switch question.(type) {
	case domain.ConnectionQuestion, domain.SequenceQuestion:
		return func(a domain.SimpleAnswer) string { return a.ClueID }, nil
	case domain.MissingVowelsQuestion:
		return func(a domain.SimpleAnswer) string { return a.QuestionID }, nil
	case domain.WallQuestion:
		return nil, domain.InvalidArgument("wall questions have no simple answers")
	default:
		return nil, domain.BadQuestionTypeError{Question: question}
	}
}

// ScopeAnswers narrows a question's answers to the scope over which clueID's
// answers are scored: the clue itself, or the whole question for missing vowels.
func ScopeAnswers(question domain.Question, clueID string, answers []domain.SimpleAnswer) ([]domain.SimpleAnswer, error) {
	switch question.(type) {
	case domain.ConnectionQuestion, domain.SequenceQuestion:
		out := make([]domain.SimpleAnswer, 0, len(answers))
		for _, a := range answers {
			if a.ClueID == clueID {
				out = append(out, a)
			}
		}
		return out, nil
	case domain.MissingVowelsQuestion:
		return answers, nil
	case domain.WallQuestion:
		return nil, domain.InvalidArgument("wall questions have no simple answers")
	default:
		return nil, domain.BadQuestionTypeError{Question: question}
	}
}

func earlier(a, b domain.SimpleAnswer) bool {
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.ID < b.ID
}
