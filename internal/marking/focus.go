package marking

import (
	"sort"
	"time"

	"onlyconnect-service/internal/domain"
)

// Focus picks the answer to bring into view. Players see the latest answer,
// wall answers included; the owner sees the oldest unscored clue answer in
// quiz order (question, then clue, then submission). ok is false when there
// is nothing to focus.
func Focus(quiz domain.Quiz, answers []domain.SimpleAnswer, wallAnswers []domain.WallAnswer, isOwner bool) (string, bool) {
	if !isOwner {
		return latest(answers, wallAnswers)
	}

	byClue := make(map[string][]domain.SimpleAnswer)
	byQuestion := make(map[string][]domain.SimpleAnswer)
	for _, a := range answers {
		byClue[a.ClueID] = append(byClue[a.ClueID], a)
		byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
	}

	for _, question := range quiz.Questions {
		pool := byQuestion[question.QuestionID()]
		if len(pool) == 0 {
			continue
		}
		eligibility, err := Evaluate(question, pool)
		if err != nil {
			continue
		}
		for _, clueID := range question.ClueIDs() {
			clueAnswers := byClue[clueID]
			sort.SliceStable(clueAnswers, func(i, j int) bool { return earlier(clueAnswers[i], clueAnswers[j]) })
			for _, a := range clueAnswers {
				// superseded answers are never scored and would hold the focus
				if a.Points == nil && !eligibility[a.ID].Superseded {
					return a.ID, true
				}
			}
		}
	}
	return "", false
}

func latest(answers []domain.SimpleAnswer, wallAnswers []domain.WallAnswer) (string, bool) {
	var (
		bestID string
		bestAt time.Time
		found  bool
	)
	consider := func(id string, at time.Time) {
		if !found || !at.Before(bestAt) {
			bestID, bestAt, found = id, at, true
		}
	}
	for _, a := range answers {
		consider(a.ID, a.SubmittedAt)
	}
	for _, a := range wallAnswers {
		consider(a.ID, a.SubmittedAt)
	}
	return bestID, found
}
