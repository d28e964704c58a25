package app

import (
	"context"

	"onlyconnect-service/internal/domain"
	"onlyconnect-service/internal/marking"
	"onlyconnect-service/internal/store"
)

// MarkingView is everything a client needs to render the marking screen.
type MarkingView struct {
	QuizID      string                         `json:"quizId"`
	IsOwner     bool                           `json:"isOwner"`
	Teams       []domain.Team                  `json:"teams"`
	Clues       map[string]domain.ClueState    `json:"clues"`
	Answers     []domain.SimpleAnswer          `json:"answers"`
	WallAnswers []domain.WallAnswer            `json:"wallAnswers"`
	Eligibility map[string]marking.Eligibility `json:"eligibility"`
	FocusID     string                         `json:"focusAnswerId,omitempty"`
}

// MarkingView derives the marking view for userID from one consistent read
// of the quiz state.
func (s *QuizService) MarkingView(ctx context.Context, quizID, userID string) (MarkingView, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return MarkingView{}, err
	}

	view := MarkingView{
		QuizID:      quizID,
		IsOwner:     quiz.OwnerID == userID,
		Clues:       make(map[string]domain.ClueState),
		Eligibility: make(map[string]marking.Eligibility),
	}
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		teams, err := loadTeams(ctx, tx, quizID)
		if err != nil {
			return err
		}
		view.Teams = Leaderboard(teams)
		if view.Answers, err = loadAnswers(ctx, tx, quizID); err != nil {
			return err
		}
		if view.WallAnswers, err = loadWallAnswers(ctx, tx, quizID); err != nil {
			return err
		}
		for _, question := range quiz.Questions {
			for _, clueID := range question.ClueIDs() {
				state, err := loadClueState(ctx, tx, quizID, clueID)
				if err != nil {
					return err
				}
				view.Clues[clueID] = state
			}
		}
		return nil
	})
	if err != nil {
		return MarkingView{}, err
	}

	for _, question := range quiz.Questions {
		if _, isWall := question.(domain.WallQuestion); isWall {
			continue
		}
		pool := questionAnswers(view.Answers, question.QuestionID())
		if len(pool) == 0 {
			continue
		}
		eligibility, err := marking.Evaluate(question, pool)
		if err != nil {
			return MarkingView{}, err
		}
		for id, e := range eligibility {
			view.Eligibility[id] = e
		}
	}
	view.FocusID, _ = marking.Focus(quiz, view.Answers, view.WallAnswers, view.IsOwner)
	return view, nil
}
