package app

import (
	"context"
	"fmt"

	"onlyconnect-service/internal/domain"
	"onlyconnect-service/internal/store"
)

// RevealNextClue reveals the first unrevealed clue of a question. Revealing
// a later clue of a Connection or Sequence question closes the one before it,
// so answers are always given against the clue on show.
func (s *QuizService) RevealNextClue(ctx context.Context, quizID, userID, questionID string) (domain.ClueState, error) {
	quiz, err := s.ownedQuiz(ctx, quizID, userID)
	if err != nil {
		return domain.ClueState{}, err
	}
	question, ok := quiz.Question(questionID)
	if !ok {
		return domain.ClueState{}, domain.ErrQuestionNotFound
	}
	now, err := s.store.Now(ctx)
	if err != nil {
		return domain.ClueState{}, err
	}

	var revealed domain.ClueState
	err = s.commit(ctx, quizID, "clue", func(ctx context.Context, tx store.Tx) error {
		var prev *domain.ClueState
		for _, clueID := range question.ClueIDs() {
			state, err := loadClueState(ctx, tx, quizID, clueID)
			if err != nil {
				return err
			}
			if state.Revealed() {
				prev = &state
				continue
			}
			state.RevealedAt = &now
			if err := tx.Set(cluesColl(quizID), clueID, state); err != nil {
				return err
			}
			if prev != nil && prev.ClosedAt == nil && sequential(question) {
				prev.ClosedAt = &now
				if err := tx.Set(cluesColl(quizID), prev.ClueID, *prev); err != nil {
					return err
				}
			}
			revealed = state
			return nil
		}
		return domain.ErrAlreadyRevealed
	})
	if err != nil {
		return domain.ClueState{}, err
	}
	s.logger.Info("clue revealed", "quiz", quizID, "question", questionID, "clue", revealed.ClueID)
	return revealed, nil
}

// CloseQuestion closes every revealed clue of a question.
func (s *QuizService) CloseQuestion(ctx context.Context, quizID, userID, questionID string) error {
	quiz, err := s.ownedQuiz(ctx, quizID, userID)
	if err != nil {
		return err
	}
	question, ok := quiz.Question(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}
	now, err := s.store.Now(ctx)
	if err != nil {
		return err
	}

	return s.commit(ctx, quizID, "clue", func(ctx context.Context, tx store.Tx) error {
		anyRevealed := false
		for _, clueID := range question.ClueIDs() {
			state, err := loadClueState(ctx, tx, quizID, clueID)
			if err != nil {
				return err
			}
			if !state.Revealed() {
				continue
			}
			anyRevealed = true
			if state.ClosedAt != nil {
				continue
			}
			state.ClosedAt = &now
			if err := tx.Set(cluesColl(quizID), clueID, state); err != nil {
				return err
			}
		}
		if !anyRevealed {
			return domain.ErrClueNotRevealed
		}
		return nil
	})
}

// RevealWallSolution publishes a wall's hidden groups and connections on the
// clue and closes it.
func (s *QuizService) RevealWallSolution(ctx context.Context, quizID, userID, clueID string) (domain.ClueState, error) {
	quiz, err := s.ownedQuiz(ctx, quizID, userID)
	if err != nil {
		return domain.ClueState{}, err
	}
	question, _, ok := quiz.QuestionForClue(clueID)
	if !ok {
		return domain.ClueState{}, domain.ErrClueNotFound
	}
	if _, isWall := question.(domain.WallQuestion); !isWall {
		return domain.ClueState{}, domain.InvalidArgument("clue %s is not a wall", clueID)
	}
	now, err := s.store.Now(ctx)
	if err != nil {
		return domain.ClueState{}, err
	}

	var state domain.ClueState
	err = s.commit(ctx, quizID, "solution", func(ctx context.Context, tx store.Tx) error {
		solution, ok := quiz.Solutions[clueID]
		if !ok {
			return domain.ErrSolutionNotFound
		}
		var err error
		state, err = loadClueState(ctx, tx, quizID, clueID)
		if err != nil {
			return err
		}
		if !state.Revealed() {
			return domain.ErrClueNotRevealed
		}
		if state.Solution != nil {
			return fmt.Errorf("%w: solution of %s", domain.ErrAlreadyRevealed, clueID)
		}
		state.Solution = &solution
		if state.ClosedAt == nil {
			state.ClosedAt = &now
		}
		return tx.Set(cluesColl(quizID), clueID, state)
	})
	if err != nil {
		return domain.ClueState{}, err
	}
	return state, nil
}

// ClueStates returns the state of every clue that has been touched.
func (s *QuizService) ClueStates(ctx context.Context, quizID string) (map[string]domain.ClueState, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	states := make(map[string]domain.ClueState)
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, question := range quiz.Questions {
			for _, clueID := range question.ClueIDs() {
				state, err := loadClueState(ctx, tx, quizID, clueID)
				if err != nil {
					return err
				}
				states[clueID] = state
			}
		}
		return nil
	})
	return states, err
}

func sequential(q domain.Question) bool {
	switch q.(type) {
	case domain.ConnectionQuestion, domain.SequenceQuestion:
		return true
	case domain.WallQuestion, domain.MissingVowelsQuestion:
		return false
	default:
		panic(domain.BadQuestionTypeError{Question: q})
	}
}
