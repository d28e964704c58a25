package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"onlyconnect-service/internal/domain"
	"onlyconnect-service/internal/marking"
	"onlyconnect-service/internal/scoring"
	"onlyconnect-service/internal/store"
)

// SubmitAnswer records a team's guess at an open Connection, Sequence or
// MissingVowels clue, stamped with the store's clock.
func (s *QuizService) SubmitAnswer(ctx context.Context, quizID, userID, teamID, clueID, text string) (domain.SimpleAnswer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.SimpleAnswer{}, domain.InvalidArgument("answer text is required")
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SimpleAnswer{}, err
	}
	question, _, ok := quiz.QuestionForClue(clueID)
	if !ok {
		return domain.SimpleAnswer{}, domain.ErrClueNotFound
	}
	if _, isWall := question.(domain.WallQuestion); isWall {
		return domain.SimpleAnswer{}, domain.InvalidArgument("wall clues take wall answers")
	}
	now, err := s.store.Now(ctx)
	if err != nil {
		return domain.SimpleAnswer{}, err
	}

	answer := domain.SimpleAnswer{
		ID:          uuid.NewString(),
		QuestionID:  question.QuestionID(),
		ClueID:      clueID,
		TeamID:      teamID,
		Text:        text,
		SubmittedAt: now,
	}
	err = s.commit(ctx, quizID, "answer", func(ctx context.Context, tx store.Tx) error {
		if _, err := loadCaptainedTeam(ctx, tx, quizID, teamID, userID); err != nil {
			return err
		}
		state, err := loadClueState(ctx, tx, quizID, clueID)
		if err != nil {
			return err
		}
		if !state.Revealed() {
			return domain.ErrClueNotRevealed
		}
		if !state.IsOpen(now) {
			return domain.ErrClueClosed
		}
		if limit := question.AnswerLimit(); limit != nil {
			answers, err := loadAnswers(ctx, tx, quizID)
			if err != nil {
				return err
			}
			given := 0
			for _, a := range questionAnswers(answers, question.QuestionID()) {
				if a.TeamID == teamID {
					given++
				}
			}
			if given >= *limit {
				return domain.ErrAnswerLimitReached
			}
		}
		return tx.Set(answersColl(quizID), answer.ID, answer)
	})
	if err != nil {
		return domain.SimpleAnswer{}, err
	}
	return answer, nil
}

// CalculateUpdatedScores returns the score updates for marking answerID.
// answers must hold every answer of question; the scope is narrowed here.
func CalculateUpdatedScores(question domain.Question, answerID string, correct bool, answers []domain.SimpleAnswer) ([]scoring.Update, error) {
	var target *domain.SimpleAnswer
	for i := range answers {
		if answers[i].ID == answerID {
			target = &answers[i]
			break
		}
	}
	if target == nil {
		return nil, domain.ErrAnswerNotFound
	}
	clueIndex, ok := domain.ClueIndex(question, target.ClueID)
	if !ok {
		return nil, fmt.Errorf("%w: answer %s is on clue %s outside question %s", domain.ErrInternal, answerID, target.ClueID, question.QuestionID())
	}
	scope, err := marking.ScopeAnswers(question, target.ClueID, answers)
	if err != nil {
		return nil, err
	}
	return scoring.Recalculate(answerID, correct, question, clueIndex, scope)
}

// MarkAnswer marks a simple answer correct or incorrect and applies every
// resulting score change, with matching team point deltas, in one transaction.
func (s *QuizService) MarkAnswer(ctx context.Context, quizID, userID, answerID string, correct bool) ([]scoring.Update, error) {
	quiz, err := s.ownedQuiz(ctx, quizID, userID)
	if err != nil {
		return nil, err
	}

	var updates []scoring.Update
	err = s.commit(ctx, quizID, "mark", func(ctx context.Context, tx store.Tx) error {
		var target domain.SimpleAnswer
		if err := get(ctx, tx, answersColl(quizID), answerID, &target, domain.ErrAnswerNotFound); err != nil {
			return err
		}
		question, ok := quiz.Question(target.QuestionID)
		if !ok {
			return domain.ErrQuestionNotFound
		}
		all, err := loadAnswers(ctx, tx, quizID)
		if err != nil {
			return err
		}
		pool := questionAnswers(all, question.QuestionID())

		eligibility, err := marking.Evaluate(question, pool)
		if err != nil {
			return err
		}
		e := eligibility[answerID]
		if (correct && !e.CanMarkCorrect) || (!correct && !e.CanMarkIncorrect) {
			return domain.ErrNotMarkable
		}

		updates, err = CalculateUpdatedScores(question, answerID, correct, pool)
		if err != nil {
			return err
		}
		return applyScoreUpdates(tx, quizID, pool, updates)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("answer marked", "quiz", quizID, "answer", answerID, "correct", correct, "updates", len(updates))
	return updates, nil
}

// applyScoreUpdates writes every update and moves each team's total by the
// difference between the new and old score.
func applyScoreUpdates(tx store.Tx, quizID string, pool []domain.SimpleAnswer, updates []scoring.Update) error {
	byID := make(map[string]domain.SimpleAnswer, len(pool))
	for _, a := range pool {
		byID[a.ID] = a
	}
	for _, u := range updates {
		a, ok := byID[u.AnswerID]
		if !ok {
			return fmt.Errorf("%w: update for unknown answer %s", domain.ErrInternal, u.AnswerID)
		}
		delta := u.Score - a.PointsOrZero()
		score := u.Score
		a.Points = &score
		if u.Correct != nil {
			c := *u.Correct
			a.Correct = &c
		}
		if err := tx.Set(answersColl(quizID), a.ID, a); err != nil {
			return err
		}
		if delta != 0 {
			tx.Increment(pointsColl(quizID), a.TeamID, int64(delta))
		}
	}
	return nil
}
