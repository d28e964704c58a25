package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"onlyconnect-service/internal/domain"
	"onlyconnect-service/internal/scoring"
	"onlyconnect-service/internal/store"
)

// SubmitWallAnswer records a team's four connection guesses for a wall clue.
// A team answers each wall once, until the solution is revealed. The answer
// is scored straight away with the groups the team has found so far.
func (s *QuizService) SubmitWallAnswer(ctx context.Context, quizID, userID, teamID, clueID string, connections []string) (domain.WallAnswer, error) {
	if len(connections) != 4 {
		return domain.WallAnswer{}, domain.InvalidArgument("a wall answer has exactly 4 connections, got %d", len(connections))
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.WallAnswer{}, err
	}
	question, _, ok := quiz.QuestionForClue(clueID)
	if !ok {
		return domain.WallAnswer{}, domain.ErrClueNotFound
	}
	if _, isWall := question.(domain.WallQuestion); !isWall {
		return domain.WallAnswer{}, domain.InvalidArgument("clue %s is not a wall", clueID)
	}
	now, err := s.store.Now(ctx)
	if err != nil {
		return domain.WallAnswer{}, err
	}

	var answer domain.WallAnswer
	err = s.commit(ctx, quizID, "wallAnswer", func(ctx context.Context, tx store.Tx) error {
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
		if state.Solution != nil {
			return domain.ErrClueClosed
		}

		id := domain.WallInProgressID(clueID, teamID)
		var existing domain.WallAnswer
		err = tx.Get(ctx, wallAnswersColl(quizID), id, &existing)
		if err == nil {
			return domain.ErrAlreadyAnswered
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		answer = domain.WallAnswer{
			ID:          id,
			QuestionID:  question.QuestionID(),
			ClueID:      clueID,
			TeamID:      teamID,
			SubmittedAt: now,
		}
		for i, text := range connections {
			answer.Connections[i] = domain.ConnectionGuess{Text: strings.TrimSpace(text)}
		}
		return recomputeWallAnswer(ctx, tx, quizID, &answer)
	})
	if err != nil {
		return domain.WallAnswer{}, err
	}
	s.logger.Info("wall answer submitted", "quiz", quizID, "team", teamID, "clue", clueID, "points", answer.Points)
	return answer, nil
}

// MarkWallConnection sets the correctness of one connection guess and
// rescores the answer.
func (s *QuizService) MarkWallConnection(ctx context.Context, quizID, userID, answerID string, index int, correct bool) (domain.WallAnswer, error) {
	if index < 0 || index > 3 {
		return domain.WallAnswer{}, domain.InvalidArgument("connection index %d out of range", index)
	}
	if _, err := s.ownedQuiz(ctx, quizID, userID); err != nil {
		return domain.WallAnswer{}, err
	}

	var answer domain.WallAnswer
	err := s.commit(ctx, quizID, "wallMark", func(ctx context.Context, tx store.Tx) error {
		answer = domain.WallAnswer{}
		if err := get(ctx, tx, wallAnswersColl(quizID), answerID, &answer, domain.ErrAnswerNotFound); err != nil {
			return err
		}
		c := correct
		answer.Connections[index].Correct = &c
		return recomputeWallAnswer(ctx, tx, quizID, &answer)
	})
	if err != nil {
		return domain.WallAnswer{}, err
	}
	s.logger.Info("wall connection marked", "quiz", quizID, "answer", answerID, "index", index, "correct", correct, "points", answer.Points)
	return answer, nil
}

// RecomputeWallAnswerScore rescores a wall answer from its marked connections
// and the team's found groups. Only the owner may ask.
func (s *QuizService) RecomputeWallAnswerScore(ctx context.Context, quizID, userID, answerID string) (domain.WallAnswer, error) {
	if _, err := s.ownedQuiz(ctx, quizID, userID); err != nil {
		return domain.WallAnswer{}, err
	}
	var answer domain.WallAnswer
	err := s.commit(ctx, quizID, "wallMark", func(ctx context.Context, tx store.Tx) error {
		answer = domain.WallAnswer{}
		if err := get(ctx, tx, wallAnswersColl(quizID), answerID, &answer, domain.ErrAnswerNotFound); err != nil {
			return err
		}
		return recomputeWallAnswer(ctx, tx, quizID, &answer)
	})
	if err != nil {
		return domain.WallAnswer{}, err
	}
	return answer, nil
}

// WallAnswers returns every wall answer of the quiz.
func (s *QuizService) WallAnswers(ctx context.Context, quizID string) ([]domain.WallAnswer, error) {
	var answers []domain.WallAnswer
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		answers, err = loadWallAnswers(ctx, tx, quizID)
		return err
	})
	return answers, err
}

// rescoreWallAnswer rescores the team's wall answer after its progress
// changed. A team that has not answered yet has nothing to rescore.
func rescoreWallAnswer(ctx context.Context, tx store.Tx, quizID string, wip domain.WallInProgress) error {
	var answer domain.WallAnswer
	err := tx.Get(ctx, wallAnswersColl(quizID), domain.WallInProgressID(wip.ClueID, wip.TeamID), &answer)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return scoreWallAnswer(tx, quizID, &answer, len(wip.CorrectGroups))
}

// recomputeWallAnswer loads the team's found groups for the answer's wall and rescores it.
func recomputeWallAnswer(ctx context.Context, tx store.Tx, quizID string, answer *domain.WallAnswer) error {
	var wip domain.WallInProgress
	err := tx.Get(ctx, wallsColl(quizID), domain.WallInProgressID(answer.ClueID, answer.TeamID), &wip)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return scoreWallAnswer(tx, quizID, answer, len(wip.CorrectGroups))
}

// scoreWallAnswer writes the answer's new total and moves the team's points by the
// difference.
func scoreWallAnswer(tx store.Tx, quizID string, answer *domain.WallAnswer, groups int) error {
	total, err := scoring.WallPoints(groups, answer.CorrectConnections())
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	delta := total - answer.Points
	answer.Points = total
	if err := tx.Set(wallAnswersColl(quizID), answer.ID, *answer); err != nil {
		return err
	}
	if delta != 0 {
		tx.Increment(pointsColl(quizID), answer.TeamID, int64(delta))
	}
	return nil
}

func loadWallAnswers(ctx context.Context, tx store.Tx, quizID string) ([]domain.WallAnswer, error) {
	ids, err := tx.List(ctx, wallAnswersColl(quizID))
	if err != nil {
		return nil, err
	}
	answers := make([]domain.WallAnswer, 0, len(ids))
	for _, id := range ids {
		var a domain.WallAnswer
		if err := tx.Get(ctx, wallAnswersColl(quizID), id, &a); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, nil
}
