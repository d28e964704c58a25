package app

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"onlyconnect-service/internal/domain"
	"onlyconnect-service/internal/store"
)

const startingLives = 3

// StartWall returns the team's progress on a wall clue, creating it on first use.
func (s *QuizService) StartWall(ctx context.Context, quizID, userID, teamID, clueID string) (domain.WallInProgress, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.WallInProgress{}, err
	}
	question, _, ok := quiz.QuestionForClue(clueID)
	if !ok {
		return domain.WallInProgress{}, domain.ErrClueNotFound
	}
	if _, isWall := question.(domain.WallQuestion); !isWall {
		return domain.WallInProgress{}, domain.InvalidArgument("clue %s is not a wall", clueID)
	}

	var wip domain.WallInProgress
	err = s.commit(ctx, quizID, "wall", func(ctx context.Context, tx store.Tx) error {
		wip = domain.WallInProgress{}
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
		id := domain.WallInProgressID(clueID, teamID)
		err = tx.Get(ctx, wallsColl(quizID), id, &wip)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		wip = domain.WallInProgress{
			ID:            id,
			QuestionID:    question.QuestionID(),
			ClueID:        clueID,
			TeamID:        teamID,
			SelectedTexts: []string{},
			CorrectGroups: []domain.FoundGroup{},
		}
		return tx.Set(wallsColl(quizID), id, wip)
	})
	if err != nil {
		return domain.WallInProgress{}, err
	}
	return wip, nil
}

// ToggleSelection adds text to, or removes it from, the team's current
// grouping attempt.
func (s *QuizService) ToggleSelection(ctx context.Context, quizID, userID, wipID, text string) (domain.WallInProgress, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.WallInProgress{}, err
	}

	var wip domain.WallInProgress
	err = s.commit(ctx, quizID, "wall", func(ctx context.Context, tx store.Tx) error {
		wip = domain.WallInProgress{}
		if err := get(ctx, tx, wallsColl(quizID), wipID, &wip, domain.ErrWallInProgressNotFound); err != nil {
			return err
		}
		if _, err := loadCaptainedTeam(ctx, tx, quizID, wip.TeamID, userID); err != nil {
			return err
		}
		if wip.Frozen() {
			return domain.ErrNoLivesRemaining
		}
		if !slices.Contains(quiz.Clues[wip.ClueID].Texts, text) {
			return domain.InvalidArgument("%q is not on the wall", text)
		}
		for _, g := range wip.CorrectGroups {
			if slices.Contains(g.Texts, text) {
				return fmt.Errorf("%w: %q is already in a found group", domain.ErrFailedPrecondition, text)
			}
		}

		if i := slices.Index(wip.SelectedTexts, text); i >= 0 {
			wip.SelectedTexts = slices.Delete(wip.SelectedTexts, i, i+1)
		} else {
			if len(wip.SelectedTexts) >= 4 {
				return domain.ErrSelectionFull
			}
			wip.SelectedTexts = append(wip.SelectedTexts, text)
		}
		return tx.Set(wallsColl(quizID), wip.ID, wip)
	})
	if err != nil {
		return domain.WallInProgress{}, err
	}
	return wip, nil
}

// SubmitGroup checks four texts against the wall's hidden solution. It
// reports whether they formed a group the team had not found yet. Finding the
// second group arms three lives; finding the penultimate group credits the
// last one automatically. A wrong guess costs a life once lives are armed.
func (s *QuizService) SubmitGroup(ctx context.Context, quizID, userID, wipID string, texts []string) (bool, error) {
	if len(texts) != 4 {
		return false, domain.InvalidArgument("a group has exactly 4 texts, got %d", len(texts))
	}
	submitted := normalizeGroup(texts)
	if len(slices.Compact(slices.Clone(submitted))) != 4 {
		return false, domain.InvalidArgument("a group cannot repeat a text")
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return false, err
	}

	var (
		matched bool
		wip     domain.WallInProgress
	)
	err = s.commit(ctx, quizID, "wall", func(ctx context.Context, tx store.Tx) error {
		matched, wip = false, domain.WallInProgress{}
		if err := get(ctx, tx, wallsColl(quizID), wipID, &wip, domain.ErrWallInProgressNotFound); err != nil {
			return err
		}
		team, err := loadTeam(ctx, tx, quizID, wip.TeamID)
		if err != nil {
			return err
		}
		solution, ok := quiz.Solutions[wip.ClueID]
		if !ok {
			return domain.ErrSolutionNotFound
		}
		if team.CaptainID != userID {
			return domain.ErrNotCaptain
		}
		if wip.Frozen() {
			return domain.ErrNoLivesRemaining
		}
		if len(wip.CorrectGroups) >= len(solution.Groups) {
			return domain.ErrWallComplete
		}
		state, err := loadClueState(ctx, tx, quizID, wip.ClueID)
		if err != nil {
			return err
		}
		if state.ClosedAt != nil {
			return domain.ErrClueClosed
		}

		index := matchGroup(solution, wip, submitted)
		wip.SelectedTexts = []string{}
		if index < 0 {
			if wip.RemainingLives != nil {
				lives := max(*wip.RemainingLives-1, 0)
				wip.RemainingLives = &lives
			}
			return tx.Set(wallsColl(quizID), wip.ID, wip)
		}

		matched = true
		wip.CorrectGroups = append(wip.CorrectGroups, domain.FoundGroup{Texts: submitted, SolutionGroupIndex: index})
		if len(wip.CorrectGroups) == len(solution.Groups)-1 {
			last, err := remainingGroup(solution, wip)
			if err != nil {
				s.logger.Error("wall solution inconsistent", "quiz", quizID, "clue", wip.ClueID, "team", team.ID, "error", err)
				return err
			}
			wip.CorrectGroups = append(wip.CorrectGroups, last)
		}
		if wip.RemainingLives == nil && len(wip.CorrectGroups) >= 2 {
			lives := startingLives
			wip.RemainingLives = &lives
		}
		if err := tx.Set(wallsColl(quizID), wip.ID, wip); err != nil {
			return err
		}
		return rescoreWallAnswer(ctx, tx, quizID, wip)
	})
	if err != nil {
		return false, err
	}
	s.logger.Info("wall group submitted", "quiz", quizID, "wall", wipID, "correct", matched, "groups", len(wip.CorrectGroups))
	return matched, nil
}

// matchGroup returns the index of the unfound solution group equal to
// submitted, or -1.
func matchGroup(solution domain.WallSolution, wip domain.WallInProgress, submitted []string) int {
	for i, g := range solution.Groups {
		if wip.HasGroup(i) {
			continue
		}
		if slices.Equal(normalizeGroup(g.Texts), submitted) {
			return i
		}
	}
	return -1
}

// remainingGroup deduces the only solution group not yet found.
func remainingGroup(solution domain.WallSolution, wip domain.WallInProgress) (domain.FoundGroup, error) {
	var missing []int
	for i := range solution.Groups {
		if !wip.HasGroup(i) {
			missing = append(missing, i)
		}
	}
	if len(missing) != 1 {
		return domain.FoundGroup{}, fmt.Errorf("%w: expected exactly one remaining wall group, found %d", domain.ErrInternal, len(missing))
	}
	return domain.FoundGroup{
		Texts:              normalizeGroup(solution.Groups[missing[0]].Texts),
		SolutionGroupIndex: missing[0],
	}, nil
}

// normalizeGroup returns a sorted copy so groups compare as multisets.
func normalizeGroup(texts []string) []string {
	out := slices.Clone(texts)
	slices.Sort(out)
	return out
}
