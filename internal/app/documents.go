package app

import (
	"context"
	"errors"
	"sort"

	"onlyconnect-service/internal/domain"
	"onlyconnect-service/internal/store"
)

// Collections, all nested under the quiz they belong to.
func teamsColl(quizID string) string       { return "quizzes/" + quizID + "/teams" }
func pointsColl(quizID string) string      { return "quizzes/" + quizID + "/points" }
func cluesColl(quizID string) string       { return "quizzes/" + quizID + "/clues" }
func answersColl(quizID string) string     { return "quizzes/" + quizID + "/answers" }
func wallAnswersColl(quizID string) string { return "quizzes/" + quizID + "/wallAnswers" }
func wallsColl(quizID string) string       { return "quizzes/" + quizID + "/walls" }

// get reads a document and maps a missing one to notFound.
func get(ctx context.Context, tx store.Tx, coll, id string, dst any, notFound error) error {
	err := tx.Get(ctx, coll, id, dst)
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	return err
}

func loadTeam(ctx context.Context, tx store.Tx, quizID, teamID string) (domain.Team, error) {
	var team domain.Team
	if err := get(ctx, tx, teamsColl(quizID), teamID, &team, domain.ErrTeamNotFound); err != nil {
		return domain.Team{}, err
	}
	points, err := tx.Counter(ctx, pointsColl(quizID), teamID)
	if err != nil {
		return domain.Team{}, err
	}
	team.Points = int(points)
	return team, nil
}

// loadCaptainedTeam loads the team and checks userID is its captain.
func loadCaptainedTeam(ctx context.Context, tx store.Tx, quizID, teamID, userID string) (domain.Team, error) {
	team, err := loadTeam(ctx, tx, quizID, teamID)
	if err != nil {
		return domain.Team{}, err
	}
	if team.CaptainID != userID {
		return domain.Team{}, domain.ErrNotCaptain
	}
	return team, nil
}

func putTeam(tx store.Tx, team domain.Team) error {
	team.Points = 0
	return tx.Set(teamsColl(team.QuizID), team.ID, team)
}

// loadClueState returns the clue's state, or an unrevealed state if none was written yet.
func loadClueState(ctx context.Context, tx store.Tx, quizID, clueID string) (domain.ClueState, error) {
	var state domain.ClueState
	err := tx.Get(ctx, cluesColl(quizID), clueID, &state)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ClueState{ClueID: clueID}, nil
	}
	return state, err
}

// loadAnswers returns every simple answer of the quiz, oldest first.
func loadAnswers(ctx context.Context, tx store.Tx, quizID string) ([]domain.SimpleAnswer, error) {
	ids, err := tx.List(ctx, answersColl(quizID))
	if err != nil {
		return nil, err
	}
	answers := make([]domain.SimpleAnswer, 0, len(ids))
	for _, id := range ids {
		var a domain.SimpleAnswer
		if err := tx.Get(ctx, answersColl(quizID), id, &a); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	sortAnswers(answers)
	return answers, nil
}

func questionAnswers(answers []domain.SimpleAnswer, questionID string) []domain.SimpleAnswer {
	out := make([]domain.SimpleAnswer, 0, len(answers))
	for _, a := range answers {
		if a.QuestionID == questionID {
			out = append(out, a)
		}
	}
	return out
}

func sortAnswers(answers []domain.SimpleAnswer) {
	sort.SliceStable(answers, func(i, j int) bool {
		if !answers[i].SubmittedAt.Equal(answers[j].SubmittedAt) {
			return answers[i].SubmittedAt.Before(answers[j].SubmittedAt)
		}
		return answers[i].ID < answers[j].ID
	})
}

func loadTeams(ctx context.Context, tx store.Tx, quizID string) ([]domain.Team, error) {
	ids, err := tx.List(ctx, teamsColl(quizID))
	if err != nil {
		return nil, err
	}
	teams := make([]domain.Team, 0, len(ids))
	for _, id := range ids {
		team, err := loadTeam(ctx, tx, quizID, id)
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, nil
}
