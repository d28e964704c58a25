package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"onlyconnect-service/internal/domain"
	"onlyconnect-service/internal/store"
)

// CreateTeam registers a team captained by captainID.
func (s *QuizService) CreateTeam(ctx context.Context, quizID, name, captainID string) (domain.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" || captainID == "" {
		return domain.Team{}, domain.InvalidArgument("team name and captain are required")
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Team{}, err
	}
	if quiz.OwnerID == captainID {
		return domain.Team{}, fmt.Errorf("%w: the quiz owner cannot captain a team", domain.ErrFailedPrecondition)
	}

	team := domain.Team{ID: uuid.NewString(), QuizID: quizID, Name: name, CaptainID: captainID}
	err = s.commit(ctx, quizID, "team", func(ctx context.Context, tx store.Tx) error {
		teams, err := loadTeams(ctx, tx, quizID)
		if err != nil {
			return err
		}
		for _, other := range teams {
			if other.CaptainID == captainID {
				return fmt.Errorf("%w: already captain of %q", domain.ErrFailedPrecondition, other.Name)
			}
		}
		return putTeam(tx, team)
	})
	if err != nil {
		return domain.Team{}, err
	}
	s.logger.Info("team created", "quiz", quizID, "team", team.ID, "name", team.Name)
	return team, nil
}

// Teams returns the quiz's leaderboard.
func (s *QuizService) Teams(ctx context.Context, quizID string) ([]domain.Team, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	var teams []domain.Team
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		teams, err = loadTeams(ctx, tx, quizID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return Leaderboard(teams), nil
}
