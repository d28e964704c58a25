package app

import (
	"context"
	"log/slog"
	"sort"

	"onlyconnect-service/internal/domain"
	"onlyconnect-service/internal/store"
)

// QuizRepository loads authored quiz definitions (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizService contains the live quiz use cases. Every mutation runs in a
// single store transaction and re-checks the caller's role inside it.
type QuizService struct {
	store   store.Store
	quizzes QuizRepository
	feed    *Feed
	logger  *slog.Logger
}

func NewQuizService(st store.Store, quizzes QuizRepository, logger *slog.Logger) *QuizService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizService{
		store:   st,
		quizzes: quizzes,
		feed:    NewFeed(),
		logger:  logger,
	}
}

// Subscribe returns a channel of change events for a quiz.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context, quizID string) (<-chan domain.QuizEvent, func(), error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.Subscribe(quizID)
	s.logger.Debug("feed subscribed", "quiz", quizID, "subscribers", s.feed.Subscribers(quizID))
	return ch, cancel, nil
}

// Quiz returns the definition with wall solutions stripped.
func (s *QuizService) Quiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.Solutions = nil
	return quiz, nil
}

// commit runs fn in a transaction and announces the change once it committed.
func (s *QuizService) commit(ctx context.Context, quizID, kind string, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := s.store.RunTransaction(ctx, fn); err != nil {
		return err
	}
	now, err := s.store.Now(ctx)
	if err != nil {
		s.logger.Warn("store clock unavailable", "quiz", quizID, "error", err)
	}
	s.feed.Publish(domain.QuizEvent{QuizID: quizID, Kind: kind, At: now})
	return nil
}

func (s *QuizService) ownedQuiz(ctx context.Context, quizID, userID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz.OwnerID != userID {
		return domain.Quiz{}, domain.ErrNotOwner
	}
	return quiz, nil
}

// Leaderboard orders teams by points, then name.
func Leaderboard(teams []domain.Team) []domain.Team {
	out := make([]domain.Team, len(teams))
	copy(out, teams)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].Name < out[j].Name
	})
	return out
}
