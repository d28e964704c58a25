package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"onlyconnect-service/internal/app"
	"onlyconnect-service/internal/domain"
	"onlyconnect-service/internal/infra/memory"
	"onlyconnect-service/internal/store"
)

const (
	quizID = "quiz-1"
	owner  = "host"
)

func TestCreateTeamAndLeaderboard(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	alpha := createTeam(t, service, "Alpha", "cap-a")
	if _, err := service.CreateTeam(ctx, quizID, "Bravo", "cap-b"); err != nil {
		t.Fatalf("create bravo: %v", err)
	}

	if _, err := service.CreateTeam(ctx, quizID, "Again", "cap-a"); !errors.Is(err, domain.ErrFailedPrecondition) {
		t.Fatalf("expected a captain to lead one team only, got %v", err)
	}
	if _, err := service.CreateTeam(ctx, quizID, "Hosts", owner); !errors.Is(err, domain.ErrFailedPrecondition) {
		t.Fatalf("expected the owner to be refused a team, got %v", err)
	}
	if _, err := service.CreateTeam(ctx, quizID, "  ", "cap-c"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for a blank name, got %v", err)
	}
	if _, err := service.CreateTeam(ctx, "missing", "Zulu", "cap-z"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for an unknown quiz, got %v", err)
	}

	revealClue(t, service, "q1")
	a := submit(t, service, alpha.ID, "cap-a", "c1", "Planets")
	if _, err := service.MarkAnswer(ctx, quizID, owner, a.ID, true); err != nil {
		t.Fatalf("mark: %v", err)
	}

	teams, err := service.Teams(ctx, quizID)
	if err != nil {
		t.Fatalf("teams: %v", err)
	}
	if len(teams) != 2 {
		t.Fatalf("expected 2 teams, got %d", len(teams))
	}
	if teams[0].Name != "Alpha" || teams[0].Points != 5 {
		t.Fatalf("expected Alpha to lead with 5, got %+v", teams[0])
	}
	if teams[1].Name != "Bravo" || teams[1].Points != 0 {
		t.Fatalf("expected Bravo second with 0, got %+v", teams[1])
	}
}

func TestRevealNextClueClosesPrevious(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	if _, err := service.RevealNextClue(ctx, quizID, "cap-a", "q1"); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("expected only the owner to reveal, got %v", err)
	}

	first := revealClue(t, service, "q1")
	second := revealClue(t, service, "q1")
	if first.ClueID != "c1" || second.ClueID != "c2" {
		t.Fatalf("expected c1 then c2, got %s then %s", first.ClueID, second.ClueID)
	}

	states, err := service.ClueStates(ctx, quizID)
	if err != nil {
		t.Fatalf("clue states: %v", err)
	}
	if states["c1"].ClosedAt == nil {
		t.Fatalf("expected c1 to close when c2 was revealed")
	}
	if states["c2"].ClosedAt != nil {
		t.Fatalf("expected c2 to stay open")
	}
	if states["c3"].Revealed() {
		t.Fatalf("expected c3 to stay hidden")
	}

	revealClue(t, service, "q1")
	revealClue(t, service, "q1")
	if _, err := service.RevealNextClue(ctx, quizID, owner, "q1"); !errors.Is(err, domain.ErrAlreadyRevealed) {
		t.Fatalf("expected already revealed once every clue is out, got %v", err)
	}
}

func TestCloseQuestion(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	alpha := createTeam(t, service, "Alpha", "cap-a")

	if err := service.CloseQuestion(ctx, quizID, owner, "q4"); !errors.Is(err, domain.ErrClueNotRevealed) {
		t.Fatalf("expected closing an unrevealed question to fail, got %v", err)
	}
	revealClue(t, service, "q4")
	if err := service.CloseQuestion(ctx, quizID, owner, "q4"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, quizID, "cap-a", alpha.ID, "m1", "Late"); !errors.Is(err, domain.ErrClueClosed) {
		t.Fatalf("expected a closed clue to refuse answers, got %v", err)
	}
}

func TestRevealWallSolution(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	if _, err := service.RevealWallSolution(ctx, quizID, owner, "w1"); !errors.Is(err, domain.ErrClueNotRevealed) {
		t.Fatalf("expected an unrevealed wall to refuse, got %v", err)
	}
	revealClue(t, service, "q3")

	quiz, err := service.Quiz(ctx, quizID)
	if err != nil {
		t.Fatalf("quiz: %v", err)
	}
	if quiz.Solutions != nil {
		t.Fatalf("expected the public quiz to hide wall solutions")
	}

	state, err := service.RevealWallSolution(ctx, quizID, owner, "w1")
	if err != nil {
		t.Fatalf("reveal solution: %v", err)
	}
	if state.Solution == nil || len(state.Solution.Groups) != 4 || state.ClosedAt == nil {
		t.Fatalf("expected a closed clue with the published solution, got %+v", state)
	}
	if _, err := service.RevealWallSolution(ctx, quizID, owner, "w1"); !errors.Is(err, domain.ErrAlreadyRevealed) {
		t.Fatalf("expected a second reveal to fail, got %v", err)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	ch, cancel, err := service.Subscribe(ctx, quizID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	createTeam(t, service, "Alpha", "cap-a")

	select {
	case ev := <-ch:
		if ev.QuizID != quizID || ev.Kind != "team" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}

	// failed mutations publish nothing
	if _, err := service.CreateTeam(ctx, quizID, "Again", "cap-a"); err == nil {
		t.Fatalf("expected duplicate captain to fail")
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event after a failed mutation: %+v", ev)
	default:
	}
}

func TestMarkingView(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	alpha := createTeam(t, service, "Alpha", "cap-a")
	bravo := createTeam(t, service, "Bravo", "cap-b")

	revealClue(t, service, "q1")
	revealClue(t, service, "q4")
	first := submit(t, service, alpha.ID, "cap-a", "c1", "Rivers")
	submit(t, service, bravo.ID, "cap-b", "m1", "Cheeses")
	last := submit(t, service, bravo.ID, "cap-b", "c1", "Lakes")

	view, err := service.MarkingView(ctx, quizID, owner)
	if err != nil {
		t.Fatalf("owner view: %v", err)
	}
	if !view.IsOwner || len(view.Answers) != 3 || len(view.Teams) != 2 {
		t.Fatalf("unexpected owner view %+v", view)
	}
	if view.FocusID != first.ID {
		t.Fatalf("expected the owner focused on %s, got %s", first.ID, view.FocusID)
	}
	if e := view.Eligibility[last.ID]; !e.CanMarkCorrect || !e.CanMarkIncorrect {
		t.Fatalf("expected connection answers to be markable, got %+v", e)
	}
	if !view.Clues["c1"].Revealed() {
		t.Fatalf("expected c1 revealed in the view")
	}

	playerView, err := service.MarkingView(ctx, quizID, "cap-a")
	if err != nil {
		t.Fatalf("player view: %v", err)
	}
	if playerView.IsOwner || playerView.FocusID != last.ID {
		t.Fatalf("expected the player focused on the latest answer %s, got %+v", last.ID, playerView.FocusID)
	}
}

func TestConcurrentMarkingComposesTeamPoints(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	alpha := createTeam(t, service, "Alpha", "cap-a")

	var answers []domain.SimpleAnswer
	for _, clueID := range []string{"c1", "c2", "c3", "c4"} {
		revealClue(t, service, "q1")
		answers = append(answers, submit(t, service, alpha.ID, "cap-a", clueID, "Rivers"))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(answers))
	for _, a := range answers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := service.MarkAnswer(ctx, quizID, owner, id, true); err != nil {
				errs <- err
			}
		}(a.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent mark: %v", err)
	}

	if got := teamPoints(t, service, alpha.ID); got != 5+3+2+1 {
		t.Fatalf("expected 11 points, got %d", got)
	}
}

func newTestService() *app.QuizService {
	service, _ := newTestServiceWithStore()
	return service
}

func newTestServiceWithStore() (*app.QuizService, *memory.Store) {
	st := memory.NewStoreWithClock(store.RetryPolicy{MaxAttempts: 20, InitialBackoff: time.Millisecond}, newClock())
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{quizID: testQuiz()}), time.Minute)
	return app.NewQuizService(st, quizzes, slog.New(slog.NewTextHandler(io.Discard, nil))), st
}

// newClock returns a clock that ticks one second per reading.
func newClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 11, 22, 20, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func testQuiz() domain.Quiz {
	wall := domain.WallSolution{Groups: []domain.SolutionGroup{
		{Texts: []string{"Mercury", "Venus", "Mars", "Earth"}, Connection: "Planets"},
		{Texts: []string{"Thames", "Severn", "Trent", "Tyne"}, Connection: "Rivers"},
		{Texts: []string{"Brie", "Feta", "Edam", "Gouda"}, Connection: "Cheeses"},
		{Texts: []string{"Oak", "Ash", "Elm", "Yew"}, Connection: "Trees"},
	}}
	limit := 1
	var grid []string
	for _, g := range wall.Groups {
		grid = append(grid, g.Texts...)
	}
	return domain.Quiz{
		ID:      quizID,
		OwnerID: owner,
		Questions: []domain.Question{
			domain.ConnectionQuestion{ID: "q1", Clues: [4]string{"c1", "c2", "c3", "c4"}},
			domain.SequenceQuestion{ID: "q2", Clues: [3]string{"s1", "s2", "s3"}, Limit: &limit},
			domain.WallQuestion{ID: "q3", Clue: "w1"},
			domain.MissingVowelsQuestion{ID: "q4", Clue: "m1"},
		},
		Clues: map[string]domain.Clue{
			"c1": {ID: "c1", QuestionID: "q1", Texts: []string{"Nile"}},
			"c2": {ID: "c2", QuestionID: "q1", Texts: []string{"Amazon"}},
			"c3": {ID: "c3", QuestionID: "q1", Texts: []string{"Yangtze"}},
			"c4": {ID: "c4", QuestionID: "q1", Texts: []string{"Mississippi"}},
			"s1": {ID: "s1", QuestionID: "q2", Texts: []string{"Ag"}},
			"s2": {ID: "s2", QuestionID: "q2", Texts: []string{"Au"}},
			"s3": {ID: "s3", QuestionID: "q2", Texts: []string{"Pt"}},
			"w1": {ID: "w1", QuestionID: "q3", Texts: grid},
			"m1": {ID: "m1", QuestionID: "q4", Texts: []string{"BR CH DR", "FT", "DM", "G D"}},
		},
		Solutions: map[string]domain.WallSolution{"w1": wall},
	}
}

func createTeam(t *testing.T, service *app.QuizService, name, captain string) domain.Team {
	t.Helper()
	team, err := service.CreateTeam(context.Background(), quizID, name, captain)
	if err != nil {
		t.Fatalf("create team %s: %v", name, err)
	}
	return team
}

func revealClue(t *testing.T, service *app.QuizService, questionID string) domain.ClueState {
	t.Helper()
	state, err := service.RevealNextClue(context.Background(), quizID, owner, questionID)
	if err != nil {
		t.Fatalf("reveal %s: %v", questionID, err)
	}
	return state
}

func submit(t *testing.T, service *app.QuizService, teamID, captain, clueID, text string) domain.SimpleAnswer {
	t.Helper()
	a, err := service.SubmitAnswer(context.Background(), quizID, captain, teamID, clueID, text)
	if err != nil {
		t.Fatalf("submit on %s: %v", clueID, err)
	}
	return a
}

func teamPoints(t *testing.T, service *app.QuizService, teamID string) int {
	t.Helper()
	teams, err := service.Teams(context.Background(), quizID)
	if err != nil {
		t.Fatalf("teams: %v", err)
	}
	for _, team := range teams {
		if team.ID == teamID {
			return team.Points
		}
	}
	t.Fatalf("team %s not found", teamID)
	return 0
}
