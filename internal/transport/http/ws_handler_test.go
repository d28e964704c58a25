package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"onlyconnect-service/internal/app"
	"onlyconnect-service/internal/domain"
	"onlyconnect-service/internal/infra/memory"
	"onlyconnect-service/internal/store"
)

type message struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

func TestWebSocketAnswerFlow(t *testing.T) {
	server := newTestServer(t)

	captain := dial(t, server, "cap-a")
	host := dial(t, server, "host")
	readResult(t, captain, "view")
	readResult(t, host, "view")

	var team domain.Team
	send(t, captain, "1", "createTeam", map[string]any{"name": "Alpha"})
	decodePayload(t, readResult(t, captain, "createTeam"), &team)
	if team.Name != "Alpha" || team.CaptainID != "cap-a" {
		t.Fatalf("unexpected team %+v", team)
	}

	send(t, host, "2", "revealClue", map[string]any{"questionId": "q1"})
	readResult(t, host, "revealClue")

	var answer domain.SimpleAnswer
	send(t, captain, "3", "submitAnswer", map[string]any{"teamId": team.ID, "clueId": "c1", "text": "Rivers"})
	decodePayload(t, readResult(t, captain, "submitAnswer"), &answer)

	send(t, captain, "4", "markAnswer", map[string]any{"answerId": answer.ID, "correct": true})
	if kind := readError(t, captain, "markAnswer"); kind != "permission-denied" {
		t.Fatalf("expected permission-denied, got %s", kind)
	}

	var updates []struct {
		AnswerID string `json:"answerId"`
		Score    int    `json:"score"`
	}
	send(t, host, "5", "markAnswer", map[string]any{"answerId": answer.ID, "correct": true})
	decodePayload(t, readResult(t, host, "markAnswer"), &updates)
	if len(updates) != 1 || updates[0].Score != 5 {
		t.Fatalf("expected 5 points at the first clue, got %+v", updates)
	}

	var view app.MarkingView
	send(t, host, "6", "view", nil)
	decodePayload(t, readResult(t, host, "view"), &view)
	if len(view.Teams) != 1 || view.Teams[0].Points != 5 {
		t.Fatalf("expected Alpha on 5 points, got %+v", view.Teams)
	}

	var walls []domain.WallAnswer
	send(t, host, "7", "wallAnswers", nil)
	decodePayload(t, readResult(t, host, "wallAnswers"), &walls)
	if len(walls) != 0 {
		t.Fatalf("expected no wall answers, got %+v", walls)
	}
}

func TestWebSocketPushesEvents(t *testing.T) {
	server := newTestServer(t)

	captain := dial(t, server, "cap-a")
	host := dial(t, server, "host")
	readResult(t, captain, "view")
	readResult(t, host, "view")

	send(t, captain, "1", "createTeam", map[string]any{"name": "Alpha"})

	for {
		msg := read(t, host)
		if msg.Type != "event" {
			continue
		}
		var ev struct {
			Event domain.QuizEvent `json:"event"`
			View  app.MarkingView  `json:"view"`
		}
		decodePayload(t, msg.Payload, &ev)
		if ev.Event.Kind != "team" || len(ev.View.Teams) != 1 {
			t.Fatalf("unexpected event %+v", ev)
		}
		return
	}
}

func TestWebSocketRejectsBadInput(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "cap-a")
	readResult(t, conn, "view")

	send(t, conn, "1", "dance", nil)
	if kind := readError(t, conn, "dance"); kind != "invalid-argument" {
		t.Fatalf("expected invalid-argument, got %s", kind)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"submitGroup","payload":"nope"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if kind := readError(t, conn, "submitGroup"); kind != "invalid-argument" {
		t.Fatalf("expected invalid-argument for a malformed payload, got %s", kind)
	}

	resp, err := http.Get(server.URL + "/ws?quizId=quiz-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without a user, got %d", resp.StatusCode)
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()}), time.Minute)
	service := app.NewQuizService(memory.NewStore(store.DefaultRetryPolicy), quizzes, nil)
	wsHandler := NewWSHandler(service, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?quizId=quiz-1&userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, id, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"id": id, "type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func read(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	var msg message
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg
}

// readResult skips pushed events until the reply to command arrives.
func readResult(t *testing.T, conn *websocket.Conn, command string) json.RawMessage {
	t.Helper()
	for {
		msg := read(t, conn)
		if msg.Type == "event" {
			continue
		}
		if msg.Type != "result" || msg.Command != command {
			t.Fatalf("expected result of %s, got %s %s: %s", command, msg.Type, msg.Command, msg.Payload)
		}
		return msg.Payload
	}
}

func readError(t *testing.T, conn *websocket.Conn, command string) string {
	t.Helper()
	for {
		msg := read(t, conn)
		if msg.Type == "event" {
			continue
		}
		if msg.Type != "error" || msg.Command != command {
			t.Fatalf("expected error from %s, got %s %s", command, msg.Type, msg.Command)
		}
		var p errorPayload
		decodePayload(t, msg.Payload, &p)
		return p.Kind
	}
}

func decodePayload(t *testing.T, raw json.RawMessage, dst any) {
	t.Helper()
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("decode payload %s: %v", raw, err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:      "quiz-1",
		OwnerID: "host",
		Questions: []domain.Question{
			domain.ConnectionQuestion{ID: "q1", Clues: [4]string{"c1", "c2", "c3", "c4"}},
		},
		Clues: map[string]domain.Clue{
			"c1": {ID: "c1", QuestionID: "q1", Texts: []string{"Nile"}},
			"c2": {ID: "c2", QuestionID: "q1", Texts: []string{"Amazon"}},
			"c3": {ID: "c3", QuestionID: "q1", Texts: []string{"Yangtze"}},
			"c4": {ID: "c4", QuestionID: "q1", Texts: []string{"Mississippi"}},
		},
	}
}
