package http

import (
	"context"
	"encoding/json"
)

type questionPayload struct {
	QuestionID string `json:"questionId"`
}

type cluePayload struct {
	ClueID string `json:"clueId"`
}

type createTeamPayload struct {
	Name string `json:"name"`
}

type submitAnswerPayload struct {
	TeamID string `json:"teamId"`
	ClueID string `json:"clueId"`
	Text   string `json:"text"`
}

type markAnswerPayload struct {
	AnswerID string `json:"answerId"`
	Correct  bool   `json:"correct"`
}

type startWallPayload struct {
	TeamID string `json:"teamId"`
	ClueID string `json:"clueId"`
}

type toggleSelectionPayload struct {
	WallID string `json:"wallId"`
	Text   string `json:"text"`
}

type submitGroupPayload struct {
	WallID string   `json:"wallId"`
	Texts  []string `json:"texts"`
}

type submitGroupResult struct {
	Correct bool `json:"correct"`
}

type submitWallAnswerPayload struct {
	TeamID      string   `json:"teamId"`
	ClueID      string   `json:"clueId"`
	Connections []string `json:"connections"`
}

type markWallConnectionPayload struct {
	AnswerID string `json:"answerId"`
	Index    int    `json:"index"`
	Correct  bool   `json:"correct"`
}

func (h *WSHandler) quiz(ctx context.Context, c caller, _ json.RawMessage) (any, error) {
	return h.service.Quiz(ctx, c.quizID)
}

func (h *WSHandler) view(ctx context.Context, c caller, _ json.RawMessage) (any, error) {
	return h.service.MarkingView(ctx, c.quizID, c.userID)
}

func (h *WSHandler) wallAnswers(ctx context.Context, c caller, _ json.RawMessage) (any, error) {
	return h.service.WallAnswers(ctx, c.quizID)
}

func (h *WSHandler) createTeam(ctx context.Context, c caller, raw json.RawMessage) (any, error) {
	p, err := decode[createTeamPayload](raw)
	if err != nil {
		return nil, err
	}
	return h.service.CreateTeam(ctx, c.quizID, p.Name, c.userID)
}

func (h *WSHandler) revealClue(ctx context.Context, c caller, raw json.RawMessage) (any, error) {
	p, err := decode[questionPayload](raw)
	if err != nil {
		return nil, err
	}
	return h.service.RevealNextClue(ctx, c.quizID, c.userID, p.QuestionID)
}

func (h *WSHandler) closeQuestion(ctx context.Context, c caller, raw json.RawMessage) (any, error) {
	p, err := decode[questionPayload](raw)
	if err != nil {
		return nil, err
	}
	if err := h.service.CloseQuestion(ctx, c.quizID, c.userID, p.QuestionID); err != nil {
		return nil, err
	}
	return p, nil
}

func (h *WSHandler) revealSolution(ctx context.Context, c caller, raw json.RawMessage) (any, error) {
	p, err := decode[cluePayload](raw)
	if err != nil {
		return nil, err
	}
	return h.service.RevealWallSolution(ctx, c.quizID, c.userID, p.ClueID)
}

func (h *WSHandler) submitAnswer(ctx context.Context, c caller, raw json.RawMessage) (any, error) {
	p, err := decode[submitAnswerPayload](raw)
	if err != nil {
		return nil, err
	}
	return h.service.SubmitAnswer(ctx, c.quizID, c.userID, p.TeamID, p.ClueID, p.Text)
}

func (h *WSHandler) markAnswer(ctx context.Context, c caller, raw json.RawMessage) (any, error) {
	p, err := decode[markAnswerPayload](raw)
	if err != nil {
		return nil, err
	}
	return h.service.MarkAnswer(ctx, c.quizID, c.userID, p.AnswerID, p.Correct)
}

func (h *WSHandler) startWall(ctx context.Context, c caller, raw json.RawMessage) (any, error) {
	p, err := decode[startWallPayload](raw)
	if err != nil {
		return nil, err
	}
	return h.service.StartWall(ctx, c.quizID, c.userID, p.TeamID, p.ClueID)
}

func (h *WSHandler) toggleSelection(ctx context.Context, c caller, raw json.RawMessage) (any, error) {
	p, err := decode[toggleSelectionPayload](raw)
	if err != nil {
		return nil, err
	}
	return h.service.ToggleSelection(ctx, c.quizID, c.userID, p.WallID, p.Text)
}

func (h *WSHandler) submitGroup(ctx context.Context, c caller, raw json.RawMessage) (any, error) {
	p, err := decode[submitGroupPayload](raw)
	if err != nil {
		return nil, err
	}
	correct, err := h.service.SubmitGroup(ctx, c.quizID, c.userID, p.WallID, p.Texts)
	if err != nil {
		return nil, err
	}
	return submitGroupResult{Correct: correct}, nil
}

func (h *WSHandler) submitWallAnswer(ctx context.Context, c caller, raw json.RawMessage) (any, error) {
	p, err := decode[submitWallAnswerPayload](raw)
	if err != nil {
		return nil, err
	}
	return h.service.SubmitWallAnswer(ctx, c.quizID, c.userID, p.TeamID, p.ClueID, p.Connections)
}

func (h *WSHandler) markWallConnection(ctx context.Context, c caller, raw json.RawMessage) (any, error) {
	p, err := decode[markWallConnectionPayload](raw)
	if err != nil {
		return nil, err
	}
	return h.service.MarkWallConnection(ctx, c.quizID, c.userID, p.AnswerID, p.Index, p.Correct)
}
