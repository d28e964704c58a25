package domain

import (
	"encoding/json"
	"fmt"
)

// QuestionType discriminates the Question variants on the wire.
type QuestionType string

const (
	QuestionTypeConnection    QuestionType = "connection"
	QuestionTypeSequence      QuestionType = "sequence"
	QuestionTypeWall          QuestionType = "wall"
	QuestionTypeMissingVowels QuestionType = "missing-vowels"
)

// Question is implemented by ConnectionQuestion, SequenceQuestion,
// WallQuestion and MissingVowelsQuestion only.
type Question interface {
	QuestionID() string
	Type() QuestionType
	ClueIDs() []string
	// AnswerLimit caps answers per team; nil means unlimited.
	AnswerLimit() *int
	isQuestion()
}

// ConnectionQuestion reveals four clues one at a time.
type ConnectionQuestion struct {
	ID    string
	Clues [4]string
	Limit *int
}

// SequenceQuestion reveals three clues; the fourth "what comes next" is implicit.
type SequenceQuestion struct {
	ID    string
	Clues [3]string
	Limit *int
}

// WallQuestion has a single 4x4 grid clue.
type WallQuestion struct {
	ID    string
	Clue  string
	Limit *int
}

// MissingVowelsQuestion has a single compound clue of four fragments revealed at once.
type MissingVowelsQuestion struct {
	ID    string
	Clue  string
	Limit *int
}

func (q ConnectionQuestion) QuestionID() string    { return q.ID }
func (q SequenceQuestion) QuestionID() string      { return q.ID }
func (q WallQuestion) QuestionID() string          { return q.ID }
func (q MissingVowelsQuestion) QuestionID() string { return q.ID }

func (ConnectionQuestion) Type() QuestionType    { return QuestionTypeConnection }
func (SequenceQuestion) Type() QuestionType      { return QuestionTypeSequence }
func (WallQuestion) Type() QuestionType          { return QuestionTypeWall }
func (MissingVowelsQuestion) Type() QuestionType { return QuestionTypeMissingVowels }

func (q ConnectionQuestion) ClueIDs() []string    { return q.Clues[:] }
func (q SequenceQuestion) ClueIDs() []string      { return q.Clues[:] }
func (q WallQuestion) ClueIDs() []string          { return []string{q.Clue} }
func (q MissingVowelsQuestion) ClueIDs() []string { return []string{q.Clue} }

func (q ConnectionQuestion) AnswerLimit() *int    { return q.Limit }
func (q SequenceQuestion) AnswerLimit() *int      { return q.Limit }
func (q WallQuestion) AnswerLimit() *int          { return q.Limit }
func (q MissingVowelsQuestion) AnswerLimit() *int { return q.Limit }

func (ConnectionQuestion) isQuestion()    {}
func (SequenceQuestion) isQuestion()      {}
func (WallQuestion) isQuestion()          {}
func (MissingVowelsQuestion) isQuestion() {}

// ClueIndex returns the position of clueID within the question.
func ClueIndex(q Question, clueID string) (int, bool) {
	for i, id := range q.ClueIDs() {
		if id == clueID {
			return i, true
		}
	}
	return 0, false
}

// Quiz is the authored definition of a quiz. Solutions are hidden wall
// solutions keyed by wall clue id and must never reach clients directly.
type Quiz struct {
	ID        string
	OwnerID   string
	Questions []Question
	Clues     map[string]Clue
	Solutions map[string]WallSolution
}

// Question looks up a question by id.
func (q Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.QuestionID() == id {
			return question, true
		}
	}
	return nil, false
}

// QuestionForClue returns the question owning clueID and the clue's index in it.
func (q Quiz) QuestionForClue(clueID string) (Question, int, bool) {
	for _, question := range q.Questions {
		if i, ok := ClueIndex(question, clueID); ok {
			return question, i, true
		}
	}
	return nil, 0, false
}

type questionJSON struct {
	ID          string       `json:"id"`
	Type        QuestionType `json:"type"`
	Clues       []string     `json:"clues"`
	AnswerLimit *int         `json:"answerLimit,omitempty"`
}

type quizJSON struct {
	ID        string                  `json:"id"`
	OwnerID   string                  `json:"ownerId"`
	Questions []questionJSON          `json:"questions"`
	Clues     map[string]Clue         `json:"clues"`
	Solutions map[string]WallSolution `json:"solutions,omitempty"`
}

func (q Quiz) MarshalJSON() ([]byte, error) {
	out := quizJSON{
		ID:        q.ID,
		OwnerID:   q.OwnerID,
		Questions: make([]questionJSON, 0, len(q.Questions)),
		Clues:     q.Clues,
		Solutions: q.Solutions,
	}
	for _, question := range q.Questions {
		out.Questions = append(out.Questions, questionJSON{
			ID:          question.QuestionID(),
			Type:        question.Type(),
			Clues:       question.ClueIDs(),
			AnswerLimit: question.AnswerLimit(),
		})
	}
	return json.Marshal(out)
}

func (q *Quiz) UnmarshalJSON(data []byte) error {
	var in quizJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	questions := make([]Question, 0, len(in.Questions))
	for _, raw := range in.Questions {
		question, err := raw.decode()
		if err != nil {
			return err
		}
		questions = append(questions, question)
	}
	*q = Quiz{
		ID:        in.ID,
		OwnerID:   in.OwnerID,
		Questions: questions,
		Clues:     in.Clues,
		Solutions: in.Solutions,
	}
	return nil
}

func (raw questionJSON) decode() (Question, error) {
	want := map[QuestionType]int{
		QuestionTypeConnection:    4,
		QuestionTypeSequence:      3,
		QuestionTypeWall:          1,
		QuestionTypeMissingVowels: 1,
	}
	n, ok := want[raw.Type]
	if !ok {
		return nil, InvalidArgument("question %s: unknown type %q", raw.ID, raw.Type)
	}
	if len(raw.Clues) != n {
		return nil, fmt.Errorf("%w: question %s: %s takes %d clues, got %d", ErrInvalidArgument, raw.ID, raw.Type, n, len(raw.Clues))
	}
	switch raw.Type {
	case QuestionTypeConnection:
		q := ConnectionQuestion{ID: raw.ID, Limit: raw.AnswerLimit}
		copy(q.Clues[:], raw.Clues)
		return q, nil
	case QuestionTypeSequence:
		q := SequenceQuestion{ID: raw.ID, Limit: raw.AnswerLimit}
		copy(q.Clues[:], raw.Clues)
		return q, nil
	case QuestionTypeWall:
		return WallQuestion{ID: raw.ID, Clue: raw.Clues[0], Limit: raw.AnswerLimit}, nil
	default:
		return MissingVowelsQuestion{ID: raw.ID, Clue: raw.Clues[0], Limit: raw.AnswerLimit}, nil
	}
}
