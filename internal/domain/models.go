package domain

import "time"

// Team is a group of players answering under one captain.
// Points mirrors the team's point counter; it is never written as part of the
// team document.
type Team struct {
	ID        string `json:"id"`
	QuizID    string `json:"quizId"`
	Name      string `json:"name"`
	CaptainID string `json:"captainId"`
	Points    int    `json:"points,omitempty"`
}

// Clue is one reveal-able unit of a question as authored.
type Clue struct {
	ID         string   `json:"id"`
	QuestionID string   `json:"questionId"`
	Texts      []string `json:"texts"`
}

// ClueState is the mutable, monotonic reveal state of a clue.
type ClueState struct {
	ClueID     string        `json:"clueId"`
	RevealedAt *time.Time    `json:"revealedAt,omitempty"`
	ClosedAt   *time.Time    `json:"closedAt,omitempty"`
	Solution   *WallSolution `json:"solution,omitempty"`
}

// Revealed reports whether the clue has been revealed.
func (s ClueState) Revealed() bool {
	return s.RevealedAt != nil
}

// IsOpen reports whether the clue accepts answers at now.
func (s ClueState) IsOpen(now time.Time) bool {
	if s.RevealedAt == nil || s.RevealedAt.After(now) {
		return false
	}
	return s.ClosedAt == nil || s.ClosedAt.After(now)
}

// SolutionGroup is one hidden group of a wall.
type SolutionGroup struct {
	Texts      []string `json:"texts"`
	Connection string   `json:"connection"`
}

// WallSolution partitions a wall's 16 texts into 4 groups.
type WallSolution struct {
	Groups []SolutionGroup `json:"groups"`
}

// SimpleAnswer is a free-text guess at a Connection, Sequence or MissingVowels clue.
// A nil Correct means unmarked.
type SimpleAnswer struct {
	ID          string    `json:"id"`
	QuestionID  string    `json:"questionId"`
	ClueID      string    `json:"clueId"`
	TeamID      string    `json:"teamId"`
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submittedAt"`
	Points      *int      `json:"points,omitempty"`
	Correct     *bool     `json:"correct,omitempty"`
}

// PointsOrZero returns the answer's points, treating unset as zero.
func (a SimpleAnswer) PointsOrZero() int {
	if a.Points == nil {
		return 0
	}
	return *a.Points
}

// IsCorrect reports whether the answer is marked correct.
func (a SimpleAnswer) IsCorrect() bool {
	return a.Correct != nil && *a.Correct
}

// IsIncorrect reports whether the answer is marked incorrect.
func (a SimpleAnswer) IsIncorrect() bool {
	return a.Correct != nil && !*a.Correct
}

// IsUnmarked reports whether the answer has never been marked.
func (a SimpleAnswer) IsUnmarked() bool {
	return a.Correct == nil
}

// ConnectionGuess is one of the four connection guesses in a WallAnswer.
type ConnectionGuess struct {
	Text    string `json:"text"`
	Correct *bool  `json:"correct,omitempty"`
}

// WallAnswer is a team's guess at the four connections of a wall.
type WallAnswer struct {
	ID          string             `json:"id"`
	QuestionID  string             `json:"questionId"`
	ClueID      string             `json:"clueId"`
	TeamID      string             `json:"teamId"`
	Connections [4]ConnectionGuess `json:"connections"`
	SubmittedAt time.Time          `json:"submittedAt"`
	Points      int                `json:"points"`
}

// CorrectConnections counts the guesses currently marked correct.
func (a WallAnswer) CorrectConnections() int {
	n := 0
	for _, c := range a.Connections {
		if c.Correct != nil && *c.Correct {
			n++
		}
	}
	return n
}

// FoundGroup is a wall group a team has been credited with.
type FoundGroup struct {
	Texts              []string `json:"texts"`
	SolutionGroupIndex int      `json:"solutionGroupIndex"`
}

// WallInProgress tracks one team's progress against one wall clue.
// RemainingLives is nil until two groups have been found.
type WallInProgress struct {
	ID             string       `json:"id"`
	QuestionID     string       `json:"questionId"`
	ClueID         string       `json:"clueId"`
	TeamID         string       `json:"teamId"`
	SelectedTexts  []string     `json:"selectedTexts"`
	CorrectGroups  []FoundGroup `json:"correctGroups"`
	RemainingLives *int         `json:"remainingLives,omitempty"`
}

// HasGroup reports whether the solution group index was already credited.
func (w WallInProgress) HasGroup(index int) bool {
	for _, g := range w.CorrectGroups {
		if g.SolutionGroupIndex == index {
			return true
		}
	}
	return false
}

// Frozen reports whether the team has run out of lives.
func (w WallInProgress) Frozen() bool {
	return w.RemainingLives != nil && *w.RemainingLives <= 0
}

// WallInProgressID is the deterministic id of a team's progress on a wall clue.
func WallInProgressID(clueID, teamID string) string {
	return clueID + "_" + teamID
}

// QuizEvent notifies subscribers that quiz state changed.
type QuizEvent struct {
	QuizID string    `json:"quizId"`
	Kind   string    `json:"kind"`
	At     time.Time `json:"at"`
}
