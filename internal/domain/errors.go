package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error surfaced by the app layer wraps exactly one of these.
var (
	// ErrInvalidArgument is returned for malformed input, before any transaction starts.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when a referenced quiz, clue, team or answer is missing.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied is returned when the caller is not the team captain or quiz owner.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrFailedPrecondition is a user-visible rejection of an otherwise valid request.
	ErrFailedPrecondition = errors.New("failed precondition")
	// ErrInternal signals a data-integrity fault.
	ErrInternal = errors.New("internal consistency fault")
)

var (
	ErrQuizNotFound           = fmt.Errorf("%w: quiz", ErrNotFound)
	ErrQuestionNotFound       = fmt.Errorf("%w: question", ErrNotFound)
	ErrClueNotFound           = fmt.Errorf("%w: clue", ErrNotFound)
	ErrTeamNotFound           = fmt.Errorf("%w: team", ErrNotFound)
	ErrAnswerNotFound         = fmt.Errorf("%w: answer", ErrNotFound)
	ErrWallInProgressNotFound = fmt.Errorf("%w: wall in progress", ErrNotFound)
	ErrSolutionNotFound       = fmt.Errorf("%w: wall solution", ErrNotFound)

	ErrNotCaptain = fmt.Errorf("%w: caller is not the team captain", ErrPermissionDenied)
	ErrNotOwner   = fmt.Errorf("%w: caller is not the quiz owner", ErrPermissionDenied)

	ErrNoLivesRemaining   = fmt.Errorf("%w: no lives remaining", ErrFailedPrecondition)
	ErrWallComplete       = fmt.Errorf("%w: all groups already found", ErrFailedPrecondition)
	ErrClueNotRevealed    = fmt.Errorf("%w: clue not revealed", ErrFailedPrecondition)
	ErrClueClosed         = fmt.Errorf("%w: clue closed", ErrFailedPrecondition)
	ErrAlreadyRevealed    = fmt.Errorf("%w: already revealed", ErrFailedPrecondition)
	ErrAnswerLimitReached = fmt.Errorf("%w: answer limit reached", ErrFailedPrecondition)
	ErrNotMarkable        = fmt.Errorf("%w: answer cannot be marked", ErrFailedPrecondition)
	ErrAlreadyAnswered    = fmt.Errorf("%w: wall connections already submitted", ErrFailedPrecondition)
	ErrSelectionFull      = fmt.Errorf("%w: four texts already selected", ErrFailedPrecondition)
)

// BadQuestionTypeError is raised by exhaustive type switches that meet a
// Question implementation they do not handle.
type BadQuestionTypeError struct {
	Question Question
}

func (e BadQuestionTypeError) Error() string {
	return fmt.Sprintf("unhandled question type %T", e.Question)
}

func (e BadQuestionTypeError) Unwrap() error {
	return ErrInternal
}

// InvalidArgument wraps ErrInvalidArgument with a formatted detail.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Kind returns the error kind name used on the wire.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "invalid-argument"
	case errors.Is(err, ErrNotFound):
		return "not-found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission-denied"
	case errors.Is(err, ErrFailedPrecondition):
		return "failed-precondition"
	case errors.Is(err, ErrInternal):
		return "internal"
	default:
		return "unknown"
	}
}
