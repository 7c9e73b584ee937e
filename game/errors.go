package game

import (
	"errors"
	"fmt"
)

// IllegalActionError is returned when an action is outside its legal bullet window.
type IllegalActionError struct {
	Action  Action
	Bullets int
}

func (e *IllegalActionError) Error() string {
	switch e.Action {
	case ActionShoot:
		return fmt.Sprintf("cannot shoot with %d bullets", e.Bullets)
	case ActionReload:
		return fmt.Sprintf("cannot reload at %d bullets", e.Bullets)
	}
	return fmt.Sprintf("illegal action %q with %d bullets", e.Action, e.Bullets)
}

// DuplicateSubmissionError is returned for a second move in an already filled slot.
type DuplicateSubmissionError struct {
	ParticipantID string
	Round         int
}

func (e *DuplicateSubmissionError) Error() string {
	return fmt.Sprintf("participant %s already submitted for round %d", e.ParticipantID, e.Round)
}

// MatchFinishedError is returned when the match no longer accepts input.
type MatchFinishedError struct {
	Phase Phase
}

func (e *MatchFinishedError) Error() string {
	return fmt.Sprintf("match is %s", e.Phase)
}

// RoundNotReadyError is returned when a round is resolved before both moves exist.
type RoundNotReadyError struct {
	Round       int
	Submissions int
}

func (e *RoundNotReadyError) Error() string {
	return fmt.Sprintf("round %d has %d of 2 submissions", e.Round, e.Submissions)
}

// ParticipantNotFoundError is returned for identities that are not part of the match.
type ParticipantNotFoundError struct {
	ParticipantID string
}

func (e *ParticipantNotFoundError) Error() string {
	return fmt.Sprintf("participant %s is not in this match", e.ParticipantID)
}

// RoundMismatchError is returned for moves addressed to a round other than the current one.
type RoundMismatchError struct {
	Got, Current int
}

func (e *RoundMismatchError) Error() string {
	return fmt.Sprintf("round %d is not the current round (%d)", e.Got, e.Current)
}

var (
	ErrDeadlineNotReached = errors.New("round deadline has not been reached")
	ErrInvalidAction      = errors.New("invalid action")
	ErrUnknownDifficulty  = errors.New("unknown difficulty")
)

// IsClientError reports whether err belongs to the expected, caller-recoverable taxonomy.
func IsClientError(err error) bool {
	var (
		illegal  *IllegalActionError
		dup      *DuplicateSubmissionError
		finished *MatchFinishedError
		notReady *RoundNotReadyError
		notFound *ParticipantNotFoundError
		mismatch *RoundMismatchError
	)
	return errors.As(err, &illegal) ||
		errors.As(err, &dup) ||
		errors.As(err, &finished) ||
		errors.As(err, &notReady) ||
		errors.As(err, &notFound) ||
		errors.As(err, &mismatch) ||
		errors.Is(err, ErrDeadlineNotReached) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrUnknownDifficulty)
}
