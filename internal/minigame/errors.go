package minigame

import (
	"errors"
	"fmt"
	"time"
)

// Rejections. All of them are recoverable and meant to be translated into a user-facing line
// by the inbound adapter.
var (
	ErrAlreadyActive    = errf("player already has an active game")
	ErrAlreadyPending   = errf("challenge already pending for this pair")
	ErrSelfChallenge    = errf("cannot challenge yourself")
	ErrParticipantBusy  = errf("participant is already in a game")
	ErrNotYourChallenge = errf("challenge is not addressed to you")
	ErrNotYourTurn      = errf("not your turn")
	ErrInvalidState     = errf("action not allowed in current state")
	ErrGameFinished     = errf("game already finished")
	ErrNotFound         = errf("game or challenge not found")
	ErrExpired          = errf("challenge expired")
	ErrOnCooldown       = errf("player is on cooldown")
	ErrUnknownGame      = errf("unknown game kind")
	ErrInvalidInput     = errf("invalid input")
	ErrInvalidArgs      = errf("invalid arguments")
)

// ErrInternal marks an invariant violation (a locking bug). It is never a user mistake.
var ErrInternal = errors.New("minigame: internal invariant violated")

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// CooldownError reports which player is still cooling down and for how long.
type CooldownError struct {
	Player    string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("player %s on cooldown for %s", e.Player, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Is(target error) bool { return target == ErrOnCooldown }

// InputError is returned by a Game when it rejects the move text (the turn is not consumed).
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return "invalid input: " + e.Reason }

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

func internalErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}
