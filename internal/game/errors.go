package game

import "errors"

var (
	// ErrInsufficientBalls is returned when a catch is attempted with none of the ball left
	ErrInsufficientBalls = errors.New("insufficient balls")
	// ErrInvalidEvolutionTarget is returned for confirm/cancel of a Pokemon that is not pending
	ErrInvalidEvolutionTarget = errors.New("invalid evolution target")
)
