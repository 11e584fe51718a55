package tonal

import "errors"

var (
	// ErrInsufficientSignal means the features held no usable frames
	ErrInsufficientSignal = errors.New("insufficient signal")

	// ErrNumericInstability means a correlation was undefined, usually
	// because one side had zero variance
	ErrNumericInstability = errors.New("numeric instability")

	// ErrInvalidConfiguration covers bad options and malformed labels
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
