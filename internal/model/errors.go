package model

import "github.com/rotisserie/eris"

var (
	// ErrInvalidCategory is returned when input names a category outside the catalog.
	ErrInvalidCategory = eris.New("invalid category")

	// ErrRecordNotFound is returned when a lookup, update or delete target is absent.
	ErrRecordNotFound = eris.New("record not found")

	// ErrBatchAlreadyRunning is returned when a batch job is requested while
	// another one is still executing.
	ErrBatchAlreadyRunning = eris.New("a batch job is already running")

	// ErrInvalidParameter is returned for out-of-range search or seed input.
	ErrInvalidParameter = eris.New("invalid parameter")
)
