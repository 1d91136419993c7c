package model

import "errors"

// Error kinds surfaced by the price extraction engine. Callers match them
// with errors.Is; the wrapped message carries the specifics.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrMetadataResolution = errors.New("metadata resolution error")
	ErrStorageAbsent      = errors.New("storage absent")
	ErrArithmetic         = errors.New("arithmetic error")
)
