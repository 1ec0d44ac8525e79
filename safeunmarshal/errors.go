package safeunmarshal

import "errors"

var (
	// ErrExpectedJSONArray is returned when the target is an array or slice
	// type but the input is not a JSON array.
	ErrExpectedJSONArray = errors.New("expected JSON array for array type")

	// ErrInputTooLarge is returned when the input exceeds MaxInputSize.
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")

	// ErrEmptyInput is returned for empty or whitespace-only input.
	ErrEmptyInput = errors.New("empty input")

	// ErrTrailingData is returned when more than one JSON value is present.
	ErrTrailingData = errors.New("unexpected data after JSON value")
)
