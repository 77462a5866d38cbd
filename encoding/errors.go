package encoding

import (
	"errors"
	"fmt"
)

var (
	// ErrEncodingRange is returned when a length, count or numeric value
	// does not fit its wire field.
	ErrEncodingRange = errors.New("encoding range error")

	// ErrUnsupportedScalar is returned for Go values the codec cannot
	// represent without an explicit conversion by the caller.
	ErrUnsupportedScalar = errors.New("unsupported scalar")

	// ErrMalformedDecode is returned for truncated input, trailing bytes,
	// unknown versions and count mismatches.
	ErrMalformedDecode = errors.New("malformed encoding")

	// ErrInvalidDataType is returned for unknown type names and
	// metadata that does not belong to the type.
	ErrInvalidDataType = errors.New("invalid data type")

	// ErrInvalidValue is returned when a value does not match its declared type.
	ErrInvalidValue = errors.New("invalid value")
)

// RangeError describes a field whose value or length is out of range.
type RangeError struct {
	Field string
	Value string
	Max   string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %s %s exceeds %s", ErrEncodingRange, e.Field, e.Value, e.Max)
}

// Is makes errors.Is(err, ErrEncodingRange) true for any *RangeError.
func (e *RangeError) Is(target error) bool {
	return target == ErrEncodingRange
}

func rangeErr(field string, value, limit interface{}) error {
	return &RangeError{Field: field, Value: fmt.Sprint(value), Max: fmt.Sprint(limit)}
}

// Malformed wraps ErrMalformedDecode with a description of what went wrong.
func Malformed(format string, v ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedDecode, fmt.Sprintf(format, v...))
}

func unsupported(v interface{}, hint string) error {
	return fmt.Errorf("%w: %T, %s", ErrUnsupportedScalar, v, hint)
}
