package validate

// Number is a constraint for the numeric types accepted by the number validators.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// IsGreaterThanZero checks if the provided numeric value (of type T) is greater than zero.
// It returns an error if the value is not greater than zero, using the provided message and arguments.
// T is a generic type constrained to Number, allowing the function to work with durations and other numeric types.
func IsGreaterThanZero[T Number](value T, msg string, args ...any) error {
	if value <= 0 {
		return createError(msg, args...)
	}
	return nil
}

// IsGreaterOrEqualToZero checks if the provided numeric value (of type T) is greater or equal to zero.
// It returns an error if the value is less than zero, using the provided message and arguments.
func IsGreaterOrEqualToZero[T Number](value T, msg string, args ...any) error {
	if value < 0 {
		return createError(msg, args...)
	}
	return nil
}
