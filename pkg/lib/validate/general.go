package validate

import (
	"fmt"
	"reflect"
	"strings"
)

// NotNil checks if the provided value is not nil.
// It returns an error if the value is nil, using the provided message and arguments.
// Typed nil pointers, maps, slices, channels and funcs are treated as nil.
func NotNil(value any, msg string, args ...any) error {
	if value == nil {
		return createError(msg, args...)
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		if v.IsNil() {
			return createError(msg, args...)
		}
	default:
	}
	return nil
}

// NotBlank checks if the provided string is not empty or consisting only of whitespace.
// It returns an error if the string is blank, using the provided message and arguments.
func NotBlank(value string, msg string, args ...any) error {
	if strings.TrimSpace(value) == "" {
		return createError(msg, args...)
	}
	return nil
}

// NoneOf checks that the string does not contain any of the given characters.
func NoneOf(value string, chars string, msg string, args ...any) error {
	if strings.ContainsAny(value, chars) {
		return createError(msg, args...)
	}
	return nil
}

// IsNotEmpty checks that the provided slice has at least one element.
func IsNotEmpty[T any](value []T, msg string, args ...any) error {
	if len(value) == 0 {
		return createError(msg, args...)
	}
	return nil
}

// OneOf checks that the value is one of the allowed values.
func OneOf[T comparable](value T, allowed []T, msg string, args ...any) error {
	for _, a := range allowed {
		if a == value {
			return nil
		}
	}
	return createError(msg, args...)
}

// createError creates an error with the given message and arguments.
func createError(msg string, args ...any) error {
	return fmt.Errorf(msg, args...)
}
