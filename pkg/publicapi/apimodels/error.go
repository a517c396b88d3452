package apimodels

import (
	"fmt"
)

// APIError is the JSON body returned for every failed request.
type APIError struct {
	// HTTPStatusCode is the http status code associated with this error.
	HTTPStatusCode int `json:"Status"`

	// Message is a short, human-readable description of the error.
	Message string `json:"Message"`

	// RequestID is the request ID of the request that caused the error.
	RequestID string `json:"RequestID"`

	// Code is the error code of the error.
	Code string `json:"Code"`

	// Component is the component that caused the error.
	Component string `json:"Component"`

	// Hint is a string providing additional context or suggestions related to the error.
	Hint string `json:"Hint,omitempty"`
}

// NewAPIError creates a new APIError with the given HTTP status code and message.
func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{
		HTTPStatusCode: statusCode,
		Message:        message,
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.HTTPStatusCode, e.Message)
}
