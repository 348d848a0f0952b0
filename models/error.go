package models

import "errors"

// ErrNotFound is returned by every store when a requested record does not exist
var ErrNotFound = errors.New("not found")

// ErrorMessageResponse returns the error message response struct
type ErrorMessageResponse struct {
	Response MessageError
}

// MessageError contains the inner details for the error message response
type MessageError struct {
	Message string
	Error   string
}

// HealthCheckResponse is returned by the /health route
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}
