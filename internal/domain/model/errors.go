package model

import "errors"

var (
	ErrEventNotFound      = errors.New("event not found")
	ErrMissingTenant      = errors.New("tenant is required")
	ErrDatabaseConnection = errors.New("database connection error")
	ErrDatabaseQuery      = errors.New("database query error")
)
