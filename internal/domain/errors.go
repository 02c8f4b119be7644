// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates the request payload failed validation.
var ErrValidation = errors.New("validation failed")

// ErrHistoryDisabled indicates the analysis history store is not
// configured; history endpoints respond 503 in that mode.
var ErrHistoryDisabled = errors.New("history store not configured")
