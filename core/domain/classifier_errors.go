package domain

import "errors"

// Sentinel validation errors surfaced by domain-level checks. HTTP handlers
// translate these into the error envelope via pkg/apperr.
// ErrNotFound marks a lookup that matched no row; adapters wrap it so
// services can distinguish absence from infrastructure failure.
var ErrNotFound = errors.New("not found")

var (
	ErrRuleNameRequired    = errors.New("rule name is required")
	ErrRuleNoConditions    = errors.New("rule must define at least one condition")
	ErrInvalidCategory     = errors.New("unknown category")
	ErrInvalidImportance   = errors.New("importance must be between 1 and 4")
	ErrInvalidMatchMode    = errors.New("unknown sender match mode")
	ErrInvalidKeywordLogic = errors.New("keyword logic must be any or all")
)
