package swarm

import "errors"

var (
	// ErrInvalidTransition is returned when a task status change violates
	// the pending -> in_progress -> {completed, failed} lifecycle.
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrPatternNotFound is returned when a pattern update references an
	// unknown pattern.
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrKnowledgeBaseNotFound is returned when a knowledge operation
	// references an unknown knowledge base.
	ErrKnowledgeBaseNotFound = errors.New("knowledge base not found")
)
