package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewEvidenceID generates a unique evidence ID with the "ev_" prefix
func NewEvidenceID() string {
	return "ev_" + uuid.New().String()
}
