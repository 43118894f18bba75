package store

import (
	"context"

	"contactapi/pkg/domain"
)

// SubmissionStore persists contact form submissions. It is write-only;
// reads live on *GormStore for operators and tests.
type SubmissionStore interface {
	// CreateSubmission inserts one row in its own unit of work and returns it
	// with the server-assigned ID and CreatedAt.
	CreateSubmission(ctx context.Context, sub domain.Submission) (domain.Submission, error)
}
