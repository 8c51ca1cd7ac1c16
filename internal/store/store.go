// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/deskmate/internal/domain"
)

// ErrNotFound is returned when an update targets a row that does not exist.
var ErrNotFound = errors.New("not found")

// Repository defines the interface for persisting client account data.
type Repository interface {
	// GetClient retrieves a client by id. It returns nil, nil when the client
	// does not exist.
	GetClient(ctx context.Context, clientID string) (*domain.Client, error)

	// UpsertClient creates or updates a client record. Profile columns are
	// only written through UpdateProfile.
	UpsertClient(ctx context.Context, client *domain.Client) error

	// UpdateLastSeen updates the last_seen_at timestamp for a client.
	UpdateLastSeen(ctx context.Context, clientID string, lastSeen time.Time) error

	// UpdateProfile writes the non-empty profile fields and marks the client
	// onboarded once all of them are present.
	UpdateProfile(ctx context.Context, clientID string, fields domain.ProfileFields) error

	// ListCases returns the client's cases that are not closed.
	ListCases(ctx context.Context, clientID string) ([]domain.Case, error)

	// UpsertCase creates or updates a case.
	UpsertCase(ctx context.Context, c *domain.Case) error

	// ListCategories returns the document categories ordered by name.
	ListCategories(ctx context.Context) ([]domain.Category, error)

	// UpsertCategory creates or updates a document category.
	UpsertCategory(ctx context.Context, c *domain.Category) error

	// ListPendingTasks returns incomplete tasks, earliest due first.
	ListPendingTasks(ctx context.Context, clientID string) ([]domain.Task, error)

	// AddTask creates a task.
	AddTask(ctx context.Context, t *domain.Task) error

	// CompleteTask marks a task done.
	CompleteTask(ctx context.Context, taskID string, at time.Time) error

	// ListPayments returns the most recent payments, newest first.
	ListPayments(ctx context.Context, clientID string, limit int) ([]domain.Payment, error)

	// AddPayment records a payment.
	AddPayment(ctx context.Context, p *domain.Payment) error

	// RecordActivity appends an activity entry and sets its ID.
	RecordActivity(ctx context.Context, a *domain.Activity) error

	// ListActivities returns the newest activity entries for a client.
	ListActivities(ctx context.Context, clientID string, limit int) ([]domain.Activity, error)

	// SearchFAQ returns the FAQ entry that best matches the question, or nil.
	SearchFAQ(ctx context.Context, question string) (*domain.FAQEntry, error)

	// AddFAQ creates a FAQ entry and sets its ID.
	AddFAQ(ctx context.Context, e *domain.FAQEntry) error

	// RecordConsultation stores a consultation request.
	RecordConsultation(ctx context.Context, r *domain.ConsultationRequest) error

	// ListConsultations returns a client's consultation requests, newest first.
	ListConsultations(ctx context.Context, clientID string) ([]domain.ConsultationRequest, error)

	// SeedDefaults inserts the default categories and FAQ entries when the
	// tables are empty.
	SeedDefaults(ctx context.Context) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
