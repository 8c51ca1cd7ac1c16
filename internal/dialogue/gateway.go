package dialogue

import (
	"context"

	"github.com/ashureev/deskmate/internal/domain"
)

// ProfileStore persists the business profile collected during onboarding.
type ProfileStore interface {
	UpdateProfile(ctx context.Context, clientID string, fields domain.ProfileFields) error
	RefetchProfile(ctx context.Context, clientID string) error
}

// DocumentTrigger opens the host's upload UI.
type DocumentTrigger interface {
	OpenUpload(ctx context.Context, caseID, categoryID string) error
}

// ConsultationTrigger tells the advisor side that a meeting is being booked.
type ConsultationTrigger interface {
	Notify(ctx context.Context, clientID, meetingType, slot string) error
}

// CalendarWidget opens the external scheduling calendar.
type CalendarWidget interface {
	Open(ctx context.Context, url string) error
}

// ActivityLogger records activity entries.
type ActivityLogger interface {
	Record(ctx context.Context, a domain.Activity) error
}

// KnowledgeBase answers FAQ questions.
type KnowledgeBase interface {
	Lookup(ctx context.Context, question string) (answer string, found bool, err error)
}

// SecureVault answers questions about the client's stored records.
type SecureVault interface {
	Ask(ctx context.Context, clientID, query string) (string, error)
}

// CaseDirectory lists the client's cases.
type CaseDirectory interface {
	ListCases(ctx context.Context, clientID string) ([]domain.Case, error)
}

// CategoryDirectory lists the document categories.
type CategoryDirectory interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// TaskDirectory lists the client's pending tasks.
type TaskDirectory interface {
	ListPendingTasks(ctx context.Context, clientID string) ([]domain.Task, error)
}

// PaymentLedger lists the client's payments.
type PaymentLedger interface {
	ListPayments(ctx context.Context, clientID string) ([]domain.Payment, error)
}

// Gateways bundles the collaborators the controller talks to. Any of them
// may be nil; effects routed to a nil gateway fail with
// ErrGatewayUnavailable, except activity records which are dropped.
type Gateways struct {
	Profiles      ProfileStore
	Documents     DocumentTrigger
	Consultations ConsultationTrigger
	Calendar      CalendarWidget
	Activity      ActivityLogger
	Knowledge     KnowledgeBase
	Vault         SecureVault
	Cases         CaseDirectory
	Categories    CategoryDirectory
	Tasks         TaskDirectory
	Payments      PaymentLedger
}
