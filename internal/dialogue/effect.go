package dialogue

import (
	"github.com/ashureev/deskmate/internal/domain"
)

// EffectKind names a side effect requested by the transition table.
type EffectKind int

const (
	EffectLoadCases EffectKind = iota + 1
	EffectLoadCategories
	EffectUpdateProfile
	EffectRefetchProfile
	EffectOpenUpload
	EffectOpenCalendar
	EffectNotifyConsultation
	EffectRecordActivity
	EffectLookupKnowledge
	EffectAskVault
	EffectLoadCaseStatus
	EffectLoadPendingTasks
	EffectLoadPayments
)

var effectNames = map[EffectKind]string{
	EffectLoadCases:          "load_cases",
	EffectLoadCategories:     "load_categories",
	EffectUpdateProfile:      "update_profile",
	EffectRefetchProfile:     "refetch_profile",
	EffectOpenUpload:         "open_upload",
	EffectOpenCalendar:       "open_calendar",
	EffectNotifyConsultation: "notify_consultation",
	EffectRecordActivity:     "record_activity",
	EffectLookupKnowledge:    "lookup_knowledge",
	EffectAskVault:           "ask_vault",
	EffectLoadCaseStatus:     "load_case_status",
	EffectLoadPendingTasks:   "load_pending_tasks",
	EffectLoadPayments:       "load_payments",
}

func (k EffectKind) String() string {
	if n, ok := effectNames[k]; ok {
		return n
	}
	return "unknown"
}

// Gateway returns the name of the collaborator that serves the effect.
func (k EffectKind) Gateway() string {
	switch k {
	case EffectLoadCases, EffectLoadCaseStatus:
		return "case_directory"
	case EffectLoadCategories:
		return "category_directory"
	case EffectUpdateProfile, EffectRefetchProfile:
		return "profile_store"
	case EffectOpenUpload:
		return "document_trigger"
	case EffectOpenCalendar:
		return "calendar_widget"
	case EffectNotifyConsultation:
		return "consultation_trigger"
	case EffectRecordActivity:
		return "activity_logger"
	case EffectLookupKnowledge:
		return "knowledge_base"
	case EffectAskVault:
		return "secure_vault"
	case EffectLoadPendingTasks:
		return "task_directory"
	case EffectLoadPayments:
		return "payment_ledger"
	default:
		return "unknown"
	}
}

// Awaited reports whether the controller waits for the effect's outcome.
// The rest are fire-and-forget: failures are logged and otherwise ignored.
func (k EffectKind) Awaited() bool {
	switch k {
	case EffectRecordActivity, EffectNotifyConsultation, EffectRefetchProfile:
		return false
	default:
		return true
	}
}

// Effect is a side effect described as a value. Only the fields relevant to
// Kind are set.
type Effect struct {
	Kind        EffectKind
	Fields      domain.ProfileFields
	CaseID      string
	CategoryID  string
	URL         string
	MeetingType string
	Slot        string
	Description string
	Priority    domain.Priority
	Audience    domain.Audience
	Query       string
}

// Outcome is the result of an awaited effect.
type Outcome struct {
	Effect     Effect
	Err        error
	Cases      []domain.Case
	Categories []domain.Category
	Tasks      []domain.Task
	Payments   []domain.Payment
	Answer     string
	Found      bool
}
