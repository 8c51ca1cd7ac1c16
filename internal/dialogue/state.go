// Package dialogue implements the task-oriented dialogue engine behind the
// client assistant: a finite-state controller that walks a client through
// onboarding, document filing, meeting scheduling and lookups, with a safety
// interceptor that can preempt any flow.
package dialogue

import (
	"fmt"
	"strings"
)

// State is the conversation state. Exactly one is active at a time.
// Implementations are comparable value types, so two states are the same
// state iff they compare equal with ==.
type State interface {
	Tag() string
	state()
}

// OnboardingStep enumerates the onboarding sub-states.
type OnboardingStep int

const (
	OnboardingGreeting OnboardingStep = iota
	OnboardingAskName
	OnboardingAskTaxID
	OnboardingAskEntityType
	OnboardingProcessing
	OnboardingComplete
)

// FilingStep enumerates the document filing sub-states.
type FilingStep int

const (
	FilingGreeting FilingStep = iota
	FilingAskRelation
	FilingSelectCase
	FilingSelectCategory
	FilingUploadPrompt
	FilingUploading
	FilingComplete
)

// MeetingStep enumerates the meeting scheduling sub-states.
type MeetingStep int

const (
	MeetingGreeting MeetingStep = iota
	MeetingAskType
	MeetingOpenExternalCalendar
	MeetingComplete
)

// LookupKind enumerates the read-only lookups.
type LookupKind int

const (
	LookupCaseStatus LookupKind = iota
	LookupPendingTasks
	LookupPaymentHistory
	LookupFaq
)

type (
	// Idle is the state before the host has opened the conversation.
	Idle struct{}
	// Onboarding collects the business profile.
	Onboarding struct{ Step OnboardingStep }
	// DocumentFiling walks the client through uploading a document.
	DocumentFiling struct{ Step FilingStep }
	// MeetingScheduling books a meeting through the external calendar.
	MeetingScheduling struct{ Step MeetingStep }
	// Lookup answers a read-only question about the account.
	Lookup struct{ Kind LookupKind }
	// SecureVaultQuery forwards free-text questions to the secure vault.
	SecureVaultQuery struct{}
	// SuggestConsultation offers a consultation after a completed filing.
	SuggestConsultation struct{}
	// GeneralQuery is the main menu.
	GeneralQuery struct{}
	// SafetyOverride is entered when the client asks for professional advice.
	SafetyOverride struct{}
)

func (Idle) state() {}
func (Onboarding) state() {}
func (DocumentFiling) state() {}
func (MeetingScheduling) state() {}
func (Lookup) state() {}
func (SecureVaultQuery) state() {}
func (SuggestConsultation) state() {}
func (GeneralQuery) state() {}
func (SafetyOverride) state() {}

var onboardingTags = [...]string{"greeting", "ask_name", "ask_tax_id", "ask_entity_type", "processing", "complete"}
var filingTags = [...]string{"greeting", "ask_relation", "select_case", "select_category", "upload_prompt", "uploading", "complete"}
var meetingTags = [...]string{"greeting", "ask_type", "open_external_calendar", "complete"}
var lookupTags = [...]string{"case_status", "pending_tasks", "payment_history", "faq"}

func stepTag(tags []string, i int) string {
	if i < 0 || i >= len(tags) {
		return "unknown"
	}
	return tags[i]
}

func (Idle) Tag() string { return "idle" }
func (s Onboarding) Tag() string { return "onboarding." + stepTag(onboardingTags[:], int(s.Step)) }
func (s DocumentFiling) Tag() string { return "document_filing." + stepTag(filingTags[:], int(s.Step)) }
func (s MeetingScheduling) Tag() string { return "meeting_scheduling." + stepTag(meetingTags[:], int(s.Step)) }
func (s Lookup) Tag() string { return "lookup." + stepTag(lookupTags[:], int(s.Kind)) }
func (SecureVaultQuery) Tag() string { return "secure_vault_query" }
func (SuggestConsultation) Tag() string { return "suggest_consultation" }
func (GeneralQuery) Tag() string { return "general_query" }
func (SafetyOverride) Tag() string { return "safety_override" }

// ParseState is the inverse of State.Tag.
func ParseState(tag string) (State, error) {
	switch tag {
	case "idle":
		return Idle{}, nil
	case "secure_vault_query":
		return SecureVaultQuery{}, nil
	case "suggest_consultation":
		return SuggestConsultation{}, nil
	case "general_query":
		return GeneralQuery{}, nil
	case "safety_override":
		return SafetyOverride{}, nil
	}

	group, step, ok := strings.Cut(tag, ".")
	if !ok {
		return nil, fmt.Errorf("unknown state tag %q", tag)
	}
	var tags []string
	switch group {
	case "onboarding":
		tags = onboardingTags[:]
	case "document_filing":
		tags = filingTags[:]
	case "meeting_scheduling":
		tags = meetingTags[:]
	case "lookup":
		tags = lookupTags[:]
	default:
		return nil, fmt.Errorf("unknown state tag %q", tag)
	}
	for i, t := range tags {
		if t != step {
			continue
		}
		switch group {
		case "onboarding":
			return Onboarding{Step: OnboardingStep(i)}, nil
		case "document_filing":
			return DocumentFiling{Step: FilingStep(i)}, nil
		case "meeting_scheduling":
			return MeetingScheduling{Step: MeetingStep(i)}, nil
		default:
			return Lookup{Kind: LookupKind(i)}, nil
		}
	}
	return nil, fmt.Errorf("unknown state tag %q", tag)
}

// InputActive reports whether the state expects free-text input.
func InputActive(s State) bool {
	switch s := s.(type) {
	case Onboarding:
		return s.Step == OnboardingAskName || s.Step == OnboardingAskTaxID
	case Lookup:
		return s.Kind == LookupFaq
	case SafetyOverride, SecureVaultQuery:
		return true
	default:
		return false
	}
}

// AllStates lists every state, in declaration order.
func AllStates() []State {
	states := []State{Idle{}}
	for i := range onboardingTags {
		states = append(states, Onboarding{Step: OnboardingStep(i)})
	}
	for i := range filingTags {
		states = append(states, DocumentFiling{Step: FilingStep(i)})
	}
	for i := range meetingTags {
		states = append(states, MeetingScheduling{Step: MeetingStep(i)})
	}
	for i := range lookupTags {
		states = append(states, Lookup{Kind: LookupKind(i)})
	}
	return append(states, SecureVaultQuery{}, SuggestConsultation{}, GeneralQuery{}, SafetyOverride{})
}
