package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/deskmate/internal/domain"
)

func TestTransitionTable(t *testing.T) {
	t.Parallel()
	table := DefaultTable()
	cases := SessionData{KeyCaseOptions: []Item{{ID: "c1", Label: "Audit"}}}

	tests := []struct {
		name     string
		state    State
		event    Event
		data     SessionData
		wantNext State
		wantSay  string
		ignored  bool
	}{
		{name: "start lands on menu", state: Idle{}, event: Start{}, wantNext: GeneralQuery{}, wantSay: "Hi there! " + MenuText},
		{name: "start onboarding", state: Idle{}, event: Start{Flow: "onboarding"}, wantNext: Onboarding{Step: OnboardingGreeting}},
		{name: "second start ignored", state: GeneralQuery{}, event: Start{}, ignored: true},
		{name: "upload button", state: GeneralQuery{}, event: Button{Trigger: "📄 Upload Document"}, wantNext: DocumentFiling{Step: FilingGreeting}},
		{name: "meeting keyword", state: GeneralQuery{}, event: Text{Body: "I need to book a call"}, wantNext: MeetingScheduling{Step: MeetingGreeting}},
		{name: "payment before status", state: GeneralQuery{}, event: Text{Body: "payment status"}, wantNext: Lookup{Kind: LookupPaymentHistory}},
		{name: "unknown text", state: GeneralQuery{}, event: Text{Body: "banana"}, wantSay: FallbackText},
		{name: "reset from filing", state: DocumentFiling{Step: FilingSelectCase}, event: Text{Body: "Start over"}, wantNext: GeneralQuery{}, wantSay: MenuText},
		{name: "name collected", state: Onboarding{Step: OnboardingAskName}, event: Text{Body: "Acme"}, wantNext: Onboarding{Step: OnboardingAskTaxID}},
		{name: "button while asking name", state: Onboarding{Step: OnboardingAskName}, event: Button{Trigger: "LLC"}, wantSay: FallbackText},
		{name: "bad tax id", state: Onboarding{Step: OnboardingAskTaxID}, event: Text{Body: "12345"}, wantSay: "That doesn't look like a valid 9-digit tax ID. Please try again."},
		{name: "good tax id", state: Onboarding{Step: OnboardingAskTaxID}, event: Text{Body: "123456789"}, wantNext: Onboarding{Step: OnboardingAskEntityType}},
		{name: "entity type", state: Onboarding{Step: OnboardingAskEntityType}, event: Button{Trigger: "entity type", Value: "llp"}, wantNext: Onboarding{Step: OnboardingProcessing}},
		{name: "unknown entity type", state: Onboarding{Step: OnboardingAskEntityType}, event: Button{Trigger: "entity type", Value: "Trust"}, wantSay: FallbackText},
		{name: "processing ignores buttons", state: Onboarding{Step: OnboardingProcessing}, event: Button{Trigger: "entity type", Value: "LLP"}, ignored: true},
		{name: "processing ignores reset", state: Onboarding{Step: OnboardingProcessing}, event: Button{Trigger: "Start Over"}, ignored: true},
		{name: "relation case", state: DocumentFiling{Step: FilingAskRelation}, event: Button{Trigger: "relation", Value: "case"}, wantNext: DocumentFiling{Step: FilingSelectCase}, wantSay: GuidelinesText},
		{name: "relation general", state: DocumentFiling{Step: FilingAskRelation}, event: Button{Trigger: "relation", Value: "general"}, wantNext: DocumentFiling{Step: FilingSelectCategory}},
		{name: "case picked", state: DocumentFiling{Step: FilingSelectCase}, event: Button{Trigger: "case", Value: "c1"}, data: cases, wantNext: DocumentFiling{Step: FilingSelectCategory}},
		{name: "case unknown", state: DocumentFiling{Step: FilingSelectCase}, event: Button{Trigger: "case", Value: "c9"}, data: cases, wantSay: "I couldn't find that case. Please pick one from the list."},
		{name: "case before list loaded", state: DocumentFiling{Step: FilingSelectCase}, event: Button{Trigger: "case", Value: "c1"}, wantSay: FallbackText},
		{name: "upload complete", state: DocumentFiling{Step: FilingUploading}, event: UploadComplete{}, wantNext: DocumentFiling{Step: FilingComplete}},
		{name: "upload complete elsewhere", state: GeneralQuery{}, event: UploadComplete{}, ignored: true},
		{name: "text while uploading", state: DocumentFiling{Step: FilingUploading}, event: Text{Body: "done?"}, wantSay: UploadPendingText},
		{name: "accept consultation", state: SuggestConsultation{}, event: Button{Trigger: "suggest consultation", Value: "yes"}, wantNext: MeetingScheduling{Step: MeetingGreeting}},
		{name: "decline consultation", state: SuggestConsultation{}, event: Text{Body: "no thanks"}, wantNext: GeneralQuery{}, wantSay: "No problem. Is there anything else I can help with?"},
		{name: "meeting type", state: MeetingScheduling{Step: MeetingAskType}, event: Button{Trigger: "meeting type", Value: "Tax Planning"}, wantNext: MeetingScheduling{Step: MeetingOpenExternalCalendar}},
		{name: "override follow-up", state: SafetyOverride{}, event: Text{Body: "ok"}, wantSay: OverrideNoteText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			step := table.Transition(tt.state, tt.event, tt.data)
			if tt.ignored {
				assert.True(t, step.Ignore)
				return
			}
			assert.False(t, step.Ignore)
			assert.Equal(t, tt.wantNext, step.Next)
			if tt.wantSay == "" {
				assert.Empty(t, step.Say)
				return
			}
			require.Len(t, step.Say, 1)
			assert.Equal(t, tt.wantSay, step.Say[0].Text)
		})
	}
}

func TestTransitionIsDeterministic(t *testing.T) {
	t.Parallel()
	table := DefaultTable()
	data := SessionData{KeyBusinessName: "Acme", KeyMeetingType: "Consultation"}
	events := []Event{
		Start{}, Text{Body: "upload"}, Text{Body: "123-45-6789"}, Button{Trigger: "Open Calendar"},
		Button{Trigger: "relation", Value: "case"}, UploadComplete{},
	}
	for _, s := range AllStates() {
		for _, ev := range events {
			assert.Equal(t, table.Transition(s, ev, data), table.Transition(s, ev, data), "%s %#v", s.Tag(), ev)
		}
		assert.Equal(t, table.Enter(s, data), table.Enter(s, data), s.Tag())
	}
}

func TestTransitionDoesNotMutateData(t *testing.T) {
	t.Parallel()
	data := SessionData{KeyBusinessName: "Acme"}
	step := DefaultTable().Transition(Onboarding{Step: OnboardingAskTaxID}, Text{Body: "98-7654321"}, data)

	assert.Equal(t, SessionData{KeyBusinessName: "Acme"}, data)
	assert.Equal(t, SessionData{KeyTaxID: "98-7654321"}, step.Merge)
}

func TestOverrideStep(t *testing.T) {
	t.Parallel()
	step := DefaultTable().Override("Is it legal to pay cash?")

	assert.Equal(t, SafetyOverride{}, step.Next)
	assert.Equal(t, LatencyProcessing, step.Latency)
	require.Len(t, step.Say, 1)
	assert.Equal(t, Disclaimer, step.Say[0].Text)
	require.Len(t, step.Effects, 1)
	assert.Equal(t, Effect{
		Kind:        EffectRecordActivity,
		Description: "Is it legal to pay cash?",
		Priority:    domain.PriorityHigh,
		Audience:    domain.AudienceAdvisor,
	}, step.Effects[0])
}

func TestEnterChains(t *testing.T) {
	t.Parallel()
	table := DefaultTable()

	assert.Equal(t, Onboarding{Step: OnboardingAskName}, table.Enter(Onboarding{Step: OnboardingGreeting}, nil).Next)
	assert.Equal(t, DocumentFiling{Step: FilingAskRelation}, table.Enter(DocumentFiling{Step: FilingGreeting}, nil).Next)
	assert.Equal(t, DocumentFiling{Step: FilingUploading}, table.Enter(DocumentFiling{Step: FilingUploadPrompt}, nil).Next)
	assert.Equal(t, SuggestConsultation{}, table.Enter(DocumentFiling{Step: FilingComplete}, nil).Next)
	assert.Equal(t, MeetingScheduling{Step: MeetingAskType}, table.Enter(MeetingScheduling{Step: MeetingGreeting}, nil).Next)

	processing := table.Enter(Onboarding{Step: OnboardingProcessing}, SessionData{
		KeyBusinessName: "Acme", KeyTaxID: "12-3456789", KeyEntityType: "LLC",
	})
	require.Len(t, processing.Effects, 1)
	assert.Equal(t, EffectUpdateProfile, processing.Effects[0].Kind)
	assert.Equal(t, domain.ProfileFields{BusinessName: "Acme", TaxID: "12-3456789", EntityType: "LLC"}, processing.Effects[0].Fields)
}

func TestResolveCases(t *testing.T) {
	t.Parallel()
	table := DefaultTable()
	selectCase := DocumentFiling{Step: FilingSelectCase}
	load := Effect{Kind: EffectLoadCases}

	empty := table.Resolve(selectCase, Outcome{Effect: load}, nil)
	assert.Equal(t, DocumentFiling{Step: FilingAskRelation}, empty.Next)

	listed := table.Resolve(selectCase, Outcome{Effect: load, Cases: []domain.Case{{ID: "c1", Title: "Audit", Status: "open"}}}, nil)
	assert.Nil(t, listed.Next)
	assert.Equal(t, []Item{{ID: "c1", Label: "Audit", Detail: "open"}}, listed.Merge.Options(KeyCaseOptions))

	failed := table.Resolve(selectCase, Outcome{Effect: load, Err: ErrGatewayUnavailable}, nil)
	assert.Equal(t, GeneralQuery{}, failed.Next)
	assert.Contains(t, failed.Say[0].Text, "gateway unavailable")

	other := table.Resolve(GeneralQuery{}, Outcome{Effect: load}, nil)
	assert.Equal(t, Step{}, other)
}

func TestNormalizeTaxID(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"123456789":   "12-3456789",
		"12-3456789":  "12-3456789",
		"123 45 6789": "12-3456789",
	} {
		got, ok := normalizeTaxID(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "12345678", "1234567890", "12a456789"} {
		_, ok := normalizeTaxID(in)
		assert.False(t, ok, in)
	}
}

func TestButtonsPerState(t *testing.T) {
	t.Parallel()
	table := DefaultTable()

	assert.Empty(t, table.Buttons(Idle{}, nil))
	assert.Empty(t, table.Buttons(Onboarding{Step: OnboardingProcessing}, nil))
	assert.Len(t, table.Buttons(GeneralQuery{}, nil), 7)
	assert.Len(t, table.Buttons(Onboarding{Step: OnboardingAskEntityType}, nil), len(DefaultEntityTypes)+1)

	cases := table.Buttons(DocumentFiling{Step: FilingSelectCase}, SessionData{
		KeyCaseOptions: []Item{{ID: "c1", Label: "Audit"}},
	})
	require.Len(t, cases, 2)
	assert.Equal(t, QuickReply{Label: "Audit", Trigger: "case", Value: "c1"}, cases[0])
}

func TestEnterSelectionClearsOldOptions(t *testing.T) {
	t.Parallel()
	table := DefaultTable()
	data := SessionData{
		KeyCaseOptions:     []Item{{ID: "c1", Label: "Audit"}},
		KeyCategoryOptions: []Item{{ID: "cat-1", Label: "Receipts"}},
	}

	enterCase := table.Enter(DocumentFiling{Step: FilingSelectCase}, data)
	assert.Empty(t, Merge(data, enterCase.Merge).Options(KeyCaseOptions))
	require.Len(t, enterCase.Effects, 1)
	assert.Equal(t, EffectLoadCases, enterCase.Effects[0].Kind)

	enterCategory := table.Enter(DocumentFiling{Step: FilingSelectCategory}, data)
	assert.Empty(t, Merge(data, enterCategory.Merge).Options(KeyCategoryOptions))
	require.Len(t, enterCategory.Effects, 1)
	assert.Equal(t, EffectLoadCategories, enterCategory.Effects[0].Kind)
}
