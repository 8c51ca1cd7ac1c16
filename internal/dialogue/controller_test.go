package dialogue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/deskmate/internal/domain"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func newTestController(t *testing.T, f *fakeGateways, opts ...Option) *Controller {
	t.Helper()
	base := []Option{
		WithDelays(Delays{}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	c := New("client-1", f.gateways(), append(base, opts...)...)
	t.Cleanup(func() {
		c.Close()
		c.Wait()
	})
	return c
}

func send(t *testing.T, c *Controller, ev Event) {
	t.Helper()
	require.NoError(t, c.Send(context.Background(), ev))
}

func assistantTexts(v View) []string {
	var out []string
	for _, m := range v.Messages {
		if m.Sender == SenderAssistant {
			out = append(out, m.Content.Text)
		}
	}
	return out
}

func countAssistant(v View) int {
	return len(assistantTexts(v))
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Snapshot().State == want }, waitFor, tick,
		"never reached %s", want.Tag())
}

func driveToEntityType(t *testing.T, c *Controller) {
	t.Helper()
	send(t, c, Start{Flow: "onboarding"})
	send(t, c, Text{Body: "Acme Holdings"})
	send(t, c, Text{Body: "12-3456789"})
	require.Equal(t, Onboarding{Step: OnboardingAskEntityType}, c.Snapshot().State)
}

func TestUploadButtonAutoAdvances(t *testing.T) {
	t.Parallel()
	c := newTestController(t, &fakeGateways{})
	send(t, c, Start{})
	before := countAssistant(c.Snapshot())

	send(t, c, Button{Trigger: "📄 Upload Document"})

	v := c.Snapshot()
	assert.Equal(t, DocumentFiling{Step: FilingAskRelation}, v.State)
	texts := assistantTexts(v)
	require.Len(t, texts, before+1)
	assert.Equal(t, FilingGreetingText, texts[len(texts)-1])
}

func TestOnboardingCompletesProfile(t *testing.T) {
	t.Parallel()
	f := &fakeGateways{}
	c := newTestController(t, f)
	driveToEntityType(t, c)

	send(t, c, Button{Trigger: "entity type", Value: "LLP"})
	waitState(t, c, Onboarding{Step: OnboardingComplete})

	require.Eventually(t, func() bool { return len(f.recorded()) == 2 }, waitFor, tick)
	assert.Equal(t, 1, f.profileCalls())

	f.mu.Lock()
	assert.Equal(t, domain.ProfileFields{BusinessName: "Acme Holdings", TaxID: "12-3456789", EntityType: "LLP"}, f.profiles[0])
	f.mu.Unlock()

	acts := f.recorded()
	audiences := []domain.Audience{acts[0].Audience, acts[1].Audience}
	assert.ElementsMatch(t, []domain.Audience{domain.AudienceClient, domain.AudienceAdvisor}, audiences)

	v := c.Snapshot()
	assert.Equal(t, "LLP", v.Data.String(KeyEntityType))
	assert.Contains(t, assistantTexts(v)[len(assistantTexts(v))-1], "Acme Holdings")
}

func TestOnboardingRejectsMalformedTaxID(t *testing.T) {
	t.Parallel()
	c := newTestController(t, &fakeGateways{})
	send(t, c, Start{Flow: "onboarding"})
	send(t, c, Text{Body: "Acme Holdings"})
	send(t, c, Text{Body: "1234"})

	v := c.Snapshot()
	assert.Equal(t, Onboarding{Step: OnboardingAskTaxID}, v.State)
	assert.Contains(t, assistantTexts(v)[len(assistantTexts(v))-1], "9-digit")
	assert.Empty(t, v.Data.String(KeyTaxID))
}

func TestOnboardingFailureReturnsToMenu(t *testing.T) {
	t.Parallel()
	f := &fakeGateways{profileErr: errors.New("db locked")}
	c := newTestController(t, f)
	driveToEntityType(t, c)

	send(t, c, Button{Trigger: "entity type", Value: "LLC"})
	waitState(t, c, GeneralQuery{})

	texts := assistantTexts(c.Snapshot())
	assert.Contains(t, texts[len(texts)-1], "db locked")
	assert.Empty(t, f.recorded())
}

func TestOverrideFromFreeTextState(t *testing.T) {
	t.Parallel()
	f := &fakeGateways{}
	m := &fakeMetrics{}
	c := newTestController(t, f, WithMetrics(m))
	send(t, c, Start{Flow: "onboarding"})
	send(t, c, Text{Body: "Acme Holdings"})

	const question = "Should I form an LLC or an S-corp?"
	send(t, c, Text{Body: question})

	v := c.Snapshot()
	assert.Equal(t, SafetyOverride{}, v.State)
	require.GreaterOrEqual(t, len(v.Messages), 2)
	user := v.Messages[len(v.Messages)-2]
	assert.Equal(t, SenderUser, user.Sender)
	assert.Equal(t, question, user.Content.Text)
	assert.Equal(t, Disclaimer, v.Messages[len(v.Messages)-1].Content.Text)
	assert.True(t, v.InputActive)

	require.Eventually(t, func() bool { return len(f.recorded()) == 1 }, waitFor, tick)
	act := f.recorded()[0]
	assert.Equal(t, question, act.Description)
	assert.Equal(t, domain.PriorityHigh, act.Priority)
	assert.Equal(t, 1, m.overrideCount())
}

func TestOverridePreemptsProcessing(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	f := &fakeGateways{casesGate: gate}
	c := newTestController(t, f)
	send(t, c, Start{})
	send(t, c, Button{Trigger: "case status"})
	require.True(t, c.Snapshot().Composing)

	send(t, c, Text{Body: "what do you think I should do?"})
	close(gate)

	assert.Equal(t, SafetyOverride{}, c.Snapshot().State)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, SafetyOverride{}, c.Snapshot().State)
}

func TestDuplicatePressDuringProcessingIgnored(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	f := &fakeGateways{profileGate: gate}
	c := newTestController(t, f)
	driveToEntityType(t, c)

	send(t, c, Button{Trigger: "entity type", Value: "LLP"})
	require.Equal(t, Onboarding{Step: OnboardingProcessing}, c.Snapshot().State)
	before := c.Snapshot()

	send(t, c, Button{Trigger: "entity type", Value: "LLP"})
	send(t, c, Text{Body: "hello?"})

	during := c.Snapshot()
	assert.Equal(t, before.State, during.State)
	assert.Len(t, during.Messages, len(before.Messages))
	assert.True(t, during.Composing)

	close(gate)
	waitState(t, c, Onboarding{Step: OnboardingComplete})
	require.Eventually(t, func() bool { return len(f.recorded()) == 2 }, waitFor, tick)
	assert.Equal(t, 1, f.profileCalls())
	assert.NotContains(t, assistantTexts(c.Snapshot()), FallbackText)
}

func TestEmptyCaseListReturnsToRelation(t *testing.T) {
	t.Parallel()
	c := newTestController(t, &fakeGateways{})
	send(t, c, Start{})
	send(t, c, Button{Trigger: "upload document"})
	send(t, c, Button{Trigger: "relation", Value: "case"})

	waitState(t, c, DocumentFiling{Step: FilingAskRelation})
	require.Eventually(t, func() bool {
		texts := assistantTexts(c.Snapshot())
		return texts[len(texts)-1] == NoCasesText
	}, waitFor, tick)
}

func TestFilingFlowToSuggestion(t *testing.T) {
	t.Parallel()
	f := &fakeGateways{
		cases:      []domain.Case{{ID: "case-7", Title: "2025 Tax Return", Status: "open"}},
		categories: []domain.Category{{ID: "cat-1", Name: "Receipts"}},
	}
	c := newTestController(t, f)
	send(t, c, Start{})
	send(t, c, Button{Trigger: "upload document"})
	send(t, c, Button{Trigger: "relation", Value: "case"})

	require.Eventually(t, func() bool {
		return len(c.Snapshot().Data.Options(KeyCaseOptions)) == 1
	}, waitFor, tick)
	send(t, c, Button{Trigger: "case", Value: "case-7", Label: "2025 Tax Return"})

	require.Eventually(t, func() bool {
		return len(c.Snapshot().Data.Options(KeyCategoryOptions)) == 1
	}, waitFor, tick)
	send(t, c, Button{Trigger: "category", Value: "cat-1", Label: "Receipts"})

	assert.Equal(t, DocumentFiling{Step: FilingUploading}, c.Snapshot().State)
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.uploads) == 1
	}, waitFor, tick)
	f.mu.Lock()
	assert.Equal(t, [2]string{"case-7", "cat-1"}, f.uploads[0])
	f.mu.Unlock()

	send(t, c, UploadComplete{})
	v := c.Snapshot()
	assert.Equal(t, SuggestConsultation{}, v.State)
	texts := assistantTexts(v)
	assert.Equal(t, "Done! Your document has been filed under 2025 Tax Return (Receipts).", texts[len(texts)-2])
	assert.Equal(t, SuggestText, texts[len(texts)-1])
}

func TestUploadCompleteOutsideUploadingIgnored(t *testing.T) {
	t.Parallel()
	c := newTestController(t, &fakeGateways{})
	send(t, c, Start{})
	before := c.Snapshot()

	send(t, c, UploadComplete{})

	after := c.Snapshot()
	assert.Equal(t, before.State, after.State)
	assert.Len(t, after.Messages, len(before.Messages))
}

func TestStaleResultDiscarded(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	f := &fakeGateways{
		casesGate: gate,
		cases:     []domain.Case{{ID: "c1", Title: "Audit", Status: "open"}},
	}
	m := &fakeMetrics{}
	c := newTestController(t, f, WithMetrics(m))
	send(t, c, Start{})
	send(t, c, Button{Trigger: "upload document"})
	send(t, c, Button{Trigger: "relation", Value: "case"})
	require.Equal(t, DocumentFiling{Step: FilingSelectCase}, c.Snapshot().State)

	send(t, c, Button{Trigger: "Start Over"})
	close(gate)

	require.Eventually(t, func() bool { return m.staleCount() == 1 }, waitFor, tick)
	v := c.Snapshot()
	assert.Equal(t, GeneralQuery{}, v.State)
	assert.NotContains(t, assistantTexts(v), ChooseCaseText)
	assert.Empty(t, v.Data.Options(KeyCaseOptions))
}

func TestReenterIsIdempotent(t *testing.T) {
	t.Parallel()
	c := newTestController(t, &fakeGateways{})
	send(t, c, Start{Flow: "onboarding"})
	before := len(c.Snapshot().Messages)

	require.NoError(t, c.Reenter(context.Background()))
	require.NoError(t, c.Reenter(context.Background()))

	assert.Len(t, c.Snapshot().Messages, before)
}

func TestEmptyTextIgnored(t *testing.T) {
	t.Parallel()
	c := newTestController(t, &fakeGateways{})
	send(t, c, Start{})
	before := c.Snapshot()

	send(t, c, Text{Body: "   \t"})

	after := c.Snapshot()
	assert.Equal(t, before.State, after.State)
	assert.Len(t, after.Messages, len(before.Messages))
}

func TestUnrecognizedInputFallsBack(t *testing.T) {
	t.Parallel()
	c := newTestController(t, &fakeGateways{})
	send(t, c, Start{})
	send(t, c, Text{Body: "banana"})

	v := c.Snapshot()
	assert.Equal(t, GeneralQuery{}, v.State)
	texts := assistantTexts(v)
	assert.Equal(t, FallbackText, texts[len(texts)-1])
}

func TestCalendarFailureIsLocalNotice(t *testing.T) {
	t.Parallel()
	f := &fakeGateways{calendarErr: errors.New("popup blocked")}
	c := newTestController(t, f)
	send(t, c, Start{})
	send(t, c, Button{Trigger: "schedule meeting"})
	send(t, c, Button{Trigger: "meeting type", Value: "Consultation"})
	send(t, c, Button{Trigger: "Open Calendar"})

	require.Eventually(t, func() bool {
		texts := assistantTexts(c.Snapshot())
		return len(texts) > 0 && texts[len(texts)-1] == "I couldn't open the calendar here. You can book directly at https://calendly.com/."
	}, waitFor, tick)
	assert.Equal(t, MeetingScheduling{Step: MeetingComplete}, c.Snapshot().State)
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.consults) == 1
	}, waitFor, tick)
}

func TestActivityFailureSwallowed(t *testing.T) {
	t.Parallel()
	f := &fakeGateways{activityErr: errors.New("insert failed")}
	c := newTestController(t, f)
	send(t, c, Start{})
	send(t, c, Text{Body: "can I deduct my car?"})
	send(t, c, Text{Body: "it is a company car"})

	v := c.Snapshot()
	assert.Equal(t, SafetyOverride{}, v.State)
	texts := assistantTexts(v)
	assert.Equal(t, OverrideNoteText, texts[len(texts)-1])
}

func TestFaqLookupStaysInFaq(t *testing.T) {
	t.Parallel()
	f := &fakeGateways{faq: map[string]string{"office hours": "We're open 9 to 5."}}
	c := newTestController(t, f)
	send(t, c, Start{})
	send(t, c, Button{Trigger: "❓ FAQ"})
	send(t, c, Text{Body: "office hours"})

	require.Eventually(t, func() bool {
		texts := assistantTexts(c.Snapshot())
		return texts[len(texts)-1] == "We're open 9 to 5."
	}, waitFor, tick)
	assert.Equal(t, Lookup{Kind: LookupFaq}, c.Snapshot().State)
}

func TestVaultFailureReturnsToMenu(t *testing.T) {
	t.Parallel()
	c := newTestController(t, &fakeGateways{})
	send(t, c, Start{})
	send(t, c, Button{Trigger: "secure vault"})
	send(t, c, Text{Body: "when did I sign the lease"})

	waitState(t, c, GeneralQuery{})
	texts := assistantTexts(c.Snapshot())
	assert.Contains(t, texts[len(texts)-1], "vault offline")
}

func TestPaymentHistoryListsAndReturns(t *testing.T) {
	t.Parallel()
	paid := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	f := &fakeGateways{payments: []domain.Payment{
		{ID: "p1", AmountCents: 12050, Currency: "USD", Description: "Retainer", PaidAt: paid},
	}}
	c := newTestController(t, f)
	send(t, c, Start{})
	send(t, c, Button{Trigger: "payment history"})

	waitState(t, c, GeneralQuery{})
	last := c.Snapshot().Messages[len(c.Snapshot().Messages)-1]
	require.NotNil(t, last.Content.Block)
	assert.Equal(t, BlockList, last.Content.Block.Kind)
	assert.Equal(t, "USD 120.50 Retainer", last.Content.Block.Items[0].Label)
}

func TestComposingDuringDelay(t *testing.T) {
	t.Parallel()
	c := newTestController(t, &fakeGateways{}, WithDelays(Delays{
		Processing:     60 * time.Millisecond,
		Conversational: 30 * time.Millisecond,
	}))
	send(t, c, Start{})

	v := c.Snapshot()
	assert.True(t, v.Composing)
	assert.Empty(t, v.Messages)

	require.Eventually(t, func() bool {
		v := c.Snapshot()
		return !v.Composing && len(v.Messages) == 1
	}, waitFor, tick)
}

func TestCloseCancelsPendingMessages(t *testing.T) {
	t.Parallel()
	c := New("client-1", Gateways{},
		WithDelays(Delays{Conversational: 30 * time.Millisecond}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	send(t, c, Start{})
	c.Close()
	c.Wait()

	time.Sleep(60 * time.Millisecond)
	v := c.Snapshot()
	assert.Empty(t, v.Messages)
	assert.False(t, v.Composing)
	assert.ErrorIs(t, c.Send(context.Background(), Text{Body: "hello"}), ErrClosed)
}

func TestListenerSeesMessages(t *testing.T) {
	t.Parallel()
	updates := make(chan Update, 32)
	c := newTestController(t, &fakeGateways{}, WithListener(func(u Update) {
		select {
		case updates <- u:
		default:
		}
	}))
	send(t, c, Start{})

	var kinds []UpdateKind
	for len(updates) > 0 {
		kinds = append(kinds, (<-updates).Kind)
	}
	assert.Contains(t, kinds, UpdateState)
	assert.Contains(t, kinds, UpdateMessage)
	assert.Contains(t, kinds, UpdateView)
}

func TestRefilingDropsOldCaseOptions(t *testing.T) {
	t.Parallel()
	f := &fakeGateways{cases: []domain.Case{{ID: "c1", Title: "Old Case", Status: "open"}}}
	c := newTestController(t, f)
	send(t, c, Start{})
	send(t, c, Button{Trigger: "upload document"})
	send(t, c, Button{Trigger: "relation", Value: "case"})
	require.Eventually(t, func() bool {
		return len(c.Snapshot().Data.Options(KeyCaseOptions)) == 1
	}, waitFor, tick)
	send(t, c, Button{Trigger: "Start Over"})

	gate := make(chan struct{})
	f.mu.Lock()
	f.cases = nil
	f.casesGate = gate
	f.mu.Unlock()

	send(t, c, Button{Trigger: "upload document"})
	send(t, c, Button{Trigger: "relation", Value: "case"})
	v := c.Snapshot()
	require.Equal(t, DocumentFiling{Step: FilingSelectCase}, v.State)
	assert.Empty(t, v.Data.Options(KeyCaseOptions))
	for _, b := range v.Buttons {
		assert.NotEqual(t, "case", b.Trigger, "old case offered while the list reloads")
	}

	send(t, c, Button{Trigger: "case", Value: "c1", Label: "Old Case"})
	assert.Equal(t, DocumentFiling{Step: FilingSelectCase}, c.Snapshot().State)

	close(gate)
	waitState(t, c, DocumentFiling{Step: FilingAskRelation})
	texts := assistantTexts(c.Snapshot())
	assert.Equal(t, NoCasesText, texts[len(texts)-1])
	assert.Empty(t, c.Snapshot().Data.String(KeyCaseID))
}

func TestComposingHeldUntilAwaitedCallReturns(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	f := &fakeGateways{
		casesGate: gate,
		cases:     []domain.Case{{ID: "c1", Title: "Audit", Status: "open"}},
	}
	c := newTestController(t, f, WithDelays(Delays{Processing: 50 * time.Millisecond, Conversational: 10 * time.Millisecond}))
	send(t, c, Start{})
	require.Eventually(t, func() bool { return countAssistant(c.Snapshot()) == 1 }, waitFor, tick)

	send(t, c, Button{Trigger: "case status"})
	require.True(t, c.Snapshot().Composing)

	send(t, c, Text{Body: "blah blah"})
	require.Eventually(t, func() bool {
		texts := assistantTexts(c.Snapshot())
		return texts[len(texts)-1] == FallbackText
	}, waitFor, tick)
	v := c.Snapshot()
	assert.Equal(t, Lookup{Kind: LookupCaseStatus}, v.State)
	assert.True(t, v.Composing, "composing dropped while the lookup was still out")

	close(gate)
	waitState(t, c, GeneralQuery{})
	require.Eventually(t, func() bool { return !c.Snapshot().Composing }, waitFor, tick)
	texts := assistantTexts(c.Snapshot())
	assert.Equal(t, "Here's where your cases stand:", texts[len(texts)-1])
}

func TestRepeatedOverrideInOneWindowSharesDisclaimer(t *testing.T) {
	t.Parallel()
	f := &fakeGateways{}
	c := newTestController(t, f, WithDelays(Delays{Processing: 200 * time.Millisecond}))
	send(t, c, Start{})
	send(t, c, Text{Body: "Should I form an LLC?"})
	send(t, c, Text{Body: "Should I form an S-corp?"})

	require.Eventually(t, func() bool { return !c.Snapshot().Composing }, waitFor, tick)
	msgs := c.Snapshot().Messages
	require.GreaterOrEqual(t, len(msgs), 3)
	tail := msgs[len(msgs)-3:]
	assert.Equal(t, SenderUser, tail[0].Sender)
	assert.Equal(t, SenderUser, tail[1].Sender)
	assert.Equal(t, Disclaimer, tail[2].Content.Text)
	assert.Len(t, assistantTextsMatching(msgs, Disclaimer), 1)
	require.Eventually(t, func() bool { return len(f.recorded()) == 2 }, waitFor, tick)
}

func assistantTextsMatching(msgs []Message, text string) []Message {
	var out []Message
	for _, m := range msgs {
		if m.Sender == SenderAssistant && m.Content.Text == text {
			out = append(out, m)
		}
	}
	return out
}

func TestOverrideFromEveryState(t *testing.T) {
	t.Parallel()
	for _, s := range AllStates() {
		t.Run(s.Tag(), func(t *testing.T) {
			t.Parallel()
			c := newTestController(t, &fakeGateways{})
			require.NoError(t, c.do(context.Background(), func() {
				c.state = s
				c.lastEntered = s
			}))

			send(t, c, Text{Body: "What do you think I should do about my taxes?"})

			v := c.Snapshot()
			assert.Equal(t, SafetyOverride{}, v.State)
			require.NotEmpty(t, v.Messages)
			assert.Equal(t, Disclaimer, v.Messages[len(v.Messages)-1].Content.Text)
		})
	}
}
