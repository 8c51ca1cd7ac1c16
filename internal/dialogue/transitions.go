package dialogue

import (
	"fmt"
	"strings"

	"github.com/ashureev/deskmate/internal/domain"
)

// Scripted lines referenced by the host and by tests.
const (
	FallbackText       = "Please use the buttons below or type Start Over."
	MenuText           = "What can I help you with? Pick an option below."
	FilingGreetingText = "I can help file that. What is this document related to?"
	GuidelinesText     = "Before you pick a case, have you checked the document guidelines? Files should be clear PDFs or images under 10 MB."
	NoCasesText        = "You don't have any active cases right now. Is this document related to something else?"
	ChooseCaseText     = "Which case is this document for?"
	ChooseCategoryText = "Which category fits this document best?"
	NoCategoriesText   = "There are no document categories set up yet, so I'll file it as general."
	UploadOpeningText  = "Opening the uploader now. Pick your file when you're ready."
	UploadPendingText  = "Your upload window is still open. I'll confirm here once the file is in."
	SuggestText        = "Would you like to book a consultation to go over it with your advisor?"
	OverrideNoteText   = "Thanks, I've added that to the notes for your advisor."
)

// DefaultEntityTypes are the business entity types offered during onboarding.
var DefaultEntityTypes = []string{"LLC", "LLP", "S-Corp", "C-Corp", "Sole Proprietorship", "Partnership"}

// DefaultMeetingTypes are the meeting types offered when scheduling.
var DefaultMeetingTypes = []string{"Consultation", "Document Review", "Tax Planning"}

// Latency is the thinking delay class applied before a step's messages.
type Latency int

const (
	LatencyConversational Latency = iota
	LatencyProcessing
	LatencyPassive
)

func (l Latency) String() string {
	switch l {
	case LatencyProcessing:
		return "processing"
	case LatencyPassive:
		return "passive"
	default:
		return "conversational"
	}
}

// Step is the outcome of a transition lookup. A nil Next leaves the state
// unchanged. Ignore marks the event as a no-op: nothing is logged or emitted.
type Step struct {
	Next    State
	Say     []Content
	Latency Latency
	Effects []Effect
	Merge   SessionData
	Ignore  bool
}

// Table holds the transition rules. All methods are pure: identical inputs
// always produce identical steps.
type Table struct {
	CalendarURL  string
	CalendarSlot string
	EntityTypes  []string
	MeetingTypes []string
}

// DefaultTable returns a table with the default option lists.
func DefaultTable() *Table {
	return &Table{
		CalendarURL:  "https://calendly.com/",
		CalendarSlot: "Calendly",
		EntityTypes:  DefaultEntityTypes,
		MeetingTypes: DefaultMeetingTypes,
	}
}

func fallback() Step {
	return Step{Say: []Content{Say(FallbackText)}}
}

func ignore() Step {
	return Step{Ignore: true}
}

type route struct {
	target   State
	buttons  []string
	keywords []string
}

// Order matters for free text: the first route whose keyword matches wins.
var menuRoutes = []route{
	{DocumentFiling{Step: FilingGreeting}, []string{"upload document", "upload a document", "file a document"}, []string{"upload", "file a document"}},
	{MeetingScheduling{Step: MeetingGreeting}, []string{"schedule meeting", "book a meeting", "book consultation"}, []string{"meeting", "schedule", "book"}},
	{Lookup{Kind: LookupPaymentHistory}, []string{"payment history", "payments"}, []string{"payment", "invoice", "billing"}},
	{Lookup{Kind: LookupPendingTasks}, []string{"pending tasks", "my tasks"}, []string{"task", "to do", "todo"}},
	{Lookup{Kind: LookupCaseStatus}, []string{"case status", "check case status"}, []string{"status"}},
	{Lookup{Kind: LookupFaq}, []string{"faq", "ask a question"}, []string{"faq", "question"}},
	{SecureVaultQuery{}, []string{"secure vault", "ask the vault"}, []string{"vault"}},
	{Onboarding{Step: OnboardingGreeting}, []string{"update profile", "complete profile", "onboarding"}, []string{"profile", "onboard"}},
}

var resetTriggers = []string{"start over", "main menu", "menu", "restart"}

// menuRoute matches an event against the main menu.
func menuRoute(ev Event) (State, bool) {
	switch ev := ev.(type) {
	case Button:
		trig := NormalizeTrigger(ev.Trigger)
		for _, r := range menuRoutes {
			for _, b := range r.buttons {
				if trig == b {
					return r.target, true
				}
			}
		}
	case Text:
		text := NormalizeTrigger(ev.Body)
		for _, r := range menuRoutes {
			for _, b := range r.buttons {
				if text == b {
					return r.target, true
				}
			}
		}
		for _, r := range menuRoutes {
			for _, k := range r.keywords {
				if strings.Contains(text, k) {
					return r.target, true
				}
			}
		}
	}
	return nil, false
}

func isReset(ev Event) bool {
	var s string
	switch ev := ev.(type) {
	case Button:
		s = NormalizeTrigger(ev.Trigger)
	case Text:
		s = NormalizeTrigger(ev.Body)
	default:
		return false
	}
	for _, t := range resetTriggers {
		if s == t {
			return true
		}
	}
	return false
}

// choice returns the discrete value carried by an event: a button's value
// (or its trigger when it has none), or the trimmed text.
func choice(ev Event) string {
	switch ev := ev.(type) {
	case Button:
		if v := strings.TrimSpace(ev.Value); v != "" {
			return v
		}
		return strings.TrimSpace(ev.Trigger)
	case Text:
		return strings.TrimSpace(ev.Body)
	}
	return ""
}

func matchOption(options []string, v string) (string, bool) {
	for _, o := range options {
		if strings.EqualFold(o, v) || NormalizeTrigger(o) == NormalizeTrigger(v) {
			return o, true
		}
	}
	return "", false
}

func matchItem(items []Item, v string) (Item, bool) {
	for _, it := range items {
		if it.ID == v || strings.EqualFold(it.Label, v) {
			return it, true
		}
	}
	return Item{}, false
}

func choices(title string, options []string) Content {
	items := make([]Item, 0, len(options))
	for _, o := range options {
		items = append(items, Item{ID: o, Label: o})
	}
	return Content{Text: title, Block: &Block{Kind: BlockChoices, Items: items}}
}

// Override is the step taken when the interceptor flags the text. The
// transition table proper is not consulted.
func (t *Table) Override(text string) Step {
	return Step{
		Next:    SafetyOverride{},
		Say:     []Content{Say(Disclaimer)},
		Latency: LatencyProcessing,
		Effects: []Effect{{
			Kind:        EffectRecordActivity,
			Description: text,
			Priority:    domain.PriorityHigh,
			Audience:    domain.AudienceAdvisor,
		}},
	}
}

// Transition maps (state, event) to the next step.
func (t *Table) Transition(s State, ev Event, data SessionData) Step {
	if _, ok := ev.(UploadComplete); ok {
		if s == (DocumentFiling{Step: FilingUploading}) {
			return Step{Next: DocumentFiling{Step: FilingComplete}}
		}
		return ignore()
	}
	if st, ok := ev.(Start); ok {
		if s != (Idle{}) {
			return ignore()
		}
		if NormalizeTrigger(st.Flow) == "onboarding" {
			return Step{Next: Onboarding{Step: OnboardingGreeting}}
		}
		return Step{Next: GeneralQuery{}, Say: []Content{welcome(data)}}
	}

	if s == (Onboarding{Step: OnboardingProcessing}) {
		return ignore()
	}
	if isReset(ev) {
		return Step{Next: GeneralQuery{}, Say: []Content{Say(MenuText)}}
	}

	switch s := s.(type) {
	case Idle, GeneralQuery:
		return t.fromMenu(ev)
	case Onboarding:
		return t.onboarding(s, ev)
	case DocumentFiling:
		return t.filing(s, ev, data)
	case MeetingScheduling:
		return t.meeting(s, ev, data)
	case Lookup:
		if _, ok := ev.(Text); ok && s.Kind == LookupFaq {
			return Step{
				Latency: LatencyProcessing,
				Effects: []Effect{{Kind: EffectLookupKnowledge, Query: choice(ev)}},
			}
		}
		return t.fromMenu(ev)
	case SecureVaultQuery:
		if _, ok := ev.(Text); ok {
			return Step{
				Latency: LatencyProcessing,
				Effects: []Effect{{Kind: EffectAskVault, Query: choice(ev)}},
			}
		}
		return t.fromMenu(ev)
	case SuggestConsultation:
		switch v := NormalizeTrigger(choice(ev)); {
		case v == "yes" || strings.HasPrefix(v, "yes "):
			return Step{Next: MeetingScheduling{Step: MeetingGreeting}}
		case v == "no" || strings.HasPrefix(v, "no ") || v == "not now":
			return Step{Next: GeneralQuery{}, Say: []Content{Say("No problem. Is there anything else I can help with?")}}
		}
		return t.fromMenu(ev)
	case SafetyOverride:
		if _, ok := ev.(Text); ok {
			return Step{
				Say: []Content{Say(OverrideNoteText)},
				Effects: []Effect{{
					Kind:        EffectRecordActivity,
					Description: "Follow-up after advice request: " + choice(ev),
					Priority:    domain.PriorityNormal,
					Audience:    domain.AudienceAdvisor,
				}},
			}
		}
		return t.fromMenu(ev)
	}
	return fallback()
}

func welcome(data SessionData) Content {
	if name := data.String(KeyDisplayName); name != "" {
		return Say(fmt.Sprintf("Hi %s! %s", name, MenuText))
	}
	return Say("Hi there! " + MenuText)
}

func (t *Table) fromMenu(ev Event) Step {
	if target, ok := menuRoute(ev); ok {
		return Step{Next: target}
	}
	return fallback()
}

func (t *Table) onboarding(s Onboarding, ev Event) Step {
	switch s.Step {
	case OnboardingAskName:
		if _, ok := ev.(Text); !ok {
			return fallback()
		}
		return Step{
			Next:  Onboarding{Step: OnboardingAskTaxID},
			Merge: SessionData{KeyBusinessName: choice(ev)},
		}
	case OnboardingAskTaxID:
		if _, ok := ev.(Text); !ok {
			return fallback()
		}
		tin, ok := normalizeTaxID(choice(ev))
		if !ok {
			return Step{Say: []Content{Say("That doesn't look like a valid 9-digit tax ID. Please try again.")}}
		}
		return Step{
			Next:  Onboarding{Step: OnboardingAskEntityType},
			Merge: SessionData{KeyTaxID: tin},
		}
	case OnboardingAskEntityType:
		v, ok := matchOption(t.EntityTypes, choice(ev))
		if !ok {
			return fallback()
		}
		return Step{
			Next:  Onboarding{Step: OnboardingProcessing},
			Merge: SessionData{KeyEntityType: v},
		}
	case OnboardingComplete:
		return t.fromMenu(ev)
	}
	return fallback()
}

// normalizeTaxID accepts nine digits with optional dashes or spaces and
// formats them as XX-XXXXXXX.
func normalizeTaxID(raw string) (string, bool) {
	var digits []rune
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, r)
		case r == '-' || r == ' ':
		default:
			return "", false
		}
	}
	if len(digits) != 9 {
		return "", false
	}
	return string(digits[:2]) + "-" + string(digits[2:]), true
}

func (t *Table) filing(s DocumentFiling, ev Event, data SessionData) Step {
	switch s.Step {
	case FilingAskRelation:
		v := NormalizeTrigger(choice(ev))
		switch {
		case strings.Contains(v, "case"):
			return Step{
				Next:  DocumentFiling{Step: FilingSelectCase},
				Say:   []Content{Say(GuidelinesText)},
				Merge: SessionData{KeyRelation: "case"},
			}
		case strings.Contains(v, "general") || strings.Contains(v, "other"):
			return Step{
				Next: DocumentFiling{Step: FilingSelectCategory},
				Merge: SessionData{
					KeyRelation: "general",
					KeyCaseID:   "",
					KeyCaseName: "",
				},
			}
		}
	case FilingSelectCase:
		opts := data.Options(KeyCaseOptions)
		if len(opts) == 0 {
			return fallback()
		}
		it, ok := matchItem(opts, choice(ev))
		if !ok {
			return Step{Say: []Content{Say("I couldn't find that case. Please pick one from the list.")}}
		}
		return Step{
			Next:  DocumentFiling{Step: FilingSelectCategory},
			Merge: SessionData{KeyCaseID: it.ID, KeyCaseName: it.Label},
		}
	case FilingSelectCategory:
		opts := data.Options(KeyCategoryOptions)
		if len(opts) == 0 {
			return fallback()
		}
		it, ok := matchItem(opts, choice(ev))
		if !ok {
			return Step{Say: []Content{Say("I couldn't find that category. Please pick one from the list.")}}
		}
		return Step{
			Next:  DocumentFiling{Step: FilingUploadPrompt},
			Merge: SessionData{KeyCategoryID: it.ID, KeyCategoryName: it.Label},
		}
	case FilingUploading:
		return Step{Say: []Content{Say(UploadPendingText)}}
	}
	return fallback()
}

func (t *Table) meeting(s MeetingScheduling, ev Event, data SessionData) Step {
	switch s.Step {
	case MeetingAskType:
		v, ok := matchOption(t.MeetingTypes, choice(ev))
		if !ok {
			return fallback()
		}
		return Step{
			Next:  MeetingScheduling{Step: MeetingOpenExternalCalendar},
			Merge: SessionData{KeyMeetingType: v},
		}
	case MeetingOpenExternalCalendar:
		if NormalizeTrigger(choice(ev)) != "open calendar" {
			return t.fromMenu(ev)
		}
		meetingType := data.String(KeyMeetingType)
		return Step{
			Next: MeetingScheduling{Step: MeetingComplete},
			Say:  []Content{Say("Your calendar is open. Pick a time that suits you and your advisor will be notified.")},
			Effects: []Effect{
				{Kind: EffectOpenCalendar, URL: t.CalendarURL},
				{
					Kind:        EffectRecordActivity,
					Description: fmt.Sprintf("Opened the scheduling calendar for a %s meeting", meetingType),
					Priority:    domain.PriorityNormal,
					Audience:    domain.AudienceClient,
				},
				{Kind: EffectNotifyConsultation, MeetingType: meetingType, Slot: t.CalendarSlot},
			},
		}
	case MeetingComplete:
		return t.fromMenu(ev)
	}
	return fallback()
}

// Enter returns the entry step of a state: its scripted remark, the effects
// it starts and, for states that only exist to say something, the state it
// advances to.
func (t *Table) Enter(s State, data SessionData) Step {
	switch s := s.(type) {
	case Onboarding:
		switch s.Step {
		case OnboardingGreeting:
			return Step{
				Next: Onboarding{Step: OnboardingAskName},
				Say:  []Content{Say("Let's set up your business profile. It only takes a minute.")},
			}
		case OnboardingAskName:
			return Step{Say: []Content{Say("What's the legal name of your business?")}}
		case OnboardingAskTaxID:
			name := data.String(KeyBusinessName)
			return Step{Say: []Content{Say(fmt.Sprintf("Thanks! What's the tax ID (EIN) for %s?", name))}}
		case OnboardingAskEntityType:
			return Step{Say: []Content{choices("What type of entity is it?", t.EntityTypes)}}
		case OnboardingProcessing:
			return Step{
				Latency: LatencyProcessing,
				Effects: []Effect{{
					Kind: EffectUpdateProfile,
					Fields: domain.ProfileFields{
						BusinessName: data.String(KeyBusinessName),
						TaxID:        data.String(KeyTaxID),
						EntityType:   data.String(KeyEntityType),
					},
				}},
			}
		}
	case DocumentFiling:
		switch s.Step {
		case FilingGreeting:
			return Step{
				Next: DocumentFiling{Step: FilingAskRelation},
				Say:  []Content{Say(FilingGreetingText)},
			}
		case FilingSelectCase:
			// Options from an earlier filing must not be pickable while the
			// list reloads.
			return Step{
				Merge:   SessionData{KeyCaseOptions: nil},
				Effects: []Effect{{Kind: EffectLoadCases}},
			}
		case FilingSelectCategory:
			return Step{
				Merge:   SessionData{KeyCategoryOptions: nil},
				Effects: []Effect{{Kind: EffectLoadCategories}},
			}
		case FilingUploadPrompt:
			return Step{
				Next: DocumentFiling{Step: FilingUploading},
				Say:  []Content{Say(UploadOpeningText)},
				Effects: []Effect{{
					Kind:       EffectOpenUpload,
					CaseID:     data.String(KeyCaseID),
					CategoryID: data.String(KeyCategoryID),
				}},
			}
		case FilingUploading:
			return Step{Latency: LatencyPassive}
		case FilingComplete:
			return Step{
				Next: SuggestConsultation{},
				Say:  []Content{Say(filedText(data))},
			}
		}
	case MeetingScheduling:
		switch s.Step {
		case MeetingGreeting:
			return Step{
				Next: MeetingScheduling{Step: MeetingAskType},
				Say:  []Content{Say("Happy to set up a meeting with your advisor.")},
			}
		case MeetingAskType:
			return Step{Say: []Content{choices("What kind of meeting do you need?", t.MeetingTypes)}}
		case MeetingOpenExternalCalendar:
			return Step{Say: []Content{Say("Tap Open Calendar to pick a time that works for you.")}}
		}
	case Lookup:
		switch s.Kind {
		case LookupCaseStatus:
			return Step{Latency: LatencyProcessing, Effects: []Effect{{Kind: EffectLoadCaseStatus}}}
		case LookupPendingTasks:
			return Step{Latency: LatencyProcessing, Effects: []Effect{{Kind: EffectLoadPendingTasks}}}
		case LookupPaymentHistory:
			return Step{Latency: LatencyProcessing, Effects: []Effect{{Kind: EffectLoadPayments}}}
		case LookupFaq:
			return Step{Say: []Content{Say("Sure, what's your question?")}}
		}
	case SecureVaultQuery:
		return Step{Say: []Content{Say("Ask me anything about the records in your secure vault.")}}
	case SuggestConsultation:
		return Step{Say: []Content{Say(SuggestText)}}
	}
	return Step{}
}

func filedText(data SessionData) string {
	caseName := data.String(KeyCaseName)
	categoryName := data.String(KeyCategoryName)
	switch {
	case caseName != "" && categoryName != "":
		return fmt.Sprintf("Done! Your document has been filed under %s (%s).", caseName, categoryName)
	case caseName != "":
		return fmt.Sprintf("Done! Your document has been filed under %s.", caseName)
	case categoryName != "":
		return fmt.Sprintf("Done! Your document has been filed under %s.", categoryName)
	default:
		return "Done! Your document has been filed."
	}
}

func apology(doing string, err error) Content {
	return Say(fmt.Sprintf("Sorry, I couldn't %s: %s. Let's head back to the main menu.", doing, err))
}

// Resolve applies the outcome of an awaited effect issued by state s.
func (t *Table) Resolve(s State, out Outcome, data SessionData) Step {
	switch s := s.(type) {
	case Onboarding:
		if s.Step != OnboardingProcessing || out.Effect.Kind != EffectUpdateProfile {
			break
		}
		if out.Err != nil {
			return Step{Next: GeneralQuery{}, Say: []Content{apology("save your profile", out.Err)}}
		}
		name := data.String(KeyBusinessName)
		return Step{
			Next:    Onboarding{Step: OnboardingComplete},
			Say:     []Content{Say(fmt.Sprintf("All set! The business profile for %s has been saved.", name))},
			Latency: LatencyProcessing,
			Effects: []Effect{
				{
					Kind:        EffectRecordActivity,
					Description: "Business profile completed",
					Priority:    domain.PriorityNormal,
					Audience:    domain.AudienceClient,
				},
				{
					Kind: EffectRecordActivity,
					Description: fmt.Sprintf("Client finished onboarding: %s (%s), please review the profile",
						name, data.String(KeyEntityType)),
					Priority: domain.PriorityNormal,
					Audience: domain.AudienceAdvisor,
				},
				{Kind: EffectRefetchProfile},
			},
		}
	case DocumentFiling:
		return t.resolveFiling(s, out)
	case MeetingScheduling:
		if out.Effect.Kind == EffectOpenCalendar && out.Err != nil {
			return Step{Say: []Content{Say(fmt.Sprintf("I couldn't open the calendar here. You can book directly at %s.", out.Effect.URL))}}
		}
	case Lookup:
		return t.resolveLookup(s, out)
	case SecureVaultQuery:
		if out.Effect.Kind != EffectAskVault {
			break
		}
		if out.Err != nil {
			return Step{Next: GeneralQuery{}, Say: []Content{apology("reach the secure vault", out.Err)}}
		}
		return Step{Say: []Content{Say(out.Answer)}, Latency: LatencyProcessing}
	}
	return Step{}
}

func (t *Table) resolveFiling(s DocumentFiling, out Outcome) Step {
	switch {
	case s.Step == FilingSelectCase && out.Effect.Kind == EffectLoadCases:
		if out.Err != nil {
			return Step{Next: GeneralQuery{}, Say: []Content{apology("load your cases", out.Err)}}
		}
		if len(out.Cases) == 0 {
			return Step{Next: DocumentFiling{Step: FilingAskRelation}, Say: []Content{Say(NoCasesText)}}
		}
		items := make([]Item, 0, len(out.Cases))
		for _, c := range out.Cases {
			items = append(items, Item{ID: c.ID, Label: c.Title, Detail: c.Status})
		}
		return Step{
			Say:   []Content{{Text: ChooseCaseText, Block: &Block{Kind: BlockChoices, Items: items}}},
			Merge: SessionData{KeyCaseOptions: items},
		}
	case s.Step == FilingSelectCategory && out.Effect.Kind == EffectLoadCategories:
		if out.Err != nil {
			return Step{Next: GeneralQuery{}, Say: []Content{apology("load the document categories", out.Err)}}
		}
		if len(out.Categories) == 0 {
			return Step{
				Next:  DocumentFiling{Step: FilingUploadPrompt},
				Say:   []Content{Say(NoCategoriesText)},
				Merge: SessionData{KeyCategoryID: "", KeyCategoryName: ""},
			}
		}
		items := make([]Item, 0, len(out.Categories))
		for _, c := range out.Categories {
			items = append(items, Item{ID: c.ID, Label: c.Name})
		}
		return Step{
			Say:   []Content{{Text: ChooseCategoryText, Block: &Block{Kind: BlockChoices, Items: items}}},
			Merge: SessionData{KeyCategoryOptions: items},
		}
	case s.Step == FilingUploading && out.Effect.Kind == EffectOpenUpload:
		if out.Err != nil {
			return Step{Next: GeneralQuery{}, Say: []Content{apology("open the uploader", out.Err)}}
		}
	}
	return Step{}
}

func (t *Table) resolveLookup(s Lookup, out Outcome) Step {
	if out.Err != nil {
		return Step{Next: GeneralQuery{}, Say: []Content{apology("look that up", out.Err)}}
	}
	list := func(title string, items []Item) Step {
		return Step{
			Next:    GeneralQuery{},
			Latency: LatencyProcessing,
			Say:     []Content{{Text: title, Block: &Block{Kind: BlockList, Items: items}}},
		}
	}
	empty := func(text string) Step {
		return Step{Next: GeneralQuery{}, Latency: LatencyProcessing, Say: []Content{Say(text)}}
	}

	switch {
	case s.Kind == LookupCaseStatus && out.Effect.Kind == EffectLoadCaseStatus:
		if len(out.Cases) == 0 {
			return empty("You don't have any active cases right now.")
		}
		items := make([]Item, 0, len(out.Cases))
		for _, c := range out.Cases {
			items = append(items, Item{ID: c.ID, Label: c.Title, Detail: c.Status})
		}
		return list("Here's where your cases stand:", items)
	case s.Kind == LookupPendingTasks && out.Effect.Kind == EffectLoadPendingTasks:
		if len(out.Tasks) == 0 {
			return empty("You're all caught up, there are no pending tasks.")
		}
		items := make([]Item, 0, len(out.Tasks))
		for _, task := range out.Tasks {
			it := Item{ID: task.ID, Label: task.Title}
			if task.DueAt != nil {
				it.Detail = "due " + task.DueAt.Format("Jan 2, 2006")
			}
			items = append(items, it)
		}
		return list("Here's what still needs your attention:", items)
	case s.Kind == LookupPaymentHistory && out.Effect.Kind == EffectLoadPayments:
		if len(out.Payments) == 0 {
			return empty("There are no payments on record yet.")
		}
		items := make([]Item, 0, len(out.Payments))
		for _, p := range out.Payments {
			items = append(items, Item{
				ID:     p.ID,
				Label:  fmt.Sprintf("%s %s", p.Amount(), p.Description),
				Detail: p.PaidAt.Format("Jan 2, 2006"),
			})
		}
		return list("Here are your recent payments:", items)
	case s.Kind == LookupFaq && out.Effect.Kind == EffectLookupKnowledge:
		if !out.Found {
			return Step{Say: []Content{Say("I couldn't find an answer to that. Try rephrasing, or book a consultation and your advisor can help.")}}
		}
		return Step{Say: []Content{Say(out.Answer)}, Latency: LatencyProcessing}
	}
	return Step{}
}
