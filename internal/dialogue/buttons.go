package dialogue

// QuickReply is a button the host renders under the conversation.
type QuickReply struct {
	Label   string `json:"label"`
	Trigger string `json:"trigger"`
	Value   string `json:"value,omitempty"`
}

var startOver = QuickReply{Label: "Start Over", Trigger: "start over"}

var mainMenu = []QuickReply{
	{Label: "📄 Upload Document", Trigger: "upload document"},
	{Label: "📅 Schedule Meeting", Trigger: "schedule meeting"},
	{Label: "📋 Case Status", Trigger: "case status"},
	{Label: "✅ Pending Tasks", Trigger: "pending tasks"},
	{Label: "💳 Payment History", Trigger: "payment history"},
	{Label: "❓ FAQ", Trigger: "faq"},
	{Label: "🔒 Secure Vault", Trigger: "secure vault"},
}

func options(trigger string, values []string) []QuickReply {
	out := make([]QuickReply, 0, len(values)+1)
	for _, v := range values {
		out = append(out, QuickReply{Label: v, Trigger: trigger, Value: v})
	}
	return append(out, startOver)
}

func itemReplies(trigger string, items []Item) []QuickReply {
	out := make([]QuickReply, 0, len(items)+1)
	for _, it := range items {
		out = append(out, QuickReply{Label: it.Label, Trigger: trigger, Value: it.ID})
	}
	return append(out, startOver)
}

// Buttons returns the quick replies offered in state s.
func (t *Table) Buttons(s State, data SessionData) []QuickReply {
	switch s := s.(type) {
	case Idle:
		return nil
	case GeneralQuery:
		return append([]QuickReply(nil), mainMenu...)
	case Onboarding:
		switch s.Step {
		case OnboardingAskEntityType:
			return options("entity type", t.EntityTypes)
		case OnboardingProcessing:
			return nil
		case OnboardingComplete:
			return append([]QuickReply(nil), mainMenu...)
		}
	case DocumentFiling:
		switch s.Step {
		case FilingAskRelation:
			return []QuickReply{
				{Label: "A case", Trigger: "relation", Value: "case"},
				{Label: "Something general", Trigger: "relation", Value: "general"},
				startOver,
			}
		case FilingSelectCase:
			if items := data.Options(KeyCaseOptions); len(items) > 0 {
				return itemReplies("case", items)
			}
		case FilingSelectCategory:
			if items := data.Options(KeyCategoryOptions); len(items) > 0 {
				return itemReplies("category", items)
			}
		case FilingUploading:
			return nil
		}
	case MeetingScheduling:
		switch s.Step {
		case MeetingAskType:
			return options("meeting type", t.MeetingTypes)
		case MeetingOpenExternalCalendar:
			return []QuickReply{{Label: "Open Calendar", Trigger: "open calendar"}, startOver}
		case MeetingComplete:
			return append([]QuickReply(nil), mainMenu...)
		}
	case SuggestConsultation:
		return []QuickReply{
			{Label: "Yes, book a consultation", Trigger: "suggest consultation", Value: "yes"},
			{Label: "No thanks", Trigger: "suggest consultation", Value: "no"},
		}
	}
	return []QuickReply{startOver}
}
