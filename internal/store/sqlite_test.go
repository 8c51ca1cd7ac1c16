package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/deskmate/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "deskmate.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedClient(t *testing.T, s *SQLiteStore, id string) {
	t.Helper()
	now := time.Now()
	err := s.UpsertClient(context.Background(), &domain.Client{
		ClientID: id, DisplayName: "Dana", LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("UpsertClient: %v", err)
	}
}

func TestClientProfileLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetClient(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("GetClient(missing) = %v, %v; want nil, nil", got, err)
	}

	seedClient(t, s, "c1")
	if err := s.UpdateProfile(ctx, "c1", domain.ProfileFields{BusinessName: "Acme", TaxID: "12-3456789"}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	got, err = s.GetClient(ctx, "c1")
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if got.BusinessName != "Acme" || got.TaxID != "12-3456789" {
		t.Fatalf("profile = %+v", got)
	}
	if got.IsOnboarded() {
		t.Fatal("client onboarded before entity type was set")
	}

	if err := s.UpdateProfile(ctx, "c1", domain.ProfileFields{EntityType: "LLC"}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	got, _ = s.GetClient(ctx, "c1")
	if got.BusinessName != "Acme" || got.EntityType != "LLC" {
		t.Fatalf("partial update dropped fields: %+v", got)
	}
	if !got.IsOnboarded() {
		t.Fatal("client not onboarded after all fields were set")
	}

	err = s.UpdateProfile(ctx, "nobody", domain.ProfileFields{TaxID: "1"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateProfile(nobody) = %v, want ErrNotFound", err)
	}
}

func TestListCasesSkipsClosed(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for _, c := range []domain.Case{
		{ID: "k1", ClientID: "c1", Title: "Audit", Status: "open"},
		{ID: "k2", ClientID: "c1", Title: "Old return", Status: "closed"},
		{ID: "k3", ClientID: "c2", Title: "Other", Status: "open"},
	} {
		c := c
		if err := s.UpsertCase(ctx, &c); err != nil {
			t.Fatalf("UpsertCase: %v", err)
		}
	}

	cases, err := s.ListCases(ctx, "c1")
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(cases) != 1 || cases[0].ID != "k1" {
		t.Fatalf("ListCases = %+v", cases)
	}
}

func TestPendingTasksOrder(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	soon := time.Now().Add(24 * time.Hour)
	later := time.Now().Add(72 * time.Hour)

	for _, task := range []domain.Task{
		{ID: "t1", ClientID: "c1", Title: "Sign engagement letter"},
		{ID: "t2", ClientID: "c1", Title: "Upload W-2", DueAt: &later},
		{ID: "t3", ClientID: "c1", Title: "Confirm address", DueAt: &soon},
	} {
		task := task
		if err := s.AddTask(ctx, &task); err != nil {
			t.Fatalf("AddTask: %v", err)
		}
	}
	if err := s.CompleteTask(ctx, "t2", time.Now()); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	tasks, err := s.ListPendingTasks(ctx, "c1")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "t3" || tasks[1].ID != "t1" {
		t.Fatalf("ListPendingTasks = %+v", tasks)
	}
	if tasks[1].DueAt != nil {
		t.Fatal("undated task got a due date")
	}

	if err := s.CompleteTask(ctx, "missing", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CompleteTask(missing) = %v, want ErrNotFound", err)
	}
}

func TestPaymentsNewestFirst(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"p1", "p2", "p3"} {
		p := domain.Payment{ID: id, ClientID: "c1", AmountCents: int64(1000 * (i + 1)), Currency: "USD", PaidAt: base.AddDate(0, i, 0)}
		if err := s.AddPayment(ctx, &p); err != nil {
			t.Fatalf("AddPayment: %v", err)
		}
	}

	payments, err := s.ListPayments(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(payments) != 2 || payments[0].ID != "p3" || payments[1].ID != "p2" {
		t.Fatalf("ListPayments = %+v", payments)
	}
}

func TestActivitiesAndConsultations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	a := domain.Activity{ClientID: "c1", Description: "Should I incorporate?", Priority: domain.PriorityHigh, Audience: domain.AudienceAdvisor}
	if err := s.RecordActivity(ctx, &a); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	if a.ID == 0 {
		t.Fatal("activity id not set")
	}
	anon := domain.Activity{Description: "anonymous", Priority: domain.PriorityNormal, Audience: domain.AudienceClient}
	if err := s.RecordActivity(ctx, &anon); err != nil {
		t.Fatalf("RecordActivity(anon): %v", err)
	}

	acts, err := s.ListActivities(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("ListActivities: %v", err)
	}
	if len(acts) != 1 || acts[0].Priority != domain.PriorityHigh || acts[0].Audience != domain.AudienceAdvisor {
		t.Fatalf("ListActivities = %+v", acts)
	}

	if err := s.RecordConsultation(ctx, &domain.ConsultationRequest{ClientID: "c1", MeetingType: "Tax Planning", Slot: "Calendly"}); err != nil {
		t.Fatalf("RecordConsultation: %v", err)
	}
	reqs, err := s.ListConsultations(ctx, "c1")
	if err != nil {
		t.Fatalf("ListConsultations: %v", err)
	}
	if len(reqs) != 1 || reqs[0].MeetingType != "Tax Planning" {
		t.Fatalf("ListConsultations = %+v", reqs)
	}
}

func TestSeedAndSearchFAQ(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	if err := s.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults (second run): %v", err)
	}

	cats, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != len(defaultCategories) {
		t.Fatalf("got %d categories, want %d", len(cats), len(defaultCategories))
	}

	entry, err := s.SearchFAQ(ctx, "When is your office open?")
	if err != nil {
		t.Fatalf("SearchFAQ: %v", err)
	}
	if entry == nil || entry.Question != "What are your office hours?" {
		t.Fatalf("SearchFAQ = %+v", entry)
	}

	entry, err = s.SearchFAQ(ctx, "tell me a joke")
	if err != nil || entry != nil {
		t.Fatalf("SearchFAQ(no match) = %+v, %v", entry, err)
	}
}

func TestSearchFAQIgnoresBlankQuestion(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for _, e := range []domain.FAQEntry{
		{Question: " ? ", Answer: "blank", Keywords: "zzz"},
		{Question: "What are your office hours?", Answer: "9 to 5", Keywords: "hours,open,office"},
	} {
		entry := e
		if err := s.AddFAQ(ctx, &entry); err != nil {
			t.Fatalf("AddFAQ: %v", err)
		}
	}

	entry, err := s.SearchFAQ(ctx, "When is your office open?")
	if err != nil || entry == nil || entry.Answer != "9 to 5" {
		t.Fatalf("SearchFAQ = %+v, %v", entry, err)
	}
	entry, err = s.SearchFAQ(ctx, "tell me a joke")
	if err != nil || entry != nil {
		t.Fatalf("SearchFAQ(no match) = %+v, %v", entry, err)
	}
}
