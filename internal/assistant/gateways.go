package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/deskmate/internal/dialogue"
	"github.com/ashureev/deskmate/internal/domain"
	"github.com/ashureev/deskmate/internal/store"
)

// ErrNoStream is returned by host gateways that need a connected widget.
var ErrNoStream = errors.New("no widget connected")

const defaultPaymentLimit = 10

// StoreGateways adapts the repository to the dialogue gateway contracts that
// do not depend on a live session.
type StoreGateways struct {
	repo         store.Repository
	paymentLimit int
}

// NewStoreGateways wraps repo.
func NewStoreGateways(repo store.Repository, paymentLimit int) *StoreGateways {
	if paymentLimit <= 0 {
		paymentLimit = defaultPaymentLimit
	}
	return &StoreGateways{repo: repo, paymentLimit: paymentLimit}
}

// Gateways returns the store-backed part of a gateway bundle.
func (g *StoreGateways) Gateways() dialogue.Gateways {
	return dialogue.Gateways{
		Activity:   g,
		Knowledge:  g,
		Cases:      g,
		Categories: g,
		Tasks:      g,
		Payments:   g,
	}
}

func (g *StoreGateways) ListCases(ctx context.Context, clientID string) ([]domain.Case, error) {
	return g.repo.ListCases(ctx, clientID)
}

func (g *StoreGateways) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return g.repo.ListCategories(ctx)
}

func (g *StoreGateways) ListPendingTasks(ctx context.Context, clientID string) ([]domain.Task, error) {
	return g.repo.ListPendingTasks(ctx, clientID)
}

func (g *StoreGateways) ListPayments(ctx context.Context, clientID string) ([]domain.Payment, error) {
	return g.repo.ListPayments(ctx, clientID, g.paymentLimit)
}

// Record implements dialogue.ActivityLogger.
func (g *StoreGateways) Record(ctx context.Context, a domain.Activity) error {
	return g.repo.RecordActivity(ctx, &a)
}

// Lookup implements dialogue.KnowledgeBase over the FAQ table.
func (g *StoreGateways) Lookup(ctx context.Context, question string) (string, bool, error) {
	entry, err := g.repo.SearchFAQ(ctx, question)
	if err != nil {
		return "", false, err
	}
	if entry == nil {
		return "", false, nil
	}
	return entry.Answer, true, nil
}

// profileGateway writes the profile and pushes the refreshed record to the
// session's widget.
type profileGateway struct {
	repo    store.Repository
	session *Session
}

func (p profileGateway) UpdateProfile(ctx context.Context, clientID string, fields domain.ProfileFields) error {
	return p.repo.UpdateProfile(ctx, clientID, fields)
}

func (p profileGateway) RefetchProfile(ctx context.Context, clientID string) error {
	client, err := p.repo.GetClient(ctx, clientID)
	if err != nil {
		return fmt.Errorf("refetch profile: %w", err)
	}
	if client == nil {
		return fmt.Errorf("refetch profile %s: %w", clientID, store.ErrNotFound)
	}
	p.session.stream.broadcast(Frame{Type: FrameDirective, Directive: &Directive{
		Action:  ActionRefreshProfile,
		Profile: client,
	}})
	return nil
}

// uploadGateway asks the widget to open its upload UI.
type uploadGateway struct{ session *Session }

func (u uploadGateway) OpenUpload(_ context.Context, caseID, categoryID string) error {
	u.session.stream.broadcast(Frame{Type: FrameDirective, Directive: &Directive{
		Action:     ActionOpenUpload,
		CaseID:     caseID,
		CategoryID: categoryID,
	}})
	return nil
}

// calendarGateway asks the widget to open the booking calendar. Without a
// connected widget nobody could open it, so the call fails and the dialogue
// shows the link instead.
type calendarGateway struct{ session *Session }

func (c calendarGateway) Open(_ context.Context, url string) error {
	if !c.session.stream.connected() {
		return ErrNoStream
	}
	c.session.stream.broadcast(Frame{Type: FrameDirective, Directive: &Directive{
		Action: ActionOpenCalendar,
		URL:    url,
	}})
	return nil
}
