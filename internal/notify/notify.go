// Package notify delivers advisor-facing notices about consultations and
// escalated client messages.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/deskmate/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Notice kinds.
const (
	KindConsultation = "consultation_requested"
	KindEscalation   = "escalation"
)

// Notice is the JSON payload published to advisors.
type Notice struct {
	Kind        string    `json:"kind"`
	ClientID    string    `json:"client_id,omitempty"`
	MeetingType string    `json:"meeting_type,omitempty"`
	Slot        string    `json:"slot,omitempty"`
	Message     string    `json:"message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Publisher sends a notice somewhere an advisor will see it.
type Publisher interface {
	Publish(ctx context.Context, n Notice) error
}

// redisClient is the slice of *redis.Client the notifier uses.
type redisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisNotifier publishes notices on a Redis pub/sub channel.
type RedisNotifier struct {
	client  redisClient
	channel string
	logger  *slog.Logger
}

// NewRedisNotifier creates a notifier publishing to channel.
func NewRedisNotifier(client *redis.Client, channel string, logger *slog.Logger) *RedisNotifier {
	return newRedisNotifier(client, channel, logger)
}

func newRedisNotifier(client redisClient, channel string, logger *slog.Logger) *RedisNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

// Publish implements Publisher.
func (n *RedisNotifier) Publish(ctx context.Context, notice Notice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	receivers, err := n.client.Publish(ctx, n.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}
	n.logger.Debug("advisor notice published", "kind", notice.Kind, "channel", n.channel, "receivers", receivers)
	return nil
}

// Ping checks the Redis connection.
func (n *RedisNotifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

// ConsultationRecorder persists consultation requests.
type ConsultationRecorder interface {
	RecordConsultation(ctx context.Context, r *domain.ConsultationRequest) error
}

// Fanout records a consultation request and then tells advisors about it.
// The stored request is the source of truth; publishing is best effort.
type Fanout struct {
	store      ConsultationRecorder
	publishers []Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewFanout creates a Fanout. Nil publishers are skipped.
func NewFanout(store ConsultationRecorder, logger *slog.Logger, publishers ...Publisher) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fanout{store: store, logger: logger, now: time.Now}
	for _, p := range publishers {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

// Notify implements the dialogue ConsultationTrigger contract.
func (f *Fanout) Notify(ctx context.Context, clientID, meetingType, slot string) error {
	now := f.now()
	if f.store != nil {
		err := f.store.RecordConsultation(ctx, &domain.ConsultationRequest{
			ClientID:    clientID,
			MeetingType: meetingType,
			Slot:        slot,
			CreatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("record consultation: %w", err)
		}
	}

	f.publish(ctx, Notice{
		Kind:        KindConsultation,
		ClientID:    clientID,
		MeetingType: meetingType,
		Slot:        slot,
		CreatedAt:   now,
	})
	return nil
}

func (f *Fanout) publish(ctx context.Context, n Notice) {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		f.logger.Warn("advisor notice not delivered", "kind", n.Kind, "client_id", n.ClientID, "error", err)
	}
}

// ActivityRecorder stores activity entries.
type ActivityRecorder interface {
	Record(ctx context.Context, a domain.Activity) error
}

// Escalator wraps an activity recorder and publishes a notice for every
// high-priority entry written for advisors.
type Escalator struct {
	next   ActivityRecorder
	fanout *Fanout
}

// NewEscalator wraps next.
func NewEscalator(next ActivityRecorder, fanout *Fanout) *Escalator {
	return &Escalator{next: next, fanout: fanout}
}

// Record implements the dialogue ActivityLogger contract.
func (e *Escalator) Record(ctx context.Context, a domain.Activity) error {
	if err := e.next.Record(ctx, a); err != nil {
		return err
	}
	if a.Priority == domain.PriorityHigh && a.Audience == domain.AudienceAdvisor && e.fanout != nil {
		e.fanout.publish(ctx, Notice{
			Kind:      KindEscalation,
			ClientID:  a.ClientID,
			Message:   a.Description,
			CreatedAt: e.fanout.now(),
		})
	}
	return nil
}
