package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/deskmate/internal/domain"
)

// maxChain bounds auto-advance chains within a single turn.
const maxChain = 8

// Metrics receives controller telemetry.
type Metrics interface {
	Transition(from, to string)
	Override()
	GatewayCall(gateway string, d time.Duration, err error)
	Stale(effect string)
}

type noopMetrics struct{}

func (noopMetrics) Transition(string, string)                {}
func (noopMetrics) Override()                                {}
func (noopMetrics) GatewayCall(string, time.Duration, error) {}
func (noopMetrics) Stale(string)                             {}

// UpdateKind tells listeners what changed.
type UpdateKind string

const (
	UpdateMessage   UpdateKind = "message"
	UpdateState     UpdateKind = "state"
	UpdateComposing UpdateKind = "composing"
	UpdateView      UpdateKind = "view"
)

// Update is pushed to the listener for every visible change. UpdateView
// carries the new snapshot whenever a task changed the state or its buttons.
type Update struct {
	Kind      UpdateKind
	Message   Message
	State     State
	Composing bool
	View      View
}

// View is a consistent snapshot of the controller.
type View struct {
	State       State
	Messages    []Message
	Composing   bool
	InputActive bool
	Buttons     []QuickReply
	Data        SessionData
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithDelays sets the thinking delays.
func WithDelays(d Delays) Option {
	return func(c *Controller) { c.delays = d }
}

// WithInterceptor sets the safety interceptor.
func WithInterceptor(i *Interceptor) Option {
	return func(c *Controller) { c.interceptor = i }
}

// WithTable sets the transition table.
func WithTable(t *Table) Option {
	return func(c *Controller) { c.table = t }
}

// WithMetrics sets the telemetry sink.
func WithMetrics(m Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithListener registers a callback for visible changes. It runs on the
// controller goroutine and must not block or call back into the controller.
func WithListener(fn func(Update)) Option {
	return func(c *Controller) { c.listener = fn }
}

// WithCallTimeout bounds every gateway call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Controller) { c.callTimeout = d }
}

// WithSessionData seeds the session data, e.g. with the client's display name.
func WithSessionData(d SessionData) Option {
	return func(c *Controller) { c.data = d.Clone() }
}

// Controller drives one conversation. All state is owned by a single
// goroutine; the exported methods post work to it and are safe for
// concurrent use.
type Controller struct {
	clientID    string
	gw          Gateways
	table       *Table
	interceptor *Interceptor
	metrics     Metrics
	logger      *slog.Logger
	listener    func(Update)
	delays      Delays
	callTimeout time.Duration

	// owned by the loop
	state       State
	lastEntered State
	data        SessionData
	log         *MessageLog
	sched       *scheduler
	gen         uint64
	inflight    int
	composing   bool

	tasks     chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	calls     sync.WaitGroup

	viewMu sync.RWMutex
	view   View
}

// New starts a controller for clientID in the Idle state.
func New(clientID string, gw Gateways, opts ...Option) *Controller {
	c := &Controller{
		clientID:    clientID,
		gw:          gw,
		table:       DefaultTable(),
		interceptor: NewInterceptor(nil),
		metrics:     noopMetrics{},
		logger:      slog.Default(),
		delays:      DefaultDelays,
		callTimeout: 15 * time.Second,
		state:       Idle{},
		data:        SessionData{},
		log:         NewMessageLog(),
		tasks:       make(chan func(), 64),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("client_id", clientID)
	c.sched = newScheduler(c.delays, c.post, c.emit)
	c.sched.awaiting = func() bool { return c.inflight > 0 }
	c.publish()
	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.stopped)
	for {
		select {
		case <-c.done:
			c.sched.cancel()
			c.publish()
			return
		case fn := <-c.tasks:
			select {
			case <-c.done:
				continue
			default:
			}
			fn()
			c.publish()
		}
	}
}

// post hands fn to the loop. It reports false once the controller is closed.
func (c *Controller) post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.tasks <- fn:
		return true
	case <-c.done:
		return false
	}
}

// do runs fn on the loop and waits until its effects are visible in
// Snapshot.
func (c *Controller) do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if !c.post(func() { fn(); c.publish(); close(ran) }) {
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrClosed
	}
}

// Send applies ev and returns once the controller has processed it. Delayed
// assistant messages may still be pending when it returns.
func (c *Controller) Send(ctx context.Context, ev Event) error {
	if ev == nil {
		return ErrValidation
	}
	return c.do(ctx, func() { c.handle(ev) })
}

// Reenter runs the entry behavior of the current state. It is a no-op when
// the state has already been entered and not left since.
func (c *Controller) Reenter(ctx context.Context) error {
	return c.do(ctx, func() {
		var effects []pendingEffect
		c.enter(&effects, 0)
		c.issue(effects)
	})
}

// Snapshot returns the view published after the last processed task.
func (c *Controller) Snapshot() View {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.view
}

// Close tears the controller down: the pending batch and its timer are
// dropped and later events are rejected with ErrClosed. Gateway calls
// already in flight run to completion; their results are discarded.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.done) })
	<-c.stopped
}

// Wait blocks until in-flight gateway calls have returned. Call it after
// Close.
func (c *Controller) Wait() {
	c.calls.Wait()
}

func (c *Controller) handle(ev Event) {
	switch e := ev.(type) {
	case Text:
		if strings.TrimSpace(e.Body) == "" {
			c.logger.Debug("ignoring empty text")
			return
		}
		if c.interceptor.Classify(e.Body) == Override {
			c.appendUser(Say(e.Body))
			c.metrics.Override()
			c.logger.Info("advice request intercepted", "state", c.state.Tag())
			c.apply(c.table.Override(e.Body), true)
			return
		}
		step := c.table.Transition(c.state, e, c.data)
		if step.Ignore {
			return
		}
		c.appendUser(Say(e.Body))
		c.apply(step, true)
	case Button:
		step := c.table.Transition(c.state, e, c.data)
		if step.Ignore {
			c.logger.Debug("ignoring button", "trigger", e.Trigger, "state", c.state.Tag())
			return
		}
		if label := e.Display(); label != "" {
			c.appendUser(Say(label))
		}
		c.apply(step, true)
	default:
		step := c.table.Transition(c.state, ev, c.data)
		if step.Ignore {
			c.logger.Debug("ignoring event", "event", fmt.Sprintf("%T", ev), "state", c.state.Tag())
			return
		}
		c.apply(step, true)
	}
}

func (c *Controller) appendUser(content Content) {
	if m, ok := c.log.Append(SenderUser, content, c.state); ok {
		c.notify(Update{Kind: UpdateMessage, Message: m})
	}
}

// emit appends a flushed batch of assistant messages.
func (c *Controller) emit(batch []queued) {
	for _, q := range batch {
		if m, ok := c.log.Append(SenderAssistant, q.content, q.origin); ok {
			c.notify(Update{Kind: UpdateMessage, Message: m})
		}
	}
}

type pendingEffect struct {
	effect  Effect
	latency Latency
}

// apply settles step and everything it chains into, then issues the
// collected effects from the state the chain landed in.
func (c *Controller) apply(step Step, fromUser bool) {
	if step.Ignore {
		return
	}
	if fromUser && step.Next != nil && step.Next != c.state {
		c.sched.cancel()
	}
	var effects []pendingEffect
	c.settle(step, &effects, 0)
	c.issue(effects)
}

func (c *Controller) settle(step Step, effects *[]pendingEffect, depth int) {
	if len(step.Merge) > 0 {
		c.data = Merge(c.data, step.Merge)
	}
	target := c.state
	if step.Next != nil {
		target = step.Next
	}
	if len(step.Say) > 0 {
		c.sched.queue(step.Latency, target, step.Say...)
	}
	for _, e := range step.Effects {
		*effects = append(*effects, pendingEffect{effect: e, latency: step.Latency})
	}
	if target != c.state {
		c.moveTo(target)
		c.enter(effects, depth+1)
	}
}

func (c *Controller) moveTo(next State) {
	from := c.state
	c.state = next
	c.gen++
	c.inflight = 0
	c.metrics.Transition(from.Tag(), next.Tag())
	c.logger.Debug("state transition", "from", from.Tag(), "to", next.Tag())
	c.notify(Update{Kind: UpdateState, State: next})
}

func (c *Controller) enter(effects *[]pendingEffect, depth int) {
	if c.lastEntered == c.state {
		return
	}
	c.lastEntered = c.state
	if depth > maxChain {
		c.logger.Warn("auto-advance chain too long", "state", c.state.Tag())
		return
	}
	c.settle(c.table.Enter(c.state, c.data), effects, depth)
}

func (c *Controller) issue(effects []pendingEffect) {
	for _, pe := range effects {
		e := pe.effect
		gen, issuer := c.gen, c.state
		if e.Kind.Awaited() {
			c.inflight++
			c.sched.hold(pe.latency)
		}
		c.calls.Add(1)
		go func() {
			defer c.calls.Done()
			out := c.execute(e)
			if !e.Kind.Awaited() {
				return
			}
			c.post(func() { c.complete(gen, issuer, out) })
		}()
	}
}

func (c *Controller) complete(gen uint64, issuer State, out Outcome) {
	if gen != c.gen || issuer != c.state {
		c.metrics.Stale(out.Effect.Kind.String())
		c.logger.Debug("discarding gateway result",
			"error", ErrStaleResponse,
			"effect", out.Effect.Kind.String(),
			"issued_in", issuer.Tag(),
			"state", c.state.Tag())
		return
	}
	c.inflight--
	var effects []pendingEffect
	c.settle(c.table.Resolve(c.state, out, c.data), &effects, 0)
	c.issue(effects)
	if c.inflight <= 0 {
		c.sched.release()
	}
}

// execute performs one effect against its gateway.
func (c *Controller) execute(e Effect) Outcome {
	ctx, cancel := context.WithTimeout(context.Background(), c.callTimeout)
	defer cancel()

	out := Outcome{Effect: e}
	start := time.Now()
	g := c.gw
	switch e.Kind {
	case EffectLoadCases, EffectLoadCaseStatus:
		if g.Cases == nil {
			out.Err = ErrGatewayUnavailable
			break
		}
		out.Cases, out.Err = g.Cases.ListCases(ctx, c.clientID)
	case EffectLoadCategories:
		if g.Categories == nil {
			out.Err = ErrGatewayUnavailable
			break
		}
		out.Categories, out.Err = g.Categories.ListCategories(ctx)
	case EffectUpdateProfile:
		if g.Profiles == nil {
			out.Err = ErrGatewayUnavailable
			break
		}
		out.Err = g.Profiles.UpdateProfile(ctx, c.clientID, e.Fields)
	case EffectRefetchProfile:
		if g.Profiles == nil {
			out.Err = ErrGatewayUnavailable
			break
		}
		out.Err = g.Profiles.RefetchProfile(ctx, c.clientID)
	case EffectOpenUpload:
		if g.Documents == nil {
			out.Err = ErrGatewayUnavailable
			break
		}
		out.Err = g.Documents.OpenUpload(ctx, e.CaseID, e.CategoryID)
	case EffectOpenCalendar:
		if g.Calendar == nil {
			out.Err = ErrGatewayUnavailable
			break
		}
		out.Err = g.Calendar.Open(ctx, e.URL)
	case EffectNotifyConsultation:
		if g.Consultations == nil {
			out.Err = ErrGatewayUnavailable
			break
		}
		out.Err = g.Consultations.Notify(ctx, c.clientID, e.MeetingType, e.Slot)
	case EffectRecordActivity:
		if g.Activity == nil {
			c.logger.Debug("no activity logger, dropping record", "description", e.Description)
			return out
		}
		out.Err = g.Activity.Record(ctx, domain.Activity{
			ClientID:    c.clientID,
			Description: e.Description,
			Priority:    e.Priority,
			Audience:    e.Audience,
			CreatedAt:   time.Now().UTC(),
		})
	case EffectLookupKnowledge:
		if g.Knowledge == nil {
			out.Err = ErrGatewayUnavailable
			break
		}
		out.Answer, out.Found, out.Err = g.Knowledge.Lookup(ctx, e.Query)
	case EffectAskVault:
		if g.Vault == nil {
			out.Err = ErrGatewayUnavailable
			break
		}
		out.Answer, out.Err = g.Vault.Ask(ctx, c.clientID, e.Query)
	case EffectLoadPendingTasks:
		if g.Tasks == nil {
			out.Err = ErrGatewayUnavailable
			break
		}
		out.Tasks, out.Err = g.Tasks.ListPendingTasks(ctx, c.clientID)
	case EffectLoadPayments:
		if g.Payments == nil {
			out.Err = ErrGatewayUnavailable
			break
		}
		out.Payments, out.Err = g.Payments.ListPayments(ctx, c.clientID)
	default:
		out.Err = fmt.Errorf("unknown effect %d", e.Kind)
	}

	c.metrics.GatewayCall(e.Kind.Gateway(), time.Since(start), out.Err)
	if out.Err != nil {
		out.Err = fmt.Errorf("%s: %w", e.Kind.Gateway(), out.Err)
		if e.Kind.Awaited() {
			c.logger.Warn("gateway call failed", "effect", e.Kind.String(), "error", out.Err)
		} else {
			c.logger.Error("fire-and-forget call failed", "effect", e.Kind.String(), "error", out.Err)
		}
	}
	return out
}

func (c *Controller) notify(u Update) {
	if c.listener != nil {
		c.listener(u)
	}
}

// publish refreshes the snapshot after each task.
func (c *Controller) publish() {
	composing := c.sched.composing()
	if composing != c.composing {
		c.composing = composing
		c.notify(Update{Kind: UpdateComposing, Composing: composing})
	}
	v := View{
		State:       c.state,
		Messages:    c.log.Messages(),
		Composing:   composing,
		InputActive: InputActive(c.state),
		Buttons:     c.table.Buttons(c.state, c.data),
		Data:        c.data.Clone(),
	}
	changed := c.view.State != v.State || !slices.Equal(c.view.Buttons, v.Buttons)
	c.viewMu.Lock()
	c.view = v
	c.viewMu.Unlock()
	if changed {
		c.notify(Update{Kind: UpdateView, View: v})
	}
}
