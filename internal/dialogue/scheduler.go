package dialogue

import (
	"time"
)

// Delays are the thinking delays per latency class.
type Delays struct {
	Processing     time.Duration
	Conversational time.Duration
}

// DefaultDelays are the delays used in production.
var DefaultDelays = Delays{
	Processing:     1500 * time.Millisecond,
	Conversational: 500 * time.Millisecond,
}

func (d Delays) of(l Latency) time.Duration {
	switch l {
	case LatencyProcessing:
		return d.Processing
	case LatencyConversational:
		return d.Conversational
	default:
		return 0
	}
}

type queued struct {
	content Content
	origin  State
}

// scheduler holds assistant messages back for a thinking delay. It owns at
// most one timer. A hold starts when the first message is queued or an
// awaited call is issued; messages queued while it is open join the same
// batch and the delay stretches to the slowest class seen. Composing is true
// for as long as a hold is open. A flush while awaited calls are still out
// leaves the hold open with its original start.
//
// scheduler is not safe for concurrent use: every method must run on the
// controller loop. Timer callbacks go through post, which hands them back to
// that loop.
type scheduler struct {
	delays Delays
	post   func(func()) bool
	emit   func([]queued)
	now    func() time.Time

	// awaiting reports whether awaited calls are still outstanding.
	awaiting func() bool

	pending []queued
	holding bool
	class   Latency
	since   time.Time
	timer   *time.Timer
	token   uint64
}

func newScheduler(d Delays, post func(func()) bool, emit func([]queued)) *scheduler {
	return &scheduler{delays: d, post: post, emit: emit, now: time.Now}
}

func (s *scheduler) composing() bool {
	return s.holding
}

// hold opens (or widens) a hold without queueing anything.
func (s *scheduler) hold(l Latency) {
	if l == LatencyPassive {
		return
	}
	if !s.holding {
		s.holding = true
		s.since = s.now()
		s.class = l
	}
	if s.delays.of(l) > s.delays.of(s.class) {
		s.class = l
	}
}

func (s *scheduler) queue(l Latency, origin State, msgs ...Content) {
	for _, m := range msgs {
		if !m.IsZero() {
			s.pending = append(s.pending, queued{content: m, origin: origin})
		}
	}
	if len(s.pending) == 0 {
		return
	}
	if l == LatencyPassive {
		l = LatencyConversational
	}
	s.hold(l)
	s.arm()
}

func (s *scheduler) arm() {
	s.stopTimer()
	s.token++
	delay := s.delays.of(s.class) - s.now().Sub(s.since)
	if delay <= 0 {
		s.flush(s.token)
		return
	}
	token := s.token
	s.timer = time.AfterFunc(delay, func() {
		s.post(func() { s.flush(token) })
	})
}

func (s *scheduler) flush(token uint64) {
	if token != s.token || !s.holding {
		return
	}
	batch := s.pending
	since, class := s.since, s.class
	s.reset()
	if s.awaiting != nil && s.awaiting() {
		s.holding, s.since, s.class = true, since, class
	}
	if len(batch) > 0 {
		s.emit(batch)
	}
}

// release closes a hold that has nothing queued, after the awaited calls
// that opened it returned without anything to say.
func (s *scheduler) release() {
	if len(s.pending) > 0 {
		return
	}
	s.stopTimer()
	s.token++
	s.reset()
}

// cancel drops the pending batch and the timer.
func (s *scheduler) cancel() {
	s.stopTimer()
	s.token++
	s.reset()
}

func (s *scheduler) reset() {
	s.pending = nil
	s.holding = false
	s.class = LatencyConversational
	s.since = time.Time{}
	s.timer = nil
}

func (s *scheduler) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
