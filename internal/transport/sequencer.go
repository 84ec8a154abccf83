// Package transport owns the realtime half of the system: per-session
// playback state, the beat clock, the websocket surface, and the
// reconnecting client.
//
// Each session has exactly one Sequencer and one driver goroutine.
// All playback state (current beat, timeline cursor, rule context)
// is mutated only inside Run, so ticks and commands are strictly
// serialized and outbound message order is deterministic.
package transport

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/waveslice/retrig/internal/bank"
	"github.com/waveslice/retrig/internal/event"
	"github.com/waveslice/retrig/internal/rules"
	"github.com/waveslice/retrig/internal/tracelog"
)

// State is the playback state of one session.
type State int

const (
	// Idle means no timeline has been loaded yet.
	Idle State = iota
	// Loaded means a timeline is present but the clock is not running.
	Loaded
	// Playing means the beat clock is advancing.
	Playing
	// Paused means the clock is frozen with position retained.
	Paused
	// Stopped means the clock is frozen with position reset to 0.
	Stopped
	// Closed is terminal; the session is gone.
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loaded:
		return "loaded"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultResolution is the beat clock resolution in ticks per beat.
// 24 matches MIDI clock pulses per quarter note.
const DefaultResolution = 24

// TickSource abstracts the beat clock's timer so tests can drive
// ticks by hand. The production source wraps time.Ticker.
type TickSource interface {
	// Start begins (or re-times) tick delivery at the given interval.
	Start(interval time.Duration)
	// Stop halts tick delivery. Start may be called again afterwards.
	Stop()
	// C returns the tick channel. Nil until the first Start.
	C() <-chan time.Time
}

// realTicker is the production TickSource.
type realTicker struct {
	mu sync.Mutex
	t  *time.Ticker
}

func (r *realTicker) Start(interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.t == nil {
		r.t = time.NewTicker(interval)
		return
	}
	r.t.Reset(interval)
}

func (r *realTicker) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.t != nil {
		r.t.Stop()
	}
}

func (r *realTicker) C() <-chan time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.t == nil {
		return nil
	}
	return r.t.C
}

// Sequencer is the per-session playback driver.
//
// Single-writer: all fields below the channels are owned by the Run
// goroutine. External callers interact only through Send and Messages.
type Sequencer struct {
	session    string
	engine     *rules.Engine
	role       bank.Role
	trace      *tracelog.Store
	logger     *slog.Logger
	ticks      TickSource
	resolution int

	cmds chan Command
	out  chan Message

	state     State
	bpm       float64
	events    []event.TriggerEvent
	beatBase  float64 // set by seek; beat = beatBase + ticks/resolution
	tickCount int64
	beat      float64
	cursor    int
	seq       int64 // dispatch sequence, drives trace IDs
}

// SequencerOption configures a Sequencer.
type SequencerOption func(*Sequencer)

// WithTickSource replaces the wall-clock ticker. Tests pass a manual
// source to advance the clock deterministically.
func WithTickSource(ts TickSource) SequencerOption {
	return func(s *Sequencer) { s.ticks = ts }
}

// WithTrace enables best-effort trigger tracing to the given store.
func WithTrace(store *tracelog.Store) SequencerOption {
	return func(s *Sequencer) { s.trace = store }
}

// WithRole sets the stem role rules evaluate against.
func WithRole(role bank.Role) SequencerOption {
	return func(s *Sequencer) { s.role = role }
}

// WithResolution sets the clock resolution in ticks per beat.
func WithResolution(ticksPerBeat int) SequencerOption {
	return func(s *Sequencer) { s.resolution = ticksPerBeat }
}

// WithSequencerLogger sets the sequencer's logger.
func WithSequencerLogger(logger *slog.Logger) SequencerOption {
	return func(s *Sequencer) { s.logger = logger }
}

// WithMessageBuffer sizes the outbound message channel. When the
// buffer fills the driver blocks the tick rather than dropping, so
// the buffer only smooths bursts.
func WithMessageBuffer(n int) SequencerOption {
	return func(s *Sequencer) { s.out = make(chan Message, n) }
}

// NewSequencer creates an idle sequencer for one session.
func NewSequencer(session string, engine *rules.Engine, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		session:    session,
		engine:     engine,
		role:       bank.RoleUnknown,
		logger:     slog.Default(),
		ticks:      &realTicker{},
		resolution: DefaultResolution,
		cmds:       make(chan Command),
		out:        make(chan Message, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session returns the session ID.
func (s *Sequencer) Session() string { return s.session }

// Messages returns the outbound message channel. The channel closes
// when Run returns.
func (s *Sequencer) Messages() <-chan Message { return s.out }

// Send submits a command to the driver. Blocks until the driver picks
// it up or ctx is done.
func (s *Sequencer) Send(ctx context.Context, cmd Command) error {
	select {
	case s.cmds <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the single-writer driver loop. Must be called from exactly
// one goroutine; blocks until ctx is cancelled.
//
// A stop or cancellation is observed between ticks, never mid-tick,
// so one tick's batch of trigger emissions is atomic from the
// client's point of view.
func (s *Sequencer) Run(ctx context.Context) error {
	s.logger.Info("session starting", "session", s.session)
	defer close(s.out)
	defer s.ticks.Stop()

	// Connect is a state change like play/stop.
	s.emit(ctx, s.stateMessage())

	for {
		select {
		case <-ctx.Done():
			s.state = Closed
			s.logger.Info("session closed", "session", s.session, "beat", s.beat)
			return ctx.Err()
		case cmd := <-s.cmds:
			s.handleCommand(ctx, cmd)
		case <-s.ticks.C():
			s.tick(ctx)
		}
	}
}

func (s *Sequencer) handleCommand(ctx context.Context, cmd Command) {
	switch cmd.Type {
	case CmdLoadSequence:
		s.handleLoad(ctx, cmd)
	case CmdPlay:
		s.handlePlay(ctx)
	case CmdPause:
		s.handlePause(ctx)
	case CmdStop:
		s.handleStop(ctx)
	case CmdSeek:
		s.handleSeek(ctx, cmd.Beat)
	case CmdSetBPM:
		s.handleSetBPM(ctx, cmd.BPM)
	case CmdPing:
		s.emit(ctx, Message{Type: MsgPong, Beat: s.beat})
	default:
		s.emit(ctx, Message{Type: MsgError, Beat: s.beat, Error: "unknown command " + cmd.Type})
	}
}

// handleLoad replaces the timeline. Accepted from any state except
// Playing: Paused and Stopped are a loaded timeline with a frozen
// clock, and loading over them discards the old timeline along with
// its position, the same way play restarts a Stopped session from the
// top.
func (s *Sequencer) handleLoad(ctx context.Context, cmd Command) {
	if s.state == Playing {
		s.emit(ctx, Message{Type: MsgError, Beat: s.beat, Error: "cannot load while playing"})
		return
	}
	if cmd.BPM <= 0 {
		s.emit(ctx, Message{Type: MsgError, Beat: s.beat, Error: "bpm must be positive"})
		return
	}

	events := make([]event.TriggerEvent, len(cmd.Events))
	copy(events, cmd.Events)
	event.SortTimeline(events)

	// Atomic replace: timeline, clock, and rule context reset together.
	s.events = events
	s.bpm = cmd.BPM
	s.resetClock()
	s.engine.ResetContext(s.session)
	s.state = Loaded

	s.logger.Info("sequence loaded", "session", s.session, "events", len(events), "bpm", s.bpm)
	s.emit(ctx, Message{Type: MsgLoaded, Beat: s.beat, NumEvents: len(events)})
}

func (s *Sequencer) handlePlay(ctx context.Context) {
	switch s.state {
	case Loaded, Paused, Stopped:
		s.state = Playing
		s.ticks.Start(s.tickInterval())
		s.emit(ctx, s.stateMessage())
	default:
		s.emit(ctx, Message{Type: MsgError, Beat: s.beat, Error: "cannot play from state " + s.state.String()})
	}
}

func (s *Sequencer) handlePause(ctx context.Context) {
	if s.state != Playing {
		s.emit(ctx, Message{Type: MsgError, Beat: s.beat, Error: "cannot pause from state " + s.state.String()})
		return
	}
	s.ticks.Stop()
	s.state = Paused
	s.emit(ctx, s.stateMessage())
}

func (s *Sequencer) handleStop(ctx context.Context) {
	s.ticks.Stop()
	s.resetClock()
	s.state = Stopped
	s.emit(ctx, s.stateMessage())
}

func (s *Sequencer) handleSeek(ctx context.Context, target float64) {
	if target < 0 {
		target = 0
	}
	if max := s.lastEventTime(); target > max {
		target = max
	}

	s.beatBase = target
	s.tickCount = 0
	s.beat = target
	s.cursor = sort.Search(len(s.events), func(i int) bool {
		return s.events[i].Time >= target
	})
	s.emit(ctx, s.stateMessage())
}

func (s *Sequencer) handleSetBPM(ctx context.Context, bpm float64) {
	if bpm <= 0 {
		s.emit(ctx, Message{Type: MsgError, Beat: s.beat, Error: "bpm must be positive"})
		return
	}
	s.bpm = bpm
	if s.state == Playing {
		s.ticks.Start(s.tickInterval())
	}
}

// tick advances the clock one resolution step and dispatches every
// loaded event in [previous_beat, current_beat), in ascending time
// order, through the rule engine. A whole-beat crossing appends one
// beat message after the triggers it covers.
func (s *Sequencer) tick(ctx context.Context) {
	if s.state != Playing {
		// Stale tick delivered after stop/pause.
		return
	}

	prev := s.beat
	s.tickCount++
	cur := s.beatBase + float64(s.tickCount)/float64(s.resolution)
	s.beat = cur

	for s.cursor < len(s.events) && s.events[s.cursor].Time < cur {
		ev := s.events[s.cursor]
		s.cursor++

		out, dropped := s.engine.Evaluate(s.session, ev, ev.Time, s.role)
		if dropped {
			continue
		}

		s.seq++
		if s.trace != nil {
			if err := s.trace.WriteTrigger(ctx, s.session, s.seq, ev.Time, out); err != nil {
				// Tracing is diagnostic; never stall the clock for it.
				s.logger.Warn("trace write failed", "session", s.session, "seq", s.seq, "error", err)
			}
		}
		s.emit(ctx, Message{Type: MsgTrigger, Event: &out, Beat: ev.Time})
	}

	if wholeBeatCrossed(prev, cur) {
		s.emit(ctx, Message{Type: MsgBeat, Beat: math.Floor(cur + 1e-9)})
	}
}

// emit blocks until the message is accepted. Backpressure delays the
// clock instead of reordering or dropping.
func (s *Sequencer) emit(ctx context.Context, msg Message) {
	select {
	case s.out <- msg:
	case <-ctx.Done():
	}
}

func (s *Sequencer) stateMessage() Message {
	return Message{Type: MsgState, Beat: s.beat, IsPlaying: s.state == Playing}
}

func (s *Sequencer) resetClock() {
	s.beatBase = 0
	s.tickCount = 0
	s.beat = 0
	s.cursor = 0
}

func (s *Sequencer) tickInterval() time.Duration {
	return time.Duration(float64(time.Minute) / (s.bpm * float64(s.resolution)))
}

func (s *Sequencer) lastEventTime() float64 {
	if len(s.events) == 0 {
		return 0
	}
	return s.events[len(s.events)-1].Time
}

func wholeBeatCrossed(prev, cur float64) bool {
	return math.Floor(cur+1e-9) > math.Floor(prev+1e-9)
}
