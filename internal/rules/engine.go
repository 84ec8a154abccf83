// Package rules evaluates trigger rules against candidate events
// immediately before dispatch.
//
// The engine holds the one piece of mutable sequencing state outside
// the beat clock: a rolling per-source evaluation context. Evaluation
// is first-match-wins over rules in registration order, gated per rule
// by a probability draw.
package rules

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/waveslice/retrig/internal/bank"
	"github.com/waveslice/retrig/internal/event"
)

// sourceContext is the rolling evaluation context for one source key.
type sourceContext struct {
	consecutivePlays int
	lastSliceIndex   int
	lastBeat         float64
	totalPlays       int
	skipNext         bool
}

// Engine evaluates an ordered rule set against candidate events.
//
// Single-writer: Evaluate mutates per-source context as a side effect,
// so calls for the same source key must not run concurrently. The
// transport driver is the only caller in production and serializes
// ticks, which satisfies this. Register is likewise driver-only.
type Engine struct {
	rules    []*Rule
	contexts map[string]*sourceContext
	rng      *rand.Rand
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed makes probability gates and pan_random deterministic.
// Used by tests; production engines default to a time-derived seed.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewPCG(seed, seed^0x5bf03635))
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an empty rule engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		contexts: make(map[string]*sourceContext),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register replaces the engine's rule set. The slice order is the
// evaluation order and is preserved; the slice is copied to prevent
// external mutation. Duplicate rule IDs are InvalidRule.
//
// Passing nil or an empty slice clears the rule set.
func (e *Engine) Register(ruleSet []*Rule) error {
	if len(ruleSet) == 0 {
		e.rules = nil
		return nil
	}

	seen := make(map[string]bool, len(ruleSet))
	for _, r := range ruleSet {
		if r == nil {
			return &InvalidRuleError{Field: "rules", Message: "nil rule"}
		}
		if seen[r.ID] {
			return &InvalidRuleError{RuleID: r.ID, Field: "id", Message: "duplicate rule id"}
		}
		seen[r.ID] = true
		if r.Probability < 0 || r.Probability > 1 {
			return &InvalidRuleError{
				RuleID:  r.ID,
				Field:   "probability",
				Message: fmt.Sprintf("must be within [0,1], got %g", r.Probability),
			}
		}
	}

	e.rules = make([]*Rule, len(ruleSet))
	copy(e.rules, ruleSet)
	return nil
}

// Rules returns the registered rules in evaluation order.
func (e *Engine) Rules() []*Rule { return e.rules }

// Evaluate runs the candidate event through the rule set.
//
// Returns the (possibly rewritten) event and a dropped flag.
// dropped=true means a prior skip_next firing consumed this candidate;
// the caller must not dispatch it.
//
// Context bookkeeping: a dropped candidate does not count as a play.
// Otherwise consecutive_plays increments while the slice index repeats
// and resets to 1 when it changes; rules observe the context including
// the current candidate.
func (e *Engine) Evaluate(sourceKey string, ev event.TriggerEvent, beat float64, role bank.Role) (event.TriggerEvent, bool) {
	ctx, ok := e.contexts[sourceKey]
	if !ok {
		ctx = &sourceContext{lastSliceIndex: -1}
		e.contexts[sourceKey] = ctx
	}

	if ctx.skipNext {
		ctx.skipNext = false
		e.logger.Debug("event dropped by pending skip",
			"source", sourceKey,
			"slice_index", ev.SliceIndex,
			"beat", beat,
		)
		return ev, true
	}

	if ev.SliceIndex == ctx.lastSliceIndex {
		ctx.consecutivePlays++
	} else {
		ctx.consecutivePlays = 1
		ctx.lastSliceIndex = ev.SliceIndex
	}
	ctx.totalPlays++

	snapshot := evalContext{
		consecutivePlays: ctx.consecutivePlays,
		totalPlays:       ctx.totalPlays,
		lastBeat:         ctx.lastBeat,
		beat:             beat,
		velocity:         ev.Velocity,
		sliceIndex:       ev.SliceIndex,
		role:             role,
	}
	ctx.lastBeat = beat

	for _, r := range e.rules {
		if !r.Enabled {
			continue
		}
		if !r.Condition.eval(snapshot) {
			continue
		}
		if e.rng.Float64() >= r.Probability {
			continue // probability gate miss: silent, expected
		}

		e.applyAction(ctx, r, &ev)
		ev.RuleModified = true
		ev.TriggeredBy = r.ID

		e.logger.Debug("rule fired",
			"rule_id", r.ID,
			"action", string(r.Action),
			"source", sourceKey,
			"slice_index", ev.SliceIndex,
			"beat", beat,
		)
		return ev, false // first match wins
	}

	ev.RuleModified = false
	return ev, false
}

// ConsecutivePlays exposes the rolling consecutive counter for a
// source. Used by tests and diagnostics.
func (e *Engine) ConsecutivePlays(sourceKey string) int {
	if ctx, ok := e.contexts[sourceKey]; ok {
		return ctx.consecutivePlays
	}
	return 0
}

// TotalPlays exposes the total play counter for a source.
func (e *Engine) TotalPlays(sourceKey string) int {
	if ctx, ok := e.contexts[sourceKey]; ok {
		return ctx.totalPlays
	}
	return 0
}

// ResetContext clears the rolling context for a source. Called when a
// session reloads its timeline so stale history cannot leak across
// sequences.
func (e *Engine) ResetContext(sourceKey string) {
	delete(e.contexts, sourceKey)
}

func (e *Engine) applyAction(ctx *sourceContext, r *Rule, ev *event.TriggerEvent) {
	switch r.Action {
	case ActionSkipNext:
		ctx.skipNext = true
	case ActionReverse:
		ev.Reverse = true
	case ActionPitchUp:
		ev.PitchShift += r.pitchStep()
	case ActionPitchDown:
		ev.PitchShift -= r.pitchStep()
	case ActionVelocityScale:
		ev.Velocity *= r.velocityFactor()
	case ActionPanRandom:
		ev.Pan = e.rng.Float64()*2 - 1
	}
}
