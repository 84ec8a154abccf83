package transport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/waveslice/retrig/internal/bank"
	"github.com/waveslice/retrig/internal/rules"
	"github.com/waveslice/retrig/internal/tracelog"
)

// SessionGenerator mints session IDs for new connections.
// Implemented by UUIDv7Sessions (production) and
// testutil.FixedSessionGenerator (tests).
type SessionGenerator interface {
	Generate() string
}

// UUIDv7Sessions generates time-sortable UUIDv7 session IDs, so trace
// rows for newer sessions sort after older ones as plain text.
type UUIDv7Sessions struct{}

func (UUIDv7Sessions) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Server upgrades HTTP connections to websocket playback sessions.
// Each connection gets its own Sequencer, rule engine, and driver
// goroutine; sessions share nothing but the rule set and trace store.
type Server struct {
	rules    []*rules.Rule
	role     bank.Role
	trace    *tracelog.Store
	logger   *slog.Logger
	sessions SessionGenerator
	seqOpts  []SequencerOption
	upgrader websocket.Upgrader
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRules sets the rule set registered into every session's engine.
func WithRules(ruleSet []*rules.Rule) ServerOption {
	return func(s *Server) { s.rules = ruleSet }
}

// WithServerRole sets the stem role for rule evaluation.
func WithServerRole(role bank.Role) ServerOption {
	return func(s *Server) { s.role = role }
}

// WithServerTrace enables trigger tracing for all sessions.
func WithServerTrace(store *tracelog.Store) ServerOption {
	return func(s *Server) { s.trace = store }
}

// WithServerLogger sets the server's logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithSessionGenerator replaces the session ID source.
func WithSessionGenerator(gen SessionGenerator) ServerOption {
	return func(s *Server) { s.sessions = gen }
}

// WithSequencerOptions appends options applied to every new session's
// sequencer, e.g. WithResolution.
func WithSequencerOptions(opts ...SequencerOption) ServerOption {
	return func(s *Server) { s.seqOpts = append(s.seqOpts, opts...) }
}

// NewServer creates a websocket playback server.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		role:     bank.RoleUnknown,
		logger:   slog.Default(),
		sessions: UUIDv7Sessions{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request and runs one playback session until
// the peer goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	session := s.sessions.Generate()
	logger := s.logger.With("session", session)

	engine := rules.NewEngine(rules.WithLogger(logger))
	if err := engine.Register(s.rules); err != nil {
		// Rules were validated at load; a failure here is a bug.
		logger.Error("rule registration failed", "error", err)
		return
	}

	opts := append([]SequencerOption{
		WithRole(s.role),
		WithSequencerLogger(logger),
	}, s.seqOpts...)
	if s.trace != nil {
		opts = append(opts, WithTrace(s.trace))
	}
	seq := NewSequencer(session, engine, opts...)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		seq.Run(ctx)
	}()

	// Writer: drains sequencer output onto the socket. Write failure
	// ends the session.
	go func() {
		for msg := range seq.Messages() {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("write failed, closing session", "error", err)
				cancel()
				return
			}
		}
	}()

	// Reader: the handler goroutine feeds commands until the peer
	// disconnects.
	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			logger.Info("client disconnected", "error", err)
			return
		}
		if err := seq.Send(ctx, cmd); err != nil {
			return
		}
	}
}
