// Package narrative turns profile prompts into prose through a language
// model, keeping a bounded conversation history per session.
package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/couchcryptid/ocean-query-service/internal/observability"
)

// SystemPrompt frames every conversation.
const SystemPrompt = "You are a helpful assistant specialized in oceanography."

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message in a conversation.
type Turn struct {
	Role Role
	Text string
}

// Provider completes a prompt given the prior conversation.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system string, history []Turn, prompt string) (string, error)
}

// Config bounds the engine. MaxTurns counts prompt/answer pairs kept per
// session; Timeout applies to each provider call.
type Config struct {
	MaxTurns int
	Timeout  time.Duration
	IdleTTL  time.Duration
	Capacity uint64
}

type conversation struct {
	mu    sync.Mutex
	turns []Turn
}

// Engine implements pipeline.NarrativeEngine.
type Engine struct {
	provider Provider
	cfg      Config
	mu       sync.Mutex
	memory   *ttlcache.Cache[string, *conversation]
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewEngine creates an engine around provider. Call Start to begin expiring
// idle conversations.
func NewEngine(provider Provider, cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Engine {
	opts := []ttlcache.Option[string, *conversation]{
		ttlcache.WithTTL[string, *conversation](cfg.IdleTTL),
	}
	if cfg.Capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, *conversation](cfg.Capacity))
	}
	return &Engine{
		provider: provider,
		cfg:      cfg,
		memory:   ttlcache.New(opts...),
		metrics:  metrics,
		logger:   logger,
	}
}

// Start runs the idle-conversation expiry loop in the background.
func (e *Engine) Start() { go e.memory.Start() }

// Stop halts the expiry loop.
func (e *Engine) Stop() { e.memory.Stop() }

// Generate sends prompt with the session's history and records the exchange.
// Turns of one session are serialized; a failed call leaves history as it was.
func (e *Engine) Generate(ctx context.Context, sessionID, prompt string) (string, error) {
	conv := e.conversation(sessionID)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	name := e.provider.Name()
	start := time.Now()
	text, err := e.provider.Complete(ctx, SystemPrompt, conv.turns, prompt)
	e.metrics.NarrativeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.NarrativeRequests.WithLabelValues(name, "error").Inc()
		return "", fmt.Errorf("%s completion: %w", name, err)
	}
	e.metrics.NarrativeRequests.WithLabelValues(name, "success").Inc()

	conv.turns = append(conv.turns, Turn{Role: RoleUser, Text: prompt}, Turn{Role: RoleModel, Text: text})
	if limit := 2 * e.cfg.MaxTurns; limit > 0 && len(conv.turns) > limit {
		conv.turns = append([]Turn(nil), conv.turns[len(conv.turns)-limit:]...)
	}
	e.logger.Debug("narrative generated", "provider", name, "session_id", sessionID, "turns", len(conv.turns)/2)
	return text, nil
}

// History returns a copy of the session's retained turns.
func (e *Engine) History(sessionID string) []Turn {
	conv := e.conversation(sessionID)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return append([]Turn(nil), conv.turns...)
}

func (e *Engine) conversation(id string) *conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	if item := e.memory.Get(id); item != nil {
		return item.Value()
	}
	c := &conversation{}
	e.memory.Set(id, c, ttlcache.DefaultTTL)
	return c
}
