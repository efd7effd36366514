package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/domino14/gambit/config"
	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/transport"
)

// Negotiator owns one engine and hands out one best move at a time. It is
// not meant to be shared between games; concurrent RequestMove calls are
// rejected with ErrSearchInFlight rather than queued.
type Negotiator struct {
	session *Session
	presets difficulty.Presets

	pollInterval  time.Duration
	readyAttempts uint
	searchGrace   time.Duration

	mu    sync.Mutex
	level difficulty.Level
}

func optionsFromConfig(cfg *config.Config) Options {
	return Options{
		Threads:        cfg.GetInt(config.ConfigEngineThreads),
		HashMB:         cfg.GetInt(config.ConfigEngineHashMB),
		MoveOverheadMs: cfg.GetInt(config.ConfigEngineMoveOverheadMs),
		Contempt:       cfg.GetInt(config.ConfigEngineContempt),
		MultiPV:        cfg.GetInt(config.ConfigEngineMultiPV),
	}
}

// New starts a negotiator on the given transport. The engine handshake
// runs in the background; New only fails if the transport can't start.
func New(cfg *config.Config, t transport.Transport, presets difficulty.Presets,
	level difficulty.Level) (*Negotiator, error) {

	profile, err := presets.Get(level)
	if err != nil {
		return nil, err
	}
	attempts := cfg.GetInt(config.ConfigEngineReadyAttempts)
	if attempts < 0 {
		attempts = 0
	}
	n := &Negotiator{
		session:       NewSession(t, optionsFromConfig(cfg), profile),
		presets:       presets,
		pollInterval:  cfg.GetDuration(config.ConfigEngineReadyPollInterval),
		readyAttempts: uint(attempts),
		searchGrace:   cfg.GetDuration(config.ConfigEngineSearchGrace),
		level:         level,
	}
	if err := n.session.Start(); err != nil {
		return nil, err
	}
	return n, nil
}

// Start launches the engine binary named in the config.
func Start(cfg *config.Config, presets difficulty.Presets, level difficulty.Level) (*Negotiator, error) {
	t := transport.NewProcess(cfg.GetString(config.ConfigEnginePath),
		cfg.GetDuration(config.ConfigEngineQuitGrace))
	return New(cfg, t, presets, level)
}

func (n *Negotiator) Difficulty() difficulty.Level {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.level
}

func (n *Negotiator) Presets() difficulty.Presets {
	return n.presets
}

func (n *Negotiator) State() State {
	return n.session.State()
}

func (n *Negotiator) EngineName() string {
	return n.session.EngineName()
}

// SetDifficulty swaps the active profile. A ready engine is reconfigured
// immediately; a search already in flight keeps its settings and the
// change takes effect on the next RequestMove.
func (n *Negotiator) SetDifficulty(level difficulty.Level) error {
	profile, err := n.presets.Get(level)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.level = level
	n.mu.Unlock()
	n.session.Configure(profile)
	return nil
}

// NewGame resets the engine's per-game state (hash, history).
func (n *Negotiator) NewGame() {
	n.session.NewGame()
}

// RequestMove asks the engine for its best move in the position given by
// fen, searching at the given difficulty. It returns a move token such as
// "e2e4" or "e7e8q".
func (n *Negotiator) RequestMove(ctx context.Context, fen string, level difficulty.Level) (string, error) {
	profile, err := n.presets.Get(level)
	if err != nil {
		return "", err
	}
	n.mu.Lock()
	n.level = level
	n.mu.Unlock()

	if err := n.waitReady(ctx); err != nil {
		return "", err
	}

	req := SearchRequest{
		Position:    fen,
		DepthLimit:  profile.SearchDepth,
		TimeLimitMs: profile.MoveTimeMs,
	}
	sr, err := n.session.beginSearch(req, profile)
	if err != nil {
		return "", err
	}
	log.Debug().Str("fen", fen).Str("difficulty", string(level)).Msg("search-started")

	budget := time.Duration(profile.MoveTimeMs)*time.Millisecond + n.searchGrace
	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case res := <-sr.result:
		return res.move, res.err
	case <-ctx.Done():
		return n.abandon(sr, ctx.Err())
	case <-timer.C:
		return n.abandon(sr, ErrSearchTimeout)
	}
}

// abandon tells the engine to stop and gives it one grace period to come
// back with a move. If it doesn't, the session resyncs with isready, or
// kills an engine that no longer answers at all.
func (n *Negotiator) abandon(sr *search, cause error) (string, error) {
	log.Warn().Err(cause).Str("fen", sr.req.Position).Msg("abandoning-search")
	n.session.requestStop(sr)
	select {
	case res := <-sr.result:
		return res.move, res.err
	case <-time.After(n.searchGrace):
	}
	alive := n.session.resyncAfter(sr, n.searchGrace)
	select {
	case res := <-sr.result:
		// bestmove came in while we were resyncing
		if res.err == nil {
			return res.move, nil
		}
	default:
	}
	if !alive {
		return "", fmt.Errorf("%w: %w", cause, ErrWorkerUnavailable)
	}
	return "", cause
}

func (n *Negotiator) waitReady(ctx context.Context) error {
	err := retry.Do(
		func() error {
			switch n.session.State() {
			case Ready, SearchInFlight:
				// SearchInFlight is rejected by beginSearch.
				return nil
			case Terminated:
				return retry.Unrecoverable(ErrTerminated)
			}
			return errNotReady
		},
		retry.Context(ctx),
		retry.Attempts(n.readyAttempts),
		retry.Delay(n.pollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTerminated):
		if exitErr := n.session.exitError(); exitErr != nil {
			return fmt.Errorf("%w: %w", ErrWorkerUnavailable, exitErr)
		}
		return ErrTerminated
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return fmt.Errorf("%w: not ready after %d polls", ErrWorkerUnavailable, n.readyAttempts)
}

// Dispose shuts the engine down. Calling it more than once is harmless.
func (n *Negotiator) Dispose() {
	n.session.Terminate()
}
