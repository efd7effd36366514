// Package engine negotiates moves with an external UCI engine: it walks the
// engine through its handshake, keeps its options in line with the chosen
// difficulty, and turns a position into exactly one best move.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/transport"
	"github.com/domino14/gambit/uci"
)

var (
	ErrWorkerUnavailable = errors.New("engine worker unavailable")
	ErrTerminated        = errors.New("engine session terminated")
	ErrSearchInFlight    = errors.New("a search is already in flight")
	ErrSearchTimeout     = errors.New("engine did not answer in time")
	ErrMalformedBestMove = errors.New("engine returned a malformed best move")

	errNotReady           = errors.New("engine not ready")
	errEngineUnresponsive = errors.New("engine stopped responding")
)

// MinEarlyStopDepth is the shallowest depth whose score is trusted enough
// to cut a search short.
const MinEarlyStopDepth = 4

type State int

const (
	Uninitialized State = iota
	Handshaking
	Ready
	SearchInFlight
	Terminated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Handshaking:
		return "handshaking"
	case Ready:
		return "ready"
	case SearchInFlight:
		return "search-in-flight"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options are the engine settings that don't depend on difficulty.
type Options struct {
	Threads        int
	HashMB         int
	MoveOverheadMs int
	Contempt       int
	MultiPV        int
}

// SearchRequest is built fresh for every move request.
type SearchRequest struct {
	Position    string
	DepthLimit  int
	TimeLimitMs int
}

type searchResult struct {
	move   string
	ponder string
	err    error
}

// search is the single in-flight request. Its result channel is a one-shot
// slot with room for exactly one value.
type search struct {
	req      SearchRequest
	profile  difficulty.Profile
	stopSent bool
	result   chan searchResult
}

func (sr *search) resolve(res searchResult) {
	sr.result <- res
}

// Session drives one engine through its states. All state changes happen
// under mu, and commands are sent while holding it so they reach the engine
// in the order they were decided.
type Session struct {
	t    transport.Transport
	opts Options

	mu         sync.Mutex
	state      State
	active     difficulty.Profile
	applied    difficulty.Profile
	hasApplied bool
	current    *search
	engineName string
	exitErr    error
	// ucinewgame requested before the handshake finished
	newGamePending bool
	// closed when the engine answers the isready sent after an abandoned
	// search
	resync chan struct{}

	stopOnce sync.Once
}

func NewSession(t transport.Transport, opts Options, profile difficulty.Profile) *Session {
	return &Session{t: t, opts: opts, active: profile}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EngineName is whatever the engine reported in its "id name" line.
func (s *Session) EngineName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engineName
}

// Start launches the engine and sends the opening handshake. It does not
// wait for the engine to become ready.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Uninitialized {
		return fmt.Errorf("cannot start session in state %s", s.state)
	}
	s.t.OnLine(s.handleLine)
	if err := s.t.Start(); err != nil {
		s.state = Terminated
		s.exitErr = err
		return fmt.Errorf("%w: %w", ErrWorkerUnavailable, err)
	}
	s.state = Handshaking
	s.t.Send(uci.CmdUCI)
	go s.watchExit()
	return nil
}

func (s *Session) watchExit() {
	<-s.t.Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Terminated {
		return
	}
	s.exitErr = s.t.Err()
	log.Error().Err(s.exitErr).Str("state", s.state.String()).Msg("engine-exited-unexpectedly")
	s.state = Terminated
	s.failCurrent(fmt.Errorf("%w: %w", ErrWorkerUnavailable, s.exitErr))
	s.endResync()
}

// Terminate kills the engine. It may be called any number of times.
func (s *Session) Terminate() {
	s.mu.Lock()
	if s.state != Terminated {
		s.state = Terminated
		s.failCurrent(ErrTerminated)
		s.endResync()
	}
	s.mu.Unlock()
	// Stop waits for the reader goroutine, which may be waiting on mu.
	s.stopOnce.Do(s.t.Stop)
}

// Configure makes profile the active one. A ready engine gets the new
// options right away; otherwise they go out once it is ready or at the
// start of the next search.
func (s *Session) Configure(profile difficulty.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = profile
	if s.state == Ready {
		s.applyConfig()
	}
}

// NewGame tells the engine that the next position is unrelated to the
// previous ones. Before the handshake completes it is held until readyok.
func (s *Session) NewGame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Ready:
		s.t.Send(uci.CmdNewGame)
	case Uninitialized, Handshaking:
		s.newGamePending = true
	}
}

func (s *Session) applyConfig() {
	p := s.active
	s.t.Send(uci.SetOption(uci.OptSkillLevel, p.SkillLevel))
	s.t.Send(uci.SetOption(uci.OptMultiPV, s.opts.MultiPV))
	s.t.Send(uci.SetOption(uci.OptContempt, s.opts.Contempt))
	s.t.Send(uci.SetOption(uci.OptHash, s.opts.HashMB))
	s.t.Send(uci.SetOption(uci.OptThreads, s.opts.Threads))
	s.t.Send(uci.SetOption(uci.OptMoveOverhead, s.opts.MoveOverheadMs))
	s.applied = p
	s.hasApplied = true
	log.Debug().Str("difficulty", string(p.Name)).Int("skill", p.SkillLevel).Msg("engine-configured")
}

// beginSearch moves a ready session to SearchInFlight and sends the
// position and search commands.
func (s *Session) beginSearch(req SearchRequest, profile difficulty.Profile) (*search, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Ready:
	case SearchInFlight:
		return nil, ErrSearchInFlight
	case Terminated:
		return nil, ErrTerminated
	default:
		return nil, errNotReady
	}
	if !s.hasApplied || s.applied != profile {
		s.active = profile
		s.applyConfig()
	}
	sr := &search{req: req, profile: profile, result: make(chan searchResult, 1)}
	s.current = sr
	s.state = SearchInFlight
	s.t.Send(uci.PositionFEN(req.Position))
	s.t.Send(uci.Go(req.TimeLimitMs, req.DepthLimit))
	return sr, nil
}

// requestStop asks the engine to finish sr early. The move still comes
// from the engine's bestmove line.
func (s *Session) requestStop(sr *search) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != sr || sr.stopSent {
		return
	}
	sr.stopSent = true
	s.t.Send(uci.CmdStop)
}

// resyncAfter is called once the caller has given up on sr. If the engine
// is still searching, it gets isready; readyok proves it is alive, so sr is
// dropped and the session is Ready again. An engine that answers neither
// within wait is killed, and later requests fail with ErrWorkerUnavailable.
func (s *Session) resyncAfter(sr *search, wait time.Duration) bool {
	s.mu.Lock()
	if s.current != sr || s.state != SearchInFlight {
		s.mu.Unlock()
		return s.State() != Terminated
	}
	done := make(chan struct{})
	s.resync = done
	s.t.Send(uci.CmdIsReady)
	s.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-done:
		return s.State() != Terminated
	case <-timer.C:
	}
	s.abort(errEngineUnresponsive)
	return false
}

func (s *Session) endResync() {
	if s.resync != nil {
		close(s.resync)
		s.resync = nil
	}
}

// abort kills an engine that is misbehaving. Unlike Terminate, the session
// remembers why, so callers see ErrWorkerUnavailable.
func (s *Session) abort(cause error) {
	s.mu.Lock()
	if s.state != Terminated {
		log.Error().Err(cause).Str("state", s.state.String()).Msg("aborting-engine")
		s.exitErr = cause
		s.state = Terminated
		s.failCurrent(fmt.Errorf("%w: %w", ErrWorkerUnavailable, cause))
		s.endResync()
	}
	s.mu.Unlock()
	s.stopOnce.Do(s.t.Stop)
}

func (s *Session) failCurrent(err error) {
	if s.current == nil {
		return
	}
	s.current.resolve(searchResult{err: err})
	s.current = nil
}

// shouldStopEarly reports whether a progress line is decisive enough for
// profile to cut the search short.
func shouldStopEarly(profile difficulty.Profile, pl uci.ProgressLine) bool {
	if !profile.HasEarlyStop() || pl.IsMate || pl.Depth < MinEarlyStopDepth {
		return false
	}
	return abs(pl.ScoreCP) > profile.EarlyStopThreshold
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func (s *Session) handleLine(line string) {
	parsed := uci.Parse(line)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Terminated {
		return
	}

	switch l := parsed.(type) {
	case uci.HandshakeLine:
		switch {
		case l.Kind == uci.HandshakeUCIOK && s.state == Handshaking:
			s.t.Send(uci.CmdIsReady)
		case l.Kind == uci.HandshakeReadyOK && s.state == Handshaking:
			s.state = Ready
			log.Info().Str("engine", s.engineName).Msg("engine-ready")
			s.applyConfig()
			if s.newGamePending {
				s.newGamePending = false
				s.t.Send(uci.CmdNewGame)
			}
		case l.Kind == uci.HandshakeReadyOK && s.state == SearchInFlight && s.resync != nil:
			log.Warn().Str("fen", s.current.req.Position).Msg("dropping-abandoned-search")
			s.current = nil
			s.state = Ready
			s.endResync()
		default:
			log.Debug().Str("line", line).Str("state", s.state.String()).Msg("ignoring-handshake-line")
		}

	case uci.IDLine:
		if l.Key == "name" {
			s.engineName = l.Value
		}

	case uci.ProgressLine:
		sr := s.current
		if sr == nil || sr.stopSent {
			return
		}
		if shouldStopEarly(sr.profile, l) {
			log.Debug().Int("depth", l.Depth).Int("cp", l.ScoreCP).
				Int("threshold", sr.profile.EarlyStopThreshold).Msg("early-stop")
			sr.stopSent = true
			s.t.Send(uci.CmdStop)
		}

	case uci.BestMoveLine:
		sr := s.current
		if sr == nil {
			log.Debug().Str("line", line).Msg("stale-bestmove-ignored")
			return
		}
		s.current = nil
		s.state = Ready
		s.endResync()
		if !uci.ValidMoveToken(l.Move) {
			sr.resolve(searchResult{err: fmt.Errorf("%w: %q", ErrMalformedBestMove, l.Move)})
			return
		}
		sr.resolve(searchResult{move: l.Move, ponder: l.Ponder})

	case uci.Unrecognized:
		log.Debug().Str("line", line).Msg("engine>")
	}
}

// exitError is set when the engine died or never started, as opposed to
// being terminated on purpose.
func (s *Session) exitError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}
