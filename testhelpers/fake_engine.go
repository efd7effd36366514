// Package testhelpers holds fakes shared by tests in several packages.
package testhelpers

import (
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// Responder reacts to a command sent to a FakeEngine, usually by calling
// Emit.
type Responder func(e *FakeEngine, cmd string)

// FakeEngine is an in-memory transport.Transport. It records every command
// sent to it and delivers emitted lines asynchronously, in order, on a
// single goroutine, the way a real engine process would.
type FakeEngine struct {
	Respond  Responder
	StartErr error

	mu      sync.Mutex
	handler func(string)
	sent    []string
	queue   []string
	started bool
	err     error

	notify   chan struct{}
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	exitOnce sync.Once
}

func NewFakeEngine(respond Responder) *FakeEngine {
	return &FakeEngine{
		Respond: respond,
		notify:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// HandshakeResponder answers uci and isready immediately.
func HandshakeResponder(e *FakeEngine, cmd string) {
	switch cmd {
	case "uci":
		e.Emit("id name FakeFish 1.0", "id author gambit", "uciok")
	case "isready":
		e.Emit("readyok")
	}
}

// ScriptedResponder does the handshake and answers every go command with
// the given lines.
func ScriptedResponder(lines ...string) Responder {
	return func(e *FakeEngine, cmd string) {
		if strings.HasPrefix(cmd, "go ") {
			e.Emit(lines...)
			return
		}
		HandshakeResponder(e, cmd)
	}
}

// SetResponder replaces the responder while the engine is running.
func (e *FakeEngine) SetResponder(r Responder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Respond = r
}

func (e *FakeEngine) OnLine(fn func(string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = fn
}

func (e *FakeEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.StartErr != nil {
		e.err = e.StartErr
		e.exitOnce.Do(func() { close(e.done) })
		return e.StartErr
	}
	if e.started {
		return errors.New("already started")
	}
	e.started = true
	go e.pump()
	return nil
}

func (e *FakeEngine) pump() {
	for {
		select {
		case <-e.quit:
			return
		case <-e.notify:
		}
		for {
			e.mu.Lock()
			if len(e.queue) == 0 {
				e.mu.Unlock()
				break
			}
			line := e.queue[0]
			e.queue = e.queue[1:]
			h := e.handler
			e.mu.Unlock()
			if h != nil {
				h(line)
			}
		}
	}
}

// Emit queues lines as if the engine had printed them.
func (e *FakeEngine) Emit(lines ...string) {
	e.mu.Lock()
	e.queue = append(e.queue, lines...)
	e.mu.Unlock()
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

func (e *FakeEngine) Send(cmd string) {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.sent = append(e.sent, cmd)
	respond := e.Respond
	e.mu.Unlock()
	if respond != nil {
		respond(e, cmd)
	}
}

func (e *FakeEngine) Stop() {
	e.stopOnce.Do(func() {
		e.Send("quit")
		e.Exit(io.EOF)
	})
}

// Exit simulates the engine process dying.
func (e *FakeEngine) Exit(err error) {
	e.exitOnce.Do(func() {
		e.mu.Lock()
		e.err = err
		e.mu.Unlock()
		close(e.quit)
		close(e.done)
	})
}

func (e *FakeEngine) Done() <-chan struct{} {
	return e.done
}

func (e *FakeEngine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Sent returns a copy of every command sent so far.
func (e *FakeEngine) Sent() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.sent...)
}

// Count returns how many sent commands start with prefix.
func (e *FakeEngine) Count(prefix string) int {
	n := 0
	for _, c := range e.Sent() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// WaitForCount polls until at least n commands starting with prefix have
// been sent, or the timeout passes.
func (e *FakeEngine) WaitForCount(prefix string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.Count(prefix) >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return e.Count(prefix) >= n
}
