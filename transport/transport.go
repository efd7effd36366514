// Package transport owns the lifecycle of an external engine process and
// moves text lines to and from it.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/domino14/gambit/uci"
)

var ErrNotStarted = errors.New("engine process not started")

// Transport is a line-oriented pipe to an engine. Lines handed to the
// OnLine callback arrive one at a time, in the order the engine produced
// them. Send is fire-and-forget.
type Transport interface {
	Start() error
	Send(cmd string)
	OnLine(func(line string))
	// Stop asks the engine to quit and then kills it. Safe to call twice.
	Stop()
	// Done is closed once the engine has exited (or failed to start).
	Done() <-chan struct{}
	// Err describes why the engine exited. Only meaningful after Done.
	Err() error
}

// Process runs an engine binary and talks to it over stdin/stdout.
type Process struct {
	path      string
	args      []string
	quitGrace time.Duration

	cmd *exec.Cmd
	in  *bufio.Writer

	mu       sync.Mutex
	handler  func(string)
	started  bool
	stopOnce sync.Once
	done     chan struct{}
	err      error
}

func NewProcess(path string, quitGrace time.Duration, args ...string) *Process {
	return &Process{
		path:      path,
		args:      args,
		quitGrace: quitGrace,
		done:      make(chan struct{}),
	}
}

func (p *Process) OnLine(fn func(line string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = fn
}

func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("engine process already started")
	}
	cmd := exec.Command(p.path, p.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return p.failStart(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return p.failStart(err)
	}
	if err := cmd.Start(); err != nil {
		return p.failStart(err)
	}
	p.cmd = cmd
	p.in = bufio.NewWriter(stdin)
	p.started = true
	log.Debug().Str("path", p.path).Int("pid", cmd.Process.Pid).Msg("engine-started")

	go p.readLoop(stdout)
	return nil
}

func (p *Process) failStart(err error) error {
	err = fmt.Errorf("starting %s: %w", p.path, err)
	p.err = err
	close(p.done)
	return err
}

func (p *Process) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		p.mu.Lock()
		h := p.handler
		p.mu.Unlock()
		if h != nil {
			h(line)
		}
	}
	scanErr := scanner.Err()
	waitErr := p.cmd.Wait()

	p.mu.Lock()
	switch {
	case scanErr != nil:
		p.err = scanErr
	case waitErr != nil:
		p.err = waitErr
	default:
		p.err = io.EOF
	}
	p.mu.Unlock()
	log.Debug().Err(p.Err()).Str("path", p.path).Msg("engine-exited")
	close(p.done)
}

func (p *Process) Send(cmd string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		log.Debug().Str("cmd", cmd).Msg("send-before-start-dropped")
		return
	}
	log.Debug().Str("cmd", cmd).Msg("engine<")
	if _, err := fmt.Fprintln(p.in, cmd); err != nil {
		log.Warn().Err(err).Str("cmd", cmd).Msg("engine-write-failed")
		return
	}
	if err := p.in.Flush(); err != nil {
		log.Warn().Err(err).Str("cmd", cmd).Msg("engine-flush-failed")
	}
}

func (p *Process) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		started := p.started
		p.mu.Unlock()
		if !started {
			return
		}
		p.Send(uci.CmdQuit)
		select {
		case <-p.done:
			return
		case <-time.After(p.quitGrace):
		}
		if err := p.cmd.Process.Kill(); err != nil {
			log.Debug().Err(err).Msg("engine-kill")
		}
		<-p.done
	})
}

func (p *Process) Done() <-chan struct{} {
	return p.done
}

func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
