package transport

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
)

const helperEnv = "GAMBIT_TRANSPORT_HELPER"

// TestHelperEngine is not a real test. When re-executed by the tests below
// it acts as a tiny engine speaking just enough UCI.
func TestHelperEngine(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch line := scanner.Text(); {
		case line == "uci":
			fmt.Println("id name helper")
			fmt.Println("uciok")
		case line == "isready":
			fmt.Println("readyok")
		case strings.HasPrefix(line, "go"):
			for d := 1; d <= 3; d++ {
				fmt.Printf("info depth %d score cp %d\n", d, d*10)
			}
			fmt.Println("bestmove e2e4")
		case line == "hang":
			// ignore quit from here on
			for scanner.Scan() {
			}
			select {}
		case line == "quit":
			os.Exit(0)
		}
	}
	os.Exit(0)
}

func helperProcess(t *testing.T) *Process {
	t.Setenv(helperEnv, "1")
	return NewProcess(os.Args[0], 200*time.Millisecond, "-test.run=^TestHelperEngine$")
}

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
	seen  chan string
}

func newLineRecorder() *lineRecorder {
	return &lineRecorder{seen: make(chan string, 100)}
}

func (r *lineRecorder) record(line string) {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
	r.seen <- line
}

func (r *lineRecorder) waitFor(t *testing.T, want string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case l := <-r.seen:
			if l == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestProcessOrderedLines(t *testing.T) {
	is := is.New(t)
	p := helperProcess(t)
	rec := newLineRecorder()
	p.OnLine(rec.record)
	is.NoErr(p.Start())
	defer p.Stop()

	p.Send("uci")
	rec.waitFor(t, "uciok")
	p.Send("go movetime 100 depth 3")
	rec.waitFor(t, "bestmove e2e4")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	is.Equal(rec.lines, []string{
		"id name helper", "uciok",
		"info depth 1 score cp 10", "info depth 2 score cp 20", "info depth 3 score cp 30",
		"bestmove e2e4",
	})
}

func TestProcessStopIsIdempotent(t *testing.T) {
	is := is.New(t)
	p := helperProcess(t)
	is.NoErr(p.Start())
	p.Stop()
	p.Stop()
	select {
	case <-p.Done():
	default:
		t.Fatal("process should be done after Stop")
	}
}

func TestProcessStopKillsStuckEngine(t *testing.T) {
	is := is.New(t)
	p := helperProcess(t)
	is.NoErr(p.Start())
	p.Send("hang")
	p.Stop()
	<-p.Done()
	is.True(p.Err() != nil)
}

func TestProcessStartFailure(t *testing.T) {
	is := is.New(t)
	p := NewProcess("/nonexistent/engine/binary", time.Millisecond)
	err := p.Start()
	is.True(err != nil)
	<-p.Done()
	is.True(p.Err() != nil)
	// sending and stopping a dead transport are harmless
	p.Send("uci")
	p.Stop()
}

func TestSendBeforeStartIsDropped(t *testing.T) {
	p := NewProcess("stockfish", time.Millisecond)
	p.Send("uci")
	p.Stop()
}
