// Package shell is an interactive terminal front end: play a game against
// the engine, run engine matches, and script either with Lua.
package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog/log"

	"github.com/domino14/gambit/automatic"
	"github.com/domino14/gambit/config"
	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/engine"
	"github.com/domino14/gambit/game"
	"github.com/domino14/gambit/store"
)

var (
	errNoData            = errors.New("no data in this line")
	errWrongOptionSyntax = errors.New("wrong format; all options need arguments")
	errNoGame            = errors.New("no game in progress; start one with `new`")
)

// Engine is the engine side of a shell game; *engine.Negotiator
// satisfies it.
type Engine interface {
	game.MoveRequester
	SetDifficulty(level difficulty.Level) error
	NewGame()
	Dispose()
}

type EngineFactory func(level difficulty.Level) (Engine, error)

type shellcmd struct {
	cmd     string
	args    []string
	options map[string]string
}

type Response struct {
	message string
}

func msg(message string) *Response {
	return &Response{message: message}
}

type ShellController struct {
	l        *readline.Instance
	config   *config.Config
	execPath string
	presets  difficulty.Presets
	store    *store.Store

	newEngine   EngineFactory
	matchEngine func(level difficulty.Level) automatic.EngineFactory

	engine Engine
	game   *game.Game
	level  difficulty.Level
	saved  bool
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func writeln(msg string, w io.Writer) {
	io.WriteString(w, msg)
	io.WriteString(w, "\n")
}

func (sc *ShellController) showMessage(msg string) {
	writeln(msg, sc.l.Stderr())
}

func (sc *ShellController) showError(err error) {
	sc.showMessage("Error: " + err.Error())
}

// newController builds a controller without a terminal.
func newController(cfg *config.Config, presets difficulty.Presets, st *store.Store,
	factory EngineFactory) *ShellController {

	level, err := difficulty.ParseLevel(cfg.GetString(config.ConfigDefaultDifficulty))
	if err != nil {
		log.Warn().Err(err).Msg("using-medium-difficulty")
		level = difficulty.Medium
	}
	return &ShellController{
		config:    cfg,
		presets:   presets,
		store:     st,
		newEngine: factory,
		matchEngine: func(l difficulty.Level) automatic.EngineFactory {
			return automatic.NegotiatorFactory(cfg, presets, l)
		},
		level: level,
	}
}

func NewShellController(cfg *config.Config, execPath string, presets difficulty.Presets,
	st *store.Store) *ShellController {

	factory := func(level difficulty.Level) (Engine, error) {
		return engine.Start(cfg, presets, level)
	}
	remote, err := remoteFactory(cfg)
	if err != nil {
		log.Error().Err(err).Msg("using-local-engine")
	} else if remote != nil {
		log.Info().Str("remote", cfg.GetString(config.ConfigEngineRemote)).Msg("using-remote-engine")
		factory = remote
	}
	sc := newController(cfg, presets, st, factory)
	sc.execPath = execPath

	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[31mgambit>\033[0m ",
		HistoryFile:     "/tmp/gambit_readline.tmp",
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",
		AutoComplete:    NewShellCompleter(sc),

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}
	sc.l = l
	return sc
}

func extractFields(line string) (*shellcmd, error) {
	fields, err := shellquote.Split(line)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errNoData
	}
	cmd := fields[0]
	var args []string
	options := map[string]string{}
	for idx := 1; idx < len(fields); idx++ {
		f := fields[idx]
		if len(f) > 1 && strings.HasPrefix(f, "-") {
			if idx == len(fields)-1 {
				return nil, errWrongOptionSyntax
			}
			options[f[1:]] = fields[idx+1]
			idx++
			continue
		}
		args = append(args, f)
	}
	return &shellcmd{cmd: cmd, args: args, options: options}, nil
}

func (sc *ShellController) handle(cmd *shellcmd) (*Response, error) {
	switch cmd.cmd {
	case "new", "n":
		return sc.newGame(cmd)
	case "move", "m", "play":
		return sc.move(cmd)
	case "engine", "go", "e":
		return sc.engineMove(cmd)
	case "difficulty", "level", "d":
		return sc.difficulty(cmd)
	case "fen":
		return sc.fen(cmd)
	case "board", "show", "s":
		return sc.show(cmd)
	case "pgn":
		return sc.pgn(cmd)
	case "load":
		return sc.load(cmd)
	case "status":
		return sc.status(cmd)
	case "moves":
		return sc.moves(cmd)
	case "reset":
		return sc.reset(cmd)
	case "presets":
		return msg(sc.presets.String()), nil
	case "autoplay":
		return sc.autoplay(cmd)
	case "games":
		return sc.games(cmd)
	case "script":
		return sc.script(cmd)
	case "help", "h", "?":
		return sc.help(cmd)
	default:
		m := fmt.Sprintf("command %v not found", strconv.Quote(cmd.cmd))
		log.Info().Msg(m)
		return nil, errors.New(m)
	}
}

// Execute runs a single command line, as if typed at the prompt.
func (sc *ShellController) Execute(line string) (*Response, error) {
	cmd, err := extractFields(line)
	if err != nil {
		return nil, err
	}
	return sc.handle(cmd)
}

func (sc *ShellController) Loop(sig chan os.Signal) {
	defer sc.l.Close()

	for {
		line, err := sc.l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				sig <- syscall.SIGINT
				break
			} else {
				continue
			}
		} else if err == io.EOF {
			sig <- syscall.SIGINT
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" {
			sig <- syscall.SIGINT
			break
		}
		resp, err := sc.Execute(line)
		if err != nil {
			sc.showError(err)
		} else if resp != nil {
			sc.showMessage(resp.message)
		}
	}
	log.Debug().Msgf("Exiting readline loop...")
}

// Cleanup shuts down the engine.
func (sc *ShellController) Cleanup() {
	if sc.engine != nil {
		sc.engine.Dispose()
		sc.engine = nil
	}
}
