package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"

	"github.com/domino14/gambit/config"
	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/game"
	"github.com/domino14/gambit/store"
)

func TestExtractFields(t *testing.T) {
	is := is.New(t)
	type testdata struct {
		line   string
		expCmd *shellcmd
		expErr error
	}
	cases := []testdata{
		{"", nil, errNoData},
		{"autoplay -file /path/to/log.txt",
			&shellcmd{"autoplay", nil, map[string]string{"file": "/path/to/log.txt"}},
			nil},
		{"move e2e4",
			&shellcmd{"move", []string{"e2e4"}, map[string]string{}},
			nil},
		{"new black -difficulty hard ",
			&shellcmd{"new",
				[]string{"black"},
				map[string]string{"difficulty": "hard"}},
			nil,
		},
		{"fen rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
			&shellcmd{"fen",
				[]string{"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR", "b", "KQkq", "-", "0", "1"},
				map[string]string{}},
			nil,
		},
		{"autoplay -games 4 -file",
			nil, errWrongOptionSyntax},
	}
	for _, t := range cases {
		cmd, err := extractFields(t.line)
		is.Equal(cmd, t.expCmd)
		is.Equal(err, t.expErr)
	}
}

type stubEngine struct {
	moves    []string
	levels   []difficulty.Level
	asked    []difficulty.Level
	newGames int
	disposed bool
}

func (s *stubEngine) RequestMove(ctx context.Context, fen string, level difficulty.Level) (string, error) {
	if len(s.moves) == 0 {
		return "", errors.New("out of moves")
	}
	m := s.moves[0]
	s.moves = s.moves[1:]
	s.asked = append(s.asked, level)
	return m, nil
}

func (s *stubEngine) SetDifficulty(level difficulty.Level) error {
	s.levels = append(s.levels, level)
	return nil
}

func (s *stubEngine) NewGame() { s.newGames++ }

func (s *stubEngine) Dispose() { s.disposed = true }

func testController(t *testing.T, moves ...string) (*ShellController, *stubEngine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "games.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	eng := &stubEngine{moves: moves}
	sc := newController(config.DefaultConfig(), difficulty.DefaultPresets(), st,
		func(level difficulty.Level) (Engine, error) { return eng, nil })
	return sc, eng, st
}

func TestFoolsMate(t *testing.T) {
	is := is.New(t)
	sc, eng, st := testController(t, "e7e5", "d8h4")

	_, err := sc.Execute("new white")
	is.NoErr(err)
	is.Equal(eng.newGames, 1)

	resp, err := sc.Execute("move f2f3")
	is.NoErr(err)
	is.True(strings.HasPrefix(resp.message, "Engine plays e7e5\n"))

	resp, err = sc.Execute("move g2g4")
	is.NoErr(err)
	is.True(strings.HasPrefix(resp.message, "Engine plays d8h4\n"))

	resp, err = sc.Execute("status")
	is.NoErr(err)
	is.Equal(resp.message, "Checkmate! Black wins!")

	_, err = sc.Execute("move a2a3")
	is.True(errors.Is(err, game.ErrGameOver))

	recs, err := st.RecentGames(context.Background(), 5)
	is.NoErr(err)
	is.Equal(len(recs), 1)
	is.Equal(recs[0].Result, "0-1")
	is.Equal(recs[0].White, "human")
	is.Equal(recs[0].Black, "engine:medium")
	is.Equal(recs[0].Plies, 4)

	resp, err = sc.Execute("games")
	is.NoErr(err)
	is.True(strings.Contains(resp.message, "0-1"))

	sc.Cleanup()
	is.True(eng.disposed)
}

func TestEngineMovesFirstForBlack(t *testing.T) {
	is := is.New(t)
	sc, _, _ := testController(t, "e2e4")
	resp, err := sc.Execute("new black")
	is.NoErr(err)
	is.True(strings.HasPrefix(resp.message, "Engine plays e2e4"))
	is.True(sc.game.HumanToMove())

	_, err = sc.Execute("engine")
	// the stub has no more moves
	is.True(err != nil)
}

func TestIllegalMoveLeavesGame(t *testing.T) {
	is := is.New(t)
	sc, _, _ := testController(t)
	_, err := sc.Execute("move e2e4")
	is.Equal(err, errNoGame)

	_, err = sc.Execute("new")
	is.NoErr(err)
	_, err = sc.Execute("move e2e5")
	is.True(errors.Is(err, game.ErrIllegalMove))
	is.Equal(sc.game.Plies(), 0)
}

func TestDifficulty(t *testing.T) {
	is := is.New(t)
	sc, eng, _ := testController(t)

	resp, err := sc.Execute("difficulty")
	is.NoErr(err)
	is.Equal(resp.message, "difficulty: medium")

	_, err = sc.Execute("difficulty insane")
	is.True(errors.Is(err, difficulty.ErrUnknownLevel))

	_, err = sc.Execute("new -difficulty easy")
	is.NoErr(err)
	is.Equal(sc.game.Difficulty(), difficulty.Easy)

	_, err = sc.Execute("difficulty hard")
	is.NoErr(err)
	is.Equal(eng.levels, []difficulty.Level{difficulty.Easy, difficulty.Hard})
	is.Equal(sc.game.Difficulty(), difficulty.Hard)
}

func TestDifficultyBetweenEngineMoves(t *testing.T) {
	is := is.New(t)
	sc, eng, _ := testController(t, "e2e4", "g1f3")

	// the engine moves first and has finished by the time new returns
	resp, err := sc.Execute("new black -difficulty easy")
	is.NoErr(err)
	is.True(strings.HasPrefix(resp.message, "Engine plays e2e4\n"))

	_, err = sc.Execute("difficulty hard")
	is.NoErr(err)
	_, err = sc.Execute("move e7e5")
	is.NoErr(err)
	is.Equal(eng.levels, []difficulty.Level{difficulty.Easy, difficulty.Hard})
	is.Equal(eng.asked, []difficulty.Level{difficulty.Easy, difficulty.Hard})
}

func TestFen(t *testing.T) {
	is := is.New(t)
	sc, _, _ := testController(t, "g8f6")
	fen := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	_, err := sc.Execute("fen " + fen)
	is.NoErr(err)
	// the human gets the side to move
	is.True(sc.game.HumanToMove())

	resp, err := sc.Execute("fen")
	is.NoErr(err)
	is.True(strings.HasPrefix(resp.message, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq"))

	_, err = sc.Execute("fen not-a-fen")
	is.True(err != nil)
}

func TestLoadPGN(t *testing.T) {
	is := is.New(t)
	sc, eng, _ := testController(t, "d2d3")
	path := filepath.Join(t.TempDir(), "italian.pgn")
	pgn := "[Event \"Club night\"]\n[Result \"*\"]\n\n1. e4 e5 2. Nf3 Nc6 3. Bc4 *\n"
	is.NoErr(os.WriteFile(path, []byte(pgn), 0o644))

	_, err := sc.Execute("load " + path)
	is.NoErr(err)
	is.Equal(eng.newGames, 1)
	is.True(sc.game.HumanToMove())
	is.Equal(sc.game.Plies(), 5)

	// black to move, and the human has it
	resp, err := sc.Execute("move g8f6")
	is.NoErr(err)
	is.True(strings.HasPrefix(resp.message, "Engine plays d2d3\n"))

	_, err = sc.Execute("load " + filepath.Join(t.TempDir(), "nope.pgn"))
	is.True(err != nil)
	_, err = sc.Execute("load")
	is.True(err != nil)
}

func TestScript(t *testing.T) {
	is := is.New(t)
	sc, _, st := testController(t, "e7e5", "d8h4")
	dir := t.TempDir()
	script := filepath.Join(dir, "mate.lua")
	err := os.WriteFile(script, []byte(`
gambit_new("white")
gambit_move("f2f3")
gambit_move("g2g4")
if not gambit_over() then
  error("game should be over")
end
local s = gambit_status()
if s ~= "Checkmate! Black wins!" then
  error("unexpected status " .. s)
end
local bad = gambit_move("a2a3")
if string.sub(bad, 1, 6) ~= "ERROR:" then
  error("expected an error")
end
`), 0o644)
	is.NoErr(err)

	_, err = sc.Execute("script " + script)
	is.NoErr(err)
	recs, err := st.RecentGames(context.Background(), 5)
	is.NoErr(err)
	is.Equal(len(recs), 1)

	_, err = sc.Execute("script " + filepath.Join(dir, "missing.lua"))
	is.True(err != nil)
}

func TestScriptModules(t *testing.T) {
	is := is.New(t)
	sc, _, _ := testController(t, "e7e5")

	var posted map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"move":"e2e4"}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &posted)
	}))
	defer srv.Close()

	script := filepath.Join(t.TempDir(), "remote.lua")
	err := os.WriteFile(script, []byte(fmt.Sprintf(`
local json = require("json")
local http = require("http")
local url = %q
gambit_new("white")
local resp, err = http.get(url)
if err then error(err) end
local m = json.decode(resp.body)
gambit_move(m.move)
http.post(url, {body = json.encode({moves = gambit_moves(), over = gambit_over()})})
`, srv.URL)), 0o644)
	is.NoErr(err)

	_, err = sc.Execute("script " + script)
	is.NoErr(err)
	is.Equal(sc.game.Moves(), []string{"e2e4", "e7e5"})
	is.Equal(posted["over"], false)
	is.True(strings.Contains(posted["moves"].(string), "g1f3"))
}

func TestHelp(t *testing.T) {
	sc, _, _ := testController(t)
	resp, err := sc.Execute("help")
	assert.NoError(t, err)
	assert.Contains(t, resp.message, "autoplay")
	resp, err = sc.Execute("help script")
	assert.NoError(t, err)
	assert.Contains(t, resp.message, "gambit_over")
	_, err = sc.Execute("help nothing")
	assert.Error(t, err)
	_, err = sc.Execute("frobnicate")
	assert.EqualError(t, err, `command "frobnicate" not found`)
}

func TestCompleter(t *testing.T) {
	sc, _, _ := testController(t)
	c := NewShellCompleter(sc)

	matches, n := c.Do([]rune("autop"), 5)
	assert.Equal(t, [][]rune{[]rune("lay")}, matches)
	assert.Equal(t, 5, n)

	matches, n = c.Do([]rune("difficulty h"), 12)
	assert.Equal(t, [][]rune{[]rune("ard")}, matches)
	assert.Equal(t, 1, n)

	matches, _ = c.Do([]rune("new -difficulty "), 16)
	assert.Len(t, matches, 3)
}

func TestRemoteFactory(t *testing.T) {
	is := is.New(t)
	cfg := config.DefaultConfig()
	f, err := remoteFactory(cfg)
	is.NoErr(err)
	is.True(f == nil)

	cfg.Set(config.ConfigEngineRemote, "carrier-pigeon")
	_, err = remoteFactory(cfg)
	is.True(err != nil)

	cfg.Set(config.ConfigEngineRemote, "lambda")
	f, err = remoteFactory(cfg)
	is.NoErr(err)
	is.True(f != nil)
}

func TestRemoteEngine(t *testing.T) {
	is := is.New(t)
	closed := false
	r := &remoteEngine{
		MoveRequester: game.MoveRequesterFunc(func(ctx context.Context, fen string, level difficulty.Level) (string, error) {
			return "e7e5", nil
		}),
		close: func() { closed = true },
	}
	sc := newController(config.DefaultConfig(), difficulty.DefaultPresets(), nil,
		func(difficulty.Level) (Engine, error) { return r, nil })
	_, err := sc.Execute("new white")
	is.NoErr(err)
	resp, err := sc.Execute("move e2e4")
	is.NoErr(err)
	is.True(strings.HasPrefix(resp.message, "Engine plays e7e5\n"))
	sc.Cleanup()
	is.True(closed)
}
