package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/notnil/chess"
	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/domino14/gambit/automatic"
	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/game"
	"github.com/domino14/gambit/store"
)

func intOption(cmd *shellcmd, key string, defaultI int) (int, error) {
	v, ok := cmd.options[key]
	if !ok {
		return defaultI, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("-%s: %w", key, err)
	}
	return i, nil
}

func levelOption(cmd *shellcmd, key string, defaultL difficulty.Level) (difficulty.Level, error) {
	v, ok := cmd.options[key]
	if !ok {
		return defaultL, nil
	}
	return difficulty.ParseLevel(v)
}

func (sc *ShellController) ensureEngine() error {
	if sc.engine != nil {
		return nil
	}
	eng, err := sc.newEngine(sc.level)
	if err != nil {
		return err
	}
	sc.engine = eng
	return nil
}

func (sc *ShellController) newGame(cmd *shellcmd) (*Response, error) {
	color := chess.White
	if len(cmd.args) > 0 {
		switch strings.ToLower(cmd.args[0]) {
		case "white", "w":
		case "black", "b":
			color = chess.Black
		case "random", "r":
			if frand.Intn(2) == 1 {
				color = chess.Black
			}
		default:
			return nil, errors.New("new [white|black|random]")
		}
	}
	level, err := levelOption(cmd, "difficulty", sc.level)
	if err != nil {
		return nil, err
	}
	if err := sc.ensureEngine(); err != nil {
		return nil, err
	}
	if err := sc.setLevel(level); err != nil {
		return nil, err
	}
	sc.engine.NewGame()
	sc.game = game.New(sc.engine, color, sc.level)
	sc.saved = false
	log.Info().Str("human", color.Name()).Str("difficulty", string(sc.level)).Msg("new-game")

	if !sc.game.HumanToMove() {
		return sc.playEngine(false)
	}
	return msg(sc.game.ToDisplayText(false)), nil
}

func (sc *ShellController) requireGame() error {
	if sc.game == nil {
		return errNoGame
	}
	return nil
}

// playEngine has the engine move and shows the result. With anySide the
// engine also moves for the human.
func (sc *ShellController) playEngine(anySide bool) (*Response, error) {
	play := sc.game.PlayEngine
	if anySide {
		play = sc.game.PlayEngineForSide
	}
	tok, err := play(context.Background())
	if err != nil {
		return nil, err
	}
	sc.saveIfOver()
	return msg("Engine plays " + tok + "\n" + sc.game.ToDisplayText(false)), nil
}

func (sc *ShellController) move(cmd *shellcmd) (*Response, error) {
	if err := sc.requireGame(); err != nil {
		return nil, err
	}
	if len(cmd.args) != 1 {
		return nil, errors.New("move <move>, for example move e2e4")
	}
	if err := sc.game.PlayHuman(strings.ToLower(cmd.args[0])); err != nil {
		return nil, err
	}
	if sc.game.IsOver() {
		sc.saveIfOver()
		return msg(sc.game.ToDisplayText(false)), nil
	}
	return sc.playEngine(false)
}

func (sc *ShellController) engineMove(cmd *shellcmd) (*Response, error) {
	if err := sc.requireGame(); err != nil {
		return nil, err
	}
	return sc.playEngine(true)
}

func (sc *ShellController) setLevel(level difficulty.Level) error {
	if _, err := sc.presets.Get(level); err != nil {
		return err
	}
	sc.level = level
	if sc.game != nil {
		sc.game.SetDifficulty(level)
	}
	if sc.engine != nil {
		return sc.engine.SetDifficulty(level)
	}
	return nil
}

func (sc *ShellController) difficulty(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		return msg("difficulty: " + string(sc.level)), nil
	}
	level, err := difficulty.ParseLevel(cmd.args[0])
	if err != nil {
		return nil, err
	}
	if err := sc.setLevel(level); err != nil {
		return nil, err
	}
	return msg("set difficulty to " + string(level)), nil
}

func (sc *ShellController) fen(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		if err := sc.requireGame(); err != nil {
			return nil, err
		}
		return msg(sc.game.FEN()), nil
	}
	if err := sc.ensureEngine(); err != nil {
		return nil, err
	}
	fen := strings.Join(cmd.args, " ")
	// Probe the side to move so that the human gets it.
	probe, err := game.FromFEN(sc.engine, chess.NoColor, sc.level, fen)
	if err != nil {
		return nil, err
	}
	g, err := game.FromFEN(sc.engine, probe.Turn(), sc.level, fen)
	if err != nil {
		return nil, err
	}
	sc.engine.NewGame()
	sc.game = g
	sc.saved = false
	return msg(sc.game.ToDisplayText(false)), nil
}

// load continues a game from a PGN file. The human takes the side to move.
func (sc *ShellController) load(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		return nil, errors.New("need a pgn file to load")
	}
	f, err := os.Open(cmd.args[0])
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := sc.ensureEngine(); err != nil {
		return nil, err
	}
	g, err := game.FromPGN(sc.engine, chess.NoColor, sc.level, f)
	if err != nil {
		return nil, err
	}
	g.SetHumanColor(g.Turn())
	sc.engine.NewGame()
	sc.game = g
	// an already finished game is not saved again
	sc.saved = g.IsOver()
	return msg(sc.game.ToDisplayText(false)), nil
}

func (sc *ShellController) show(cmd *shellcmd) (*Response, error) {
	if err := sc.requireGame(); err != nil {
		return nil, err
	}
	return msg(sc.game.ToDisplayText(false)), nil
}

func (sc *ShellController) pgn(cmd *shellcmd) (*Response, error) {
	if err := sc.requireGame(); err != nil {
		return nil, err
	}
	return msg(sc.game.PGN()), nil
}

func (sc *ShellController) status(cmd *shellcmd) (*Response, error) {
	if err := sc.requireGame(); err != nil {
		return nil, err
	}
	return msg(sc.game.Status(false)), nil
}

func (sc *ShellController) moves(cmd *shellcmd) (*Response, error) {
	if err := sc.requireGame(); err != nil {
		return nil, err
	}
	return msg(strings.Join(sc.game.ValidMoves(), " ")), nil
}

func (sc *ShellController) reset(cmd *shellcmd) (*Response, error) {
	if err := sc.requireGame(); err != nil {
		return nil, err
	}
	sc.game.Reset()
	sc.engine.NewGame()
	sc.saved = false
	if !sc.game.HumanToMove() {
		return sc.playEngine(false)
	}
	return msg(sc.game.ToDisplayText(false)), nil
}

func (sc *ShellController) saveIfOver() {
	if sc.store == nil || sc.saved || !sc.game.IsOver() {
		return
	}
	white, black := "human", "engine:"+string(sc.level)
	if sc.game.HumanColor() == chess.Black {
		white, black = black, white
	}
	id, err := sc.store.SaveGame(context.Background(), store.GameRecord{
		StartedAt:  sc.game.StartedAt(),
		White:      white,
		Black:      black,
		Difficulty: string(sc.level),
		Result:     string(sc.game.Outcome()),
		Method:     sc.game.Method().String(),
		Plies:      sc.game.Plies(),
		StartFEN:   sc.game.StartFEN(),
		FinalFEN:   sc.game.FEN(),
		PGN:        sc.game.PGN(),
	})
	if err != nil {
		log.Err(err).Msg("could-not-save-game")
		return
	}
	sc.saved = true
	log.Info().Str("id", id).Msg("saved-game")
}

func (sc *ShellController) autoplay(cmd *shellcmd) (*Response, error) {
	numGames, err := intOption(cmd, "games", 10)
	if err != nil {
		return nil, err
	}
	threads, err := intOption(cmd, "threads", 1)
	if err != nil {
		return nil, err
	}
	white, err := levelOption(cmd, "white", sc.level)
	if err != nil {
		return nil, err
	}
	black, err := levelOption(cmd, "black", sc.level)
	if err != nil {
		return nil, err
	}
	opts := automatic.OptionsFromConfig(sc.config, numGames, threads, white, black)
	opts.OutputFilename = cmd.options["file"]
	opts.Store = sc.store
	report, err := automatic.PlayMatch(context.Background(), sc.matchEngine(white), opts)
	if err != nil {
		return nil, err
	}
	return msg(report.Summary()), nil
}

func (sc *ShellController) games(cmd *shellcmd) (*Response, error) {
	if sc.store == nil {
		return nil, errors.New("no game store configured")
	}
	limit, err := intOption(cmd, "n", 10)
	if err != nil {
		return nil, err
	}
	recs, err := sc.store.RecentGames(context.Background(), limit)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, r := range recs {
		fmt.Fprintf(&b, "%s  %s  %-7s %-16s %3d plies  %s vs %s\n", r.ID,
			r.FinishedAt.Format("2006-01-02 15:04"), r.Result, r.Method, r.Plies, r.White, r.Black)
	}
	if b.Len() == 0 {
		return msg("no games yet"), nil
	}
	return msg(strings.TrimRight(b.String(), "\n")), nil
}
