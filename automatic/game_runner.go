// Package automatic plays engine-vs-engine games, for checking how the
// difficulty presets stack up against each other.
package automatic

import (
	"context"
	"errors"
	"fmt"

	"github.com/notnil/chess"
	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/game"
)

// MethodMaxPlies marks a game that was cut off before it finished.
const MethodMaxPlies = "MaxPlies"

// Engine is what a runner needs from an engine; *engine.Negotiator
// satisfies it.
type Engine interface {
	game.MoveRequester
	NewGame()
	Dispose()
}

// EngineFactory starts a fresh engine for one game.
type EngineFactory func() (Engine, error)

// GameResult summarizes one finished (or abandoned) game.
type GameResult struct {
	ID     string
	White  difficulty.Level
	Black  difficulty.Level
	Result string
	Method string
	Plies  int
	PGN    string
}

// GameRunner plays one game at a time between two difficulty levels,
// sharing a single engine between both sides.
type GameRunner struct {
	newEngine   EngineFactory
	levels      [2]difficulty.Level
	randomPlies int
	maxPlies    int

	game *game.Game
}

func NewGameRunner(factory EngineFactory, white, black difficulty.Level,
	randomPlies, maxPlies int) *GameRunner {

	return &GameRunner{
		newEngine:   factory,
		levels:      [2]difficulty.Level{white, black},
		randomPlies: randomPlies,
		maxPlies:    maxPlies,
	}
}

func (r *GameRunner) levelFor(c chess.Color) difficulty.Level {
	if c == chess.Black {
		return r.levels[1]
	}
	return r.levels[0]
}

// playRandomOpening plays the first few plies at random so that games
// between deterministic engines don't all repeat.
func (r *GameRunner) playRandomOpening() error {
	for i := 0; i < r.randomPlies && !r.game.IsOver(); i++ {
		moves := r.game.ValidMoves()
		if len(moves) == 0 {
			break
		}
		if err := r.game.Apply(moves[frand.Intn(len(moves))]); err != nil {
			return err
		}
	}
	return nil
}

// PlayFull plays a game to the end, or until maxPlies.
func (r *GameRunner) PlayFull(ctx context.Context) (GameResult, error) {
	eng, err := r.newEngine()
	if err != nil {
		return GameResult{}, err
	}
	defer eng.Dispose()
	eng.NewGame()

	// NoColor: neither side is human.
	r.game = game.New(eng, chess.NoColor, r.levels[0])
	r.game.SetPlayers("Engine ("+string(r.levels[0])+")", "Engine ("+string(r.levels[1])+")")

	if err := r.playRandomOpening(); err != nil {
		return GameResult{}, err
	}
	for !r.game.IsOver() && (r.maxPlies <= 0 || r.game.Plies() < r.maxPlies) {
		if err := ctx.Err(); err != nil {
			return GameResult{}, err
		}
		r.game.SetDifficulty(r.levelFor(r.game.Turn()))
		if _, err := r.game.PlayEngineForSide(ctx); err != nil {
			if errors.Is(err, game.ErrGameOver) {
				break
			}
			return GameResult{}, fmt.Errorf("ply %d: %w", r.game.Plies()+1, err)
		}
	}

	res := GameResult{
		White:  r.levels[0],
		Black:  r.levels[1],
		Result: string(r.game.Outcome()),
		Method: r.game.Method().String(),
		Plies:  r.game.Plies(),
		PGN:    r.game.PGN(),
	}
	if !r.game.IsOver() {
		res.Method = MethodMaxPlies
	}
	log.Debug().Str("result", res.Result).Str("method", res.Method).Int("plies", res.Plies).
		Msg("game-over")
	return res, nil
}

// Game is the game most recently played.
func (r *GameRunner) Game() *game.Game {
	return r.game
}
