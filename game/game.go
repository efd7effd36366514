// Package game holds the authoritative board for a human-vs-engine game of
// chess. Move legality and game-end detection come from notnil/chess; the
// engine's moves come from anything that can answer RequestMove.
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/notnil/chess"
	"github.com/rs/zerolog/log"

	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/uci"
)

const GambitCreation = "Created with gambit"

var (
	ErrIllegalMove       = errors.New("illegal move")
	ErrInvalidEngineMove = errors.New("engine move rejected by rules")
	ErrGameOver          = errors.New("game is over")
	ErrNotYourTurn       = errors.New("not the human's turn")
	ErrNotEngineTurn     = errors.New("not the engine's turn")
)

// MoveRequester is the engine side of the game, typically an
// *engine.Negotiator.
type MoveRequester interface {
	RequestMove(ctx context.Context, fen string, level difficulty.Level) (string, error)
}

// MoveRequesterFunc adapts a plain function to MoveRequester.
type MoveRequesterFunc func(ctx context.Context, fen string, level difficulty.Level) (string, error)

func (f MoveRequesterFunc) RequestMove(ctx context.Context, fen string, level difficulty.Level) (string, error) {
	return f(ctx, fen, level)
}

type Game struct {
	chess      *chess.Game
	engine     MoveRequester
	level      difficulty.Level
	humanColor chess.Color
	startFEN   string
	startedAt  time.Time
}

func New(engine MoveRequester, humanColor chess.Color, level difficulty.Level) *Game {
	g := &Game{engine: engine, humanColor: humanColor, level: level}
	g.Reset()
	return g
}

// FromFEN starts a game from an arbitrary position.
func FromFEN(engine MoveRequester, humanColor chess.Color, level difficulty.Level, fen string) (*Game, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, err
	}
	g := &Game{engine: engine, humanColor: humanColor, level: level, startFEN: fen}
	g.chess = chess.NewGame(opt, chess.UseNotation(chess.UCINotation{}))
	g.startedAt = time.Now()
	g.tagPairs()
	return g, nil
}

// Reset goes back to the position the game started from.
func (g *Game) Reset() {
	opts := []func(*chess.Game){chess.UseNotation(chess.UCINotation{})}
	if g.startFEN != "" {
		if opt, err := chess.FEN(g.startFEN); err == nil {
			opts = append(opts, opt)
		}
	}
	g.chess = chess.NewGame(opts...)
	g.startedAt = time.Now()
	g.tagPairs()
}

func (g *Game) tagPairs() {
	white, black := "Human", "Engine ("+string(g.level)+")"
	if g.humanColor == chess.Black {
		white, black = black, white
	}
	g.chess.AddTagPair("Event", GambitCreation)
	g.chess.AddTagPair("Date", g.startedAt.Format("2006.01.02"))
	g.chess.AddTagPair("White", white)
	g.chess.AddTagPair("Black", black)
}

// SetPlayers overrides the White and Black PGN tags.
func (g *Game) SetPlayers(white, black string) {
	g.chess.AddTagPair("White", white)
	g.chess.AddTagPair("Black", black)
}

// StartFEN is the position the game began from, empty for the standard
// starting position.
func (g *Game) StartFEN() string {
	return g.startFEN
}

func (g *Game) SetDifficulty(level difficulty.Level) {
	g.level = level
}

func (g *Game) Difficulty() difficulty.Level {
	return g.level
}

func (g *Game) HumanColor() chess.Color {
	return g.humanColor
}

func (g *Game) StartedAt() time.Time {
	return g.startedAt
}

func (g *Game) FEN() string {
	return g.chess.FEN()
}

func (g *Game) Turn() chess.Color {
	return g.chess.Position().Turn()
}

func (g *Game) HumanToMove() bool {
	return g.Turn() == g.humanColor
}

func (g *Game) IsOver() bool {
	return g.chess.Outcome() != chess.NoOutcome
}

func (g *Game) Outcome() chess.Outcome {
	return g.chess.Outcome()
}

func (g *Game) Method() chess.Method {
	return g.chess.Method()
}

func (g *Game) PGN() string {
	return g.chess.String()
}

func (g *Game) Plies() int {
	return len(g.chess.Moves())
}

// Moves returns the moves played so far as UCI tokens.
func (g *Game) Moves() []string {
	positions := g.chess.Positions()
	moves := g.chess.Moves()
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = chess.UCINotation{}.Encode(positions[i], m)
	}
	return out
}

// ValidMoves lists the legal moves in the current position as UCI tokens.
func (g *Game) ValidMoves() []string {
	pos := g.chess.Position()
	valid := g.chess.ValidMoves()
	out := make([]string, len(valid))
	for i, m := range valid {
		out[i] = chess.UCINotation{}.Encode(pos, m)
	}
	return out
}

// Apply plays a UCI move token for whichever side is to move, without
// any turn bookkeeping. A four-character pawn move onto the last rank is
// promoted to a queen.
func (g *Game) Apply(tok string) error {
	if g.IsOver() {
		return ErrGameOver
	}
	m, err := g.decode(tok)
	if err != nil {
		return err
	}
	if err := g.chess.Move(m); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIllegalMove, tok, err)
	}
	return nil
}

func (g *Game) decode(tok string) (*chess.Move, error) {
	if !uci.ValidMoveToken(tok) {
		return nil, fmt.Errorf("%w: %q is not a move like e2e4", ErrIllegalMove, tok)
	}
	pos := g.chess.Position()
	m, err := chess.UCINotation{}.Decode(pos, tok)
	if err == nil && isLegal(g.chess, m) {
		return m, nil
	}
	if len(tok) == 4 {
		if qm, qerr := (chess.UCINotation{}).Decode(pos, tok+"q"); qerr == nil && isLegal(g.chess, qm) {
			return qm, nil
		}
	}
	if err == nil {
		err = errors.New("not legal in this position")
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrIllegalMove, tok, err)
}

func isLegal(g *chess.Game, m *chess.Move) bool {
	for _, v := range g.ValidMoves() {
		if v.S1() == m.S1() && v.S2() == m.S2() && v.Promo() == m.Promo() {
			return true
		}
	}
	return false
}

// PlayHuman applies the human's move.
func (g *Game) PlayHuman(tok string) error {
	if g.IsOver() {
		return ErrGameOver
	}
	if !g.HumanToMove() {
		return ErrNotYourTurn
	}
	return g.Apply(tok)
}

// PlayEngine asks the engine for a move in the current position and
// applies it. A token the rules reject comes back as ErrInvalidEngineMove
// and the board is left untouched.
func (g *Game) PlayEngine(ctx context.Context) (string, error) {
	if g.IsOver() {
		return "", ErrGameOver
	}
	if g.HumanToMove() {
		return "", ErrNotEngineTurn
	}
	return g.playEngineMove(ctx)
}

// PlayEngineForSide has the engine move for whichever side is on turn. It
// is for engine-vs-engine play.
func (g *Game) PlayEngineForSide(ctx context.Context) (string, error) {
	if g.IsOver() {
		return "", ErrGameOver
	}
	return g.playEngineMove(ctx)
}

func (g *Game) playEngineMove(ctx context.Context) (string, error) {
	fen := g.FEN()
	tok, err := g.engine.RequestMove(ctx, fen, g.level)
	if err != nil {
		return "", err
	}
	if err := g.Apply(tok); err != nil {
		log.Error().Err(err).Str("fen", fen).Str("move", tok).Msg("engine-move-rejected")
		return tok, fmt.Errorf("%w: %s in %s", ErrInvalidEngineMove, tok, fen)
	}
	return tok, nil
}

// InCheck reports whether the side to move is in check.
func (g *Game) InCheck() bool {
	moves := g.chess.Moves()
	return len(moves) > 0 && moves[len(moves)-1].HasTag(chess.Check)
}

// Status is a one-line summary of where the game stands.
func (g *Game) Status(thinking bool) string {
	switch g.Outcome() {
	case chess.WhiteWon, chess.BlackWon:
		if g.Method() == chess.Checkmate {
			winner := chess.White
			if g.Outcome() == chess.BlackWon {
				winner = chess.Black
			}
			return fmt.Sprintf("Checkmate! %s wins!", winner.Name())
		}
		return fmt.Sprintf("Game Over - %s (%s)", g.Outcome(), g.Method())
	case chess.Draw:
		return fmt.Sprintf("Game Over - Draw! (%s)", g.Method())
	}
	if g.InCheck() {
		return "Check!"
	}
	s := g.Turn().Name() + "'s turn"
	if thinking {
		s += " (thinking...)"
	}
	return s
}
