package game

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/notnil/chess"

	"github.com/domino14/gambit/difficulty"
)

func scriptedEngine(moves ...string) (MoveRequester, *[]string) {
	var fens []string
	i := 0
	return MoveRequesterFunc(func(ctx context.Context, fen string, level difficulty.Level) (string, error) {
		fens = append(fens, fen)
		mv := moves[i%len(moves)]
		i++
		return mv, nil
	}), &fens
}

func TestHumanThenEngine(t *testing.T) {
	is := is.New(t)
	eng, fens := scriptedEngine("e7e5")
	g := New(eng, chess.White, difficulty.Medium)

	is.True(g.HumanToMove())
	is.Equal(g.Status(false), "White's turn")
	is.NoErr(g.PlayHuman("e2e4"))
	is.Equal(g.Status(true), "Black's turn (thinking...)")

	mv, err := g.PlayEngine(context.Background())
	is.NoErr(err)
	is.Equal(mv, "e7e5")
	is.True(strings.HasPrefix((*fens)[0], "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq"))
	is.Equal(g.Moves(), []string{"e2e4", "e7e5"})
	is.Equal(g.Plies(), 2)
}

func TestTurnOrderEnforced(t *testing.T) {
	is := is.New(t)
	eng, _ := scriptedEngine("e2e4")
	g := New(eng, chess.Black, difficulty.Easy)
	is.True(errors.Is(g.PlayHuman("e2e4"), ErrNotYourTurn))

	_, err := g.PlayEngine(context.Background())
	is.NoErr(err)
	_, err = g.PlayEngine(context.Background())
	is.True(errors.Is(err, ErrNotEngineTurn))
}

func TestIllegalHumanMove(t *testing.T) {
	is := is.New(t)
	eng, _ := scriptedEngine("e7e5")
	g := New(eng, chess.White, difficulty.Easy)
	before := g.FEN()
	is.True(errors.Is(g.PlayHuman("e2e5"), ErrIllegalMove))
	is.True(errors.Is(g.PlayHuman("castle"), ErrIllegalMove))
	is.Equal(g.FEN(), before)
}

func TestInvalidEngineMoveLeavesBoardAlone(t *testing.T) {
	is := is.New(t)
	eng, _ := scriptedEngine("e2e4") // white's move, but black is on turn
	g := New(eng, chess.White, difficulty.Hard)
	is.NoErr(g.PlayHuman("d2d4"))
	before := g.FEN()

	mv, err := g.PlayEngine(context.Background())
	is.True(errors.Is(err, ErrInvalidEngineMove))
	is.Equal(mv, "e2e4")
	is.Equal(g.FEN(), before)
	is.True(!g.HumanToMove())
}

func TestEngineErrorPassesThrough(t *testing.T) {
	is := is.New(t)
	boom := errors.New("engine went away")
	g := New(MoveRequesterFunc(func(context.Context, string, difficulty.Level) (string, error) {
		return "", boom
	}), chess.Black, difficulty.Medium)
	_, err := g.PlayEngine(context.Background())
	is.True(errors.Is(err, boom))
	is.True(!errors.Is(err, ErrInvalidEngineMove))
}

func TestPromotionDefaultsToQueen(t *testing.T) {
	is := is.New(t)
	eng, _ := scriptedEngine("h8g8")
	g, err := FromFEN(eng, chess.White, difficulty.Easy, "7k/P7/8/8/8/8/8/K7 w - - 0 1")
	is.NoErr(err)
	is.NoErr(g.PlayHuman("a7a8"))
	is.Equal(g.Moves(), []string{"a7a8q"})

	// explicit underpromotion still works
	g.Reset()
	is.NoErr(g.PlayHuman("a7a8n"))
	is.Equal(g.Moves(), []string{"a7a8n"})
}

func TestCheckAndCheckmateStatus(t *testing.T) {
	is := is.New(t)
	eng, _ := scriptedEngine("e7e5", "d8h4")
	g := New(eng, chess.White, difficulty.Easy)
	is.NoErr(g.PlayHuman("f2f3"))
	_, err := g.PlayEngine(context.Background())
	is.NoErr(err)
	is.NoErr(g.PlayHuman("g2g4"))
	_, err = g.PlayEngine(context.Background())
	is.NoErr(err)

	is.True(g.IsOver())
	is.Equal(g.Outcome(), chess.BlackWon)
	is.Equal(g.Status(false), "Checkmate! Black wins!")
	is.True(errors.Is(g.PlayHuman("a2a3"), ErrGameOver))
	_, err = g.PlayEngine(context.Background())
	is.True(errors.Is(err, ErrGameOver))
}

func TestCheckStatus(t *testing.T) {
	is := is.New(t)
	eng, _ := scriptedEngine("f7f6")
	g := New(eng, chess.White, difficulty.Easy)
	is.NoErr(g.PlayHuman("e2e4"))
	_, err := g.PlayEngine(context.Background())
	is.NoErr(err)
	is.NoErr(g.PlayHuman("d1h5"))
	is.True(g.InCheck())
	is.Equal(g.Status(false), "Check!")
}

func TestStalemateIsDraw(t *testing.T) {
	is := is.New(t)
	eng, _ := scriptedEngine("a1a2")
	g, err := FromFEN(eng, chess.White, difficulty.Easy, "k7/8/1Q6/8/8/8/8/K7 w - - 0 1")
	is.NoErr(err)
	is.NoErr(g.PlayHuman("b6c7"))
	is.Equal(g.Outcome(), chess.Draw)
	is.True(strings.HasPrefix(g.Status(false), "Game Over - Draw!"))
}

func TestResetAndDisplay(t *testing.T) {
	is := is.New(t)
	eng, _ := scriptedEngine("e7e5")
	g := New(eng, chess.White, difficulty.Medium)
	is.NoErr(g.PlayHuman("e2e4"))
	txt := g.ToDisplayText(false)
	is.True(strings.Contains(txt, "1. e2e4"))
	is.True(strings.Contains(txt, "engine is medium"))
	g.Reset()
	is.Equal(g.Plies(), 0)
	is.True(strings.Contains(g.PGN(), GambitCreation))
}
