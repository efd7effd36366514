package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/game"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestEviction(t *testing.T) {
	is := is.New(t)
	c := NewMoveCache(2)
	c.Put("a", difficulty.Easy, "e2e4")
	c.Put("b", difficulty.Easy, "d2d4")
	c.Put("a", difficulty.Hard, "c2c4")
	is.Equal(c.Len(), 2)
	_, ok := c.Get("a", difficulty.Easy)
	is.True(!ok)
	mv, ok := c.Get("a", difficulty.Hard)
	is.True(ok)
	is.Equal(mv, "c2c4")

	c.Forget("a", difficulty.Hard)
	is.Equal(c.Len(), 1)
	c.Put("c", difficulty.Easy, "g1f3")
	c.Put("d", difficulty.Easy, "b1c3")
	_, ok = c.Get("b", difficulty.Easy)
	is.True(!ok)
}

func TestZeroSizeNeverStores(t *testing.T) {
	is := is.New(t)
	c := NewMoveCache(0)
	c.Put("a", difficulty.Easy, "e2e4")
	is.Equal(c.Len(), 0)
}

func TestRequester(t *testing.T) {
	is := is.New(t)
	calls := 0
	inner := game.MoveRequesterFunc(func(ctx context.Context, fen string, level difficulty.Level) (string, error) {
		calls++
		if level == difficulty.Hard {
			return "", errors.New("engine died")
		}
		return "e2e4", nil
	})
	r := NewRequester(inner, 8)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mv, err := r.RequestMove(ctx, startFEN, difficulty.Easy)
		is.NoErr(err)
		is.Equal(mv, "e2e4")
	}
	is.Equal(calls, 1)

	// errors are not cached
	_, err := r.RequestMove(ctx, startFEN, difficulty.Hard)
	is.True(err != nil)
	_, err = r.RequestMove(ctx, startFEN, difficulty.Hard)
	is.True(err != nil)
	is.Equal(calls, 3)
}
