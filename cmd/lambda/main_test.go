package main

import (
	"context"
	"testing"

	"github.com/matryer/is"

	"github.com/domino14/gambit/bot"
	"github.com/domino14/gambit/config"
	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/game"
)

func TestHandleRequest(t *testing.T) {
	is := is.New(t)
	cfg = config.DefaultConfig()
	var asked []difficulty.Level
	startEngine = func() (game.MoveRequester, error) {
		return game.MoveRequesterFunc(func(ctx context.Context, fen string, level difficulty.Level) (string, error) {
			asked = append(asked, level)
			return "e7e5", nil
		}), nil
	}

	evt := bot.LambdaEvent{Request: bot.Request{
		FEN:        "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
		Difficulty: "hard",
		GameID:     "foo",
	}}
	ret, err := HandleRequest(context.Background(), evt)
	is.NoErr(err)
	is.Equal(ret, "e7e5")
	is.Equal(asked, []difficulty.Level{difficulty.Hard})

	// a move the rules reject is an error, not a reply
	evt.FEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	_, err = HandleRequest(context.Background(), evt)
	is.True(err != nil)
}
