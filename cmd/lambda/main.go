package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/domino14/gambit/bot"
	"github.com/domino14/gambit/config"
	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/engine"
	"github.com/domino14/gambit/game"
)

var cfg *config.Config
var nc *nats.Conn

// The engine survives between invocations of a warm Lambda.
var (
	engineOnce sync.Once
	mover      *bot.Bot
	startErr   error
)

// startEngine is replaced in tests.
var startEngine = func() (game.MoveRequester, error) {
	presets, err := difficulty.LoadPresets(cfg.GetString(config.ConfigPresetsFile))
	if err != nil {
		return nil, err
	}
	level, err := difficulty.ParseLevel(cfg.GetString(config.ConfigDefaultDifficulty))
	if err != nil {
		return nil, err
	}
	return engine.Start(cfg, presets, level)
}

func getBot() (*bot.Bot, error) {
	engineOnce.Do(func() {
		var eng game.MoveRequester
		eng, startErr = startEngine()
		if startErr == nil {
			mover, startErr = bot.NewBot(cfg, eng)
		}
	})
	return mover, startErr
}

func HandleRequest(ctx context.Context, evt bot.LambdaEvent) (string, error) {
	logger := log.With().
		Str("gameID", evt.GameID).
		Logger()

	b, err := getBot()
	if err != nil {
		return "", err
	}
	mv, err := b.Move(ctx, evt.Request)
	if err != nil {
		logger.Err(err).Str("fen", evt.FEN).Msg("bot-move-failed")
		return "", err
	}

	if evt.ReplyChannel != "" && nc != nil {
		data, err := json.Marshal(bot.Response{Move: mv, GameID: evt.GameID})
		if err != nil {
			return "", err
		}
		logger.Info().Msg("move-success-sending-via-nats")
		err = retry.Do(
			func() error {
				// We're just waiting for an acknowledgement. The actual
				// data doesn't matter.
				_, err := nc.Request(evt.ReplyChannel, data, 3*time.Second)
				return err
			},
			retry.Context(ctx),
			retry.Attempts(5),
			retry.OnRetry(func(n uint, err error) {
				logger.Err(err).Uint("n", n).Msg("did-not-receive-ack-try-again")
			}),
		)
		if err != nil {
			logger.Err(err).Msg("bot-move-reply-failed")
		}
	}
	logger.Info().Str("move", mv).Msg("exiting-fn")
	return mv, nil
}

func main() {
	ex, err := os.Executable()
	if err != nil {
		panic(err)
	}
	exPath := filepath.Dir(ex)

	cfg = &config.Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("bad-config")
	}
	cfg.AdjustRelativePaths(exPath)
	zerolog.SetGlobalLevel(cfg.LogLevel())

	nc, err = nats.Connect(cfg.GetString(config.ConfigNatsURL))
	if err != nil {
		log.Fatal().AnErr("natsConnectErr", err).Msg(":(")
	}

	lambda.Start(HandleRequest)
}
