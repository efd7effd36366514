package shell

import (
	"context"
	"fmt"

	"github.com/domino14/gambit/bot"
	"github.com/domino14/gambit/config"
	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/game"
)

// remoteEngine plays through a bot on another machine. The difficulty
// travels with every request, so there is nothing to configure and no
// per-game state to clear.
type remoteEngine struct {
	game.MoveRequester
	close func()
}

func (r *remoteEngine) SetDifficulty(level difficulty.Level) error { return nil }

func (r *remoteEngine) NewGame() {}

func (r *remoteEngine) Dispose() {
	if r.close != nil {
		r.close()
	}
}

// remoteFactory returns nil when engine-remote is unset, meaning a local
// engine should be used.
func remoteFactory(cfg *config.Config) (EngineFactory, error) {
	switch mode := cfg.GetString(config.ConfigEngineRemote); mode {
	case "":
		return nil, nil
	case "nats":
		return func(difficulty.Level) (Engine, error) {
			c, err := bot.NewClient(cfg)
			if err != nil {
				return nil, err
			}
			return &remoteEngine{MoveRequester: c, close: c.Close}, nil
		}, nil
	case "lambda":
		return func(difficulty.Level) (Engine, error) {
			li, err := bot.NewLambdaInvoker(context.Background(), cfg)
			if err != nil {
				return nil, err
			}
			return &remoteEngine{MoveRequester: li}, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown engine-remote %q; use nats or lambda", mode)
	}
}
