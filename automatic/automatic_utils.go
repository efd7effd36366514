package automatic

// Engine-vs-engine matches, played in parallel.

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/domino14/gambit/config"
	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/engine"
	"github.com/domino14/gambit/store"
)

var (
	CVCCounter *expvar.Int
	IsPlaying  *expvar.Int
)

var ErrAlreadyPlaying = errors.New("games are already being played, please wait till complete")

func init() {
	CVCCounter = expvar.NewInt("cvcCounter")
	IsPlaying = expvar.NewInt("isPlaying")
}

const logHeader = "gameID,white,black,result,method,plies\n"

type MatchOptions struct {
	NumGames    int
	Threads     int
	White       difficulty.Level
	Black       difficulty.Level
	RandomPlies int
	MaxPlies    int
	// Optional CSV log of every game, readable by AnalyzeLogFile.
	OutputFilename string
	// Optional; finished games are archived here.
	Store *store.Store
}

// OptionsFromConfig fills in the autoplay defaults from cfg.
func OptionsFromConfig(cfg *config.Config, numGames, threads int, white, black difficulty.Level) MatchOptions {
	return MatchOptions{
		NumGames:    numGames,
		Threads:     threads,
		White:       white,
		Black:       black,
		RandomPlies: cfg.GetInt(config.ConfigAutoplayRandomPlies),
		MaxPlies:    cfg.GetInt(config.ConfigAutoplayMaxPlies),
	}
}

// NegotiatorFactory starts a real engine per game, from the config.
func NegotiatorFactory(cfg *config.Config, presets difficulty.Presets, level difficulty.Level) EngineFactory {
	return func() (Engine, error) {
		return engine.Start(cfg, presets, level)
	}
}

// PlayMatch plays opts.NumGames games on opts.Threads goroutines and
// returns their results in the order they finished. Cancelling ctx stops
// queueing new games; games in progress are abandoned.
func PlayMatch(ctx context.Context, factory EngineFactory, opts MatchOptions) (*MatchReport, error) {
	if IsPlaying.Value() > 0 {
		return nil, ErrAlreadyPlaying
	}
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	IsPlaying.Add(1)
	defer IsPlaying.Add(-1)
	CVCCounter.Set(0)

	var logfile *os.File
	if opts.OutputFilename != "" {
		f, err := os.Create(opts.OutputFilename)
		if err != nil {
			return nil, err
		}
		logfile = f
		defer logfile.Close()
		if _, err := logfile.WriteString(logHeader); err != nil {
			return nil, err
		}
	}
	log.Info().Int("games", opts.NumGames).Int("threads", opts.Threads).
		Str("white", string(opts.White)).Str("black", string(opts.Black)).Msg("starting-match")

	var mu sync.Mutex
	report := &MatchReport{White: opts.White, Black: opts.Black}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Threads)
	for i := 0; i < opts.NumGames; i++ {
		if gctx.Err() != nil {
			log.Info().Msg("got-stop-signal")
			break
		}
		g.Go(func() error {
			r := NewGameRunner(factory, opts.White, opts.Black, opts.RandomPlies, opts.MaxPlies)
			started := time.Now()
			res, err := r.PlayFull(gctx)
			if err != nil {
				return err
			}
			if opts.Store != nil {
				id, err := opts.Store.SaveGame(gctx, store.GameRecord{
					StartedAt:  started,
					White:      "engine:" + string(opts.White),
					Black:      "engine:" + string(opts.Black),
					Difficulty: string(opts.White) + "/" + string(opts.Black),
					Result:     res.Result,
					Method:     res.Method,
					Plies:      res.Plies,
					StartFEN:   r.Game().StartFEN(),
					FinalFEN:   r.Game().FEN(),
					PGN:        res.PGN,
				})
				if err != nil {
					return err
				}
				res.ID = id
			}
			CVCCounter.Add(1)

			mu.Lock()
			defer mu.Unlock()
			if res.ID == "" {
				res.ID = fmt.Sprintf("game-%d", len(report.Games)+1)
			}
			report.Games = append(report.Games, res)
			if logfile != nil {
				_, err := fmt.Fprintf(logfile, "%s,%s,%s,%s,%s,%d\n",
					res.ID, res.White, res.Black, res.Result, res.Method, res.Plies)
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	log.Info().Int("played", len(report.Games)).Msg("all-games-finished")
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return report, err
}
