package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/domino14/gambit/bot"
	"github.com/domino14/gambit/config"
	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/engine"
)

func main() {
	// Determine the directory of the executable. We will use this
	// directory to find the data files if an absolute path is not
	// provided for these!
	ex, err := os.Executable()
	if err != nil {
		panic(err)
	}
	exPath := filepath.Dir(ex)

	cfg := &config.Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("bad-config")
	}
	cfg.AdjustRelativePaths(exPath)
	log.Info().Str("exPath", exPath).Msg("adjusted paths")

	zerolog.SetGlobalLevel(cfg.LogLevel())

	presets, err := difficulty.LoadPresets(cfg.GetString(config.ConfigPresetsFile))
	if err != nil {
		log.Fatal().Err(err).Msg("bad-presets")
	}
	level, err := difficulty.ParseLevel(cfg.GetString(config.ConfigDefaultDifficulty))
	if err != nil {
		log.Fatal().Err(err).Msg("bad-difficulty")
	}
	n, err := engine.Start(cfg, presets, level)
	if err != nil {
		log.Fatal().Err(err).Msg("engine-start-failed")
	}
	defer n.Dispose()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := bot.NewBot(cfg, n)
	if err != nil {
		log.Fatal().Err(err).Msg("bad-bot-config")
	}
	if err := bot.Main(ctx, cfg.GetString(config.ConfigBotChannel), b); err != nil {
		log.Error().Err(err).Msg("bot-failed")
		return
	}
	log.Info().Msg("server gracefully shutting down")
}
