package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ConfigEnginePath              = "engine-path"
	ConfigEngineThreads           = "engine-threads"
	ConfigEngineHashMB            = "engine-hash-mb"
	ConfigEngineMoveOverheadMs    = "engine-move-overhead-ms"
	ConfigEngineContempt          = "engine-contempt"
	ConfigEngineMultiPV           = "engine-multipv"
	ConfigEngineReadyPollInterval = "engine-ready-poll-interval"
	ConfigEngineReadyAttempts     = "engine-ready-attempts"
	ConfigEngineSearchGrace       = "engine-search-grace"
	ConfigEngineQuitGrace         = "engine-quit-grace"
	ConfigDefaultDifficulty       = "default-difficulty"
	ConfigPresetsFile             = "presets-file"
	ConfigDBPath                  = "db-path"
	ConfigNatsURL                 = "nats-url"
	ConfigBotChannel              = "bot-channel"
	ConfigBotRequestTimeout       = "bot-request-timeout"
	ConfigBotCacheSize            = "bot-cache-size"
	ConfigEngineRemote            = "engine-remote"
	ConfigLambdaFunction          = "lambda-function"
	ConfigAutoplayRandomPlies     = "autoplay-random-plies"
	ConfigAutoplayMaxPlies        = "autoplay-max-plies"
	ConfigLogLevel                = "log-level"
	ConfigDebug                   = "debug"
)

// The engine gets at most this much hash, no matter how much memory the
// machine has.
const maxDefaultHashMB = 256

type Config struct {
	*viper.Viper
}

func DefaultConfig() *Config {
	c := &Config{Viper: viper.New()}
	c.setDefaults()
	return c
}

func defaultHashMB() int {
	// A sixteenth of system memory, capped.
	mb := int(memory.TotalMemory() / (1024 * 1024) / 16)
	if mb < 16 {
		return 16
	}
	return min(mb, maxDefaultHashMB)
}

func (c *Config) setDefaults() {
	c.SetDefault(ConfigEnginePath, "stockfish")
	c.SetDefault(ConfigEngineThreads, 1)
	c.SetDefault(ConfigEngineHashMB, defaultHashMB())
	c.SetDefault(ConfigEngineMoveOverheadMs, 10)
	c.SetDefault(ConfigEngineContempt, 0)
	c.SetDefault(ConfigEngineMultiPV, 1)
	c.SetDefault(ConfigEngineReadyPollInterval, 100*time.Millisecond)
	c.SetDefault(ConfigEngineReadyAttempts, 100)
	c.SetDefault(ConfigEngineSearchGrace, 2*time.Second)
	c.SetDefault(ConfigEngineQuitGrace, 500*time.Millisecond)
	c.SetDefault(ConfigDefaultDifficulty, "medium")
	c.SetDefault(ConfigPresetsFile, "")
	c.SetDefault(ConfigDBPath, "./data/games.db")
	c.SetDefault(ConfigNatsURL, "nats://localhost:4222")
	c.SetDefault(ConfigBotChannel, "gambit.bot")
	c.SetDefault(ConfigBotRequestTimeout, 10*time.Second)
	c.SetDefault(ConfigBotCacheSize, 1024)
	c.SetDefault(ConfigEngineRemote, "")
	c.SetDefault(ConfigLambdaFunction, "gambit-bot")
	c.SetDefault(ConfigAutoplayRandomPlies, 2)
	c.SetDefault(ConfigAutoplayMaxPlies, 300)
	c.SetDefault(ConfigLogLevel, "info")
	c.SetDefault(ConfigDebug, false)
}

// Load reads configuration from command-line args, GAMBIT_* environment
// variables and an optional config file, in decreasing order of priority.
func (c *Config) Load(args []string) error {
	c.Viper = viper.New()
	c.setDefaults()

	fs := pflag.NewFlagSet("gambit", pflag.ContinueOnError)
	fs.String("config-file", "", "path to a yaml/toml/json config file")
	fs.String(ConfigEnginePath, c.GetString(ConfigEnginePath), "path to a UCI engine binary")
	fs.Int(ConfigEngineThreads, c.GetInt(ConfigEngineThreads), "search threads for the engine")
	fs.Int(ConfigEngineHashMB, c.GetInt(ConfigEngineHashMB), "engine hash table size in MB")
	fs.Int(ConfigEngineReadyAttempts, c.GetInt(ConfigEngineReadyAttempts),
		"how many times to poll for engine readiness before giving up; 0 polls forever")
	fs.String(ConfigDefaultDifficulty, c.GetString(ConfigDefaultDifficulty), "easy, medium or hard")
	fs.String(ConfigPresetsFile, "", "yaml file overriding difficulty presets")
	fs.String(ConfigDBPath, c.GetString(ConfigDBPath), "sqlite database for finished games")
	fs.String(ConfigNatsURL, c.GetString(ConfigNatsURL), "NATS server url")
	fs.String(ConfigEngineRemote, "", "play against a remote bot instead of a local engine: nats or lambda")
	fs.String(ConfigLambdaFunction, c.GetString(ConfigLambdaFunction), "Lambda function name for engine-remote=lambda")
	fs.Int(ConfigBotCacheSize, c.GetInt(ConfigBotCacheSize), "positions the bot remembers answers for; 0 disables")
	fs.String(ConfigLogLevel, c.GetString(ConfigLogLevel), "debug, info or disabled")
	fs.Bool(ConfigDebug, false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.BindPFlags(fs); err != nil {
		return err
	}

	c.SetEnvPrefix("gambit")
	c.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.AutomaticEnv()

	if cf := c.GetString("config-file"); cf != "" {
		c.SetConfigFile(cf)
		if err := c.ReadInConfig(); err != nil {
			return err
		}
	}
	return nil
}

// AdjustRelativePaths makes file paths that start with ./ relative to
// basepath (usually the executable's directory).
func (c *Config) AdjustRelativePaths(basepath string) {
	for _, key := range []string{ConfigDBPath, ConfigPresetsFile} {
		p := c.GetString(key)
		if strings.HasPrefix(p, "./") {
			c.Set(key, filepath.Join(basepath, p))
		}
	}
}

// LogLevel is the level named by log-level. The debug flag overrides it.
func (c *Config) LogLevel() zerolog.Level {
	if c.GetBool(ConfigDebug) {
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(c.GetString(ConfigLogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
