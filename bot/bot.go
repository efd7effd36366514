// Package bot serves engine moves over NATS request/reply. A request names
// a position and a difficulty; the reply is the engine's move.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/notnil/chess"
	"github.com/rs/zerolog/log"

	"github.com/domino14/gambit/cache"
	"github.com/domino14/gambit/config"
	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/game"
)

var ErrNoLegalMoves = errors.New("position has no legal moves")

// Request is the JSON body of a move request.
type Request struct {
	FEN        string `json:"fen"`
	Difficulty string `json:"difficulty,omitempty"`
	GameID     string `json:"game_id,omitempty"`
}

// Response carries either a move or an error.
type Response struct {
	Move   string `json:"move,omitempty"`
	Error  string `json:"error,omitempty"`
	GameID string `json:"game_id,omitempty"`
}

// LambdaEvent is what the Lambda entrypoint receives. If ReplyChannel is
// set the response is also published there.
type LambdaEvent struct {
	Request
	ReplyChannel string `json:"reply_channel,omitempty"`
}

type Bot struct {
	config  *config.Config
	engine  game.MoveRequester
	cache   *cache.Requester
	timeout time.Duration
	level   difficulty.Level

	// The engine runs one search at a time.
	mu sync.Mutex
}

// NewBot fails if default-difficulty doesn't name a level, since requests
// that leave out the difficulty would all fail later.
func NewBot(cfg *config.Config, engine game.MoveRequester) (*Bot, error) {
	level, err := difficulty.ParseLevel(cfg.GetString(config.ConfigDefaultDifficulty))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ConfigDefaultDifficulty, err)
	}
	b := &Bot{
		config:  cfg,
		engine:  engine,
		timeout: cfg.GetDuration(config.ConfigBotRequestTimeout),
		level:   level,
	}
	if size := cfg.GetInt(config.ConfigBotCacheSize); size > 0 {
		b.cache = cache.NewRequester(engine, size)
		b.engine = b.cache
	}
	return b, nil
}

func errorResponse(message string, err error) *Response {
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %s", msg, err.Error())
	}
	return &Response{Error: msg}
}

// Move finds the engine's move for req. The move is checked against the
// rules before it is returned.
func (b *Bot) Move(ctx context.Context, req Request) (string, error) {
	level := b.level
	if req.Difficulty != "" {
		l, err := difficulty.ParseLevel(req.Difficulty)
		if err != nil {
			return "", err
		}
		level = l
	}
	g, err := game.FromFEN(b.engine, chess.NoColor, level, req.FEN)
	if err != nil {
		return "", fmt.Errorf("bad fen %q: %w", req.FEN, err)
	}
	if g.IsOver() || len(g.ValidMoves()) == 0 {
		return "", ErrNoLegalMoves
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	fen := g.FEN()
	mv, err := g.PlayEngineForSide(ctx)
	if errors.Is(err, game.ErrInvalidEngineMove) && b.cache != nil {
		b.cache.Forget(fen, level)
	}
	return mv, err
}

func (b *Bot) handle(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse("Could not parse request", err)
	}
	logger := log.With().Str("gameID", req.GameID).Logger()
	mv, err := b.Move(ctx, req)
	if err != nil {
		logger.Err(err).Str("fen", req.FEN).Msg("bot-move-failed")
		resp := errorResponse("Could not generate move", err)
		resp.GameID = req.GameID
		return resp
	}
	logger.Info().Str("move", mv).Msg("generated-move")
	return &Response{Move: mv, GameID: req.GameID}
}

// Main subscribes the bot to channel and answers requests until ctx is
// done.
func Main(ctx context.Context, channel string, bot *Bot) error {
	nc, err := nats.Connect(bot.config.GetString(config.ConfigNatsURL))
	if err != nil {
		return err
	}
	defer nc.Drain()

	_, err = nc.Subscribe(channel, func(m *nats.Msg) {
		log.Info().Msgf("RECV: %d bytes", len(m.Data))
		resp := bot.handle(ctx, m.Data)
		data, err := json.Marshal(resp)
		if err != nil {
			m.Respond([]byte(err.Error()))
			return
		}
		m.Respond(data)
	})
	if err != nil {
		return err
	}
	if err := nc.Flush(); err != nil {
		return err
	}
	if err := nc.LastError(); err != nil {
		return err
	}

	log.Info().Msgf("Listening on [%s]", channel)
	<-ctx.Done()
	log.Info().Msg("bot-exiting")
	return nil
}
