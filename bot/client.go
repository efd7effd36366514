package bot

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/domino14/gambit/config"
	"github.com/domino14/gambit/difficulty"
)

// Client asks a remote bot for moves. It satisfies game.MoveRequester, so
// a game can be played against a bot on another machine.
type Client struct {
	nc      *nats.Conn
	channel string
	timeout time.Duration
}

func NewClient(cfg *config.Config) (*Client, error) {
	nc, err := nats.Connect(cfg.GetString(config.ConfigNatsURL))
	if err != nil {
		return nil, err
	}
	return &Client{
		nc:      nc,
		channel: cfg.GetString(config.ConfigBotChannel),
		timeout: cfg.GetDuration(config.ConfigBotRequestTimeout),
	}, nil
}

func (c *Client) Close() {
	c.nc.Close()
}

// RequestMove sends a position to the bot and gets a move back.
func (c *Client) RequestMove(ctx context.Context, fen string, level difficulty.Level) (string, error) {
	data, err := json.Marshal(Request{FEN: fen, Difficulty: string(level)})
	if err != nil {
		return "", err
	}
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	res, err := c.nc.RequestWithContext(ctx, c.channel, data)
	if err != nil {
		if c.nc.LastError() != nil {
			log.Error().Msgf("%v for request", c.nc.LastError())
		}
		log.Error().Msgf("%v for request", err)
		return "", err
	}
	log.Debug().Msgf("res: %v", string(res.Data))
	return decodeResponse(res.Data)
}

func decodeResponse(data []byte) (string, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", err
	}
	switch {
	case resp.Error != "":
		return "", errors.New("Bot returned: " + resp.Error)
	case resp.Move != "":
		return resp.Move, nil
	}
	return "", errors.New("empty bot response")
}
