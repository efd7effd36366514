package game

import (
	"bytes"
	"io"
	"time"
	"unicode/utf8"

	"github.com/notnil/chess"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/domino14/gambit/difficulty"
)

// FromPGN continues the first game in a PGN file from its last position.
// The file's tags are kept. PGN should be ASCII, but files exported by
// older tools are often ISO 8859-1; anything that isn't valid UTF-8 is
// decoded as that.
func FromPGN(engine MoveRequester, humanColor chess.Color, level difficulty.Level, r io.Reader) (*Game, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		data, _, err = transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
		if err != nil {
			return nil, err
		}
	}
	opt, err := chess.PGN(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	g := &Game{engine: engine, humanColor: humanColor, level: level, startedAt: time.Now()}
	g.chess = chess.NewGame(opt, chess.UseNotation(chess.UCINotation{}))

	start := g.chess.Positions()[0].String()
	if start != chess.NewGame().Position().String() {
		g.startFEN = start
	}
	return g, nil
}

// SetHumanColor hands the human a side. chess.NoColor leaves both sides
// to the engine.
func (g *Game) SetHumanColor(c chess.Color) {
	g.humanColor = c
}
