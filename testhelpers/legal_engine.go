package testhelpers

import (
	"strings"
	"sync"

	"github.com/notnil/chess"
)

// LegalMoveResponder plays like a very weak engine: it answers each go
// with the first legal move in the last position it was sent. It lets
// whole games run against a FakeEngine.
func LegalMoveResponder() Responder {
	var mu sync.Mutex
	var fen string
	return func(e *FakeEngine, cmd string) {
		switch {
		case strings.HasPrefix(cmd, "position fen "):
			mu.Lock()
			fen = strings.TrimPrefix(cmd, "position fen ")
			mu.Unlock()
		case strings.HasPrefix(cmd, "go "):
			mu.Lock()
			pos := fen
			mu.Unlock()
			e.Emit("info depth 1 score cp 12 nodes 20", "bestmove "+firstLegalMove(pos))
		default:
			HandshakeResponder(e, cmd)
		}
	}
}

func firstLegalMove(fen string) string {
	opt, err := chess.FEN(fen)
	if err != nil {
		return "(none)"
	}
	g := chess.NewGame(opt)
	moves := g.ValidMoves()
	if len(moves) == 0 {
		return "(none)"
	}
	return chess.UCINotation{}.Encode(g.Position(), moves[0])
}
