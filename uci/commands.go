// Package uci speaks the line-oriented Universal Chess Interface: it builds
// the commands we send to an engine and classifies the lines it sends back.
package uci

import (
	"fmt"
	"regexp"
)

const (
	CmdUCI     = "uci"
	CmdIsReady = "isready"
	CmdStop    = "stop"
	CmdQuit    = "quit"
	CmdNewGame = "ucinewgame"
)

// Engine option names. Stockfish spells these exactly this way.
const (
	OptSkillLevel   = "Skill Level"
	OptMultiPV      = "MultiPV"
	OptContempt     = "Contempt"
	OptHash         = "Hash"
	OptThreads      = "Threads"
	OptMoveOverhead = "Move Overhead"
)

var moveTokenRe = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// ValidMoveToken reports whether tok is a move in long algebraic form,
// e.g. e2e4 or e7e8q.
func ValidMoveToken(tok string) bool {
	return moveTokenRe.MatchString(tok)
}

func SetOption(name string, value any) string {
	return fmt.Sprintf("setoption name %s value %v", name, value)
}

func PositionFEN(fen string) string {
	return "position fen " + fen
}

// Go starts a search bounded by both time and depth; the engine stops at
// whichever limit it hits first.
func Go(moveTimeMs, depth int) string {
	return fmt.Sprintf("go movetime %d depth %d", moveTimeMs, depth)
}
