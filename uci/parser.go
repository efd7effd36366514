package uci

import (
	"strconv"
	"strings"
)

// Line is one classified line of engine output. It is one of
// ProgressLine, BestMoveLine, HandshakeLine, IDLine or Unrecognized.
type Line interface {
	isLine()
}

type HandshakeKind int

const (
	HandshakeUCIOK HandshakeKind = iota
	HandshakeReadyOK
)

func (k HandshakeKind) String() string {
	switch k {
	case HandshakeUCIOK:
		return "uciok"
	case HandshakeReadyOK:
		return "readyok"
	}
	return "unknown"
}

type HandshakeLine struct {
	Kind HandshakeKind
}

// ProgressLine is an "info" line that carries at least a depth and a score.
type ProgressLine struct {
	Depth   int
	ScoreCP int
	// Mate is the signed distance to mate in moves, valid when IsMate is set.
	Mate   int
	IsMate bool
	Nodes  int64
	PV     []string
}

type BestMoveLine struct {
	Move   string
	Ponder string
}

// IDLine is "id name <...>" or "id author <...>".
type IDLine struct {
	Key   string
	Value string
}

// Unrecognized holds anything else, including info lines that are missing
// a depth or score.
type Unrecognized struct {
	Raw string
}

func (HandshakeLine) isLine() {}
func (ProgressLine) isLine()  {}
func (BestMoveLine) isLine()  {}
func (IDLine) isLine()        {}
func (Unrecognized) isLine()  {}

// Parse classifies a single line of engine output. It never fails; lines it
// can't make sense of come back as Unrecognized.
func Parse(line string) Line {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Unrecognized{Raw: line}
	}
	switch fields[0] {
	case "uciok":
		return HandshakeLine{Kind: HandshakeUCIOK}
	case "readyok":
		return HandshakeLine{Kind: HandshakeReadyOK}
	case "bestmove":
		if len(fields) < 2 {
			return Unrecognized{Raw: line}
		}
		bm := BestMoveLine{Move: fields[1]}
		if len(fields) >= 4 && fields[2] == "ponder" {
			bm.Ponder = fields[3]
		}
		return bm
	case "id":
		if len(fields) < 3 {
			return Unrecognized{Raw: line}
		}
		return IDLine{Key: fields[1], Value: strings.Join(fields[2:], " ")}
	case "info":
		if pl, ok := parseInfo(fields[1:]); ok {
			return pl
		}
	}
	return Unrecognized{Raw: line}
}

func parseInfo(fields []string) (ProgressLine, bool) {
	var pl ProgressLine
	haveDepth, haveScore := false, false
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 >= len(fields) {
				return pl, false
			}
			d, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return pl, false
			}
			pl.Depth = d
			haveDepth = true
			i++
		case "score":
			if i+2 >= len(fields) {
				return pl, false
			}
			v, err := strconv.Atoi(fields[i+2])
			if err != nil {
				return pl, false
			}
			switch fields[i+1] {
			case "cp":
				pl.ScoreCP = v
			case "mate":
				pl.Mate = v
				pl.IsMate = true
			default:
				return pl, false
			}
			haveScore = true
			i += 2
		case "nodes":
			if i+1 < len(fields) {
				if n, err := strconv.ParseInt(fields[i+1], 10, 64); err == nil {
					pl.Nodes = n
				}
				i++
			}
		case "string":
			// free text runs to the end of the line
			return pl, false
		case "pv":
			pl.PV = append([]string(nil), fields[i+1:]...)
			i = len(fields)
		}
	}
	return pl, haveDepth && haveScore
}
