package automatic

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/notnil/chess"
	"gonum.org/v1/gonum/stat"

	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/stats"
)

const (
	histogramBins = 10
	confidence    = 95.0
)

// MatchReport is the outcome of PlayMatch.
type MatchReport struct {
	White difficulty.Level
	Black difficulty.Level
	Games []GameResult
}

// Summary renders win/draw/loss counts, score and game length statistics,
// and a histogram of game lengths.
func (m *MatchReport) Summary() string {
	return summarize(string(m.White), string(m.Black), m.Games)
}

func summarize(white, black string, games []GameResult) string {
	var ss strings.Builder
	var score stats.Score
	var unfinished int
	var plies []float64
	for _, g := range games {
		switch g.Result {
		case string(chess.WhiteWon):
			score.Wins++
		case string(chess.BlackWon):
			score.Losses++
		case string(chess.Draw):
			score.Draws++
		default:
			unfinished++
		}
		plies = append(plies, float64(g.Plies))
	}

	fmt.Fprintf(&ss, "Games played: %d\n", len(games))
	if len(games) == 0 {
		return ss.String()
	}
	fmt.Fprintf(&ss, "%s (white) wins: %d\n", white, score.Wins)
	fmt.Fprintf(&ss, "%s (black) wins: %d\n", black, score.Losses)
	fmt.Fprintf(&ss, "Draws: %d\n", score.Draws)
	if unfinished > 0 {
		fmt.Fprintf(&ss, "Unfinished: %d\n", unfinished)
	}
	if score.Games() > 0 {
		mean := score.Mean()
		fmt.Fprintf(&ss, "White score: %.3f (%.1f%%)\n", score.Points(), 100*mean)
		if score.Games() > 1 {
			lo, hi := score.Interval(confidence)
			fmt.Fprintf(&ss, "%.0f%% interval: %.1f%% - %.1f%%  Elo diff: %+.0f\n",
				confidence, 100*lo, 100*hi, stats.EloDiff(mean))
		}
	}
	if len(plies) > 1 {
		mean, std := stat.MeanStdDev(plies, nil)
		fmt.Fprintf(&ss, "Game length (plies): mean %.2f  stdev %.2f\n", mean, std)
		if spread(plies) > 0 {
			ss.WriteString("\n")
			histogram.Fprint(&ss, histogram.Hist(histogramBins, plies), histogram.Linear(40))
		}
	} else {
		fmt.Fprintf(&ss, "Game length (plies): %d\n", games[0].Plies)
	}
	return ss.String()
}

func spread(xs []float64) float64 {
	lo, hi := xs[0], xs[0]
	for _, x := range xs {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	return hi - lo
}

// AnalyzeLogFile reads a CSV written by PlayMatch and summarizes it.
func AnalyzeLogFile(filepath string) (string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	r := csv.NewReader(file)

	// Record looks like:
	// gameID,white,black,result,method,plies
	var games []GameResult
	var white, black string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if record[0] == "gameID" {
			continue
		}
		if len(record) != 6 {
			return "", fmt.Errorf("bad record %v", record)
		}
		plies, err := strconv.Atoi(record[5])
		if err != nil {
			return "", err
		}
		white, black = record[1], record[2]
		games = append(games, GameResult{
			ID:     record[0],
			White:  difficulty.Level(white),
			Black:  difficulty.Level(black),
			Result: record[3],
			Method: record[4],
			Plies:  plies,
		})
	}
	return summarize(white, black, games), nil
}
