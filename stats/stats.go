// Package stats scores engine matches: win/draw/loss tallies, a
// confidence interval on the score, and the implied Elo difference.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	Epsilon = 1e-6
)

func FuzzyEqual(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// ZVal returns the two-tailed Z-value associated with a specific confidence interval.
// The interval is a number from 0 to 100 percent.
func ZVal(confidenceInterval float64) float64 {
	dist := distuv.Normal{
		Mu:    0,
		Sigma: 1,
	}
	area := (1 + (confidenceInterval / 100)) / 2
	return dist.Quantile(area)
}

// Score tallies results from one side's point of view.
type Score struct {
	Wins   int
	Draws  int
	Losses int
}

func (s *Score) Games() int {
	return s.Wins + s.Draws + s.Losses
}

// Points counts a win as 1 and a draw as 1/2.
func (s *Score) Points() float64 {
	return float64(s.Wins) + float64(s.Draws)/2
}

// Mean is the points per game, 0 with no games.
func (s *Score) Mean() float64 {
	n := s.Games()
	if n == 0 {
		return 0
	}
	return s.Points() / float64(n)
}

// StandardError of the per-game score (trinomial).
func (s *Score) StandardError() float64 {
	n := float64(s.Games())
	if n < 2 {
		return 0
	}
	m := s.Mean()
	dev := float64(s.Wins)*(1-m)*(1-m) + float64(s.Draws)*(0.5-m)*(0.5-m) +
		float64(s.Losses)*m*m
	return math.Sqrt(dev/(n-1)) / math.Sqrt(n)
}

// Interval is the confidence interval on Mean, clamped to [0, 1].
func (s *Score) Interval(confidence float64) (lo, hi float64) {
	m, margin := s.Mean(), ZVal(confidence)*s.StandardError()
	return math.Max(0, m-margin), math.Min(1, m+margin)
}

// EloDiff converts a mean score into a rating difference. A perfect or
// zero score gives ±Inf.
func EloDiff(score float64) float64 {
	if score <= 0 {
		return math.Inf(-1)
	}
	if score >= 1 {
		return math.Inf(1)
	}
	return -400 * math.Log10(1/score-1)
}
