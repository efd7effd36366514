package stats

import (
	"math"
	"testing"

	"github.com/matryer/is"
)

func TestZVal(t *testing.T) {
	is := is.New(t)
	is.True(math.Abs(ZVal(95)-1.959964) < 1e-5)
	is.True(math.Abs(ZVal(99)-2.575829) < 1e-5)
}

func TestScore(t *testing.T) {
	is := is.New(t)
	type tc struct {
		score Score
		mean  float64
		se    float64
	}
	cases := []tc{
		{Score{}, 0, 0},
		{Score{Wins: 1}, 1, 0},
		{Score{Wins: 2, Losses: 2}, 0.5, math.Sqrt(1.0/3) / 2},
		{Score{Wins: 3, Draws: 2, Losses: 1}, 4.0 / 6, 0},
	}
	for _, c := range cases {
		is.True(FuzzyEqual(c.score.Mean(), c.mean))
		if c.se > 0 {
			is.True(FuzzyEqual(c.score.StandardError(), c.se))
		}
	}
}

func TestInterval(t *testing.T) {
	is := is.New(t)
	s := Score{Wins: 2, Losses: 2}
	lo, hi := s.Interval(95)
	is.True(lo < 0.5 && hi > 0.5)
	is.True(FuzzyEqual(0.5-lo, hi-0.5))

	s = Score{Wins: 9, Losses: 1}
	_, hi = s.Interval(99)
	is.Equal(hi, 1.0)
}

func TestEloDiff(t *testing.T) {
	is := is.New(t)
	is.True(FuzzyEqual(EloDiff(0.5), 0))
	is.True(math.Abs(EloDiff(0.75)-190.848) < 0.01)
	is.True(EloDiff(0.25) < 0)
	is.True(math.IsInf(EloDiff(1), 1))
	is.True(math.IsInf(EloDiff(0), -1))
}
