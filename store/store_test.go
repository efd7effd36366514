package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
)

func openTemp(t *testing.T) *Store {
	s, err := Open(filepath.Join(t.TempDir(), "sub", "games.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndFetch(t *testing.T) {
	is := is.New(t)
	s := openTemp(t)
	ctx := context.Background()
	started := time.UnixMilli(1_700_000_000_000)

	id, err := s.SaveGame(ctx, GameRecord{
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		White:      "human",
		Black:      "engine:medium",
		Difficulty: "medium",
		Result:     "0-1",
		Method:     "Checkmate",
		Plies:      4,
		StartFEN:   "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		FinalFEN:   "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3",
		PGN:        "1. f3 e5 2. g4 Qh4# 0-1",
	})
	is.NoErr(err)
	is.True(id != "")

	rec, err := s.Game(ctx, id)
	is.NoErr(err)
	is.Equal(rec.Black, "engine:medium")
	is.Equal(rec.Plies, 4)
	is.Equal(rec.Result, "0-1")
	is.True(rec.StartedAt.Equal(started))
}

func TestGameNotFound(t *testing.T) {
	is := is.New(t)
	s := openTemp(t)
	_, err := s.Game(context.Background(), "nope")
	is.True(errors.Is(err, ErrGameNotFound))
}

func TestRecentGamesOrderAndCounts(t *testing.T) {
	is := is.New(t)
	s := openTemp(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)
	results := []string{"1-0", "0-1", "1/2-1/2", "1-0"}
	for i, r := range results {
		_, err := s.SaveGame(ctx, GameRecord{
			ID:         "g" + string(rune('a'+i)),
			StartedAt:  base,
			FinishedAt: base.Add(time.Duration(i) * time.Second),
			Result:     r,
		})
		is.NoErr(err)
	}

	recent, err := s.RecentGames(ctx, 2)
	is.NoErr(err)
	is.Equal(len(recent), 2)
	is.Equal(recent[0].ID, "gd")
	is.Equal(recent[1].ID, "gc")

	counts, err := s.ResultCounts(ctx)
	is.NoErr(err)
	is.Equal(counts["1-0"], 2)
	is.Equal(counts["0-1"], 1)
	is.Equal(counts["1/2-1/2"], 1)
}

func TestDuplicateIDFails(t *testing.T) {
	is := is.New(t)
	s := openTemp(t)
	ctx := context.Background()
	_, err := s.SaveGame(ctx, GameRecord{ID: "same"})
	is.NoErr(err)
	_, err = s.SaveGame(ctx, GameRecord{ID: "same"})
	is.True(err != nil)
}
