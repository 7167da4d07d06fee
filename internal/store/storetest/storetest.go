// Package storetest is a behavioural suite every store.Store backend runs.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/turtlesoup/internal/game"
	"github.com/robalobadob/turtlesoup/internal/store"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func session(id, puzzleID string, players []string, state game.State, updated time.Duration) *game.GameSession {
	s := &game.GameSession{
		ID:          id,
		PuzzleID:    puzzleID,
		PlayerIDs:   players,
		State:       state,
		TurnHistory: []game.TurnEvent{},
		CorpusID:    puzzleID,
		CreatedAt:   base,
		UpdatedAt:   base.Add(updated),
	}
	return s
}

// Run exercises newStore against the store.Store contract.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("SaveLoadRoundTrip", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		s := session("s1", "water", []string{"ann"}, game.StateInProgress, 0)
		score := 940
		done := base.Add(time.Hour)
		s.HintCount = 1
		s.Score = &score
		s.CompletedAt = &done
		s.Daily = "2026-03-01"
		s.TurnHistory = []game.TurnEvent{
			{TurnIndex: 0, Timestamp: base, Role: game.RoleDM, Message: "intro", Tags: []game.Tag{game.TagIntro, game.TagNarration}},
			{TurnIndex: 1, Timestamp: base, Role: game.RolePlayer, Message: "Was he thirsty?", Tags: []game.Tag{game.TagQuestion}},
			{TurnIndex: 2, Timestamp: base, Role: game.RoleDM, Message: "no", Tags: []game.Tag{game.TagAnswer}, Verdict: "NO"},
		}
		require.NoError(t, st.Save(ctx, s))

		got, err := st.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, s.PuzzleID, got.PuzzleID)
		assert.Equal(t, s.PlayerIDs, got.PlayerIDs)
		assert.Equal(t, s.State, got.State)
		assert.Equal(t, s.HintCount, got.HintCount)
		assert.Equal(t, s.Daily, got.Daily)
		require.NotNil(t, got.Score)
		assert.Equal(t, 940, *got.Score)
		require.NotNil(t, got.CompletedAt)
		assert.True(t, done.Equal(*got.CompletedAt))
		require.Len(t, got.TurnHistory, 3)
		assert.Equal(t, "NO", got.TurnHistory[2].Verdict)
		assert.Equal(t, []game.Tag{game.TagIntro, game.TagNarration}, got.TurnHistory[0].Tags)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		s := session("s1", "water", nil, game.StateLobby, 0)
		require.NoError(t, st.Save(ctx, s))

		s.State = game.StateAborted
		require.NoError(t, st.Save(ctx, s))

		got, err := st.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, game.StateAborted, got.State)

		all, err := st.List(ctx, store.Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		s := session("s1", "water", []string{"ann"}, game.StateLobby, 0)
		require.NoError(t, st.Save(ctx, s))
		s.PlayerIDs[0] = "mallory"

		got, err := st.Load(ctx, "s1")
		require.NoError(t, err)
		got.State = game.StateCompleted

		again, err := st.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []string{"ann"}, again.PlayerIDs)
		assert.Equal(t, game.StateLobby, again.State)
	})

	t.Run("NotFound", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Load(context.Background(), "ghost")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, st.Delete(context.Background(), "ghost"), store.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		require.NoError(t, st.Save(ctx, session("s1", "water", nil, game.StateLobby, 0)))
		require.NoError(t, st.Delete(ctx, "s1"))
		_, err := st.Load(ctx, "s1")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ListFilters", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		require.NoError(t, st.Save(ctx, session("a", "water", []string{"ann"}, game.StateCompleted, 1*time.Minute)))
		require.NoError(t, st.Save(ctx, session("b", "water", []string{"bob", "ann"}, game.StateInProgress, 3*time.Minute)))
		require.NoError(t, st.Save(ctx, session("c", "bridge", []string{"bob"}, game.StateInProgress, 2*time.Minute)))

		ids := func(f store.Filter) []string {
			out, err := st.List(ctx, f)
			require.NoError(t, err)
			var got []string
			for _, s := range out {
				got = append(got, s.ID)
			}
			return got
		}

		assert.Equal(t, []string{"b", "c", "a"}, ids(store.Filter{}))
		assert.Equal(t, []string{"b", "a"}, ids(store.Filter{PuzzleID: "water"}))
		assert.Equal(t, []string{"b", "a"}, ids(store.Filter{PlayerID: "ann"}))
		assert.Equal(t, []string{"b", "c"}, ids(store.Filter{State: game.StateInProgress}))
		assert.Equal(t, []string{"c"}, ids(store.Filter{PlayerID: "bob", PuzzleID: "bridge"}))
		assert.Equal(t, []string{"b"}, ids(store.Filter{Limit: 1}))
		assert.Empty(t, ids(store.Filter{PlayerID: "nobody"}))
	})
}
