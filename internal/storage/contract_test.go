package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gyeol/internal/model"
)

var baseTime = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func testAgent(id string, created time.Time) model.Agent {
	agent := model.NewAgent(id, "agent "+id, "owner", created)
	agent.Generation = 2
	return agent
}

func testAttempt(id, a, b string, at time.Time, success bool) model.BreedingAttempt {
	attempt := model.BreedingAttempt{ID: id, ParentAID: a, ParentBID: b, Success: success, RolledValue: 50, CreatedAt: at}
	if success {
		attempt.ChildID = strPtr("child-" + id)
	}
	return attempt
}

// runStoreContract exercises behaviour every backend must share.
func runStoreContract(t *testing.T, open func(t *testing.T) Store) {
	t.Run("agent round trip", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		agent := testAgent("a1", baseTime)
		agent.Traits = model.TraitVector{Warmth: 90, Logic: 10, Creativity: 55, Energy: 20, Humor: 75}
		agent.Counters.Conversations = 31
		require.NoError(t, store.SaveAgent(ctx, agent))

		loaded, ok, err := store.GetAgent(ctx, "a1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, agent.Traits, loaded.Traits)
		assert.Equal(t, 31, loaded.Counters.Conversations)
		assert.Equal(t, CurrentSchemaVersion, loaded.SchemaVersion)
		assert.Equal(t, CurrentCodecVersion, loaded.CodecVersion)
		assert.True(t, agent.CreatedAt.Equal(loaded.CreatedAt))

		_, ok, err = store.GetAgent(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("list agents by creation", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		require.NoError(t, store.SaveAgent(ctx, testAgent("late", baseTime.Add(time.Hour))))
		require.NoError(t, store.SaveAgent(ctx, testAgent("early", baseTime)))
		require.NoError(t, store.SaveAgent(ctx, testAgent("early-b", baseTime)))

		agents, err := store.ListAgents(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(agents))
		for _, agent := range agents {
			ids = append(ids, agent.ID)
		}
		assert.Equal(t, []string{"early", "early-b", "late"}, ids)
	})

	t.Run("compatibility is unordered", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		require.NoError(t, store.SaveCompatibility(ctx, "b", "a", 64))
		score, ok, err := store.GetCompatibility(ctx, "a", "b")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 64, score)

		require.NoError(t, store.SaveCompatibility(ctx, "a", "b", 12))
		score, _, err = store.GetCompatibility(ctx, "b", "a")
		require.NoError(t, err)
		assert.Equal(t, 12, score)

		_, ok, err = store.GetCompatibility(ctx, "a", "c")
		require.NoError(t, err)
		assert.False(t, ok)

		assert.ErrorIs(t, store.SaveCompatibility(ctx, "a", "a", 50), ErrInvalidPair)
		assert.ErrorIs(t, store.SaveCompatibility(ctx, "a", "b", 101), ErrInvalidScore)
		assert.ErrorIs(t, store.SaveCompatibility(ctx, "a", "b", -1), ErrInvalidScore)
	})

	t.Run("ledger ordering", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		require.NoError(t, store.Append(ctx, testAttempt("t1", "a", "b", baseTime, false)))
		require.NoError(t, store.Append(ctx, testAttempt("t3", "c", "b", baseTime.Add(2*time.Hour), true)))
		require.NoError(t, store.Append(ctx, testAttempt("t2", "a", "d", baseTime.Add(time.Hour), false)))

		latest, ok, err := store.MostRecentAttempt(ctx, []string{"a"})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "t2", latest.ID)

		latest, ok, err = store.MostRecentAttempt(ctx, []string{"a", "c"})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "t3", latest.ID)
		require.NotNil(t, latest.ChildID)
		assert.Equal(t, "child-t3", *latest.ChildID)

		_, ok, err = store.MostRecentAttempt(ctx, []string{"nobody"})
		require.NoError(t, err)
		assert.False(t, ok)

		forB, err := store.ListAttempts(ctx, "b", 0)
		require.NoError(t, err)
		require.Len(t, forB, 2)
		assert.Equal(t, "t3", forB[0].ID)
		assert.Equal(t, "t1", forB[1].ID)
		assert.Nil(t, forB[1].ChildID)

		limited, err := store.ListAttempts(ctx, "a", 1)
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, "t2", limited[0].ID)
	})

	t.Run("same instant keeps append order", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		require.NoError(t, store.Append(ctx, testAttempt("first", "a", "b", baseTime, false)))
		require.NoError(t, store.Append(ctx, testAttempt("second", "b", "c", baseTime, false)))

		latest, ok, err := store.MostRecentAttempt(ctx, []string{"a", "b"})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "second", latest.ID)
	})

	t.Run("atomic commits on success", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		require.NoError(t, store.SaveAgent(ctx, testAgent("a", baseTime)))

		err := store.Atomic(ctx, []string{"a"}, func(tx Tx) error {
			agent, ok, err := tx.GetAgent(ctx, "a")
			if err != nil || !ok {
				return fmt.Errorf("load: %v %v", ok, err)
			}
			agent.Generation = 3
			if err := tx.SaveAgent(ctx, agent); err != nil {
				return err
			}
			staged, _, err := tx.GetAgent(ctx, "a")
			if err != nil {
				return err
			}
			if staged.Generation != 3 {
				return errors.New("transaction does not see its own write")
			}
			if err := tx.Append(ctx, testAttempt("t1", "a", "b", baseTime, false)); err != nil {
				return err
			}
			seen, ok, err := tx.MostRecentAttempt(ctx, []string{"b"})
			if err != nil || !ok || seen.ID != "t1" {
				return fmt.Errorf("staged attempt not visible: %v %v", ok, err)
			}
			return nil
		})
		require.NoError(t, err)

		agent, _, err := store.GetAgent(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 3, agent.Generation)
		attempts, err := store.ListAttempts(ctx, "a", 0)
		require.NoError(t, err)
		assert.Len(t, attempts, 1)
	})

	t.Run("atomic discards on error", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		require.NoError(t, store.SaveAgent(ctx, testAgent("a", baseTime)))
		boom := errors.New("boom")

		err := store.Atomic(ctx, []string{"a", "b"}, func(tx Tx) error {
			agent, _, err := tx.GetAgent(ctx, "a")
			if err != nil {
				return err
			}
			agent.Generation = 5
			if err := tx.SaveAgent(ctx, agent); err != nil {
				return err
			}
			if err := tx.Append(ctx, testAttempt("t1", "a", "b", baseTime, true)); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		agent, _, err := store.GetAgent(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 2, agent.Generation)
		_, ok, err := store.MostRecentAttempt(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("atomic serialises shared keys", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		require.NoError(t, store.SaveAgent(ctx, testAgent("shared", baseTime)))

		const workers = 8
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				keys := []string{"shared", fmt.Sprintf("own-%d", i)}
				errs <- store.Atomic(ctx, keys, func(tx Tx) error {
					agent, ok, err := tx.GetAgent(ctx, "shared")
					if err != nil {
						return err
					}
					if !ok {
						return errors.New("shared agent missing")
					}
					agent.Counters.Conversations++
					return tx.SaveAgent(ctx, agent)
				})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		agent, _, err := store.GetAgent(ctx, "shared")
		require.NoError(t, err)
		assert.Equal(t, workers, agent.Counters.Conversations)
	})

	t.Run("atomic honours cancelled context", func(t *testing.T) {
		store := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := store.Atomic(ctx, []string{"a"}, func(Tx) error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.False(t, called)
	})
}
