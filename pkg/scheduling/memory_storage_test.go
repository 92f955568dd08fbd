package scheduling_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schedkit/pkg/scheduling"
)

func TestMemoryStorage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()

	newSuggestion := func(id, org string, created time.Time) *scheduling.Suggestion {
		return &scheduling.Suggestion{
			ID:             id,
			OrganizationID: org,
			Status:         scheduling.StatusPending,
			CreatedAt:      created,
			UpdatedAt:      created,
			Input:          scheduling.Request{OrganizationID: org, UserIDs: []string{"alice"}},
		}
	}

	t.Run("create and get return copies", func(t *testing.T) {
		t.Parallel()

		store := scheduling.NewMemoryStorage()
		s := newSuggestion("s1", "org-1", now)
		require.NoError(t, store.CreateSuggestion(ctx, s))

		s.Input.UserIDs[0] = "mallory"
		got, err := store.GetSuggestion(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, got.Input.UserIDs)

		got.Input.UserIDs[0] = "eve"
		again, err := store.GetSuggestion(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, again.Input.UserIDs)

		assert.Error(t, store.CreateSuggestion(ctx, newSuggestion("s1", "org-1", now)))
		assert.Error(t, store.CreateSuggestion(ctx, nil))
	})

	t.Run("get unknown", func(t *testing.T) {
		t.Parallel()

		_, err := scheduling.NewMemoryStorage().GetSuggestion(ctx, "nope")
		assert.ErrorIs(t, err, scheduling.ErrNotFound)
	})

	t.Run("update applies or discards", func(t *testing.T) {
		t.Parallel()

		store := scheduling.NewMemoryStorage()
		require.NoError(t, store.CreateSuggestion(ctx, newSuggestion("s1", "org-1", now)))

		updated, err := store.UpdateSuggestion(ctx, "s1", func(s *scheduling.Suggestion) error {
			s.Status = scheduling.StatusFailed
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, scheduling.StatusFailed, updated.Status)

		boom := errors.New("boom")
		_, err = store.UpdateSuggestion(ctx, "s1", func(s *scheduling.Suggestion) error {
			s.Status = scheduling.StatusReady
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.GetSuggestion(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, scheduling.StatusFailed, got.Status)

		_, err = store.UpdateSuggestion(ctx, "nope", func(*scheduling.Suggestion) error { return nil })
		assert.ErrorIs(t, err, scheduling.ErrNotFound)
	})

	t.Run("list breaks created-at ties by insertion order", func(t *testing.T) {
		t.Parallel()

		store := scheduling.NewMemoryStorage()
		require.NoError(t, store.CreateSuggestion(ctx, newSuggestion("first", "org-1", now)))
		require.NoError(t, store.CreateSuggestion(ctx, newSuggestion("second", "org-1", now)))
		require.NoError(t, store.CreateSuggestion(ctx, newSuggestion("older", "org-1", now.Add(-time.Hour))))
		require.NoError(t, store.CreateSuggestion(ctx, newSuggestion("foreign", "org-2", now)))

		list, err := store.ListSuggestions(ctx, "org-1", scheduling.ListOptions{})
		require.NoError(t, err)
		ids := make([]string, 0, len(list))
		for _, s := range list {
			ids = append(ids, s.ID)
		}
		assert.Equal(t, []string{"second", "first", "older"}, ids)

		list, err = store.ListSuggestions(ctx, "org-1", scheduling.ListOptions{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})
}
