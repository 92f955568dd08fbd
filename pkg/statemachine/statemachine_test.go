package statemachine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schedkit/pkg/statemachine"
)

type state string
type event string

const (
	draft     state = "draft"
	published state = "published"
	archived  state = "archived"

	publish event = "publish"
	archive event = "archive"
)

func newTable(t *testing.T) *statemachine.Table[state, event] {
	t.Helper()
	table, err := statemachine.New(
		statemachine.Transition[state, event]{From: []state{draft}, To: published, Event: publish},
		statemachine.Transition[state, event]{From: []state{draft, published}, To: archived, Event: archive},
	)
	require.NoError(t, err)
	return table
}

func TestTable_Next(t *testing.T) {
	t.Parallel()
	table := newTable(t)

	next, err := table.Next(draft, publish)
	require.NoError(t, err)
	assert.Equal(t, published, next)

	next, err = table.Next(published, archive)
	require.NoError(t, err)
	assert.Equal(t, archived, next)

	_, err = table.Next(archived, publish)
	require.Error(t, err)
	assert.True(t, statemachine.IsNoTransitionAvailableError(err))
	assert.Contains(t, err.Error(), "'archived'")
	assert.Contains(t, err.Error(), "'publish'")
}

func TestTable_Introspection(t *testing.T) {
	t.Parallel()
	table := newTable(t)

	assert.True(t, table.Can(draft, archive))
	assert.False(t, table.Can(published, publish))
	assert.Equal(t, []event{archive, publish}, table.Events(draft))
	assert.True(t, table.IsTerminal(archived))
	assert.False(t, table.IsTerminal(published))
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New(statemachine.Transition[state, event]{To: published, Event: publish})
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	_, err = statemachine.New(
		statemachine.Transition[state, event]{From: []state{draft}, To: published, Event: publish},
		statemachine.Transition[state, event]{From: []state{draft}, To: archived, Event: publish},
	)
	assert.ErrorIs(t, err, statemachine.ErrDuplicateTransition)

	assert.Panics(t, func() {
		statemachine.MustNew(statemachine.Transition[state, event]{From: []state{""}, To: published, Event: publish})
	})
}
