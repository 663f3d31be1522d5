package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	draft     State = "draft"
	published State = "published"
	archived  State = "archived"

	publish Trigger = "publish"
	archive Trigger = "archive"
)

func docTable() *Table {
	t := NewTable("doc", draft, published, archived)
	t.From(draft).Permit(publish, published).Permit(archive, archived)
	t.From(published).Permit(archive, archived)
	return t
}

func TestTable_Next(t *testing.T) {
	tbl := docTable()

	to, err := tbl.Next(draft, publish)
	require.NoError(t, err)
	assert.Equal(t, published, to)

	to, err = tbl.Next(archived, publish)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, archived, to)
	assert.Contains(t, err.Error(), "doc cannot publish from archived")

	_, err = tbl.Next("deleted", archive)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestTable_Triggers(t *testing.T) {
	tbl := docTable()
	assert.Equal(t, []Trigger{archive, publish}, tbl.Triggers(draft))
	assert.Empty(t, tbl.Triggers(archived))
	assert.Empty(t, tbl.Triggers("deleted"))
}

func TestTable_UndeclaredStatePanics(t *testing.T) {
	tbl := docTable()
	assert.Panics(t, func() { tbl.From("deleted") })
	assert.Panics(t, func() { tbl.From(draft).Permit(publish, "deleted") })
}

func TestMachine(t *testing.T) {
	tbl := docTable()

	_, err := tbl.Machine("deleted")
	assert.True(t, errors.Is(err, ErrInvalidState))

	m, err := tbl.Machine(draft)
	require.NoError(t, err)
	assert.True(t, m.CanFire(publish))

	require.NoError(t, m.Fire(publish))
	assert.Equal(t, published, m.State())
	assert.Equal(t, []Trigger{archive}, m.PermittedTriggers())

	assert.Error(t, m.Fire(publish))
	assert.Equal(t, published, m.State())

	require.NoError(t, m.Fire(archive))
	assert.False(t, m.CanFire(archive))

	// machines share the table but not position
	other, err := tbl.Machine(draft)
	require.NoError(t, err)
	assert.Equal(t, draft, other.State())
}
