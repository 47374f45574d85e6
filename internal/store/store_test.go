package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir(), "kv")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Update(func(tx *Tx) error {
		return tx.Put("b", "k", 42)
	}))

	var got int
	ok, err := s.Get("b", "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, got)

	ok, err = s.Get("other", "k", &got)
	require.NoError(t, err)
	assert.False(t, ok, "buckets are separate keyspaces")
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s, err := Open(t.TempDir(), "kv")
	require.NoError(t, err)
	defer s.Close()

	boom := errors.New("boom")
	err = s.Update(func(tx *Tx) error {
		if err := tx.Put("b", "first", 1); err != nil {
			return err
		}
		if err := tx.Put("b", "second", 2); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	keys, err := s.Keys("b")
	require.NoError(t, err)
	assert.Empty(t, keys, "no write from a failed transaction may be visible")
}

func TestTxSeesItsOwnWrites(t *testing.T) {
	s, err := Open(t.TempDir(), "kv")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Update(func(tx *Tx) error {
		if err := tx.Put("b", "k", "v1"); err != nil {
			return err
		}
		var v string
		ok, err := tx.Get("b", "k", &v)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v1", v)
		return tx.Delete("b", "k")
	}))

	var v string
	ok, err := s.Get("b", "k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "kv")
	require.NoError(t, err)
	require.NoError(t, s.Update(func(tx *Tx) error {
		return tx.Put("b", "k", []string{"x", "y"})
	}))
	require.NoError(t, s.Close())

	s, err = Open(dir, "kv")
	require.NoError(t, err)
	defer s.Close()

	var got []string
	ok, err := s.Get("b", "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, got)
}

func TestKeysAreSorted(t *testing.T) {
	s, err := Open(t.TempDir(), "kv")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Update(func(tx *Tx) error {
		for _, k := range []string{"c", "a", "b"} {
			if err := tx.Put("b", k, true); err != nil {
				return err
			}
		}
		return nil
	}))
	keys, err := s.Keys("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestClosedStore(t *testing.T) {
	s, err := Open(t.TempDir(), "kv")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	var v int
	_, err = s.Get("b", "k", &v)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Keys("b")
	assert.ErrorIs(t, err, ErrClosed)
	err = s.Update(func(tx *Tx) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenRequiresName(t *testing.T) {
	_, err := Open(t.TempDir(), "")
	assert.Error(t, err)
}
