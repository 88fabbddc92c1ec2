package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestKVImplementations(t *testing.T) {
	stores := map[string]func(t *testing.T) KV{
		"sqlite": func(t *testing.T) KV { return newTestSQLite(t) },
		"memory": func(t *testing.T) KV { return NewMemory() },
	}

	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			kv := mk(t)

			_, err := kv.Get(KeyEntries)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Put(KeyEntries, []byte(`[1]`)))
			require.NoError(t, kv.Put(KeyEntries, []byte(`[1,2]`)))
			require.NoError(t, kv.Put(KeyReflections, []byte(`[]`)))

			got, err := kv.Get(KeyEntries)
			require.NoError(t, err)
			assert.Equal(t, `[1,2]`, string(got))

			require.NoError(t, kv.Delete(KeyEntries, KeyReflections, "missing"))

			_, err = kv.Get(KeyEntries)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = kv.Get(KeyReflections)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(KeyEntries, []byte(`["kept"]`)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(KeyEntries)
	require.NoError(t, err)
	assert.Equal(t, `["kept"]`, string(got))
}

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	value := []byte("abc")
	require.NoError(t, m.Put("k", value))
	value[1] = 'z'

	got, err := m.Get("k")
	require.NoError(t, err)
	got[0] = 'x'

	again, err := m.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}
