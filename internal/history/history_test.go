package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	store := openTestStore(t)

	id, err := store.Insert(Record{
		Text:           "hello world",
		CreatedAt:      time.Now(),
		DurationMS:     1500,
		ModelID:        "parakeet:v3",
		AudioPath:      "/tmp/rec.wav",
		OutputMode:     "clipboard",
		AudioSizeBytes: 4096,
	})
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	rec, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, "hello world", rec.Text)
	require.Equal(t, "parakeet:v3", rec.ModelID)
	require.Equal(t, int64(1500), rec.DurationMS)
}

func TestListOrdersNewestFirst(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Insert(Record{Text: "first", CreatedAt: time.Unix(1000, 0)})
	require.NoError(t, err)
	_, err = store.Insert(Record{Text: "second", CreatedAt: time.Unix(2000, 0)})
	require.NoError(t, err)

	records, err := store.List(10, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "second", records[0].Text)
	require.Equal(t, "first", records[1].Text)
}

func TestSearchMatchesSubstring(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Insert(Record{Text: "the quick brown fox", CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = store.Insert(Record{Text: "lazy dog", CreatedAt: time.Now()})
	require.NoError(t, err)

	records, err := store.Search("quick", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "the quick brown fox", records[0].Text)
}

func TestSearchEscapesLikeWildcards(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Insert(Record{Text: "100% done", CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = store.Insert(Record{Text: "100 percent done", CreatedAt: time.Now()})
	require.NoError(t, err)

	records, err := store.Search("100%", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "100% done", records[0].Text)
}

func TestDeleteRemovesRecord(t *testing.T) {
	store := openTestStore(t)

	id, err := store.Insert(Record{Text: "to delete", CreatedAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, store.Delete(id))
	_, err = store.Get(id)
	require.Error(t, err)
}

func TestCountReflectsInsertsAndDeletes(t *testing.T) {
	store := openTestStore(t)

	n, err := store.Count()
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	id, err := store.Insert(Record{Text: "a", CreatedAt: time.Now()})
	require.NoError(t, err)

	n, err = store.Count()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, store.Delete(id))
	n, err = store.Count()
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}
