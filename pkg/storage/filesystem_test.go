package storage

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	n, err := store.SaveStream("s1/a.txt", strings.NewReader("hello"), 10)
	require.NoError(t, err)
	require.EqualValues(t, 5, n)

	f, err := store.Open("s1/a.txt")
	require.NoError(t, err)
	data, _ := io.ReadAll(f)
	f.Close()
	require.Equal(t, "hello", string(data))

	require.NoError(t, store.DeleteDir("s1"))
	_, err = os.Stat(store.Path("s1/a.txt"))
	require.True(t, os.IsNotExist(err))
	require.NoError(t, store.Delete("s1/a.txt"))
}

func TestLocalStorageLimitAndEscape(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("big.bin", strings.NewReader("0123456789"), 4)
	require.True(t, errors.Is(err, ErrTooLarge))
	_, err = os.Stat(store.Path("big.bin"))
	require.True(t, os.IsNotExist(err))

	_, err = store.Save("../outside.txt", []byte("x"))
	require.Error(t, err)
	require.Error(t, store.DeleteDir("."))
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("old/a.bin", []byte("a"))
	require.NoError(t, err)
	_, err = store.Save("new/b.bin", []byte("b"))
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path("old/a.bin"), past, past))

	deleted, err := store.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{"old/a.bin"}, deleted)
	_, err = os.Stat(store.Path("old"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(store.Path("new/b.bin"))
	require.NoError(t, err)
}
