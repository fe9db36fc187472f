package xs_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/randalmurphal/remusbuf/pkg/remusbuf/xs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory creates a store instance for testing.
type storeFactory func(t *testing.T) xs.Store

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	ctx := context.Background()

	t.Run(name+"/Write_and_Read", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Write(ctx, "/libxl/1/remus/netbuf/0/ifb", "ifb1.0"))

		v, ok, err := store.Read(ctx, "/libxl/1/remus/netbuf/0/ifb")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "ifb1.0", v)
	})

	t.Run(name+"/Read_Missing", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		v, ok, err := store.Read(ctx, "/libxl/1/remus/netbuf/0/hotplug-error")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run(name+"/Write_Overwrite", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Write(ctx, "/a/b", "first"))
		require.NoError(t, store.Write(ctx, "/a/b", "second"))

		v, _, err := store.Read(ctx, "/a/b")
		require.NoError(t, err)
		assert.Equal(t, "second", v)
	})

	t.Run(name+"/Remove_NonASCIISubtree", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Write(ctx, "/é/child", "x"))
		require.NoError(t, store.Write(ctx, "/éa", "sibling"))
		require.NoError(t, store.Remove(ctx, "/é"))

		_, ok, err := store.Read(ctx, "/é/child")
		require.NoError(t, err)
		assert.False(t, ok, "child removed with its parent")

		_, ok, err = store.Read(ctx, "/éa")
		require.NoError(t, err)
		assert.True(t, ok, "sibling sharing a name prefix survives")
	})

	t.Run(name+"/Remove_Subtree", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Write(ctx, "/libxl/1/remus/netbuf/0/ifb", "ifb1.0"))
		require.NoError(t, store.Write(ctx, "/libxl/1/remus/netbuf/0/hotplug-error", "boom"))
		require.NoError(t, store.Write(ctx, "/libxl/1/remus/netbuf/01", "sibling"))

		require.NoError(t, store.Remove(ctx, "/libxl/1/remus/netbuf/0"))

		_, ok, err := store.Read(ctx, "/libxl/1/remus/netbuf/0/ifb")
		require.NoError(t, err)
		assert.False(t, ok)

		v, ok, err := store.Read(ctx, "/libxl/1/remus/netbuf/01")
		require.NoError(t, err)
		assert.True(t, ok, "sibling with a common prefix must survive")
		assert.Equal(t, "sibling", v)
	})

	t.Run(name+"/Remove_Missing", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		assert.NoError(t, store.Remove(ctx, "/nothing/here"))
	})

	t.Run(name+"/InvalidPath", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		assert.ErrorIs(t, store.Write(ctx, "relative/path", "x"), xs.ErrInvalidPath)
		_, _, err := store.Read(ctx, "")
		assert.ErrorIs(t, err, xs.ErrInvalidPath)
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		assert.ErrorIs(t, store.Write(ctx, "/a", "x"), xs.ErrStoreClosed)
		_, _, err := store.Read(ctx, "/a")
		assert.ErrorIs(t, err, xs.ErrStoreClosed)
		assert.ErrorIs(t, store.Remove(ctx, "/a"), xs.ErrStoreClosed)
		assert.NoError(t, store.Close())
	})

	t.Run(name+"/Concurrent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				path := xs.NetbufPath(uint32(i), 0) + "/ifb"
				assert.NoError(t, store.Write(ctx, path, "ifb"))
				_, ok, err := store.Read(ctx, path)
				assert.NoError(t, err)
				assert.True(t, ok)
			}(i)
		}
		wg.Wait()
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContractTest(t, "MemoryStore", func(t *testing.T) xs.Store {
		return xs.NewMemoryStore()
	})
}

func TestSQLiteStore_Contract(t *testing.T) {
	storeContractTest(t, "SQLiteStore", func(t *testing.T) xs.Store {
		store, err := xs.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	})
}

func TestSQLiteStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "xs.db")

	store1, err := xs.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Write(ctx, "/libxl/4/remus/netbuf/1/ifb", "ifb4.1"))
	require.NoError(t, store1.Close())

	store2, err := xs.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	v, ok, err := store2.Read(ctx, "/libxl/4/remus/netbuf/1/ifb")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ifb4.1", v)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := xs.NewSQLiteStore("/nonexistent/path/xs.sqlite")
	assert.Error(t, err)
}

func TestMemoryStore_Keys(t *testing.T) {
	ctx := context.Background()
	store := xs.NewMemoryStore()
	require.NoError(t, store.Write(ctx, "/b", "2"))
	require.NoError(t, store.Write(ctx, "/a", "1"))
	assert.Equal(t, []string{"/a", "/b"}, store.Keys())
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "/local/domain/7", xs.DomainPath(7))
	assert.Equal(t, "/libxl/7", xs.LibxlPath(7))
	assert.Equal(t, "/local/domain/0/backend/vif/7/2/vifname", xs.VifNamePath(7, 2))
	assert.Equal(t, "/libxl/7/remus/netbuf/2", xs.NetbufPath(7, 2))
}

func TestReadRequired(t *testing.T) {
	ctx := context.Background()
	store := xs.NewMemoryStore()
	require.NoError(t, store.Write(ctx, "/set", "v"))
	require.NoError(t, store.Write(ctx, "/empty", ""))

	v, err := xs.ReadRequired(ctx, store, "/set")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	_, err = xs.ReadRequired(ctx, store, "/empty")
	assert.ErrorIs(t, err, xs.ErrNotFound)

	_, err = xs.ReadRequired(ctx, store, "/missing")
	assert.ErrorIs(t, err, xs.ErrNotFound)
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path string
		ok   bool
	}{
		{"/", true},
		{"/libxl/1", true},
		{"", false},
		{"libxl/1", false},
		{"/libxl/", false},
		{"/libxl//1", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := xs.ValidatePath(tt.path)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, xs.ErrInvalidPath)
			}
		})
	}
}
