package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bioimage-io/backoffice/node/cache"
	"github.com/bioimage-io/backoffice/types"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *MemBackend) {
	backend := NewMemBackend("https://objects.example.org/bucket")
	client, err := NewClient(backend, "sandbox", cache.CreateLruCache(1<<20))
	require.NoError(t, err)
	return client, backend
}

func TestClientEmptyPrefix(t *testing.T) {
	_, err := NewClient(NewMemBackend(""), "/", nil)
	require.True(t, errors.Is(err, types.ErrInvalidConfig))
}

func TestClientPutGet(t *testing.T) {
	ctx := context.Background()
	client, backend := newTestClient(t)

	_, err := client.Get(ctx, "a/versions.json")
	require.True(t, errors.Is(err, types.ErrNotFound))

	require.NoError(t, client.Put(ctx, "a/versions.json", []byte(`{}`)))
	data, err := client.Get(ctx, "a/versions.json")
	require.NoError(t, err)
	require.Equal(t, []byte(`{}`), data)
	require.Equal(t, []string{"sandbox/a/versions.json"}, backend.Keys())

	require.Equal(t, "https://objects.example.org/bucket/sandbox/a/versions.json", client.Url("a/versions.json"))

	ok, err := client.Exists(ctx, "a/versions.json")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestClientFailedPutEvictsCache(t *testing.T) {
	ctx := context.Background()
	client, backend := newTestClient(t)

	require.NoError(t, client.Put(ctx, "x", []byte("1")))
	backend.FailPut = func(key string) error { return errors.New("boom") }
	require.Error(t, client.Put(ctx, "x", []byte("2")))

	data, err := client.Get(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), data)
}

func TestClientListAndTrees(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	for _, p := range []string{
		"affable-shark/versions.json",
		"affable-shark/staged/1/files/rdf.yaml",
		"affable-shark/staged/1/files/weights/model.pt",
		"affable-shark/staged/1/log.json",
		"other/versions.json",
	} {
		require.NoError(t, client.Put(ctx, p, []byte(p)))
	}

	top, err := client.List(ctx, "", false)
	require.NoError(t, err)
	require.Equal(t, []string{"affable-shark/", "other/"}, top)

	files, err := client.List(ctx, "affable-shark/staged/1/files", true)
	require.NoError(t, err)
	require.Equal(t, []string{"rdf.yaml", "weights/model.pt"}, files)

	paths, err := client.ListFiles(ctx, "affable-shark/staged/1/files")
	require.NoError(t, err)
	require.Equal(t, []string{"affable-shark/staged/1/files/rdf.yaml", "affable-shark/staged/1/files/weights/model.pt"}, paths)

	require.NoError(t, client.CopyTree(ctx, "affable-shark/staged/1/files", "affable-shark/1/files"))
	data, err := client.Get(ctx, "affable-shark/1/files/weights/model.pt")
	require.NoError(t, err)
	require.Equal(t, "affable-shark/staged/1/files/weights/model.pt", string(data))

	// the copy leaves the source in place
	_, err = client.Get(ctx, "affable-shark/staged/1/files/rdf.yaml")
	require.NoError(t, err)

	require.Error(t, client.DeleteTree(ctx, "affable-shark"))
	require.NoError(t, client.DeleteTree(ctx, "affable-shark/"))
	_, err = client.Get(ctx, "affable-shark/versions.json")
	require.True(t, errors.Is(err, types.ErrNotFound))

	rest, err := client.List(ctx, "", true)
	require.NoError(t, err)
	require.Equal(t, []string{"other/versions.json"}, rest)
}

func TestClientConditionalWrites(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	require.True(t, client.Conditional())

	require.NoError(t, client.PutIfMatch(ctx, "doc.json", []byte("1"), ""))
	require.True(t, errors.Is(client.PutIfMatch(ctx, "doc.json", []byte("1"), ""), types.ErrPreconditionFailed))

	_, tag, err := client.GetWithTag(ctx, "doc.json")
	require.NoError(t, err)
	require.NoError(t, client.PutIfMatch(ctx, "doc.json", []byte("2"), tag))
	require.True(t, errors.Is(client.PutIfMatch(ctx, "doc.json", []byte("3"), tag), types.ErrPreconditionFailed))

	data, err := client.Get(ctx, "doc.json")
	require.NoError(t, err)
	require.Equal(t, []byte("2"), data)
}

func TestLocalBackend(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir(), "")
	require.NoError(t, err)
	require.NoError(t, backend.Open())

	client, err := NewClient(backend, "testing", nil)
	require.NoError(t, err)
	require.False(t, client.Conditional())

	require.NoError(t, client.Put(ctx, "c/1/files/a.txt", []byte("a")))
	require.NoError(t, client.Put(ctx, "c/1/files/sub/b.txt", []byte("b")))

	names, err := client.List(ctx, "c/1/files", false)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt", "sub/"}, names)

	require.NoError(t, client.DeleteTree(ctx, "c/"))
	_, err = client.Get(ctx, "c/1/files/a.txt")
	require.True(t, errors.Is(err, types.ErrNotFound))
}

func TestLocalBackendStaysBelowRoot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	backend, err := NewLocalBackend(filepath.Join(root, "objects"), "")
	require.NoError(t, err)
	require.NoError(t, backend.Open())

	err = backend.Put(ctx, "../escaped.txt", []byte("x"))
	require.True(t, errors.Is(err, types.ErrInvalidParameters))
	_, err = os.Stat(filepath.Join(root, "escaped.txt"))
	require.True(t, os.IsNotExist(err))

	_, err = backend.Get(ctx, "testing/../../escaped.txt")
	require.True(t, errors.Is(err, types.ErrInvalidParameters))
	require.True(t, errors.Is(backend.Delete(ctx, "../../x"), types.ErrInvalidParameters))

	// staying inside root is fine even with ".." in the key
	require.NoError(t, backend.Put(ctx, "a/../b.txt", []byte("b")))
	data, err := backend.Get(ctx, "b.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("b"), data)
}
