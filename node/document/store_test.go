package document

import (
	"context"
	"errors"
	"testing"

	"github.com/bioimage-io/backoffice/node/cache"
	"github.com/bioimage-io/backoffice/store"
	"github.com/bioimage-io/backoffice/types"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, conditional bool) (*Store, *store.MemBackend) {
	backend := store.NewMemBackend("https://example.org/bucket")
	client, err := store.NewClient(backend, "testing", cache.CreateLruCache(1<<20))
	require.NoError(t, err)
	return NewStore(client, conditional), backend
}

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, false)

	v, err := s.GetVersions(ctx, "affable-shark")
	require.NoError(t, err)
	require.Empty(t, v.Published)
	require.Empty(t, v.Staged)
	require.Nil(t, v.ConceptDoi)

	l, err := s.GetLog(ctx, "affable-shark/staged/1")
	require.NoError(t, err)
	require.Equal(t, types.LogVersion, l.LogVersion)

	c, err := s.GetChat(ctx, "affable-shark/staged/1")
	require.NoError(t, err)
	require.Empty(t, c.Messages)

	// reading defaults writes nothing
	require.Empty(t, backend.Keys())
}

func TestUpdateVersions(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, false)

	first := types.NewVersions()
	first.Staged[1] = types.StagedVersionInfo{Status: types.UnpackingStatus{StatusInfo: types.NewStatusInfo("unzipping")}}
	require.NoError(t, s.Update(ctx, "affable-shark", first))

	second := types.NewVersions()
	second.Staged[2] = types.StagedVersionInfo{Status: types.UnpackingStatus{StatusInfo: types.NewStatusInfo("unzipping")}}
	require.NoError(t, s.Update(ctx, "affable-shark", second))

	update := types.NewVersions()
	update.Staged[1] = types.StagedVersionInfo{Status: types.UnpackedStatus{StatusInfo: types.NewStatusInfo("unpacked")}}
	require.NoError(t, s.Update(ctx, "affable-shark", update))

	v, err := s.GetVersions(ctx, "affable-shark")
	require.NoError(t, err)
	require.Len(t, v.Staged, 2)
	require.Equal(t, types.StatusUnpacked, v.Staged[1].Status.Name())
	require.Equal(t, types.StatusUnpacking, v.Staged[2].Status.Name())
	require.Equal(t, []string{"testing/affable-shark/versions.json"}, backend.Keys())

	exists, err := s.Exists(ctx, "affable-shark", types.NewVersions())
	require.NoError(t, err)
	require.True(t, exists)
}

func TestConceptDoiConflictKeepsDocument(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, false)

	doi := "10.5281/zenodo.1"
	require.NoError(t, s.Update(ctx, "c", &types.Versions{ConceptDoi: &doi}))

	other := "10.5281/zenodo.9"
	err := s.Update(ctx, "c", &types.Versions{ConceptDoi: &other})
	require.True(t, errors.Is(err, types.ErrConceptDoiConflict))

	v, err := s.GetVersions(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, doi, *v.ConceptDoi)
}

func TestUpdateLogAndChat(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, false)
	folder := "affable-shark/staged/1"

	require.NoError(t, s.Update(ctx, folder, &types.Log{LogVersion: types.LogVersion, Entries: []types.LogEntry{types.NewLogEntry("one", nil, "")}}))
	require.NoError(t, s.Update(ctx, folder, &types.Log{LogVersion: types.LogVersion, Entries: []types.LogEntry{types.NewLogEntry("two", map[string]string{"k": "v"}, "")}}))
	require.NoError(t, s.Update(ctx, folder, &types.Chat{Messages: []types.Message{types.NewMessage("system", "hi")}}))

	l, err := s.GetLog(ctx, folder)
	require.NoError(t, err)
	require.Len(t, l.Entries, 2)
	require.Equal(t, "two", l.Entries[1].Message)

	c, err := s.GetChat(ctx, folder)
	require.NoError(t, err)
	require.Len(t, c.Messages, 1)
}

func TestCorruptDocument(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, false)
	require.NoError(t, s.Client().Put(ctx, "c/versions.json", []byte("{not json")))

	_, err := s.GetVersions(ctx, "c")
	require.True(t, errors.Is(err, types.ErrDecodeDocumentFailed))
	require.Error(t, s.Update(ctx, "c", types.NewVersions()))
}

func TestConditionalUpdateRetries(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, true)

	// another writer adds stage 7 right before our first write
	interfered := false
	backend.FailPut = func(key string) error {
		if interfered {
			return nil
		}
		interfered = true
		other := []byte(`{"published": {}, "staged": {"7": {"sem_ver": null, "timestamp": "2024-01-01T00:00:00Z", "status": {"name": "unpacking", "step": 1, "num_steps": 6, "description": "", "timestamp": "2024-01-01T00:00:00Z"}}}, "concept_doi": null}`)
		return backend.Put(ctx, key, other)
	}

	delta := types.NewVersions()
	delta.Staged[1] = types.StagedVersionInfo{Status: types.UnpackingStatus{StatusInfo: types.NewStatusInfo("")}}
	require.NoError(t, s.Update(ctx, "c", delta))

	data, err := backend.Get(ctx, "testing/c/versions.json")
	require.NoError(t, err)
	var v types.Versions
	require.NoError(t, json.Unmarshal(data, &v))
	require.Contains(t, v.Staged, types.StageNumber(1))
	require.Contains(t, v.Staged, types.StageNumber(7))
}

func TestConditionalFallsBack(t *testing.T) {
	backend, err := store.NewLocalBackend(t.TempDir(), "")
	require.NoError(t, err)
	client, err := store.NewClient(backend, "testing", nil)
	require.NoError(t, err)

	s := NewStore(client, true)
	require.False(t, s.conditional)
}
