package collection

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bioimage-io/backoffice/node/config"
	"github.com/bioimage-io/backoffice/node/document"
	"github.com/bioimage-io/backoffice/node/resource"
	"github.com/bioimage-io/backoffice/store"
	"github.com/bioimage-io/backoffice/types"
	"github.com/bioimage-io/backoffice/utils"
	"github.com/stretchr/testify/require"
)

const sharkRdf = `type: model
name: Affable Shark
id: affable-shark
id_emoji: "🦈"
description: a shark
license: MIT
covers:
  - cover.png
  - https://example.org/remote.png
tags: [unet]
config:
  bioimageio:
    thumbnails:
      cover.png: cover.thumbnail.png
`

func strPtr(s string) *string {
	return &s
}

func setup(t *testing.T) (*resource.Collection, *store.Client) {
	ctx := context.Background()
	client, err := store.NewClient(store.NewMemBackend("https://example.org/bucket"), "testing", nil)
	require.NoError(t, err)
	docs := document.NewStore(client, false)
	coll := resource.NewCollection(resource.Options{Docs: docs, Http: utils.NewHttpClient(0)})

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	v := types.NewVersions()
	v.ConceptDoi = strPtr("10.5281/zenodo.100")
	v.Staged[1] = types.StagedVersionInfo{Timestamp: t0, Status: types.PublishedStagedStatus{PublishNumber: 1}}
	v.Staged[2] = types.StagedVersionInfo{Timestamp: t0, Status: types.PublishedStagedStatus{PublishNumber: 2}}
	v.Staged[3] = types.StagedVersionInfo{Timestamp: t0, Status: types.UnpackedStatus{}}
	v.Published[1] = types.PublishedVersionInfo{Timestamp: t0, Status: types.PublishedStatus{StageNumber: 1}, Doi: strPtr("10.5281/zenodo.101")}
	v.Published[2] = types.PublishedVersionInfo{Timestamp: t0.Add(time.Hour), Status: types.PublishedStatus{StageNumber: 2}}
	require.NoError(t, docs.Update(ctx, "affable-shark", v))
	for _, folder := range []string{"affable-shark/1", "affable-shark/2", "affable-shark/staged/3"} {
		require.NoError(t, client.Put(ctx, folder+"/files/rdf.yaml", []byte(sharkRdf)))
	}

	broken := types.NewVersions()
	broken.Published[1] = types.PublishedVersionInfo{Timestamp: t0, Status: types.PublishedStatus{StageNumber: 1}}
	require.NoError(t, docs.Update(ctx, "chatty-frog", broken))
	return coll, client
}

func TestBuildPublished(t *testing.T) {
	ctx := context.Background()
	coll, _ := setup(t)
	a := NewAggregator(coll, nil, config.Collection{OnError: OnErrorSkip, Concurrency: 2})

	m, err := a.Build(ctx, ModePublished)
	require.Error(t, err)
	require.Contains(t, err.Error(), "chatty-frog")
	require.NotNil(t, m)
	require.Len(t, m.Collection, 2)

	latest := m.Collection[0]
	require.Equal(t, "affable-shark", latest.Id)
	require.Equal(t, "2", latest.VersionNumber)
	require.Equal(t, []types.PublishNumber{2, 1}, latest.Versions)
	require.Equal(t, "10.5281/zenodo.100", *latest.ConceptDoi)
	require.Nil(t, latest.Doi)
	require.Equal(t, "10.5281/zenodo.101", *m.Collection[1].Doi)
	require.Equal(t, "https://example.org/bucket/testing/affable-shark/2/files", latest.RootUrl)
	require.Equal(t, "https://example.org/bucket/testing/affable-shark/2/files/rdf.yaml", latest.RdfSource)
	require.Equal(t, []interface{}{
		"https://example.org/bucket/testing/affable-shark/2/files/cover.thumbnail.png",
		"https://example.org/remote.png",
	}, latest.Covers)
	require.Equal(t, "affable-shark", latest.Nickname)
	require.Equal(t, "🦈", latest.NicknameIcon)
	require.Equal(t, "?", latest.DownloadCount)
	require.Len(t, latest.EntrySha256, 64)

	require.Equal(t, map[string]int{"model": 1}, m.Config.NResources)
	require.Equal(t, map[string]int{"model": 2}, m.Config.NResourceVersions)
	require.Equal(t, []string{"model"}, m.Config.ResourceTypes)
	require.Equal(t, "https://example.org/bucket/testing", m.Config.UrlRoot)
}

func TestBuildAbort(t *testing.T) {
	coll, _ := setup(t)
	a := NewAggregator(coll, nil, config.Collection{OnError: OnErrorAbort, Concurrency: 1})

	m, err := a.Build(context.Background(), ModePublished)
	require.Error(t, err)
	require.Nil(t, m)
}

func TestBuildStaged(t *testing.T) {
	coll, _ := setup(t)
	a := NewAggregator(coll, nil, config.Collection{OnError: OnErrorSkip})

	m, err := a.Build(context.Background(), ModeStaged)
	require.NoError(t, err)
	require.Len(t, m.Collection, 1)
	require.Equal(t, "staged/3", m.Collection[0].VersionNumber)
	require.Equal(t, []string{"staged/3"}, m.Collection[0].StagedVersions)
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	coll, client := setup(t)

	template := filepath.Join(t.TempDir(), "template.json")
	require.NoError(t, os.WriteFile(template, []byte(`{"name": "bioimage.io", "config": {"splash_title": "hi", "url_root": "x"}}`), 0644))
	a := NewAggregator(coll, utils.NewHttpClient(0), config.Collection{OnError: OnErrorSkip, Template: template})

	require.Error(t, a.Generate(ctx, ModePublished))

	data, err := client.Get(ctx, types.CollectionFileName)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, "bioimage.io", doc["name"])
	cfg := doc["config"].(map[string]interface{})
	require.Equal(t, "hi", cfg["splash_title"])
	require.Equal(t, "https://example.org/bucket/testing", cfg["url_root"])
	require.Len(t, doc["collection"], 2)

	data, err = client.Get(ctx, types.DoiMappingFileName)
	require.NoError(t, err)
	var mapping map[string]string
	require.NoError(t, json.Unmarshal(data, &mapping))
	require.Equal(t, map[string]string{
		"10.5281/zenodo.100": "affable-shark",
		"10.5281/zenodo.101": "affable-shark",
	}, mapping)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("staged")
	require.NoError(t, err)
	require.Equal(t, types.CollectionStagedFileName, m.FileName())
	_, err = ParseMode("draft")
	require.Error(t, err)
}

func TestSwapAndResolve(t *testing.T) {
	thumbnails := map[string]string{"images/cover.png": "cover.thumbnail.png"}
	src := []interface{}{"./images/cover.png", "icon.svg", map[string]interface{}{"icon": "https://example.org/a.png"}, "README"}
	got := resolveRelative(swapWithThumbnail(src, thumbnails), "https://h/root")
	require.Equal(t, []interface{}{
		"https://h/root/cover.thumbnail.png",
		"https://h/root/icon.svg",
		map[string]interface{}{"icon": "https://example.org/a.png"},
		"README",
	}, got)
}
