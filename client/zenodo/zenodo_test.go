package zenodo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bioimage-io/backoffice/types"
	"github.com/bioimage-io/backoffice/utils"
	"github.com/stretchr/testify/require"
)

type request struct {
	method, path, token, body string
}

func newServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]request) {
	var (
		lk       sync.Mutex
		requests []request
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		lk.Lock()
		requests = append(requests, request{r.Method, r.URL.Path, r.URL.Query().Get("access_token"), string(body)})
		lk.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestCreateUploadPublish(t *testing.T) {
	ctx := context.Background()
	var srv *httptest.Server
	srv, requests := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/deposit/depositions":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 12, "conceptrecid": "11", "links": {"bucket": "` + srv.URL + `/files/abc"}, "metadata": {"prereserve_doi": {"doi": "10.5281/zenodo.12"}}}`))
		case "/files/abc/rdf.yaml", "/api/deposit/depositions/12":
			_, _ = w.Write([]byte(`{}`))
		case "/api/deposit/depositions/12/actions/publish":
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"id": 12, "conceptrecid": "11", "doi": "10.5281/zenodo.12", "conceptdoi": "10.5281/zenodo.11"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c := NewClient(srv.URL+"/", "secret", utils.NewHttpClient(0))

	d, err := c.CreateOrVersionDeposition(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, int64(12), d.Id)
	require.Equal(t, "10.5281/zenodo.12", d.VersionDoi())
	require.Equal(t, "10.5281/zenodo.11", d.ConceptDoiOf())

	require.NoError(t, c.UploadFile(ctx, d.Links.Bucket, "rdf.yaml", []byte("id: x")))
	require.NoError(t, c.UpdateMetadata(ctx, d.Id, &Metadata{Title: "Affable Shark"}))
	published, err := c.Publish(ctx, d.Id)
	require.NoError(t, err)
	require.Equal(t, "10.5281/zenodo.11", published.ConceptDoiOf())

	require.Len(t, *requests, 4)
	for _, r := range *requests {
		require.Equal(t, "secret", r.token)
	}
	require.Equal(t, "id: x", (*requests)[1].body)
	require.Contains(t, (*requests)[2].body, `"title":"Affable Shark"`)
}

func TestNewVersion(t *testing.T) {
	ctx := context.Background()
	var srv *httptest.Server
	srv, requests := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/deposit/depositions/11/actions/newversion":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 12, "links": {"latest_draft": "` + srv.URL + `/api/deposit/depositions/13"}}`))
		case "/api/deposit/depositions/13":
			_, _ = w.Write([]byte(`{"id": 13, "conceptrecid": "11", "links": {"bucket": "b"}, "metadata": {"prereserve_doi": {"doi": "10.5281/zenodo.13"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c := NewClient(srv.URL, "secret", utils.NewHttpClient(0))

	conceptDoi := "10.5281/zenodo.11"
	d, err := c.CreateOrVersionDeposition(ctx, &conceptDoi)
	require.NoError(t, err)
	require.Equal(t, int64(13), d.Id)
	require.Equal(t, "10.5281/zenodo.11", d.ConceptDoiOf())
	require.Len(t, *requests, 2)
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message": "no"}`))
	})
	c := NewClient(srv.URL, "secret", utils.NewHttpClient(0))

	_, err := c.CreateDeposition(ctx)
	require.True(t, errors.Is(err, types.ErrArchiveFailed))
	require.Contains(t, err.Error(), "403")

	_, err = ConceptId("10.1234/other.5")
	require.True(t, errors.Is(err, types.ErrInvalidParameters))
	id, err := ConceptId("10.5281/zenodo.42")
	require.NoError(t, err)
	require.Equal(t, "42", id)

	require.True(t, errors.Is(c.UploadFile(ctx, "", "x", nil), types.ErrArchiveFailed))
}
