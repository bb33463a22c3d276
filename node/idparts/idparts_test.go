package idparts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bioimage-io/backoffice/types"
	"github.com/bioimage-io/backoffice/utils"
	"github.com/stretchr/testify/require"
)

const idPartsJson = `{
  "model": {"adjectives": ["easy", "easy-going", "affable"], "nouns": {"shark": "🦈", "parrot": "🦜"}},
  "dataset": {"adjectives": ["frank"], "nouns": {"water-buffalo": "🐃"}},
  "notebook": {"adjectives": ["lazy"], "nouns": {"bug": "🐛"}}
}`

func TestIdParts(t *testing.T) {
	p, err := Parse([]byte(idPartsJson))
	require.NoError(t, err)
	require.Equal(t, []string{"easy-going", "affable", "easy"}, p.Model.Adjectives)

	noun, ok := p.Model.Noun("easy-going-shark")
	require.True(t, ok)
	require.Equal(t, "shark", noun)

	emoji, ok := p.Emoji("affable-shark")
	require.True(t, ok)
	require.Equal(t, "🦈", emoji)

	emoji, ok = p.Emoji("frank-water-buffalo")
	require.True(t, ok)
	require.Equal(t, "🐃", emoji)

	_, ok = p.Emoji("grumpy-cat")
	require.False(t, ok)

	model, err := p.ForType("model")
	require.NoError(t, err)
	require.NoError(t, model.Validate("affable-shark"))
	require.True(t, errors.Is(model.Validate("affable-cat"), types.ErrInvalidId))
	require.True(t, errors.Is(model.Validate("grumpy-shark"), types.ErrInvalidId))
	require.True(t, errors.Is(model.Validate(""), types.ErrInvalidId))

	_, err = p.ForType("application")
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/id_parts.json":
			_, _ = w.Write([]byte(idPartsJson))
		case "/reviewers.json":
			_, _ = w.Write([]byte(`[{"id": "1", "name": "Rev Iewer", "affiliation": "EMBL", "orcid": "0000", "github_user": "reviewer", "email": "reviewer@example.org"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	client := utils.NewHttpClient(0)

	p, err := Load(ctx, client, srv.URL+"/id_parts.json")
	require.NoError(t, err)
	require.Contains(t, p.Notebook.Nouns, "bug")

	reviewers, err := LoadReviewers(ctx, client, srv.URL+"/reviewers.json")
	require.NoError(t, err)
	require.Len(t, reviewers, 1)
	require.Equal(t, "Rev Iewer", reviewers.Find("reviewer@example.org").Name)
	require.Equal(t, "Rev Iewer", reviewers.Find("reviewer").Name)
	require.Nil(t, reviewers.Find("someone"))

	_, err = Load(ctx, client, srv.URL+"/missing.json")
	require.Error(t, err)
}
