package resource

import (
	"errors"
	"testing"

	"github.com/bioimage-io/backoffice/types"
	"github.com/stretchr/testify/require"
)

func TestParseRdfNested(t *testing.T) {
	rdf, err := ParseRdf([]byte(`type: model
uploader:
  email: jane@example.org
  name: Jane
maintainers:
  - name: Max
    email: max@example.org
config:
  bioimageio:
    thumbnails:
      cover.png: cover.thumbnail.png
`))
	require.NoError(t, err)

	u := rdf.Uploader()
	require.NotNil(t, u)
	require.Equal(t, "jane@example.org", u.Email)
	require.Equal(t, "Jane", u.Name)
	require.ElementsMatch(t, []string{"jane@example.org", "max@example.org"}, rdf.MaintainerEmails())
	require.Equal(t, map[string]string{"cover.png": "cover.thumbnail.png"}, rdf.Thumbnails())

	_, ok := rdf["config"].(map[string]interface{})
	require.True(t, ok)
}

func TestParseRdfRejects(t *testing.T) {
	_, err := ParseRdf([]byte("- a\n- b\n"))
	require.True(t, errors.Is(err, types.ErrInvalidPackage))

	_, err = ParseRdf([]byte(""))
	require.True(t, errors.Is(err, types.ErrInvalidPackage))
}

func TestSemVer(t *testing.T) {
	for src, want := range map[string]string{
		"version: 0.1.0": "0.1.0",
		"version: 1.0":   "1.0",
		"version: 1":     "1",
		"version: 0.10":  "0.1",
		"version: 1.5":   "1.5",
	} {
		rdf, err := ParseRdf([]byte(src))
		require.NoError(t, err)
		got := rdf.SemVer()
		require.NotNil(t, got, src)
		require.Equal(t, want, *got, src)
	}

	rdf, err := ParseRdf([]byte("name: x"))
	require.NoError(t, err)
	require.Nil(t, rdf.SemVer())
}
