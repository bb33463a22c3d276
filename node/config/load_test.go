package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigComment(t *testing.T) {
	data, err := ConfigComment(DefaultBackoffice())
	require.NoError(t, err)
	require.Contains(t, string(data), "[S3]")
	require.Contains(t, string(data), "# root prefix of the collection inside the bucket")
	require.Contains(t, string(data), `#Folder = "sandbox.bioimage.io"`)

	cfg, err := FromReader(bytes.NewReader(data), DefaultBackoffice())
	require.NoError(t, err)
	require.Equal(t, DefaultBackoffice(), cfg)
}

func TestConfigUpdate(t *testing.T) {
	cur := DefaultBackoffice()
	cur.S3.Folder = "testing.bioimage.io/ci"
	cur.Collection.OnError = "abort"

	data, err := ConfigUpdate(cur, DefaultBackoffice(), true)
	require.NoError(t, err)
	require.Contains(t, string(data), `  Folder = "testing.bioimage.io/ci"`)

	cfg, err := FromReader(bytes.NewReader(data), DefaultBackoffice())
	require.NoError(t, err)
	require.Equal(t, "abort", cfg.(*Backoffice).Collection.OnError)
}

func TestConfigUpdateMatchesValuesPerSection(t *testing.T) {
	cur := DefaultBackoffice()
	cur.Collection.OnError = "abort"

	data, err := ConfigUpdate(cur, DefaultBackoffice(), true)
	require.NoError(t, err)

	var section string
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			section = trimmed
			continue
		}
		switch section {
		case "[Collection]":
			if strings.Contains(trimmed, "OnError") {
				require.Equal(t, `OnError = "abort"`, trimmed)
			}
		case "[Backup]":
			if strings.Contains(trimmed, "OnError") {
				require.Equal(t, `#OnError = "abort"`, trimmed)
			}
		}
	}

	cfg, err := FromReader(bytes.NewReader(data), DefaultBackoffice())
	require.NoError(t, err)
	require.Equal(t, cur, cfg)
}

func TestDocListsEveryField(t *testing.T) {
	root := reflect.TypeOf(Backoffice{})
	for i := 0; i < root.NumField(); i++ {
		sect := root.Field(i).Type
		docs := Doc[sect.Name()]
		require.Len(t, docs, sect.NumField(), sect.Name())
		for j := 0; j < sect.NumField(); j++ {
			f := sect.Field(j)
			require.Equal(t, f.Name, docs[j].Name, sect.Name())
			require.Equal(t, f.Type.String(), docs[j].Type, f.Name)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BACKOFFICE_S3_FOLDER", "testing.bioimage.io/env")
	t.Setenv("BACKOFFICE_S3_ACCESS_KEY_ID", "key")
	t.Setenv("BACKOFFICE_ZENODO_ACCESS_TOKEN", "token")

	cfg, err := FromFile(filepath.Join(t.TempDir(), "missing.toml"), DefaultBackoffice())
	require.NoError(t, err)
	c := cfg.(*Backoffice)
	require.Equal(t, "testing.bioimage.io/env", c.S3.Folder)
	require.Equal(t, "key", c.S3.AccessKeyId)
	require.Equal(t, "token", c.Zenodo.AccessToken)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[Store]\n  Backend = \"memory\"\n"), 0644))

	cfg, err := FromFile(path, DefaultBackoffice())
	require.NoError(t, err)
	c := cfg.(*Backoffice)
	require.Equal(t, "memory", c.Store.Backend)
	require.Equal(t, "public-datasets", c.S3.Bucket)
	require.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	cfg := DefaultBackoffice()
	require.NoError(t, cfg.Validate())

	cfg.Backup.OnError = "skip"
	require.Error(t, cfg.Validate())

	cfg = DefaultBackoffice()
	cfg.Store.Backend = "ipfs"
	require.Error(t, cfg.Validate())
}
