package config

import (
	"bytes"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bioimage-io/backoffice/types"
	"golang.org/x/xerrors"
)

func DefaultBackoffice() *Backoffice {
	return &Backoffice{
		S3: S3{
			Host:   "uk1s3.embassy.ebi.ac.uk",
			Bucket: "public-datasets",
			Folder: "sandbox.bioimage.io",
			Region: "us-east-1",
		},
		Store: Store{
			Backend:     "s3",
			LocalRoot:   "~/.backoffice/objects",
			Concurrency: 16,
		},
		Cache: Cache{
			EnableCache:   true,
			CacheCapacity: 1 << 30,
		},
		Collection: Collection{
			OnError:     "skip",
			Concurrency: 8,
		},
		Backup: Backup{
			OnError: "abort",
		},
		Zenodo: Zenodo{
			Url: "https://sandbox.zenodo.org",
		},
		Mail: Mail{
			SmtpHost:      "smtp.gmail.com",
			SmtpPort:      465,
			BotEmail:      "bioimageiobot@gmail.com",
			SubjectPrefix: "bioimage.io status update: ",
		},
		Validator: Validator{
			Command: []string{"bioimageio", "test"},
		},
		Network: Network{
			Timeout:  30 * time.Minute,
			RetryMax: 4,
		},
		Sources: Sources{
			IdParts:   "https://raw.githubusercontent.com/bioimage-io/collection/main/id_parts.json",
			Reviewers: "https://raw.githubusercontent.com/bioimage-io/collection/main/reviewers.json",
		},
	}
}

func ConfigBytes(cfg interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	e := toml.NewEncoder(buf)
	if err := e.Encode(cfg); err != nil {
		return nil, xerrors.Errorf("encoding backoffice config: %w", err)
	}

	return []byte(buf.String()), nil
}

// Validate checks the values that have a closed set of options.
func (c *Backoffice) Validate() error {
	switch c.Store.Backend {
	case "s3", "local", "memory":
	default:
		return types.Wrapf(types.ErrInvalidConfig, "unknown store backend %q", c.Store.Backend)
	}
	switch c.Collection.OnError {
	case "skip", "abort":
	default:
		return types.Wrapf(types.ErrInvalidConfig, "unknown collection on_error policy %q", c.Collection.OnError)
	}
	switch c.Backup.OnError {
	case "abort", "continue":
	default:
		return types.Wrapf(types.ErrInvalidConfig, "unknown backup on_error policy %q", c.Backup.OnError)
	}
	if c.S3.Folder == "" {
		return types.Wrapf(types.ErrInvalidConfig, "empty s3 folder")
	}
	return nil
}
