package store

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bioimage-io/backoffice/types"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/xerrors"
)

// LocalBackend stores objects as files below a root directory.
type LocalBackend struct {
	root    string
	baseUrl string
}

func NewLocalBackend(root string, baseUrl string) (*LocalBackend, error) {
	root, err := homedir.Expand(root)
	if err != nil {
		return nil, err
	}
	return &LocalBackend{root: root, baseUrl: strings.TrimSuffix(baseUrl, "/")}, nil
}

func (b *LocalBackend) Id() string {
	return "local:" + b.root
}

func (b *LocalBackend) Type() string {
	return "local"
}

func (b *LocalBackend) Open() error {
	return os.MkdirAll(b.root, 0755)
}

func (b *LocalBackend) Close() error {
	return nil
}

// path maps key to a file below root. Keys resolving outside of root are
// rejected.
func (b *LocalBackend) path(key string) (string, error) {
	p := filepath.Join(b.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(b.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", types.Wrapf(types.ErrInvalidParameters, "key %q is outside of %s", key, b.root)
	}
	return p, nil
}

func (b *LocalBackend) Put(ctx context.Context, key string, data []byte) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return xerrors.Errorf("put %s: %w", key, err)
	}
	return os.WriteFile(p, data, 0644)
}

func (b *LocalBackend) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, types.Wrapf(types.ErrNotFound, "%s", key)
	}
	return data, err
}

func (b *LocalBackend) List(ctx context.Context, prefix string, recursive bool) ([]string, error) {
	seen := make(map[string]struct{})
	err := filepath.WalkDir(b.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		if !recursive {
			rest := key[len(prefix):]
			if i := strings.Index(rest, "/"); i >= 0 {
				key = prefix + rest[:i+1]
			}
		}
		seen[key] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("list %s: %w", prefix, err)
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *LocalBackend) Copy(ctx context.Context, src string, dst string) error {
	data, err := b.Get(ctx, src)
	if err != nil {
		return err
	}
	return b.Put(ctx, dst, data)
}

func (b *LocalBackend) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		p, err := b.path(key)
		if err != nil {
			return err
		}
		err = os.Remove(p)
		if err != nil && !os.IsNotExist(err) {
			return xerrors.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

func (b *LocalBackend) Url(key string) string {
	if b.baseUrl != "" {
		return b.baseUrl + "/" + key
	}
	return "file://" + filepath.ToSlash(filepath.Join(b.root, filepath.FromSlash(key)))
}
