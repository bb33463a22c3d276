package store

import (
	"context"
	"errors"
	"strings"

	"github.com/bioimage-io/backoffice/node/cache"
	"github.com/bioimage-io/backoffice/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

const defaultConcurrency = 16

// Client addresses a backend below a root prefix and caches what it reads
// and writes. All paths are relative to the root prefix.
type Client struct {
	backend     Backend
	prefix      string
	cache       *cache.LruCache
	concurrency int
}

func NewClient(backend Backend, prefix string, c *cache.LruCache) (*Client, error) {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return nil, types.Wrapf(types.ErrInvalidConfig, "empty store prefix")
	}
	if c == nil {
		c = cache.CreateLruCache(0)
	}
	return &Client{
		backend:     backend,
		prefix:      prefix,
		cache:       c,
		concurrency: defaultConcurrency,
	}, nil
}

func (c *Client) SetConcurrency(n int) {
	if n > 0 {
		c.concurrency = n
	}
}

func (c *Client) Backend() Backend {
	return c.backend
}

func (c *Client) Prefix() string {
	return c.prefix
}

func (c *Client) key(path string) string {
	return c.prefix + "/" + strings.TrimPrefix(path, "/")
}

// Put writes data and keeps it in the cache.
func (c *Client) Put(ctx context.Context, path string, data []byte) error {
	key := c.key(path)
	if err := c.backend.Put(ctx, key, data); err != nil {
		c.cache.Evict(key)
		return err
	}
	c.cache.Put(key, data)
	log.Debugf("uploaded %s (%d bytes)", key, len(data))
	return nil
}

// Get reads path, types.ErrNotFound is returned for a missing object.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	key := c.key(path)
	if data, missing, ok := c.cache.Get(key); ok {
		if missing {
			return nil, types.Wrapf(types.ErrNotFound, "%s", path)
		}
		return data, nil
	}

	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			c.cache.PutMissing(key)
			return nil, types.Wrapf(types.ErrNotFound, "%s", path)
		}
		return nil, err
	}
	c.cache.Put(key, data)
	return data, nil
}

// Conditional reports whether the backend supports conditional writes.
func (c *Client) Conditional() bool {
	_, ok := c.backend.(ConditionalBackend)
	return ok
}

// GetWithTag reads path from the backend together with its version tag.
func (c *Client) GetWithTag(ctx context.Context, path string) ([]byte, string, error) {
	cb, ok := c.backend.(ConditionalBackend)
	if !ok {
		return nil, "", types.Wrapf(types.ErrUnSupport, "%s backend has no conditional writes", c.backend.Type())
	}
	return cb.GetWithTag(ctx, c.key(path))
}

// PutIfMatch writes path if it still carries tag, see ConditionalBackend.
func (c *Client) PutIfMatch(ctx context.Context, path string, data []byte, tag string) error {
	cb, ok := c.backend.(ConditionalBackend)
	if !ok {
		return types.Wrapf(types.ErrUnSupport, "%s backend has no conditional writes", c.backend.Type())
	}
	key := c.key(path)
	if err := cb.PutIfMatch(ctx, key, data, tag); err != nil {
		c.cache.Evict(key)
		return err
	}
	c.cache.Put(key, data)
	return nil
}

func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	_, err := c.Get(ctx, path)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// List returns the names below prefix relative to it. Without recursive
// sub-folders are returned with a trailing "/".
func (c *Client) List(ctx context.Context, prefix string, recursive bool) ([]string, error) {
	root := c.key(prefix)
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	keys, err := c.backend.List(ctx, root, recursive)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, root)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// ListFiles returns every object below prefix as a path relative to the
// client root.
func (c *Client) ListFiles(ctx context.Context, prefix string) ([]string, error) {
	names, err := c.List(ctx, prefix, true)
	if err != nil {
		return nil, err
	}
	base := strings.Trim(prefix, "/")
	paths := make([]string, 0, len(names))
	for _, name := range names {
		if base == "" {
			paths = append(paths, name)
		} else {
			paths = append(paths, base+"/"+name)
		}
	}
	return paths, nil
}

// CopyTree copies every object below src to the same relative location
// below dst.
func (c *Client) CopyTree(ctx context.Context, src string, dst string) error {
	src = strings.Trim(src, "/")
	dst = strings.Trim(dst, "/")
	names, err := c.List(ctx, src, true)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, name := range names {
		name := name
		g.Go(func() error {
			dstKey := c.key(dst + "/" + name)
			if err := c.backend.Copy(gctx, c.key(src+"/"+name), dstKey); err != nil {
				return xerrors.Errorf("copy %s/%s: %w", src, name, err)
			}
			c.cache.Evict(dstKey)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Infof("copied %d objects from %s to %s", len(names), src, dst)
	return nil
}

func (c *Client) Delete(ctx context.Context, path string) error {
	key := c.key(path)
	defer c.cache.Evict(key)
	return c.backend.Delete(ctx, key)
}

// DeleteTree removes every object below prefix, which has to be empty
// (the whole root) or end in "/".
func (c *Client) DeleteTree(ctx context.Context, prefix string) error {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		return types.Wrapf(types.ErrInvalidParameters, "prefix %q must end with '/'", prefix)
	}
	names, err := c.List(ctx, prefix, true)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(names))
	for _, name := range names {
		keys = append(keys, c.key(prefix+name))
	}
	defer func() {
		for _, key := range keys {
			c.cache.Evict(key)
		}
	}()
	if err := c.backend.Delete(ctx, keys...); err != nil {
		return err
	}
	log.Infof("deleted %d objects below %s", len(keys), c.key(prefix))
	return nil
}

// Url returns the public url of path.
func (c *Client) Url(path string) string {
	return c.backend.Url(c.key(path))
}
