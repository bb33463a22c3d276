package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bioimage-io/backoffice/types"
)

type memObject struct {
	data    []byte
	version int
}

// MemBackend keeps objects in memory. Hooks allow tests to inject failures.
type MemBackend struct {
	BaseUrl string

	// FailPut is consulted before every write, a non-nil error aborts it.
	FailPut func(key string) error

	lk      sync.Mutex
	objects map[string]memObject
	version int
}

func NewMemBackend(baseUrl string) *MemBackend {
	return &MemBackend{
		BaseUrl: strings.TrimSuffix(baseUrl, "/"),
		objects: make(map[string]memObject),
	}
}

func (m *MemBackend) Id() string {
	return "memory"
}

func (m *MemBackend) Type() string {
	return "memory"
}

func (m *MemBackend) Open() error {
	return nil
}

func (m *MemBackend) Close() error {
	return nil
}

func (m *MemBackend) Put(ctx context.Context, key string, data []byte) error {
	if m.FailPut != nil {
		if err := m.FailPut(key); err != nil {
			return err
		}
	}

	m.lk.Lock()
	defer m.lk.Unlock()
	m.put(key, data)
	return nil
}

func (m *MemBackend) put(key string, data []byte) {
	m.version++
	m.objects[key] = memObject{data: append([]byte(nil), data...), version: m.version}
}

func (m *MemBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := m.GetWithTag(ctx, key)
	return data, err
}

func (m *MemBackend) GetWithTag(ctx context.Context, key string) ([]byte, string, error) {
	m.lk.Lock()
	defer m.lk.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, "", types.Wrapf(types.ErrNotFound, "%s", key)
	}
	return append([]byte(nil), obj.data...), fmt.Sprintf("%d", obj.version), nil
}

func (m *MemBackend) PutIfMatch(ctx context.Context, key string, data []byte, tag string) error {
	if m.FailPut != nil {
		if err := m.FailPut(key); err != nil {
			return err
		}
	}

	m.lk.Lock()
	defer m.lk.Unlock()

	obj, ok := m.objects[key]
	switch {
	case tag == "" && ok:
		return types.Wrapf(types.ErrPreconditionFailed, "%s exists", key)
	case tag != "" && (!ok || fmt.Sprintf("%d", obj.version) != tag):
		return types.Wrapf(types.ErrPreconditionFailed, "%s changed", key)
	}
	m.put(key, data)
	return nil
}

func (m *MemBackend) List(ctx context.Context, prefix string, recursive bool) ([]string, error) {
	m.lk.Lock()
	defer m.lk.Unlock()

	seen := make(map[string]struct{})
	for key := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if !recursive {
			rest := key[len(prefix):]
			if i := strings.Index(rest, "/"); i >= 0 {
				key = prefix + rest[:i+1]
			}
		}
		seen[key] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemBackend) Copy(ctx context.Context, src string, dst string) error {
	data, err := m.Get(ctx, src)
	if err != nil {
		return err
	}
	return m.Put(ctx, dst, data)
}

func (m *MemBackend) Delete(ctx context.Context, keys ...string) error {
	m.lk.Lock()
	defer m.lk.Unlock()

	for _, key := range keys {
		delete(m.objects, key)
	}
	return nil
}

func (m *MemBackend) Url(key string) string {
	return m.BaseUrl + "/" + key
}

// Keys returns every stored key in order.
func (m *MemBackend) Keys() []string {
	keys, _ := m.List(context.Background(), "", true)
	return keys
}

var _ ConditionalBackend = (*MemBackend)(nil)
