package document

import (
	"context"
	"errors"
	"strings"

	"github.com/bioimage-io/backoffice/store"
	"github.com/bioimage-io/backoffice/types"
	logging "github.com/ipfs/go-log/v2"
	jsoniter "github.com/json-iterator/go"
	creator "github.com/mattbaird/jsonpatch"
	"golang.org/x/xerrors"
)

var log = logging.Logger("document")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxConditionalAttempts = 3

// Store reads and updates the JSON documents of a resource. An update reads
// the current document, merges the delta and writes the whole document
// back.
type Store struct {
	client      *store.Client
	conditional bool
}

// NewStore returns a document store on client. With conditional set and a
// backend that supports it every write is conditioned on the version that
// was read.
func NewStore(client *store.Client, conditional bool) *Store {
	if conditional && !client.Conditional() {
		log.Warnf("%s backend does not support conditional writes", client.Backend().Type())
		conditional = false
	}
	return &Store{client: client, conditional: conditional}
}

func (s *Store) Client() *store.Client {
	return s.client
}

func path(folder string, doc types.Document) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return doc.FileName()
	}
	return folder + "/" + doc.FileName()
}

func empty(doc types.Document) types.Document {
	switch doc.(type) {
	case *types.Versions:
		return types.NewVersions()
	case *types.Log:
		return types.NewLog()
	case *types.Chat:
		return types.NewChat()
	default:
		panic(xerrors.Errorf("unknown document type %T", doc))
	}
}

func merge(current types.Document, delta types.Document) error {
	switch cur := current.(type) {
	case *types.Versions:
		return cur.Merge(delta.(*types.Versions))
	case *types.Log:
		return cur.Merge(delta.(*types.Log))
	case *types.Chat:
		return cur.Merge(delta.(*types.Chat))
	default:
		panic(xerrors.Errorf("unknown document type %T", current))
	}
}

func decode(data []byte, doc types.Document) error {
	if err := json.Unmarshal(data, doc); err != nil {
		return types.Wrapf(types.ErrDecodeDocumentFailed, "%s: %v", doc.FileName(), err)
	}
	return nil
}

// load fills doc with the stored document and reports whether it exists.
func (s *Store) load(ctx context.Context, folder string, doc types.Document) (bool, error) {
	data, err := s.client.Get(ctx, path(folder, doc))
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, decode(data, doc)
}

func (s *Store) GetVersions(ctx context.Context, folder string) (*types.Versions, error) {
	v := types.NewVersions()
	if _, err := s.load(ctx, folder, v); err != nil {
		return nil, err
	}
	if v.Published == nil {
		v.Published = make(map[types.PublishNumber]types.PublishedVersionInfo)
	}
	if v.Staged == nil {
		v.Staged = make(map[types.StageNumber]types.StagedVersionInfo)
	}
	return v, nil
}

func (s *Store) GetLog(ctx context.Context, folder string) (*types.Log, error) {
	l := types.NewLog()
	if _, err := s.load(ctx, folder, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Store) GetChat(ctx context.Context, folder string) (*types.Chat, error) {
	c := types.NewChat()
	if _, err := s.load(ctx, folder, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Exists reports whether the document of the given kind was written below
// folder.
func (s *Store) Exists(ctx context.Context, folder string, kind types.Document) (bool, error) {
	return s.client.Exists(ctx, path(folder, kind))
}

// Update merges delta into the stored document below folder. Without
// conditional writes concurrent updates are last writer wins.
func (s *Store) Update(ctx context.Context, folder string, delta types.Document) error {
	if !s.conditional {
		return s.update(ctx, folder, delta)
	}

	var err error
	for attempt := 1; attempt <= maxConditionalAttempts; attempt++ {
		err = s.updateIfMatch(ctx, folder, delta)
		if !errors.Is(err, types.ErrPreconditionFailed) {
			return err
		}
		log.Warnf("%s changed while updating (attempt %d/%d)", path(folder, delta), attempt, maxConditionalAttempts)
	}
	return err
}

func (s *Store) update(ctx context.Context, folder string, delta types.Document) error {
	p := path(folder, delta)
	current := empty(delta)
	var before []byte
	data, err := s.client.Get(ctx, p)
	switch {
	case errors.Is(err, types.ErrNotFound):
	case err != nil:
		return err
	default:
		if err := decode(data, current); err != nil {
			return err
		}
		before = data
	}

	after, err := mergeAndEncode(current, delta)
	if err != nil {
		return err
	}
	logDiff(p, before, after)
	return s.client.Put(ctx, p, after)
}

func (s *Store) updateIfMatch(ctx context.Context, folder string, delta types.Document) error {
	p := path(folder, delta)
	current := empty(delta)
	var before []byte
	data, tag, err := s.client.GetWithTag(ctx, p)
	switch {
	case errors.Is(err, types.ErrNotFound):
		tag = ""
	case err != nil:
		return err
	default:
		if err := decode(data, current); err != nil {
			return err
		}
		before = data
	}

	after, err := mergeAndEncode(current, delta)
	if err != nil {
		return err
	}
	logDiff(p, before, after)
	return s.client.PutIfMatch(ctx, p, after, tag)
}

func mergeAndEncode(current types.Document, delta types.Document) ([]byte, error) {
	if err := merge(current, delta); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return nil, xerrors.Errorf("encode %s: %w", current.FileName(), err)
	}
	return data, nil
}

func logDiff(p string, before []byte, after []byte) {
	if before == nil {
		log.Debugf("created %s", p)
		return
	}
	patch, err := creator.CreatePatch(before, after)
	if err != nil {
		log.Debugf("updated %s (no diff: %v)", p, err)
		return
	}
	ops := make([]string, 0, len(patch))
	for _, op := range patch {
		ops = append(ops, op.Json())
	}
	log.Debugf("updated %s: [%s]", p, strings.Join(ops, ","))
}
