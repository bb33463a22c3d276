package node

import (
	"context"
	"strings"
	"sync"

	"github.com/bioimage-io/backoffice/client/zenodo"
	"github.com/bioimage-io/backoffice/node/backup"
	"github.com/bioimage-io/backoffice/node/cache"
	"github.com/bioimage-io/backoffice/node/collection"
	"github.com/bioimage-io/backoffice/node/config"
	"github.com/bioimage-io/backoffice/node/document"
	"github.com/bioimage-io/backoffice/node/idparts"
	"github.com/bioimage-io/backoffice/node/notify"
	"github.com/bioimage-io/backoffice/node/resource"
	"github.com/bioimage-io/backoffice/node/validator"
	"github.com/bioimage-io/backoffice/store"
	"github.com/bioimage-io/backoffice/types"
	"github.com/bioimage-io/backoffice/utils"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
)

var log = logging.Logger("backoffice")

type StopFunc func(context.Context) error

// Option replaces a collaborator of the backoffice.
type Option func(*options)

type options struct {
	backend   store.Backend
	validator validator.Validator
	archive   backup.Archive
	idParts   *idparts.IdParts
	reviewers types.Reviewers
	sender    notify.Sender
}

func WithBackend(b store.Backend) Option {
	return func(o *options) { o.backend = b }
}

func WithValidator(v validator.Validator) Option {
	return func(o *options) { o.validator = v }
}

func WithArchive(a backup.Archive) Option {
	return func(o *options) { o.archive = a }
}

func WithIdParts(p *idparts.IdParts) Option {
	return func(o *options) { o.idParts = p }
}

func WithReviewers(r types.Reviewers) Option {
	return func(o *options) { o.reviewers = r }
}

func WithSender(s notify.Sender) Option {
	return func(o *options) { o.sender = s }
}

// Backoffice runs the operations of the collection backoffice on one store.
type Backoffice struct {
	cfg       *config.Backoffice
	runId     string
	docs      *document.Store
	http      *retryablehttp.Client
	opts      options
	stopFuncs []StopFunc

	lk   sync.Mutex
	coll *resource.Collection
}

func NewBackoffice(ctx context.Context, cfg *config.Backoffice, opts ...Option) (*Backoffice, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	b := Backoffice{
		cfg:   cfg,
		runId: uuid.New().String(),
		http:  utils.NewHttpClient(cfg.Network.RetryMax),
		opts:  o,
	}

	backend := o.backend
	if backend == nil {
		var err error
		backend, err = newBackend(cfg)
		if err != nil {
			return nil, err
		}
	}
	if err := backend.Open(); err != nil {
		return nil, types.Wrap(types.ErrInvalidConfig, err)
	}
	b.stopFuncs = append(b.stopFuncs, func(_ context.Context) error {
		return backend.Close()
	})

	var c *cache.LruCache
	if cfg.Cache.EnableCache {
		c = cache.CreateLruCache(cfg.Cache.CacheCapacity)
	}
	client, err := store.NewClient(backend, cfg.S3.Folder, c)
	if err != nil {
		return nil, err
	}
	client.SetConcurrency(cfg.Store.Concurrency)
	b.docs = document.NewStore(client, cfg.Store.ConditionalWrites)

	log.Infof("backoffice run %s on %s (%s)", b.runId, backend.Id(), client.Url(""))
	return &b, nil
}

func newBackend(cfg *config.Backoffice) (store.Backend, error) {
	switch cfg.Store.Backend {
	case "s3":
		return store.NewS3Backend(store.S3Options{
			Host:      cfg.S3.Host,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKeyId,
			SecretKey: cfg.S3.SecretAccessKey,
		}), nil
	case "local":
		return store.NewLocalBackend(cfg.Store.LocalRoot, cfg.Store.LocalBaseUrl)
	case "memory":
		return store.NewMemBackend(""), nil
	default:
		return nil, types.Wrapf(types.ErrInvalidConfig, "unknown store backend %q", cfg.Store.Backend)
	}
}

func (b *Backoffice) Stop(ctx context.Context) error {
	for _, f := range b.stopFuncs {
		err := f(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Backoffice) RunId() string {
	return b.runId
}

func (b *Backoffice) Client() *store.Client {
	return b.docs.Client()
}

// collection loads the id parts and reviewers on first use.
func (b *Backoffice) collection(ctx context.Context) (*resource.Collection, error) {
	b.lk.Lock()
	defer b.lk.Unlock()
	if b.coll != nil {
		return b.coll, nil
	}

	parts := b.opts.idParts
	if parts == nil {
		var err error
		parts, err = idparts.Load(ctx, b.http, b.cfg.Sources.IdParts)
		if err != nil {
			return nil, xerrors.Errorf("load id parts: %w", err)
		}
	}
	reviewers := b.opts.reviewers
	if reviewers == nil {
		var err error
		reviewers, err = idparts.LoadReviewers(ctx, b.http, b.cfg.Sources.Reviewers)
		if err != nil {
			return nil, xerrors.Errorf("load reviewers: %w", err)
		}
	}

	var mailroom *notify.Mailroom
	sender := b.opts.sender
	if sender == nil && b.cfg.Mail.Enable {
		sender = notify.NewSmtpSender(b.cfg.Mail)
	}
	if sender != nil {
		mailroom = notify.NewMailroom(sender, b.cfg.Mail.BotEmail, b.cfg.Mail.SubjectPrefix)
	}

	b.coll = resource.NewCollection(resource.Options{
		Docs:      b.docs,
		Http:      b.http,
		IdParts:   parts,
		Reviewers: reviewers,
		Mailroom:  mailroom,
		RunUrl:    b.cfg.Run.RunUrl,
	})
	return b.coll, nil
}

func (b *Backoffice) staged(ctx context.Context, id string, version string) (*resource.StagedVersion, error) {
	coll, err := b.collection(ctx)
	if err != nil {
		return nil, err
	}
	v, err := coll.Get(ctx, id, version)
	if err != nil {
		return nil, err
	}
	sv, ok := v.(*resource.StagedVersion)
	if !ok {
		return nil, types.Wrapf(types.ErrInvalidParameters, "%s %s is not a staged version", id, version)
	}
	return sv, nil
}

// Stage unpacks the package at url as a new staged version of id and
// regenerates the staged collection.
func (b *Backoffice) Stage(ctx context.Context, id string, url string) (*resource.StagedVersion, error) {
	coll, err := b.collection(ctx)
	if err != nil {
		return nil, err
	}
	sv, err := coll.Concept(id).StageNewVersion(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := b.GenerateCollectionJson(ctx, collection.ModeStaged); err != nil {
		log.Warnf("staged collection not updated: %v", err)
	}
	return sv, nil
}

// Test runs the validator on a version. Only staged versions change status,
// the summary is added to the log of either kind.
func (b *Backoffice) Test(ctx context.Context, id string, version string) (*types.ValidationSummary, error) {
	coll, err := b.collection(ctx)
	if err != nil {
		return nil, err
	}
	v, err := coll.Get(ctx, id, version)
	if err != nil {
		return nil, err
	}

	val := b.opts.validator
	if val == nil {
		val, err = validator.NewCommandValidator(b.cfg.Validator.Command)
		if err != nil {
			return nil, err
		}
	}

	if sv, ok := v.(*resource.StagedVersion); ok {
		if err := sv.SetTestingStatus(ctx, "Testing "+v.RdfUrl()); err != nil {
			return nil, err
		}
	}

	summary, err := val.Validate(ctx, v.RdfUrl(), b.cfg.Validator.WeightFormat)
	if err != nil {
		if rerr := v.ReportError(ctx, err.Error()); rerr != nil {
			log.Errorf("failed to record error of %s %s: %v", id, version, rerr)
		}
		return nil, err
	}
	if err := v.RecordValidation(ctx, summary); err != nil {
		return nil, err
	}
	log.Infof("%s %s: validation %s", id, version, summary.Status)
	return summary, nil
}

func (b *Backoffice) AwaitReview(ctx context.Context, id string, version string) error {
	sv, err := b.staged(ctx, id, version)
	if err != nil {
		return err
	}
	return sv.AwaitReview(ctx)
}

func (b *Backoffice) RequestChanges(ctx context.Context, id string, version string, reviewer string, reason string) error {
	sv, err := b.staged(ctx, id, version)
	if err != nil {
		return err
	}
	return sv.RequestChanges(ctx, reviewer, reason)
}

func (b *Backoffice) Publish(ctx context.Context, id string, version string, reviewer string) (*resource.PublishedVersion, error) {
	sv, err := b.staged(ctx, id, version)
	if err != nil {
		return nil, err
	}
	return sv.Publish(ctx, reviewer)
}

// Backup archives every published version without doi.
func (b *Backoffice) Backup(ctx context.Context) error {
	coll, err := b.collection(ctx)
	if err != nil {
		return err
	}
	archive := b.opts.archive
	if archive == nil {
		if b.cfg.Zenodo.AccessToken == "" {
			return types.Wrapf(types.ErrInvalidConfig, "missing zenodo access token")
		}
		archive = zenodo.NewClient(b.cfg.Zenodo.Url, b.cfg.Zenodo.AccessToken, b.http)
	}
	return backup.NewDriver(coll, archive, b.http, b.cfg.Backup).Run(ctx)
}

func (b *Backoffice) GenerateCollectionJson(ctx context.Context, mode collection.Mode) error {
	coll, err := b.collection(ctx)
	if err != nil {
		return err
	}
	return collection.NewAggregator(coll, b.http, b.cfg.Collection).Generate(ctx, mode)
}

// Log adds a message to the log of a version.
func (b *Backoffice) Log(ctx context.Context, id string, version string, message string) error {
	coll, err := b.collection(ctx)
	if err != nil {
		return err
	}
	v, err := coll.Get(ctx, id, version)
	if err != nil {
		return err
	}
	return v.AddLogEntry(ctx, message, map[string]string{"run_id": b.runId})
}

// Chat adds a message to the chat of a version.
func (b *Backoffice) Chat(ctx context.Context, id string, version string, author string, text string) error {
	coll, err := b.collection(ctx)
	if err != nil {
		return err
	}
	v, err := coll.Get(ctx, id, version)
	if err != nil {
		return err
	}
	return v.ExtendChat(ctx, &types.Chat{Messages: []types.Message{types.NewMessage(author, text)}})
}

// Status returns the ledger of a concept, types.ErrNotFound if it was
// never staged.
func (b *Backoffice) Status(ctx context.Context, id string) (*types.Versions, error) {
	exists, err := b.docs.Exists(ctx, id, types.NewVersions())
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, types.Wrapf(types.ErrNotFound, "%s", id)
	}
	return b.docs.GetVersions(ctx, id)
}

// Wipe deletes everything below subfolder. It refuses to run on anything
// but a sandbox testing store.
func (b *Backoffice) Wipe(ctx context.Context, subfolder string) error {
	url := b.Client().Url("")
	for _, marker := range []string{"sandbox", "testing"} {
		if !strings.Contains(url, marker) {
			return types.Wrapf(types.ErrInvalidParameters, "refusing to wipe %s, not a sandbox testing store", url)
		}
	}

	prefix := strings.Trim(subfolder, "/")
	if prefix != "" {
		prefix += "/"
	}
	log.Warnf("wiping %s%s", url, prefix)
	return b.Client().DeleteTree(ctx, prefix)
}
