package resource

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/bioimage-io/backoffice/node/document"
	"github.com/bioimage-io/backoffice/node/idparts"
	"github.com/bioimage-io/backoffice/node/lifecycle"
	"github.com/bioimage-io/backoffice/node/notify"
	"github.com/bioimage-io/backoffice/store"
	"github.com/bioimage-io/backoffice/types"
	"github.com/hashicorp/go-retryablehttp"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("resource")

type Options struct {
	Docs      *document.Store
	Http      *retryablehttp.Client
	IdParts   *idparts.IdParts
	Reviewers types.Reviewers
	// optional, uploaders are not notified without it
	Mailroom *notify.Mailroom
	RunUrl   string
}

// Collection gives access to the resource concepts below the store root.
type Collection struct {
	client    *store.Client
	docs      *document.Store
	machine   *lifecycle.Machine
	http      *retryablehttp.Client
	idParts   *idparts.IdParts
	reviewers types.Reviewers
	mailroom  *notify.Mailroom
	runUrl    string
}

func NewCollection(opts Options) *Collection {
	return &Collection{
		client:    opts.Docs.Client(),
		docs:      opts.Docs,
		machine:   lifecycle.NewMachine(opts.Docs, opts.RunUrl),
		http:      opts.Http,
		idParts:   opts.IdParts,
		reviewers: opts.Reviewers,
		mailroom:  opts.Mailroom,
		runUrl:    opts.RunUrl,
	}
}

func (c *Collection) Client() *store.Client {
	return c.client
}

func (c *Collection) Docs() *document.Store {
	return c.docs
}

func (c *Collection) RunUrl() string {
	return c.runUrl
}

func (c *Collection) Concept(id string) *Concept {
	return &Concept{c: c, id: id}
}

// ConceptIds lists the ids of all concepts in the collection.
func (c *Collection) ConceptIds(ctx context.Context) ([]string, error) {
	names, err := c.client.List(ctx, "", false)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, name := range names {
		if !strings.HasSuffix(name, "/") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, "/"))
	}
	sort.Strings(ids)
	return ids, nil
}

// reviewer returns the registered reviewer who, ErrNotReviewer otherwise.
func (c *Collection) reviewer(who string) (*types.Reviewer, error) {
	r := c.reviewers.Find(who)
	if r == nil {
		return nil, types.Wrapf(types.ErrNotReviewer, "%s", who)
	}
	return r, nil
}

func (c *Collection) isReviewerEmail(email string) bool {
	for _, r := range c.reviewers {
		if r.Email != "" && r.Email == email {
			return true
		}
	}
	return false
}

// ParseVersion parses "staged/N" or "N".
func ParseVersion(version string) (staged bool, n int, err error) {
	s := strings.TrimPrefix(version, "staged/")
	staged = s != version
	n, err = strconv.Atoi(s)
	if err != nil || n < 1 {
		return false, 0, types.Wrapf(types.ErrInvalidParameters, "invalid version '%s', expected 'staged/<n>' or '<n>'", version)
	}
	return staged, n, nil
}

// Get returns the version of concept id, version is "staged/N" or "N".
func (c *Collection) Get(ctx context.Context, id string, version string) (Version, error) {
	staged, n, err := ParseVersion(version)
	if err != nil {
		return nil, err
	}
	concept := c.Concept(id)
	var v Version
	if staged {
		v = concept.Staged(types.StageNumber(n))
	} else {
		v = concept.Published(types.PublishNumber(n))
	}
	exists, err := v.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, types.Wrapf(types.ErrNotFound, "%s %s", id, version)
	}
	return v, nil
}
