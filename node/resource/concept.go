package resource

import (
	"context"
	"sort"
	"time"

	"github.com/bioimage-io/backoffice/node/lifecycle"
	"github.com/bioimage-io/backoffice/types"
)

const lockName = "lock"

// Concept is a resource with all its staged and published versions.
type Concept struct {
	c  *Collection
	id string
}

func (c *Concept) Id() string {
	return c.id
}

func (c *Concept) Versions(ctx context.Context) (*types.Versions, error) {
	return c.c.docs.GetVersions(ctx, c.id)
}

func (c *Concept) Exists(ctx context.Context) (bool, error) {
	return c.c.docs.Exists(ctx, c.id, &types.Versions{})
}

func (c *Concept) ExtendVersions(ctx context.Context, delta *types.Versions) error {
	return c.c.docs.Update(ctx, c.id, delta)
}

func (c *Concept) Staged(n types.StageNumber) *StagedVersion {
	return &StagedVersion{version: newVersion(c, types.StagedFolder(c.id, n), n.String()), n: n}
}

func (c *Concept) Published(n types.PublishNumber) *PublishedVersion {
	return &PublishedVersion{version: newVersion(c, types.PublishedFolder(c.id, n), n.String()), n: n}
}

func (c *Concept) StagedVersions(ctx context.Context) ([]*StagedVersion, error) {
	v, err := c.Versions(ctx)
	if err != nil {
		return nil, err
	}
	numbers := make([]int, 0, len(v.Staged))
	for n := range v.Staged {
		numbers = append(numbers, int(n))
	}
	sort.Ints(numbers)
	res := make([]*StagedVersion, 0, len(numbers))
	for _, n := range numbers {
		res = append(res, c.Staged(types.StageNumber(n)))
	}
	return res, nil
}

func (c *Concept) PublishedVersions(ctx context.Context) ([]*PublishedVersion, error) {
	v, err := c.Versions(ctx)
	if err != nil {
		return nil, err
	}
	numbers := make([]int, 0, len(v.Published))
	for n := range v.Published {
		numbers = append(numbers, int(n))
	}
	sort.Ints(numbers)
	res := make([]*PublishedVersion, 0, len(numbers))
	for _, n := range numbers {
		res = append(res, c.Published(types.PublishNumber(n)))
	}
	return res, nil
}

// LatestStageNumber returns the highest stage number, 0 if nothing was
// staged.
func (c *Concept) LatestStageNumber(ctx context.Context) (types.StageNumber, error) {
	v, err := c.Versions(ctx)
	if err != nil {
		return 0, err
	}
	return lifecycle.NextStageNumber(v) - 1, nil
}

// LatestPublishNumber returns the highest publish number, 0 if nothing was
// published.
func (c *Concept) LatestPublishNumber(ctx context.Context) (types.PublishNumber, error) {
	v, err := c.Versions(ctx)
	if err != nil {
		return 0, err
	}
	return lifecycle.NextPublishNumber(v) - 1, nil
}

// LatestStaged returns nil if nothing was staged.
func (c *Concept) LatestStaged(ctx context.Context) (*StagedVersion, error) {
	n, err := c.LatestStageNumber(ctx)
	if err != nil || n == 0 {
		return nil, err
	}
	return c.Staged(n), nil
}

// LatestPublished returns nil if nothing was published.
func (c *Concept) LatestPublished(ctx context.Context) (*PublishedVersion, error) {
	n, err := c.LatestPublishNumber(ctx)
	if err != nil || n == 0 {
		return nil, err
	}
	return c.Published(n), nil
}

// Doi returns the concept doi, nil before the first backup.
func (c *Concept) Doi(ctx context.Context) (*string, error) {
	v, err := c.Versions(ctx)
	if err != nil {
		return nil, err
	}
	return v.ConceptDoi, nil
}

// StageNewVersion unpacks the package at packageUrl as the next staged
// version. The concept stays locked until the package is unpacked.
func (c *Concept) StageNewVersion(ctx context.Context, packageUrl string) (*StagedVersion, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	v, err := c.Versions(ctx)
	if err != nil {
		return nil, err
	}
	sv := c.Staged(lifecycle.NextStageNumber(v))
	log.Infof("staging %s as %s %s", packageUrl, c.id, sv.Version())
	if err := sv.Unpack(ctx, packageUrl); err != nil {
		return sv, err
	}
	return sv, nil
}

func (c *Concept) lockPath() string {
	return c.id + "/" + lockName
}

// lock creates the lock object of the concept, staging and publishing hold
// it. The returned function removes it again.
func (c *Concept) lock(ctx context.Context) (func(), error) {
	path := c.lockPath()
	locked, err := c.c.client.Exists(ctx, path)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, types.Wrapf(types.ErrLocked, "%s is currently locked", c.id)
	}
	if err := c.c.client.Put(ctx, path, []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
		return nil, err
	}
	return func() {
		if err := c.c.client.Delete(context.Background(), path); err != nil {
			log.Errorf("failed to remove publish lock of %s: %v", c.id, err)
		}
	}, nil
}
