package resource

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bioimage-io/backoffice/node/lifecycle"
	"github.com/bioimage-io/backoffice/types"
	goversion "github.com/hashicorp/go-version"
	"golang.org/x/xerrors"
)

// StagedVersion is a candidate version going through unpacking, testing
// and review.
type StagedVersion struct {
	version
	n types.StageNumber
}

func (v *StagedVersion) Number() types.StageNumber {
	return v.n
}

func (v *StagedVersion) Exists(ctx context.Context) (bool, error) {
	versions, err := v.concept.Versions(ctx)
	if err != nil {
		return false, err
	}
	_, ok := versions.Staged[v.n]
	return ok, nil
}

func (v *StagedVersion) Info(ctx context.Context) (types.StagedVersionInfo, error) {
	versions, err := v.concept.Versions(ctx)
	if err != nil {
		return types.StagedVersionInfo{}, err
	}
	info, ok := versions.Staged[v.n]
	if !ok {
		return info, types.Wrapf(types.ErrNotFound, "%s %s", v.Id(), v.label)
	}
	return info, nil
}

// Status returns nil for a version without status.
func (v *StagedVersion) Status(ctx context.Context) (types.StagedStatus, error) {
	info, err := v.Info(ctx)
	if err != nil {
		return nil, err
	}
	return info.Status, nil
}

func (v *StagedVersion) setStatus(ctx context.Context, next types.StagedStatus) (bool, error) {
	return v.concept.c.machine.SetStatus(ctx, v.concept.id, v.n, next)
}

func (v *StagedVersion) SetTestingStatus(ctx context.Context, description string) error {
	_, err := v.setStatus(ctx, types.TestingStatus{StatusInfo: types.NewStatusInfo(description)})
	return err
}

func (v *StagedVersion) AwaitReview(ctx context.Context) error {
	applied, err := v.setStatus(ctx, types.AwaitingReviewStatus{StatusInfo: types.NewStatusInfo("")})
	if err != nil || !applied {
		return err
	}
	v.notifyUploader(ctx, "is awaiting review ⌛",
		fmt.Sprintf("Thank you for proposing %s %s!\nOur maintainers will take a look shortly!", v.Id(), v.label))
	return nil
}

// RequestChanges records the reason of a reviewer asking for changes.
func (v *StagedVersion) RequestChanges(ctx context.Context, reviewer string, reason string) error {
	r, err := v.concept.c.reviewer(reviewer)
	if err != nil {
		return err
	}
	description := fmt.Sprintf("%s requested changes: %s", r.Name, reason)
	applied, err := v.setStatus(ctx, types.ChangesRequestedStatus{StatusInfo: types.NewStatusInfo(description)})
	if err != nil {
		return err
	}
	if err := v.addChatMessage(ctx, "system", description); err != nil {
		return err
	}
	if applied {
		v.notifyUploader(ctx, "needs changes 📑", fmt.Sprintf("Thank you for proposing %s %s!\n%s", v.Id(), v.label, description))
	}
	return nil
}

// MarkAsSuperseded marks this version as superseded by stage number by.
func (v *StagedVersion) MarkAsSuperseded(ctx context.Context, description string, by types.StageNumber) error {
	_, err := v.setStatus(ctx, types.SupersededStatus{StatusInfo: types.NewStatusInfo(description), By: by})
	return err
}

// SupersedePreviouslyStagedVersions marks every lower staged version that
// is not superseded or published yet as superseded by this one.
func (v *StagedVersion) SupersedePreviouslyStagedVersions(ctx context.Context) error {
	versions, err := v.concept.Versions(ctx)
	if err != nil {
		return err
	}
	numbers := make([]int, 0, len(versions.Staged))
	for n := range versions.Staged {
		if n < v.n {
			numbers = append(numbers, int(n))
		}
	}
	sort.Ints(numbers)

	for _, i := range numbers {
		n := types.StageNumber(i)
		switch status := versions.Staged[n].Status.(type) {
		case types.SupersededStatus, types.PublishedStagedStatus:
		case types.UnpackingStatus, types.UnpackedStatus, types.TestingStatus,
			types.AwaitingReviewStatus, types.ChangesRequestedStatus, types.AcceptedStatus:
			description := fmt.Sprintf("superseded by %s", v.label)
			if err := v.concept.Staged(n).MarkAsSuperseded(ctx, description, v.n); err != nil {
				return err
			}
		default:
			panic(xerrors.Errorf("%s %s has unknown status %T", v.Id(), n, status))
		}
	}
	return nil
}

// Publish promotes this version to the next published version. Lower staged
// versions are superseded and the staged files are copied, the staged
// version keeps its files.
func (v *StagedVersion) Publish(ctx context.Context, reviewer string) (*PublishedVersion, error) {
	r, err := v.concept.c.reviewer(reviewer)
	if err != nil {
		return nil, err
	}

	unlock, err := v.concept.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	info, err := v.Info(ctx)
	if err != nil {
		return nil, err
	}
	if info.Status == nil || lifecycle.IsTerminal(info.Status) {
		name := "no status"
		if info.Status != nil {
			name = info.Status.Name()
		}
		return nil, types.Wrapf(types.ErrNotPublishable, "%s %s is %s", v.Id(), v.label, name)
	}

	rdf, err := v.Rdf(ctx)
	if err != nil {
		return nil, err
	}
	versions, err := v.concept.Versions(ctx)
	if err != nil {
		return nil, err
	}
	semVer := rdf.SemVer()
	if err := v.checkSemVer(ctx, semVer, versions); err != nil {
		return nil, err
	}

	if _, err := v.setStatus(ctx, types.AcceptedStatus{StatusInfo: types.NewStatusInfo(fmt.Sprintf("accepted by %s", r.Name))}); err != nil {
		return nil, err
	}
	if err := v.addChatMessage(ctx, "system", fmt.Sprintf("%s accepted %s %s", r.Name, v.Id(), v.label)); err != nil {
		return nil, err
	}
	if err := v.SupersedePreviouslyStagedVersions(ctx); err != nil {
		return nil, err
	}

	pv := v.concept.Published(lifecycle.NextPublishNumber(versions))
	log.Infof("publishing %s %s as %s", v.Id(), v.label, pv.label)
	client := v.concept.c.client
	if err := client.CopyTree(ctx, v.folder+"/files", pv.folder+"/files"); err != nil {
		return nil, err
	}

	rdf["version_number"] = int(pv.n)
	data, err := rdf.Marshal()
	if err != nil {
		return nil, xerrors.Errorf("encode %s: %w", pv.RdfPath(), err)
	}
	for _, name := range []string{BioimageioYamlName, RdfYamlName} {
		if err := client.Put(ctx, pv.filePath(name), data); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	delta := types.NewVersions()
	delta.Staged[v.n] = types.StagedVersionInfo{
		SemVer:    semVer,
		Timestamp: info.Timestamp,
		Status: types.PublishedStagedStatus{
			StatusInfo:    types.NewStatusInfo(fmt.Sprintf("published as %s %s", v.Id(), pv.label)),
			PublishNumber: pv.n,
		},
	}
	delta.Published[pv.n] = types.PublishedVersionInfo{
		SemVer:    semVer,
		Timestamp: now,
		Status:    types.PublishedStatus{StageNumber: v.n},
	}
	if err := v.concept.ExtendVersions(ctx, delta); err != nil {
		return nil, err
	}

	if err := v.AddLogEntry(ctx, fmt.Sprintf("published as %s", pv.label), nil); err != nil {
		return nil, err
	}
	if err := pv.AddLogEntry(ctx, fmt.Sprintf("published from %s by %s", v.label, r.Name), nil); err != nil {
		return nil, err
	}
	v.notifyUploader(ctx, "was published! 🎉",
		fmt.Sprintf("Congratulations! %s was published as %s %s.", v.Id(), v.Id(), pv.label))
	return pv, nil
}

// checkSemVer rejects a semantic version that was published before and
// warns about one that is not newer than all published ones.
func (v *StagedVersion) checkSemVer(ctx context.Context, semVer *string, versions *types.Versions) error {
	if semVer == nil {
		return nil
	}
	published := versions.PublishedSemVers()
	if n, ok := published[*semVer]; ok {
		err := types.Wrapf(types.ErrDuplicateSemanticVersion, "trying to publish version '%s' again (published as %s)", *semVer, n)
		if rerr := v.ReportError(ctx, err.Error()); rerr != nil {
			log.Errorf("%s %s: %v", v.Id(), v.label, rerr)
		}
		return err
	}

	next, err := goversion.NewVersion(*semVer)
	if err != nil {
		log.Debugf("%s %s: version '%s' is not a semantic version", v.Id(), v.label, *semVer)
		return nil
	}
	for s := range published {
		prev, err := goversion.NewVersion(s)
		if err != nil {
			continue
		}
		if next.LessThan(prev) {
			log.Warnf("%s %s: version %s is lower than published version %s", v.Id(), v.label, next, prev)
		}
	}
	return nil
}
