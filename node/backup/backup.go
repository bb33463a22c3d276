package backup

import (
	"context"
	"strings"

	"github.com/bioimage-io/backoffice/client/zenodo"
	"github.com/bioimage-io/backoffice/node/config"
	"github.com/bioimage-io/backoffice/node/resource"
	"github.com/bioimage-io/backoffice/types"
	"github.com/bioimage-io/backoffice/utils"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-retryablehttp"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
)

var log = logging.Logger("backup")

const (
	OnErrorAbort    = "abort"
	OnErrorContinue = "continue"
)

// Archive is the long term archive published versions are mirrored to.
type Archive interface {
	CreateOrVersionDeposition(ctx context.Context, conceptDoi *string) (*zenodo.Deposition, error)
	UploadFile(ctx context.Context, bucketUrl string, name string, data []byte) error
	UpdateMetadata(ctx context.Context, depositionId int64, md *zenodo.Metadata) error
	Publish(ctx context.Context, depositionId int64) (*zenodo.Deposition, error)
}

var _ Archive = (*zenodo.Client)(nil)

// Driver archives every published version that has no doi yet.
type Driver struct {
	coll    *resource.Collection
	archive Archive
	http    *retryablehttp.Client
	cfg     config.Backup
}

func NewDriver(coll *resource.Collection, archive Archive, http *retryablehttp.Client, cfg config.Backup) *Driver {
	return &Driver{coll: coll, archive: archive, http: http, cfg: cfg}
}

// Run backs up all published versions without doi, oldest first within a
// concept.
func (d *Driver) Run(ctx context.Context) error {
	ids, err := d.coll.ConceptIds(ctx)
	if err != nil {
		return err
	}

	var errs *multierror.Error
	backedUp := 0
	for _, id := range ids {
		published, err := d.coll.Concept(id).PublishedVersions(ctx)
		if err != nil {
			return err
		}
		for _, v := range published {
			doi, err := v.Doi(ctx)
			if err != nil {
				return err
			}
			if doi != nil {
				continue
			}
			if err := d.BackupVersion(ctx, v); err != nil {
				err = xerrors.Errorf("backup of %s %s: %w", id, v.Version(), err)
				if rerr := v.ReportError(ctx, err.Error()); rerr != nil {
					log.Errorf("%s %s: %v", id, v.Version(), rerr)
				}
				if d.cfg.OnError != OnErrorContinue {
					return err
				}
				errs = multierror.Append(errs, err)
				// later versions need the concept doi of this one
				break
			}
			backedUp++
		}
	}
	log.Infof("backed up %d versions", backedUp)
	return errs.ErrorOrNil()
}

// BackupVersion uploads the files and metadata of v to a new deposition,
// publishes it and records the dois.
func (d *Driver) BackupVersion(ctx context.Context, v *resource.PublishedVersion) error {
	rdf, err := v.Rdf(ctx)
	if err != nil {
		return err
	}
	if rdf.String("id") == "" {
		return types.Wrapf(types.ErrMissingField, "missing bioimage.io 'id'")
	}
	if rdf["license"] == nil {
		return types.Wrapf(types.ErrMissingField, "missing 'license'")
	}
	info, err := v.Info(ctx)
	if err != nil {
		return err
	}
	conceptDoi, err := v.Concept().Doi(ctx)
	if err != nil {
		return err
	}
	files, err := v.Files(ctx)
	if err != nil {
		return err
	}

	deposition, err := d.archive.CreateOrVersionDeposition(ctx, conceptDoi)
	if err != nil {
		return err
	}
	client := d.coll.Client()
	for _, name := range files {
		data, err := client.Get(ctx, v.Folder()+"/files/"+name)
		if err != nil {
			return err
		}
		if err := d.archive.UploadFile(ctx, deposition.Links.Bucket, name, data); err != nil {
			return err
		}
	}

	docHtml, err := d.documentation(ctx, v, rdf)
	if err != nil {
		log.Warnf("%s %s: %v", v.Id(), v.Version(), err)
	}
	if err := d.archive.UpdateMetadata(ctx, deposition.Id, Metadata(v, rdf, info.Timestamp, docHtml)); err != nil {
		return err
	}
	published, err := d.archive.Publish(ctx, deposition.Id)
	if err != nil {
		return err
	}

	doi := published.VersionDoi()
	if doi == "" {
		doi = deposition.VersionDoi()
	}
	newConceptDoi := published.ConceptDoiOf()
	if newConceptDoi == "" {
		newConceptDoi = deposition.ConceptDoiOf()
	}
	if doi == "" || newConceptDoi == "" {
		return types.Wrapf(types.ErrArchiveFailed, "deposition %d has no doi", deposition.Id)
	}
	if err := v.SetDois(ctx, doi, newConceptDoi); err != nil {
		return err
	}
	log.Infof("backed up %s %s as %s", v.Id(), v.Version(), doi)
	return nil
}

// documentation renders the documentation of v, read from its files or
// fetched if it is a url.
func (d *Driver) documentation(ctx context.Context, v *resource.PublishedVersion, rdf resource.Rdf) (string, error) {
	src := rdf.String("documentation")
	if src == "" {
		return "", nil
	}
	var (
		data []byte
		err  error
	)
	if utils.IsUrl(src) {
		data, err = utils.Fetch(ctx, d.http, src)
	} else {
		data, err = d.coll.Client().Get(ctx, v.Folder()+"/files/"+strings.TrimPrefix(src, "./"))
	}
	if err != nil {
		return "", xerrors.Errorf("failed to load documentation %s: %w", src, err)
	}
	return RenderDocumentation(data)
}
