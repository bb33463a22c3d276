package resource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/bioimage-io/backoffice/node/thumbnail"
	"github.com/bioimage-io/backoffice/types"
	"github.com/bioimage-io/backoffice/utils"
	"github.com/klauspost/compress/zip"
	"golang.org/x/xerrors"
)

// Unpack stages the package at packageUrl as this version. On failure the
// status stays at unpacking and the error is added to the version log.
func (v *StagedVersion) Unpack(ctx context.Context, packageUrl string) error {
	if err := v.ExtendChat(ctx, types.NewChat()); err != nil {
		return err
	}
	if err := v.AddLogEntry(ctx, "new status: unpacking", map[string]string{"package_url": packageUrl}); err != nil {
		return err
	}
	description := fmt.Sprintf("unzipping %s to %s", packageUrl, v.folder)
	if _, err := v.setStatus(ctx, types.UnpackingStatus{StatusInfo: types.NewStatusInfo(description)}); err != nil {
		return err
	}

	semVer, err := v.unpack(ctx, packageUrl)
	if err != nil {
		if rerr := v.ReportError(ctx, err.Error()); rerr != nil {
			log.Errorf("%s %s: %v", v.Id(), v.label, rerr)
		}
		return err
	}

	_, err = v.concept.c.machine.SetStatusAndSemVer(ctx, v.concept.id, v.n,
		types.UnpackedStatus{StatusInfo: types.NewStatusInfo("")}, semVer)
	return err
}

type packageZip struct {
	files map[string]*zip.File
}

func openPackage(data []byte) (*packageZip, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, types.Wrapf(types.ErrInvalidPackage, "%v", err)
	}
	p := &packageZip{files: make(map[string]*zip.File)}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if !isPackageMember(f.Name) {
			return nil, types.Wrapf(types.ErrInvalidPackage, "invalid file name %q in package", f.Name)
		}
		p.files[f.Name] = f
	}
	return p, nil
}

// isPackageMember accepts clean relative names that stay inside the
// package.
func isPackageMember(name string) bool {
	clean := path.Clean(name)
	return clean == name && !path.IsAbs(name) && clean != ".." && !strings.HasPrefix(clean, "../")
}

func (p *packageZip) names() []string {
	names := make([]string, 0, len(p.files))
	for name := range p.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *packageZip) read(name string) ([]byte, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, types.Wrapf(types.ErrNotFound, "%s not in package", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, xerrors.Errorf("open %s: %w", name, err)
	}
	defer rc.Close() //nolint:errcheck
	return io.ReadAll(rc)
}

// open resolves an image source relative to the package root.
func (p *packageZip) open(src string) ([]byte, bool) {
	if utils.IsUrl(src) {
		return nil, false
	}
	data, err := p.read(path.Clean(strings.TrimPrefix(src, "./")))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (v *StagedVersion) unpack(ctx context.Context, packageUrl string) (*string, error) {
	c := v.concept.c
	data, err := utils.Fetch(ctx, c.http, packageUrl)
	if err != nil {
		return nil, err
	}
	pkg, err := openPackage(data)
	if err != nil {
		return nil, err
	}

	rdfName, err := identifyRdf(pkg.names())
	if err != nil {
		return nil, err
	}
	rdfData, err := pkg.read(rdfName)
	if err != nil {
		return nil, err
	}
	rdf, err := ParseRdf(rdfData)
	if err != nil {
		return nil, err
	}
	if err := v.checkRdf(ctx, rdf, packageUrl); err != nil {
		return nil, err
	}
	rdf["version_number"] = int(v.n)

	client := c.client
	if err := client.DeleteTree(ctx, v.folder+"/files/"); err != nil {
		return nil, err
	}
	upload := func(name string, data []byte) error {
		return client.Put(ctx, v.filePath(name), data)
	}

	thumbnails := thumbnail.Create(rdf, pkg.open)
	if bc := rdf.BioimageioConfig(); bc != nil {
		tc, ok := bc["thumbnails"].(map[string]interface{})
		if !ok {
			tc = make(map[string]interface{})
			bc["thumbnails"] = tc
		}
		for src, t := range thumbnails {
			if err := upload(t.Name, t.Data); err != nil {
				return nil, err
			}
			tc[src] = t.Name
		}
		delete(bc, "nickname")
		delete(bc, "nickname_icon")
	}

	out, err := rdf.Marshal()
	if err != nil {
		return nil, xerrors.Errorf("encode resource description: %w", err)
	}
	for _, name := range []string{BioimageioYamlName, RdfYamlName} {
		if err := upload(name, out); err != nil {
			return nil, err
		}
	}

	for _, name := range pkg.names() {
		if name == rdfName {
			continue
		}
		if !strings.Contains(name, "/") && IsRdfName(name) {
			log.Warnf("ignoring alternative resource description '%s'", name)
			continue
		}
		data, err := pkg.read(name)
		if err != nil {
			return nil, err
		}
		if err := upload(name, data); err != nil {
			return nil, err
		}
	}
	return rdf.SemVer(), nil
}

// checkRdf validates the package metadata and fills in id and id_emoji.
func (v *StagedVersion) checkRdf(ctx context.Context, rdf Rdf, packageUrl string) error {
	c := v.concept.c
	switch id := rdf["id"].(type) {
	case nil:
		rdf["id"] = v.concept.id
	case string:
		if id != v.concept.id {
			return types.Wrapf(types.ErrIdMismatch, "expected package for %s, but found id %s in %s", v.concept.id, id, packageUrl)
		}
	default:
		return types.Wrapf(types.ErrIdMismatch, "invalid id %v in %s", id, packageUrl)
	}

	if rdf.String("name") == "" {
		return types.Wrapf(types.ErrMissingField, "missing 'name' in %s", packageUrl)
	}
	parts, err := c.idParts.ForType(rdf.String("type"))
	if err != nil {
		return err
	}
	if err := parts.Validate(v.concept.id); err != nil {
		return err
	}

	if rdf.String("id_emoji") == "" {
		emoji, ok := c.idParts.Emoji(v.concept.id)
		if !ok || emoji == "" {
			return types.Wrapf(types.ErrMissingEmoji, "failed to get icon for %s", v.concept.id)
		}
		rdf["id_emoji"] = emoji
	}

	uploader := rdf.Uploader()
	if uploader == nil {
		return types.Wrapf(types.ErrMissingUploader, "missing 'uploader.email' in %s", packageUrl)
	}
	return v.checkUploader(ctx, uploader.Email)
}

// checkUploader allows maintainers of the latest published version and
// reviewers to upload new versions of an existing resource.
func (v *StagedVersion) checkUploader(ctx context.Context, email string) error {
	latest, err := v.concept.LatestPublished(ctx)
	if err != nil || latest == nil {
		return err
	}
	prev, err := latest.Rdf(ctx)
	if err != nil {
		return err
	}
	for _, m := range prev.MaintainerEmails() {
		if m == email {
			return nil
		}
	}
	if v.concept.c.isReviewerEmail(email) {
		return nil
	}
	return types.Wrapf(types.ErrUnauthorizedUploader, "uploader '%s' is not a maintainer of '%s' nor a registered reviewer", email, v.concept.id)
}
