package backup

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bioimage-io/backoffice/client/zenodo"
	"github.com/bioimage-io/backoffice/node/resource"
	"github.com/bioimage-io/backoffice/utils"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/xerrors"
)

const additionalNote = "\n(Uploaded via https://bioimage.io)"

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderDocumentation converts the markdown documentation of a resource to
// html.
func RenderDocumentation(doc []byte) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(doc, &buf); err != nil {
		return "", xerrors.Errorf("render documentation: %w", err)
	}
	return buf.String(), nil
}

func creators(rdf resource.Rdf) []zenodo.Creator {
	res := []zenodo.Creator{}
	authors, _ := rdf["authors"].([]interface{})
	for _, a := range authors {
		author, ok := a.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := author["name"].(string)
		if name == "" {
			continue
		}
		affiliation, _ := author["affiliation"].(string)
		orcid, _ := author["orcid"].(string)
		res = append(res, zenodo.Creator{Name: name, Affiliation: affiliation, Orcid: orcid})
	}
	return res
}

func stringList(v interface{}) []string {
	items, _ := v.([]interface{})
	res := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			res = append(res, s)
		}
	}
	return res
}

// resolve returns src as url, relative sources are taken relative to the
// files of v.
func resolve(v resource.Version, src string) string {
	if utils.IsUrl(src) {
		return src
	}
	return v.FileUrl(strings.TrimPrefix(src, "./"))
}

func relatedIdentifiers(v resource.Version, rdf resource.Rdf) []zenodo.RelatedIdentifier {
	res := []zenodo.RelatedIdentifier{}
	for _, cover := range stringList(rdf["covers"]) {
		res = append(res, zenodo.RelatedIdentifier{
			Identifier:   resolve(v, cover),
			Relation:     "hasPart",
			ResourceType: "image-figure",
			Scheme:       "url",
		})
	}
	for _, link := range stringList(rdf["links"]) {
		res = append(res, zenodo.RelatedIdentifier{
			Identifier:   "https://bioimage.io/#/r/" + url.QueryEscape(link),
			Relation:     "references",
			ResourceType: "other",
			Scheme:       "url",
		})
	}
	res = append(res, zenodo.RelatedIdentifier{
		Identifier:   v.RdfUrl(),
		Relation:     "isCompiledBy",
		ResourceType: "other",
		Scheme:       "url",
	})
	if doc := rdf.String("documentation"); doc != "" {
		res = append(res, zenodo.RelatedIdentifier{
			Identifier:   resolve(v, doc),
			Relation:     "isDocumentedBy",
			ResourceType: "publication-technicalnote",
			Scheme:       "url",
		})
	}
	return res
}

// Metadata describes published version v for the archive. docHtml is the
// rendered documentation, it may be empty.
func Metadata(v resource.Version, rdf resource.Rdf, published time.Time, docHtml string) *zenodo.Metadata {
	id := rdf.String("id")
	description := fmt.Sprintf(`<a href="https://bioimage.io/#/?id=%s"><span class="label label-success">View on bioimage.io</span></a><br><p>%s</p>`, id, docHtml)
	keywords := append([]string{"bioimage.io", "bioimage.io:" + rdf.String("type")}, stringList(rdf["tags"])...)
	license, _ := rdf["license"].(string)

	return &zenodo.Metadata{
		Title:              rdf.String("name"),
		Description:        description,
		AccessRight:        "open",
		License:            license,
		UploadType:         "other",
		Creators:           creators(rdf),
		PublicationDate:    published.UTC().Format("2006-01-02"),
		Keywords:           keywords,
		Notes:              rdf.String("description") + additionalNote,
		RelatedIdentifiers: relatedIdentifiers(v, rdf),
		Communities:        []interface{}{},
	}
}
