package zenodo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bioimage-io/backoffice/types"
	"github.com/bioimage-io/backoffice/utils"
	"github.com/hashicorp/go-retryablehttp"
	logging "github.com/ipfs/go-log/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/xerrors"
)

var log = logging.Logger("zenodo")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Links struct {
	Bucket      string `json:"bucket"`
	LatestDraft string `json:"latest_draft"`
}

type PrereserveDoi struct {
	Doi   string `json:"doi"`
	RecId int64  `json:"recid"`
}

type DepositionMetadata struct {
	PrereserveDoi PrereserveDoi `json:"prereserve_doi"`
}

// Deposition is a zenodo deposition as returned by the deposit api.
type Deposition struct {
	Id           int64              `json:"id"`
	ConceptRecId string             `json:"conceptrecid"`
	State        string             `json:"state"`
	Submitted    bool               `json:"submitted"`
	Links        Links              `json:"links"`
	Metadata     DepositionMetadata `json:"metadata"`
	Doi          string             `json:"doi"`
	ConceptDoi   string             `json:"conceptdoi"`
}

// VersionDoi returns the doi of the deposition, the reserved one before it
// is published.
func (d *Deposition) VersionDoi() string {
	if d.Doi != "" {
		return d.Doi
	}
	return d.Metadata.PrereserveDoi.Doi
}

// ConceptDoiOf returns the concept doi, derived from the version doi
// before the deposition is published.
func (d *Deposition) ConceptDoiOf() string {
	if d.ConceptDoi != "" {
		return d.ConceptDoi
	}
	doi := d.VersionDoi()
	id := strconv.FormatInt(d.Id, 10)
	if doi == "" || d.ConceptRecId == "" || !strings.HasSuffix(doi, id) {
		return ""
	}
	return strings.TrimSuffix(doi, id) + d.ConceptRecId
}

type Creator struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
	Orcid       string `json:"orcid,omitempty"`
}

type RelatedIdentifier struct {
	Identifier   string `json:"identifier"`
	Relation     string `json:"relation"`
	ResourceType string `json:"resource_type"`
	Scheme       string `json:"scheme"`
}

type Metadata struct {
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	AccessRight        string              `json:"access_right"`
	License            string              `json:"license"`
	UploadType         string              `json:"upload_type"`
	Creators           []Creator           `json:"creators"`
	PublicationDate    string              `json:"publication_date"`
	Keywords           []string            `json:"keywords"`
	Notes              string              `json:"notes"`
	RelatedIdentifiers []RelatedIdentifier `json:"related_identifiers"`
	Communities        []interface{}       `json:"communities"`
}

// Client talks to the zenodo deposit api.
type Client struct {
	url   string
	token string
	http  *retryablehttp.Client
}

func NewClient(baseUrl string, token string, client *retryablehttp.Client) *Client {
	return &Client{url: strings.TrimSuffix(baseUrl, "/"), token: token, http: client}
}

func (c *Client) Url() string {
	return c.url
}

func (c *Client) withToken(u string) (string, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return "", xerrors.Errorf("invalid url %s: %w", u, err)
	}
	q := parsed.Query()
	q.Set("access_token", c.token)
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

func (c *Client) do(ctx context.Context, method string, u string, contentType string, body []byte, out interface{}) error {
	full, err := c.withToken(u)
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return xerrors.Errorf("failed to make request to %s: %w", u, err)
	}
	req.Header.Set("User-Agent", utils.UserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	log.Debugf("%s %s", method, u)
	resp, err := c.http.Do(req)
	if err != nil {
		return types.Wrapf(types.ErrArchiveFailed, "%s %s: %v", method, u, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Wrapf(types.ErrArchiveFailed, "%s %s: %v", method, u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.Wrapf(types.ErrArchiveFailed, "%s %s: %s: %s", method, u, resp.Status, truncate(string(data), 512))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return types.Wrapf(types.ErrArchiveFailed, "decode response of %s %s: %v", method, u, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (c *Client) depositionsUrl(parts ...string) string {
	return c.url + "/api/deposit/depositions" + strings.Join(append([]string{""}, parts...), "/")
}

// CreateDeposition creates an empty deposition for a new concept.
func (c *Client) CreateDeposition(ctx context.Context) (*Deposition, error) {
	var d Deposition
	if err := c.do(ctx, http.MethodPost, c.depositionsUrl(), "application/json", []byte("{}"), &d); err != nil {
		return nil, err
	}
	log.Infof("created deposition %d", d.Id)
	return &d, nil
}

// NewVersion creates a new version draft of the concept record conceptId.
func (c *Client) NewVersion(ctx context.Context, conceptId string) (*Deposition, error) {
	var parent Deposition
	if err := c.do(ctx, http.MethodPost, c.depositionsUrl(conceptId, "actions", "newversion"), "", nil, &parent); err != nil {
		return nil, err
	}
	if parent.Links.LatestDraft == "" {
		return &parent, nil
	}

	var d Deposition
	if err := c.do(ctx, http.MethodGet, parent.Links.LatestDraft, "", nil, &d); err != nil {
		return nil, err
	}
	log.Infof("created deposition %d as new version of %s", d.Id, conceptId)
	return &d, nil
}

// ConceptId extracts the record id of a zenodo concept doi.
func ConceptId(conceptDoi string) (string, error) {
	i := strings.LastIndex(conceptDoi, "zenodo.")
	if i < 0 || i+len("zenodo.") == len(conceptDoi) {
		return "", types.Wrapf(types.ErrInvalidParameters, "not a zenodo doi: %s", conceptDoi)
	}
	return conceptDoi[i+len("zenodo."):], nil
}

// CreateOrVersionDeposition creates a new deposition, or a new version of
// the concept deposition if conceptDoi is given.
func (c *Client) CreateOrVersionDeposition(ctx context.Context, conceptDoi *string) (*Deposition, error) {
	if conceptDoi == nil {
		return c.CreateDeposition(ctx)
	}
	id, err := ConceptId(*conceptDoi)
	if err != nil {
		return nil, err
	}
	return c.NewVersion(ctx, id)
}

func (c *Client) UploadFile(ctx context.Context, bucketUrl string, name string, data []byte) error {
	if bucketUrl == "" {
		return types.Wrapf(types.ErrArchiveFailed, "deposition has no bucket url")
	}
	u := strings.TrimSuffix(bucketUrl, "/") + "/" + url.PathEscape(name)
	if err := c.do(ctx, http.MethodPut, u, "application/octet-stream", data, nil); err != nil {
		return err
	}
	log.Debugf("uploaded %s (%d bytes)", name, len(data))
	return nil
}

func (c *Client) UpdateMetadata(ctx context.Context, depositionId int64, md *Metadata) error {
	body, err := json.Marshal(map[string]interface{}{"metadata": md})
	if err != nil {
		return xerrors.Errorf("encode metadata: %w", err)
	}
	return c.do(ctx, http.MethodPut, c.depositionsUrl(fmt.Sprint(depositionId)), "application/json", body, nil)
}

func (c *Client) Publish(ctx context.Context, depositionId int64) (*Deposition, error) {
	var d Deposition
	if err := c.do(ctx, http.MethodPost, c.depositionsUrl(fmt.Sprint(depositionId), "actions", "publish"), "", nil, &d); err != nil {
		return nil, err
	}
	log.Infof("published deposition %d: %s", d.Id, d.VersionDoi())
	return &d, nil
}
