package collection

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bioimage-io/backoffice/node/config"
	"github.com/bioimage-io/backoffice/node/resource"
	"github.com/bioimage-io/backoffice/types"
	"github.com/bioimage-io/backoffice/utils"
	applier "github.com/evanphx/json-patch"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-retryablehttp"
	logging "github.com/ipfs/go-log/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

var log = logging.Logger("collection")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Mode string

const (
	ModePublished Mode = "published"
	ModeStaged    Mode = "staged"
)

const (
	OnErrorSkip  = "skip"
	OnErrorAbort = "abort"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePublished, ModeStaged:
		return Mode(s), nil
	default:
		return "", types.Wrapf(types.ErrInvalidParameters, "unknown mode '%s', expected '%s' or '%s'", s, ModePublished, ModeStaged)
	}
}

// FileName is the name of the manifest generated in mode.
func (m Mode) FileName() string {
	if m == ModeStaged {
		return types.CollectionStagedFileName
	}
	return types.CollectionFileName
}

// Aggregator builds the collection manifest from the ledgers of all
// concepts.
type Aggregator struct {
	coll *resource.Collection
	http *retryablehttp.Client
	cfg  config.Collection
}

func NewAggregator(coll *resource.Collection, http *retryablehttp.Client, cfg config.Collection) *Aggregator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Aggregator{coll: coll, http: http, cfg: cfg}
}

type conceptEntries struct {
	typ     string
	entries []types.ManifestEntry
}

// Build reads every concept and returns the manifest for mode. With the
// skip policy failing concepts are left out and a manifest is returned
// together with the collected errors.
func (a *Aggregator) Build(ctx context.Context, mode Mode) (*types.Manifest, error) {
	ids, err := a.coll.ConceptIds(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]conceptEntries, len(ids))
	var (
		lk      sync.Mutex
		skipped *multierror.Error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			res, err := a.conceptEntries(gctx, a.coll.Concept(id), mode)
			if err == nil {
				results[i] = res
				return nil
			}
			err = xerrors.Errorf("failed to create %s entry: %w", id, err)
			if a.cfg.OnError == OnErrorAbort {
				return err
			}
			log.Error(err)
			lk.Lock()
			skipped = multierror.Append(skipped, err)
			lk.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &types.Manifest{
		Collection: []types.ManifestEntry{},
		Config: types.ManifestConfig{
			NResources:        make(map[string]int),
			NResourceVersions: make(map[string]int),
			UrlRoot:           strings.TrimSuffix(a.coll.Client().Url(""), "/"),
		},
	}
	for _, res := range results {
		if len(res.entries) == 0 {
			continue
		}
		m.Config.NResources[res.typ]++
		m.Config.NResourceVersions[res.typ] += len(res.entries)
		m.Collection = append(m.Collection, res.entries...)
	}
	for typ := range m.Config.NResources {
		m.Config.ResourceTypes = append(m.Config.ResourceTypes, typ)
	}
	sort.Strings(m.Config.ResourceTypes)
	sortEntries(m.Collection)

	log.Infof("built %s with %d entries of %d concepts", mode.FileName(), len(m.Collection), len(ids))
	return m, skipped.ErrorOrNil()
}

// sortEntries orders by id, newer versions first.
func sortEntries(entries []types.ManifestEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Id != entries[j].Id {
			return entries[i].Id < entries[j].Id
		}
		return entries[i].Created.After(entries[j].Created)
	})
}

func (a *Aggregator) conceptEntries(ctx context.Context, concept *resource.Concept, mode Mode) (conceptEntries, error) {
	var res conceptEntries
	ledger, err := concept.Versions(ctx)
	if err != nil {
		return res, err
	}

	publishNumbers := make([]types.PublishNumber, 0, len(ledger.Published))
	for n := range ledger.Published {
		publishNumbers = append(publishNumbers, n)
	}
	sort.Slice(publishNumbers, func(i, j int) bool { return publishNumbers[i] > publishNumbers[j] })

	switch mode {
	case ModePublished:
		for _, n := range publishNumbers {
			info := ledger.Published[n]
			e, err := a.entry(ctx, concept.Published(n), info.Timestamp, info)
			if err != nil {
				return res, err
			}
			e.Doi = info.Doi
			res.entries = append(res.entries, e)
		}
	case ModeStaged:
		var numbers []int
		for n, info := range ledger.Staged {
			switch info.Status.(type) {
			case types.SupersededStatus, types.PublishedStagedStatus:
				continue
			}
			numbers = append(numbers, int(n))
		}
		sort.Sort(sort.Reverse(sort.IntSlice(numbers)))
		for _, i := range numbers {
			n := types.StageNumber(i)
			info := ledger.Staged[n]
			e, err := a.entry(ctx, concept.Staged(n), info.Timestamp, statusInfo(info))
			if err != nil {
				return res, err
			}
			res.entries = append(res.entries, e)
		}
	}

	staged := make([]string, 0)
	for _, e := range res.entries {
		if mode == ModeStaged {
			staged = append(staged, e.VersionNumber)
		}
	}
	for i := range res.entries {
		res.entries[i].Versions = publishNumbers
		res.entries[i].StagedVersions = staged
		res.entries[i].ConceptDoi = ledger.ConceptDoi
	}
	if len(res.entries) > 0 {
		res.typ = res.entries[0].Type
	}
	return res, nil
}

func statusInfo(info types.StagedVersionInfo) map[string]interface{} {
	res := map[string]interface{}{"sem_ver": info.SemVer}
	if info.Status != nil {
		res["status"] = map[string]interface{}{
			"name":        info.Status.Name(),
			"step":        info.Status.Step(),
			"num_steps":   types.NumSteps,
			"description": info.Status.Describe(),
		}
	}
	return res
}

func (a *Aggregator) entry(ctx context.Context, v resource.Version, created time.Time, info interface{}) (types.ManifestEntry, error) {
	var e types.ManifestEntry
	data, err := a.coll.Client().Get(ctx, v.RdfPath())
	if err != nil {
		return e, err
	}
	rdf, err := resource.ParseRdf(data)
	if err != nil {
		return e, err
	}
	sum := sha256.Sum256(data)

	rootUrl := a.coll.Client().Url(v.Folder() + "/files")
	thumbnails := rdf.Thumbnails()
	resolve := func(src interface{}) interface{} {
		return resolveRelative(swapWithThumbnail(src, thumbnails), rootUrl)
	}

	typ := rdf.String("type")
	if typ == "" {
		return e, types.Wrapf(types.ErrMissingField, "missing 'type' in %s", v.RdfPath())
	}
	e = types.ManifestEntry{
		Authors:       orEmptyList(rdf["authors"]),
		Created:       created,
		Badges:        resolve(orEmptyList(rdf["badges"])),
		Covers:        resolve(orEmptyList(rdf["covers"])),
		Description:   rdf.String("description"),
		DownloadCount: "?",
		Icon:          resolve(rdf["icon"]),
		Id:            v.Id(),
		IdEmoji:       rdf.String("id_emoji"),
		License:       rdf["license"],
		Links:         orEmptyList(rdf["links"]),
		Name:          rdf.String("name"),
		Nickname:      v.Id(),
		NicknameIcon:  rdf.String("id_emoji"),
		Tags:          orEmptyList(rdf["tags"]),
		TrainingData:  rdf["training_data"],
		Type:          typ,
		EntrySource:   v.RdfUrl(),
		EntrySha256:   hex.EncodeToString(sum[:]),
		RdfSource:     v.RdfUrl(),
		VersionNumber: v.Version(),
		RootUrl:       rootUrl,
		Info:          info,
	}
	return e, nil
}

func orEmptyList(v interface{}) interface{} {
	if v == nil {
		return []interface{}{}
	}
	return v
}

// swapWithThumbnail replaces local image names that have a thumbnail by
// the thumbnail name.
func swapWithThumbnail(src interface{}, thumbnails map[string]string) interface{} {
	switch s := src.(type) {
	case map[string]interface{}:
		res := make(map[string]interface{}, len(s))
		for k, v := range s {
			res[k] = swapWithThumbnail(v, thumbnails)
		}
		return res
	case []interface{}:
		res := make([]interface{}, 0, len(s))
		for _, v := range s {
			res = append(res, swapWithThumbnail(v, thumbnails))
		}
		return res
	case string:
		if utils.IsUrl(s) {
			return s
		}
		if t, ok := thumbnails[s]; ok {
			return t
		}
		for orig, t := range thumbnails {
			if path.Base(orig) == path.Base(s) {
				return t
			}
		}
		return s
	default:
		return src
	}
}

// resolveRelative turns relative file names into urls below root.
func resolveRelative(src interface{}, root string) interface{} {
	switch s := src.(type) {
	case map[string]interface{}:
		res := make(map[string]interface{}, len(s))
		for k, v := range s {
			res[k] = resolveRelative(v, root)
		}
		return res
	case []interface{}:
		res := make([]interface{}, 0, len(s))
		for _, v := range s {
			res = append(res, resolveRelative(v, root))
		}
		return res
	case string:
		if strings.HasPrefix(s, "http") || strings.HasPrefix(s, "/") || !strings.Contains(s, ".") {
			return s
		}
		return root + "/" + strings.TrimPrefix(s, "./")
	default:
		return src
	}
}

// Generate builds the manifest for mode, merges it onto the configured
// template and writes it next to the concepts. In published mode the doi
// mapping is written as well.
func (a *Aggregator) Generate(ctx context.Context, mode Mode) error {
	m, buildErr := a.Build(ctx, mode)
	if m == nil {
		return buildErr
	}

	client := a.coll.Client()
	name := mode.FileName()
	if len(m.Collection) == 0 {
		exists, err := client.Exists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			log.Errorf("skipping overriding existing %s with an empty list", name)
			return buildErr
		}
	}

	data, err := json.Marshal(m)
	if err != nil {
		return xerrors.Errorf("encode %s: %w", name, err)
	}
	data, err = a.applyTemplate(ctx, data)
	if err != nil {
		return err
	}
	if err := client.Put(ctx, name, data); err != nil {
		return err
	}
	log.Infof("wrote %s", client.Url(name))

	if mode == ModePublished {
		mapping, err := json.MarshalIndent(DoiMapping(m), "", "  ")
		if err != nil {
			return xerrors.Errorf("encode %s: %w", types.DoiMappingFileName, err)
		}
		if err := client.Put(ctx, types.DoiMappingFileName, mapping); err != nil {
			return err
		}
	}
	return buildErr
}

// DoiMapping maps version and concept dois to resource ids.
func DoiMapping(m *types.Manifest) map[string]string {
	res := make(map[string]string)
	for _, e := range m.Collection {
		if e.Doi != nil {
			res[*e.Doi] = e.Id
		}
		if e.ConceptDoi != nil {
			res[*e.ConceptDoi] = e.Id
		}
	}
	return res
}

func (a *Aggregator) applyTemplate(ctx context.Context, data []byte) ([]byte, error) {
	if a.cfg.Template == "" {
		return indent(data)
	}
	template, err := utils.Fetch(ctx, a.http, a.cfg.Template)
	if err != nil {
		return nil, xerrors.Errorf("failed to load collection template: %w", err)
	}
	merged, err := applier.MergePatch(template, data)
	if err != nil {
		return nil, types.Wrapf(types.ErrDecodeDocumentFailed, "collection template %s: %v", a.cfg.Template, err)
	}
	return indent(merged)
}

func indent(data []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.MarshalIndent(v, "", "  ")
}
