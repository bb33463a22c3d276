package idparts

import (
	"context"
	"sort"
	"strings"

	"github.com/bioimage-io/backoffice/types"
	"github.com/bioimage-io/backoffice/utils"
	"github.com/hashicorp/go-retryablehttp"
	logging "github.com/ipfs/go-log/v2"
	jsoniter "github.com/json-iterator/go"
)

var log = logging.Logger("idparts")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry holds the parts of resource ids of one resource type: an id is
// "<adjective>-<noun>" and every noun has an emoji.
type Entry struct {
	Nouns      map[string]string `json:"nouns"`
	Adjectives []string          `json:"adjectives"`
}

type IdParts struct {
	Model    Entry `json:"model"`
	Dataset  Entry `json:"dataset"`
	Notebook Entry `json:"notebook"`
}

// sortAdjectives orders the adjectives longest first so that "easy-going"
// matches before "easy".
func (e *Entry) sortAdjectives() {
	sort.SliceStable(e.Adjectives, func(i, j int) bool {
		return len(e.Adjectives[i]) > len(e.Adjectives[j])
	})
}

// Noun returns the noun of id or false if id does not start with a known
// adjective.
func (e *Entry) Noun(id string) (string, bool) {
	for _, adj := range e.Adjectives {
		if strings.HasPrefix(id, adj+"-") {
			return id[len(adj)+1:], true
		}
	}
	return "", false
}

func (e *Entry) Validate(id string) error {
	if id == "" {
		return types.Wrapf(types.ErrInvalidId, "empty resource id")
	}
	noun, ok := e.Noun(id)
	if !ok {
		return types.Wrapf(types.ErrInvalidId, "%s does not start with a listed adjective (or does not follow the pattern 'adjective-noun')", id)
	}
	if _, ok := e.Nouns[noun]; !ok {
		return types.Wrapf(types.ErrInvalidId, "%s does not end with a listed noun (or does not follow the pattern 'adjective-noun')", id)
	}
	return nil
}

// ForType returns the id parts of a resource type.
func (p *IdParts) ForType(typ string) (*Entry, error) {
	switch typ {
	case "model":
		return &p.Model, nil
	case "dataset":
		return &p.Dataset, nil
	case "notebook":
		return &p.Notebook, nil
	default:
		return nil, types.Wrapf(types.ErrUnSupport, "handling resource id for type '%s' is not implemented", typ)
	}
}

// Emoji returns the emoji of the noun of id, searching all resource types.
func (p *IdParts) Emoji(id string) (string, bool) {
	for _, e := range []*Entry{&p.Model, &p.Dataset, &p.Notebook} {
		noun, ok := e.Noun(id)
		if !ok {
			continue
		}
		if emoji, ok := e.Nouns[noun]; ok {
			return emoji, true
		}
	}
	return "", false
}

func Parse(data []byte) (*IdParts, error) {
	var p IdParts
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, types.Wrapf(types.ErrDecodeDocumentFailed, "id parts: %v", err)
	}
	for _, e := range []*Entry{&p.Model, &p.Dataset, &p.Notebook} {
		e.sortAdjectives()
	}
	return &p, nil
}

// Load reads the id parts from a url or a local file.
func Load(ctx context.Context, client *retryablehttp.Client, source string) (*IdParts, error) {
	data, err := utils.Fetch(ctx, client, source)
	if err != nil {
		return nil, err
	}
	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	log.Debugf("loaded id parts from %s: %d model, %d dataset, %d notebook nouns",
		source, len(p.Model.Nouns), len(p.Dataset.Nouns), len(p.Notebook.Nouns))
	return p, nil
}

// LoadReviewers reads the list of registered reviewers from a url or a
// local file.
func LoadReviewers(ctx context.Context, client *retryablehttp.Client, source string) (types.Reviewers, error) {
	data, err := utils.Fetch(ctx, client, source)
	if err != nil {
		return nil, err
	}
	var reviewers types.Reviewers
	if err := json.Unmarshal(data, &reviewers); err != nil {
		return nil, types.Wrapf(types.ErrDecodeDocumentFailed, "reviewers: %v", err)
	}
	return reviewers, nil
}
