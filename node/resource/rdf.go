package resource

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/bioimage-io/backoffice/types"
	"gopkg.in/yaml.v3"
)

const (
	BioimageioYamlName = "bioimageio.yaml"
	RdfYamlName        = "rdf.yaml"

	bioimageioYamlSuffix = "." + BioimageioYamlName
)

// Rdf is the parsed resource description of a package.
type Rdf map[string]interface{}

// IsRdfName reports whether name is accepted as resource description file
// name.
func IsRdfName(name string) bool {
	return name == BioimageioYamlName || name == RdfYamlName || strings.HasSuffix(name, bioimageioYamlSuffix)
}

// identifyRdf picks the resource description of a package from its top
// level file names.
func identifyRdf(names []string) (string, error) {
	var candidates []string
	for _, name := range names {
		if strings.Contains(name, "/") || !IsRdfName(name) {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return "", types.Wrapf(types.ErrInvalidPackage, "no '%s' or '%s' found in package", BioimageioYamlName, RdfYamlName)
	}

	rank := func(name string) int {
		switch name {
		case BioimageioYamlName:
			return 0
		case RdfYamlName:
			return 1
		default:
			return 2
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ri, rj := rank(candidates[i]), rank(candidates[j])
		if ri != rj {
			return ri < rj
		}
		return candidates[i] < candidates[j]
	})
	return candidates[0], nil
}

func ParseRdf(data []byte) (Rdf, error) {
	// nested mappings decode as map[string]interface{} only below an
	// unnamed map type
	var m map[string]interface{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, types.Wrapf(types.ErrInvalidPackage, "expected resource description to hold a mapping: %v", err)
	}
	if m == nil {
		return nil, types.Wrapf(types.ErrInvalidPackage, "empty resource description")
	}
	return Rdf(m), nil
}

func (r Rdf) Marshal() ([]byte, error) {
	return yaml.Marshal(map[string]interface{}(r))
}

func (r Rdf) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// SemVer returns the declared semantic version. Floats keep a fractional
// part, "1.0" stays distinct from "1".
func (r Rdf) SemVer() *string {
	var s string
	switch v := r["version"].(type) {
	case nil:
		return nil
	case string:
		s = v
	case int, int64:
		s = fmt.Sprint(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			s += ".0"
		}
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}

// Uploader is the person who uploaded a resource version.
type Uploader struct {
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name" yaml:"name"`
}

func (r Rdf) Uploader() *Uploader {
	m, ok := r["uploader"].(map[string]interface{})
	if !ok {
		return nil
	}
	email, _ := m["email"].(string)
	if email == "" {
		return nil
	}
	name, _ := m["name"].(string)
	return &Uploader{Email: email, Name: name}
}

// MaintainerEmails returns the emails of the uploader, the maintainers and
// the authors.
func (r Rdf) MaintainerEmails() []string {
	var emails []string
	if u := r.Uploader(); u != nil {
		emails = append(emails, u.Email)
	}
	for _, key := range []string{"maintainers", "authors"} {
		people, ok := r[key].([]interface{})
		if !ok {
			continue
		}
		for _, p := range people {
			person, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			if email, ok := person["email"].(string); ok && email != "" {
				emails = append(emails, email)
			}
		}
	}
	return emails
}

// BioimageioConfig returns config.bioimageio, creating it if needed. It
// returns nil if config or config.bioimageio is not a mapping.
func (r Rdf) BioimageioConfig() map[string]interface{} {
	config, ok := r["config"].(map[string]interface{})
	if !ok {
		if r["config"] != nil {
			return nil
		}
		config = make(map[string]interface{})
		r["config"] = config
	}
	bc, ok := config["bioimageio"].(map[string]interface{})
	if !ok {
		if config["bioimageio"] != nil {
			return nil
		}
		bc = make(map[string]interface{})
		config["bioimageio"] = bc
	}
	return bc
}

// Thumbnails returns the image to thumbnail mapping of the resource.
func (r Rdf) Thumbnails() map[string]string {
	res := make(map[string]string)
	config, ok := r["config"].(map[string]interface{})
	if !ok {
		return res
	}
	bc, ok := config["bioimageio"].(map[string]interface{})
	if !ok {
		return res
	}
	thumbnails, ok := bc["thumbnails"].(map[string]interface{})
	if !ok {
		return res
	}
	for src, t := range thumbnails {
		if name, ok := t.(string); ok {
			res[src] = name
		}
	}
	return res
}
