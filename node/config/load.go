package config

import (
	"bytes"
	"io"
	"os"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	"github.com/bioimage-io/backoffice/types"
	"github.com/kelseyhightower/envconfig"
)

// ConfigComment renders cfg as TOML with every value commented out and the
// field docs above each key.
func ConfigComment(cfg interface{}) ([]byte, error) {
	return ConfigUpdate(cfg, nil, true)
}

var sectionRx = regexp.MustCompile(`^\[(.+)]$`)

// ConfigUpdate renders cfgCur as TOML. With comment set, every value equal
// to the one of the same section in cfgDef is commented out and documented
// keys get their doc above them. A nil cfgDef comments out every value.
// The result must decode back to cfgCur.
func ConfigUpdate(cfgCur, cfgDef interface{}, comment bool) ([]byte, error) {
	cur, err := encodeConfig(cfgCur)
	if err != nil {
		return nil, err
	}
	if comment {
		var defaults map[string]bool
		if cfgDef != nil {
			def, err := encodeConfig(cfgDef)
			if err != nil {
				return nil, err
			}
			if defaults, err = valueLines(def); err != nil {
				return nil, err
			}
		}
		if cur, err = annotate(cur, docRoot(cfgCur), defaults); err != nil {
			return nil, err
		}
	}

	if cfgDef != nil {
		cfgUpdated, err := FromReader(strings.NewReader(cur), cfgDef)
		if err != nil {
			return nil, types.Wrap(types.ErrDecodeConfigFailed, err)
		}
		if !reflect.DeepEqual(cfgCur, cfgUpdated) {
			return nil, types.Wrapf(types.ErrInvalidConfig, "updated config didn't match current config")
		}
	}
	return []byte(cur), nil
}

func encodeConfig(cfg interface{}) (string, error) {
	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(cfg); err != nil {
		return "", types.Wrap(types.ErrEncodeConfigFailed, err)
	}
	return buf.String(), nil
}

// walkLines calls f with the enclosing section of every non empty line.
func walkLines(str string, f func(section, line string, header bool)) error {
	var section string
	for i, line := range strings.Split(str, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			m := sectionRx.FindStringSubmatch(trimmed)
			if m == nil {
				return types.Wrapf(types.ErrInvalidConfig, "section didn't match (line %d)", i)
			}
			section = m[1]
			f(section, line, true)
			continue
		}
		f(section, line, false)
	}
	return nil
}

// valueLines indexes the key lines of str by section.
func valueLines(str string) (map[string]bool, error) {
	lines := map[string]bool{}
	err := walkLines(str, func(section, line string, header bool) {
		trimmed := strings.TrimSpace(line)
		if header || trimmed == "" || trimmed[0] == '#' {
			return
		}
		lines[section+"."+trimmed] = true
	})
	return lines, err
}

func annotate(str string, root string, defaults map[string]bool) (string, error) {
	var out []string
	err := walkLines(str, func(section, line string, header bool) {
		trimmed := strings.TrimSpace(line)
		if header || trimmed == "" {
			out = append(out, line)
			return
		}
		pad := line[:len(line)-len(strings.TrimLeftFunc(line, unicode.IsSpace))]

		if lf := strings.Fields(trimmed); len(lf) > 1 {
			if doc := findDoc(root, section, lf[0]); doc != nil {
				if doc.Comment != "" {
					for _, docLine := range strings.Split(doc.Comment, "\n") {
						out = append(out, pad+"# "+docLine)
					}
					out = append(out, pad+"#")
				}
				out = append(out, pad+"# type: "+doc.Type)
			}
		}

		if defaults == nil || defaults[section+"."+trimmed] {
			line = pad + "#" + trimmed
		}
		out = append(out, line, "")
	})
	return strings.Join(out, "\n"), err
}

func docRoot(cfg interface{}) string {
	return reflect.Indirect(reflect.ValueOf(cfg)).Type().Name()
}

// findDoc follows the dotted section from the root type down to the field.
func findDoc(root, section, name string) *DocField {
	fields := Doc[root]
	if section != "" {
		for _, e := range strings.Split(section, ".") {
			next := fields
			fields = nil
			for _, field := range next {
				if field.Name == e {
					fields = Doc[field.Type]
					break
				}
			}
		}
	}

	for i := range fields {
		if fields[i].Name == name {
			return &fields[i]
		}
	}
	return nil
}

// FromReader loads config from a reader instance.
func FromReader(reader io.Reader, def interface{}) (interface{}, error) {
	cfg := def
	_, err := toml.NewDecoder(reader).Decode(cfg)
	if err != nil {
		return nil, err
	}

	err = envconfig.Process("BACKOFFICE", cfg)
	if err != nil {
		return nil, types.Wrapf(types.ErrInvalidConfig, "processing env vars overrides: %v", err)
	}

	return cfg, nil
}

// FromFile loads config from a file, a missing file yields def with the
// environment overrides applied.
func FromFile(path string, def interface{}) (interface{}, error) {
	file, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
		if err := envconfig.Process("BACKOFFICE", def); err != nil {
			return nil, types.Wrapf(types.ErrInvalidConfig, "processing env vars overrides: %v", err)
		}
		return def, nil
	case err != nil:
		return nil, err
	}

	defer file.Close() //nolint:errcheck
	return FromReader(file, def)
}
