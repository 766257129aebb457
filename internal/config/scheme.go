package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
)

// PropertiesExt is the file extension of vocabulary scheme configuration files.
const PropertiesExt = ".properties"

var (
	// ErrConfigNotFound is the errors.Is target for ConfigNotFoundError.
	ErrConfigNotFound = errors.New("scheme config not found")
	// ErrConfigRead is the errors.Is target for ConfigReadError.
	ErrConfigRead = errors.New("scheme config unreadable")
)

// ConfigNotFoundError reports a missing scheme .properties file.
type ConfigNotFoundError struct {
	Path string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("scheme config not found: %s", e.Path)
}

func (e *ConfigNotFoundError) Is(target error) bool { return target == ErrConfigNotFound }

// ConfigReadError reports a scheme .properties file that exists but cannot be read or parsed.
type ConfigReadError struct {
	Path string
	Err  error
}

func (e *ConfigReadError) Error() string {
	return fmt.Sprintf("failed to read scheme config %s: %v", e.Path, e.Err)
}

func (e *ConfigReadError) Is(target error) bool { return target == ErrConfigRead }

func (e *ConfigReadError) Unwrap() error { return e.Err }

// SchemeProperties are the recognized keys of a vocabulary .properties file.
// Values are passed through as-is; none of the paths are validated here.
type SchemeProperties struct {
	Name           string `ini:"name"`
	LongName       string `ini:"longName"`
	URI            string `ini:"uri"`
	Index          string `ini:"index"`
	Store          string `ini:"store"`
	AlphaFile      string `ini:"alpha_file"`
	TopConceptFile string `ini:"top_concept_file"`
	KEAModel       string `ini:"kea_model"`
	KEATestSet     string `ini:"kea_test_set"`
	KEATrainingSet string `ini:"kea_training_set"`
	Stopwords      string `ini:"stopwords"`
	RDFFile        string `ini:"rdf_file"`
	LingPipeModel  string `ini:"lingpipe_model"`
}

// SchemePropertiesPath returns <confDir>/<vocabularyName>.properties.
func SchemePropertiesPath(confDir, vocabularyName string) string {
	return filepath.Join(confDir, vocabularyName+PropertiesExt)
}

// LoadSchemeProperties reads <confDir>/<vocabularyName>.properties.
// A missing file yields *ConfigNotFoundError; an unreadable or malformed one *ConfigReadError.
func LoadSchemeProperties(confDir, vocabularyName string) (*SchemeProperties, error) {
	path := SchemePropertiesPath(confDir, vocabularyName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigNotFoundError{Path: path}
		}
		return nil, &ConfigReadError{Path: path, Err: err}
	}
	props, err := ParseSchemeProperties(data)
	if err != nil {
		return nil, &ConfigReadError{Path: path, Err: err}
	}
	return props, nil
}

// ParseSchemeProperties parses the .properties subset scheme files use: key=value or
// key: value lines, '#' and '!' comment lines, trailing-backslash continuations and backslash
// escapes including \uXXXX. Inline '#' is kept since URIs use it. Section headers and lines
// without a delimiter are rejected. Later keys override earlier ones.
func ParseSchemeProperties(data []byte) (*SchemeProperties, error) {
	f := ini.Empty()
	sec := f.Section(ini.DefaultSection)
	for _, l := range logicalLines(data) {
		key, value, err := splitProperty(l.text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", l.num, err)
		}
		if _, err := sec.NewKey(key, value); err != nil {
			return nil, fmt.Errorf("line %d: %w", l.num, err)
		}
	}
	var props SchemeProperties
	if err := sec.MapTo(&props); err != nil {
		return nil, fmt.Errorf("failed to map properties: %w", err)
	}
	return &props, nil
}

type propertyLine struct {
	num  int
	text string
}

// logicalLines drops blank and comment lines and joins continued lines. num is the line
// number where each logical line starts.
func logicalLines(data []byte) []propertyLine {
	var (
		out  []propertyLine
		cur  strings.Builder
		num  int
		open bool
	)
	for i, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimLeft(strings.TrimSuffix(raw, "\r"), " \t\f")
		if !open {
			if line == "" || line[0] == '#' || line[0] == '!' {
				continue
			}
			num = i + 1
		}
		if trailingBackslashes(line)%2 == 1 {
			cur.WriteString(line[:len(line)-1])
			open = true
			continue
		}
		cur.WriteString(line)
		out = append(out, propertyLine{num: num, text: cur.String()})
		cur.Reset()
		open = false
	}
	if open && cur.Len() > 0 {
		out = append(out, propertyLine{num: num, text: cur.String()})
	}
	return out
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}

// splitProperty splits a logical line at its first unescaped '=' or ':'.
func splitProperty(line string) (string, string, error) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		return "", "", fmt.Errorf("section header %s not supported", trimmed)
	}
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '=', ':':
			key := unescapeProperty(strings.TrimSpace(line[:i]))
			if key == "" {
				return "", "", errors.New("empty key")
			}
			return key, unescapeProperty(strings.TrimSpace(line[i+1:])), nil
		}
	}
	return "", "", fmt.Errorf("missing '=' or ':' in %q", trimmed)
}

// unescapeProperty resolves the backslash escapes used in .properties values (e.g. "http\://").
func unescapeProperty(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '\\' || i == len(v)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch v[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			if i+4 < len(v) {
				if r, err := strconv.ParseUint(v[i+1:i+5], 16, 16); err == nil {
					b.WriteRune(rune(r))
					i += 4
					continue
				}
			}
			b.WriteByte('u')
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}

// ListSchemes returns the vocabulary names of every .properties file in confDir, sorted.
func ListSchemes(confDir string) ([]string, error) {
	entries, err := os.ReadDir(confDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheme configs: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), PropertiesExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), PropertiesExt))
	}
	sort.Strings(names)
	return names, nil
}
