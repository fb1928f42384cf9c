// Package inspect parses workflow descriptors and parameter documents.
package inspect

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/wesconsole/pkg/model"
)

// Parse decodes JSON or YAML content into a document. Content that is not a
// mapping in either syntax is a *model.ParseError.
func Parse(content string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(content), &doc); err == nil && doc != nil {
		return doc, nil
	}

	var v any
	if err := yaml.Unmarshal([]byte(content), &v); err != nil {
		return nil, &model.ParseError{What: "workflow descriptor", Err: err}
	}
	m, ok := normalize(v).(map[string]any)
	if !ok {
		return nil, &model.ParseError{What: "workflow descriptor", Err: errors.New("content is neither a JSON nor a YAML mapping")}
	}
	return m, nil
}

// normalize converts yaml mappings with non-string keys into JSON-compatible maps.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = normalize(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	}
	return v
}

// TypeVersion is the language and language version of a descriptor.
type TypeVersion struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

// Inspect detects the workflow language. Only CWL is recognised (by its
// cwlVersion key); other languages yield an empty TypeVersion.
func Inspect(content string) (TypeVersion, error) {
	doc, err := Parse(content)
	if err != nil {
		return TypeVersion{}, err
	}
	return InspectDocument(doc), nil
}

// InspectDocument is Inspect on an already parsed document.
func InspectDocument(doc map[string]any) TypeVersion {
	v, ok := doc["cwlVersion"]
	if !ok {
		return TypeVersion{}
	}
	return TypeVersion{Type: "CWL", Version: fmt.Sprint(v)}
}

// IsJSON reports whether content is valid JSON.
func IsJSON(content string) bool {
	return json.Valid([]byte(content))
}

// IsYAML reports whether content is valid YAML. Valid JSON is valid YAML.
func IsYAML(content string) bool {
	var v any
	return yaml.Unmarshal([]byte(content), &v) == nil
}

// YAMLToJSON re-encodes a YAML document as indented JSON. Blank input and
// content that is not YAML are returned unchanged.
func YAMLToJSON(content string) string {
	if strings.TrimSpace(content) == "" {
		return content
	}
	var v any
	if err := yaml.Unmarshal([]byte(content), &v); err != nil {
		return content
	}
	out, err := json.MarshalIndent(normalize(v), "", "  ")
	if err != nil {
		return content
	}
	return string(out)
}
