package inspect

import (
	"encoding/json"
	"sort"
	"strings"
)

// Parameter is one declared workflow input.
type Parameter struct {
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	Default        any            `json:"default,omitempty"`
	Required       bool           `json:"required"`
	Array          bool           `json:"array"`
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
}

// ExtractParameters lists the inputs of a descriptor. Only CWL inputs are
// understood; other languages return an empty list.
func ExtractParameters(content string) ([]Parameter, error) {
	doc, err := Parse(content)
	if err != nil {
		return nil, err
	}
	if InspectDocument(doc).Type != "CWL" {
		return []Parameter{}, nil
	}
	return cwlParameters(doc), nil
}

func cwlParameters(doc map[string]any) []Parameter {
	params := []Parameter{}
	switch inputs := doc["inputs"].(type) {
	case []any:
		for _, in := range inputs {
			field, _ := in.(map[string]any)
			id, _ := field["id"].(string)
			params = append(params, cwlParameter(id, field))
		}
	case map[string]any:
		ids := make([]string, 0, len(inputs))
		for id := range inputs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			switch field := inputs[id].(type) {
			case map[string]any:
				params = append(params, cwlParameter(id, field))
			case string:
				// shorthand "name: type"
				params = append(params, cwlParameter(id, map[string]any{"type": field}))
			default:
				params = append(params, cwlParameter(id, nil))
			}
		}
	}
	return params
}

func cwlParameter(id string, field map[string]any) Parameter {
	typ, _ := field["type"].(string)
	p := Parameter{Name: strings.TrimPrefix(id, "#"), Required: true}
	if strings.HasSuffix(typ, "?") {
		typ = strings.TrimSuffix(typ, "?")
		p.Required = false
	}
	if strings.HasSuffix(typ, "[]") {
		typ = strings.TrimSuffix(typ, "[]")
		p.Array = true
	}
	p.Type = typ
	p.Default = field["default"]
	for _, key := range []string{"symbols", "secondaryFiles"} {
		if v, ok := field[key]; ok {
			if p.AdditionalInfo == nil {
				p.AdditionalInfo = map[string]any{}
			}
			p.AdditionalInfo[key] = v
		}
	}
	return p
}

// GenerateParams builds a workflow_params document from user values.
// File inputs become CWL File objects; other languages yield "{}".
func GenerateParams(workflowType string, params []Parameter, values map[string]any) (string, error) {
	if workflowType != "CWL" {
		return "{}", nil
	}
	out := make(map[string]any, len(params))
	for _, p := range params {
		v, ok := values[p.Name]
		if !ok {
			continue
		}
		if strings.EqualFold(p.Type, "file") {
			v = map[string]any{"class": "File", "location": v}
		}
		out[p.Name] = v
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
