// Package wes is a client for GA4GH Workflow Execution Service endpoints.
// It normalises the baseline WES 1.0 API and the sapporo extensions into one
// set of operations; the Dialect detected from service-info decides which
// optional request fields and catalog endpoints are legal for a server.
package wes

import "strings"

// Dialect is the WES request/response shape spoken by a server.
type Dialect string

const (
	DialectWES100     Dialect = "1.0.0"
	DialectSapporo100 Dialect = "sapporo-1.0.0"
	DialectSapporo101 Dialect = "sapporo-1.0.1"
)

// CatalogSource tells where a dialect publishes its executable workflows.
type CatalogSource int

const (
	CatalogNone CatalogSource = iota
	CatalogServiceInfo
	CatalogEndpoint
)

// Capabilities are the optional features a dialect permits.
type Capabilities struct {
	EngineName       bool // workflow_engine_name may be sent
	WorkflowName     bool // workflow_name may be sent (run a catalog entry by name)
	InlineAttachment bool // workflow_attachment may carry a JSON list of {file_name, file_url}
	ParseWorkflow    bool // POST /parse-workflow exists
	Catalog          CatalogSource
}

// Capabilities returns the feature set of d.
func (d Dialect) Capabilities() Capabilities {
	switch d {
	case DialectSapporo100:
		return Capabilities{
			EngineName:   true,
			WorkflowName: true,
			Catalog:      CatalogServiceInfo,
		}
	case DialectSapporo101:
		return Capabilities{
			EngineName:       true,
			WorkflowName:     true,
			InlineAttachment: true,
			ParseWorkflow:    true,
			Catalog:          CatalogEndpoint,
		}
	case DialectWES100:
		return Capabilities{}
	}
	panic("wes: unknown dialect " + string(d))
}

// rank orders dialects from least to most specific.
func (d Dialect) rank() int {
	switch d {
	case DialectSapporo100:
		return 1
	case DialectSapporo101:
		return 2
	}
	return 0
}

// ParseWesVersion picks the most specific dialect advertised in
// supported_wes_versions. A vendor marker ("sapporo") followed by a known
// version selects that extension; everything else is baseline WES 1.0.0.
func ParseWesVersion(supported []string) Dialect {
	best := DialectWES100
	for _, v := range supported {
		v = strings.ToLower(v)
		if !strings.Contains(v, "sapporo") {
			continue
		}
		var d Dialect
		switch {
		case strings.Contains(v, "1.0.1"):
			d = DialectSapporo101
		case strings.Contains(v, "1.0.0"):
			d = DialectSapporo100
		default:
			continue
		}
		if d.rank() > best.rank() {
			best = d
		}
	}
	return best
}
