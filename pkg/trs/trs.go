// Package trs is a client for GA4GH Tool Registry Service v2 endpoints,
// used to import workflows and their sidecar files into the console.
package trs

import (
	"fmt"
	"strings"
)

// BiocontainersEndpoint does not serve service-info; a static document is used instead.
const BiocontainersEndpoint = "https://api.biocontainers.pro/ga4gh/trs/v2"

// DescriptorType is the TRS name of a workflow language.
type DescriptorType string

const (
	DescriptorCWL DescriptorType = "CWL"
	DescriptorWDL DescriptorType = "WDL"
	DescriptorNFL DescriptorType = "NFL"
	DescriptorSMK DescriptorType = "SMK"
)

// DescriptorTypeFor maps a WES workflow_type to its TRS descriptor type.
func DescriptorTypeFor(workflowType string) (DescriptorType, error) {
	switch workflowType {
	case "CWL", "cwl":
		return DescriptorCWL, nil
	case "WDL", "wdl":
		return DescriptorWDL, nil
	case "Nextflow", "nextflow", "NFL":
		return DescriptorNFL, nil
	case "Snakemake", "snakemake", "SMK":
		return DescriptorSMK, nil
	}
	return "", fmt.Errorf("unknown workflow type: %q", workflowType)
}

// WorkflowType maps a descriptor type back to the WES workflow_type.
func (d DescriptorType) WorkflowType() (string, error) {
	switch d {
	case DescriptorCWL:
		return "CWL", nil
	case DescriptorWDL:
		return "WDL", nil
	case DescriptorNFL:
		return "Nextflow", nil
	case DescriptorSMK:
		return "Snakemake", nil
	}
	return "", fmt.Errorf("unknown descriptor type: %q", string(d))
}

// Valid reports whether d is a known descriptor type.
func (d DescriptorType) Valid() bool {
	_, err := d.WorkflowType()
	return err == nil
}

// plain is the raw-text variant of the descriptor type used in descriptor URLs.
func (d DescriptorType) plain() string {
	return "PLAIN_" + string(d)
}

func versionPath(endpoint, toolID, version string) string {
	return strings.TrimRight(endpoint, "/") + "/tools/" + escape(toolID) + "/versions/" + escape(version)
}
