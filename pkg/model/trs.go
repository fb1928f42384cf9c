package model

// TRSOrganization identifies the operator of a TRS registry.
type TRSOrganization struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TRSServiceType is the GA4GH service-info type triple.
type TRSServiceType struct {
	Group    string `json:"group"`
	Artifact string `json:"artifact"`
	Version  string `json:"version"`
}

// TRSServiceInfo is the body of GET {trs}/service-info.
type TRSServiceInfo struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Organization TRSOrganization `json:"organization"`
	Version      string          `json:"version"`
	Type         TRSServiceType  `json:"type"`
}

// TRSToolVersion is one version of a registered tool.
type TRSToolVersion struct {
	ID             string   `json:"id"`
	Name           string   `json:"name,omitempty"`
	URL            string   `json:"url"`
	DescriptorType []string `json:"descriptor_type,omitempty"`
}

// TRSToolClass classifies a tool (CommandLineTool, Workflow, ...).
type TRSToolClass struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// TRSTool is one entry of GET {trs}/tools.
type TRSTool struct {
	ID           string           `json:"id"`
	URL          string           `json:"url"`
	Name         string           `json:"name,omitempty"`
	Description  string           `json:"description,omitempty"`
	Organization string           `json:"organization"`
	ToolClass    TRSToolClass     `json:"toolclass"`
	Versions     []TRSToolVersion `json:"versions"`
}

// TRSToolFile is one entry of GET {trs}/tools/{id}/versions/{v}/{type}/files.
type TRSToolFile struct {
	Path     string `json:"path"`
	FileType string `json:"file_type,omitempty"`
}

// TRS file types.
const (
	TRSFileTypeTestFile            = "TEST_FILE"
	TRSFileTypePrimaryDescriptor   = "PRIMARY_DESCRIPTOR"
	TRSFileTypeSecondaryDescriptor = "SECONDARY_DESCRIPTOR"
	TRSFileTypeContainerfile       = "CONTAINERFILE"
	TRSFileTypeOther               = "OTHER"
)
