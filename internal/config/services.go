package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/wesconsole/internal/console"
)

// servicesFile is the layout of the pre-registered services file:
//
//	services:
//	  - name: local sapporo
//	    endpoint: http://localhost:1122
type servicesFile struct {
	Services []console.ServiceRequest `yaml:"services"`
}

// LoadPreRegisteredServices reads the services registered at startup.
func LoadPreRegisteredServices(path string) ([]console.ServiceRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pre-registered services: %w", err)
	}
	return ParsePreRegisteredServices(data)
}

// ParsePreRegisteredServices decodes a services file. Unknown keys, entries
// without a name or endpoint, and repeated names are rejected.
func ParsePreRegisteredServices(data []byte) ([]console.ServiceRequest, error) {
	var f servicesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if strings.TrimSpace(string(data)) == "" {
			return []console.ServiceRequest{}, nil
		}
		return nil, fmt.Errorf("parse pre-registered services: %w", err)
	}

	seen := map[string]bool{}
	out := make([]console.ServiceRequest, 0, len(f.Services))
	for i, s := range f.Services {
		s.Name = strings.TrimSpace(s.Name)
		s.Endpoint = strings.TrimSpace(s.Endpoint)
		if s.Name == "" || s.Endpoint == "" {
			return nil, fmt.Errorf("pre-registered service %d: name and endpoint are required", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("pre-registered service %q listed twice", s.Name)
		}
		seen[s.Name] = true
		s.PreRegistered = true
		out = append(out, s)
	}
	return out, nil
}
