// Package schema exposes embedded API metadata (title, version) for runtime use.
package schema

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"alquimist/docs/schema/openapi"
)

// Info captures the info block of the embedded OpenAPI document.
type Info struct {
	Title   string `yaml:"title" json:"title"`
	Version string `yaml:"version" json:"version"`
}

type infoDoc struct {
	Info Info `yaml:"info"`
}

var (
	infoOnce sync.Once
	info     Info
	infoErr  error
)

// APIInfo returns the info block declared in the embedded OpenAPI document.
func APIInfo() (Info, error) {
	infoOnce.Do(func() {
		var doc infoDoc
		if err := yaml.Unmarshal(openapi.Document, &doc); err != nil {
			infoErr = fmt.Errorf("decode openapi info: %w", err)
			return
		}
		info = doc.Info
	})
	return info, infoErr
}

// APIVersion returns the API version declared in the embedded OpenAPI document.
func APIVersion() (string, error) {
	i, err := APIInfo()
	return i.Version, err
}
