// Package openapi embeds the HTTP API description for runtime distribution.
package openapi

import _ "embed"

// Document contains the OpenAPI description of the HTTP API.
//
//go:embed alquimist.yaml
var Document []byte

// Spec returns a copy of the embedded OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), Document...)
}
