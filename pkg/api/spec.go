// Package api holds the OpenAPI description of the HTTP API.
package api

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specYAML []byte

// GetSwagger parses the embedded OpenAPI document
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("error loading OpenAPI spec: %w", err)
	}
	return doc, nil
}

// SpecYAML returns the raw embedded document
func SpecYAML() []byte {
	return specYAML
}
