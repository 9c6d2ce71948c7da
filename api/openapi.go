// Package api holds the OpenAPI document served at /api/docs and used for request validation.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
