// Package apiv1 ships the OpenAPI document of the HTTP API and serves it
// through the swagger UI.
package apiv1

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
)

//go:embed openapi.yml
var document []byte

// Load parses and validates the embedded document.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
}

// Operations lists "METHOD path" for every documented operation, with path
// parameters written the way fiber declares them.
func Operations(doc *openapi3.T) []string {
	var out []string
	for path, item := range doc.Paths.Map() {
		for method := range item.Operations() {
			out = append(out, strings.ToUpper(method)+" "+fiberPath(path))
		}
	}
	sort.Strings(out)
	return out
}

func fiberPath(p string) string {
	p = strings.ReplaceAll(p, "{", ":")
	return strings.ReplaceAll(p, "}", "")
}

// Swagger serves the UI under /docs/api.
func Swagger() fiber.Handler {
	return swagger.New(swagger.Config{
		BasePath:    "/docs/",
		Path:        "api",
		FilePath:    "openapi.yml",
		FileContent: document,
		Title:       "ToolFox API",
	})
}
