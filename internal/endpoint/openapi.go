package endpoint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// FromOpenAPI derives endpoint declarations from an OpenAPI 3 document.
// Each operation becomes one endpoint named by its operationId, or by
// "METHOD path" when the operation has none. Results are sorted by name.
func FromOpenAPI(data []byte) ([]Endpoint, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI doc: %w", err)
	}
	if doc.Paths == nil {
		return []Endpoint{}, nil
	}

	var endpoints []Endpoint
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			name := op.OperationID
			if name == "" {
				name = strings.ToUpper(method) + " " + path
			}
			endpoints = append(endpoints, Endpoint{Name: name, Path: path})
		}
	}

	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].Name < endpoints[j].Name
	})
	return endpoints, nil
}
