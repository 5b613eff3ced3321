package instrument

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed contract/definition.schema.json
var definitionContract []byte

var (
	contractOnce   sync.Once
	contractSchema *openapi3.Schema
	contractErr    error
)

// DefinitionContract returns the OpenAPI schema object describing the
// instrument definition document. It is the versioned shape external
// authoring tools should target.
func DefinitionContract() (*openapi3.Schema, error) {
	contractOnce.Do(func() {
		var schema openapi3.Schema
		if err := json.Unmarshal(definitionContract, &schema); err != nil {
			contractErr = fmt.Errorf("instrument: parse definition contract: %w", err)
			return
		}
		contractSchema = &schema
	})
	return contractSchema, contractErr
}

// checkContract validates a generic JSON document against the definition
// contract and returns one error per violation.
func checkContract(doc any) []error {
	schema, err := DefinitionContract()
	if err != nil {
		return []error{err}
	}

	err = schema.VisitJSON(doc, openapi3.MultiErrors())
	if err == nil {
		return nil
	}

	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		out := make([]error, 0, len(multi))
		for _, item := range multi {
			out = append(out, fmt.Errorf("instrument: contract: %w", item))
		}
		return out
	}
	return []error{fmt.Errorf("instrument: contract: %w", err)}
}
