package scenario

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaID is the $id of the generated scenario schema.
const SchemaID = "https://github.com/ormasoftchile/ehbo/schemas/scenario-v1.json"

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from
// the Go Scenario struct using invopop/jsonschema.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Scenario{})
	s.ID = SchemaID
	s.Title = "First-aid training scenario v1"
	s.Description = "Schema for ehbo scenario YAML documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
