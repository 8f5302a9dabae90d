package dataset

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed manifest.schema.json
var manifestSchema string

var manifestSchemaLoader = gojsonschema.NewStringLoader(manifestSchema)

// validateManifest checks the decoded document against the manifest schema
// before it is mapped onto annotations.
func validateManifest(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	result, err := gojsonschema.Validate(manifestSchemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
