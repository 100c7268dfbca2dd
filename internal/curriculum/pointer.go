package curriculum

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"stepwise/internal/logging"
)

// pointerSchemaURL is the resource name the pointer schema is compiled under.
const pointerSchemaURL = "schema://stepwise/progress-pointer.json"

// pointerSchema describes the pointer document. Extra keys are allowed so
// the document can carry notes for humans.
const pointerSchema = `{
  "type": "object",
  "required": ["current"],
  "properties": {
    "current": {"type": "string", "minLength": 1}
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// Pointer is the declared current step read from the pointer document.
type Pointer struct {
	Current  string   // artifact identifier as declared
	Artifact Artifact // parsed form of Current; Path is empty
	Source   string   // path of the document it came from
}

// LoadPointer reads the pointer document at path. The document is YAML or
// JSON with a "current" key naming an artifact identifier.
//
// An absent document returns a CategoryConfigurationMissing error. A document
// that cannot be read, parsed or validated, or whose identifier does not
// follow the artifact naming convention, returns CategoryConfigurationInvalid.
func LoadPointer(path string) (*Pointer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, missingf(nil, "no progress pointer document configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, missingf(nil, "progress pointer document %s does not exist", path)
		}
		return nil, invalidf(err, "cannot read progress pointer document %s", path)
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, invalidf(err, "cannot parse progress pointer document %s", path)
	}

	doc, err := toJSONValue(raw)
	if err != nil {
		return nil, invalidf(err, "progress pointer document %s is not a plain mapping", path)
	}

	schema, err := pointerValidator()
	if err != nil {
		return nil, &Error{Category: CategoryInternal, Message: "compile pointer schema", Err: err}
	}
	if err := schema.Validate(doc); err != nil {
		return nil, invalidf(err, "progress pointer document %s failed validation", path)
	}

	current := strings.TrimSpace(doc.(map[string]interface{})["current"].(string))
	artifact, ok := ParseIdentifier(current)
	if !ok {
		return nil, invalidf(nil, "%q in %s is not a step identifier (want <n>[.<m>].test.<ext>)", current, path)
	}

	logging.ConfigDebug("Progress pointer %s -> %s (step %s)", path, current, artifact.Step)
	return &Pointer{Current: current, Artifact: artifact, Source: path}, nil
}

// toJSONValue normalises a YAML-decoded value into the shapes encoding/json
// produces, which is what the schema validator expects.
func toJSONValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func pointerValidator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		var def interface{}
		if err := json.Unmarshal([]byte(pointerSchema), &def); err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(pointerSchemaURL, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(pointerSchemaURL)
	})
	return compiledSchema, compileErr
}
