package pipeline

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spindleci/spindle/errors"
)

// Parse decodes raw pipeline YAML, validates it against the schema, and
// builds the stage graph. All configuration errors surface here, before
// any stage executes.
func Parse(raw []byte) (*Definition, *Graph, error) {
	violations, err := ValidateSchema(raw)
	if err != nil {
		return nil, nil, errors.Wrap(errors.CodeInvalidConfig, err, "invalid pipeline")
	}
	if len(violations) > 0 {
		return nil, nil, errors.Newf(errors.CodeInvalidConfig,
			"invalid pipeline: %s", strings.Join(violations, "; "))
	}

	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, nil, errors.Wrap(errors.CodeInvalidConfig, err, "decoding pipeline")
	}

	graph, err := NewGraph(def.Stages)
	if err != nil {
		return nil, nil, err
	}
	return &def, graph, nil
}

// Load reads and parses a pipeline definition file.
func Load(path string) (*Definition, *Graph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(errors.CodeInvalidConfig, err,
			"reading pipeline file %s", path)
	}
	return Parse(raw)
}
