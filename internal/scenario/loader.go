package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
)

// LoadFile reads a YAML scenario from path. A leading "~" is expanded to the
// user's home directory. The scenario is validated before it is returned.
func LoadFile(path string) (*schemas.Scenario, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand scenario path %q: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario %s: %w", expanded, err)
	}
	return sc, nil
}

// Decode parses and validates a single YAML scenario document. Unknown keys are rejected.
func Decode(r io.Reader) (*schemas.Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc schemas.Scenario
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("scenario document is empty")
		}
		return nil, fmt.Errorf("invalid scenario YAML: %w", err)
	}
	if err := Validate(&sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Resolve returns the built-in scenario called ref, or loads ref as a file
// when no built-in has that name.
func Resolve(ref string) (*schemas.Scenario, error) {
	if _, ok := builtins[ref]; ok {
		return Builtin(ref)
	}
	expanded, err := homedir.Expand(ref)
	if err == nil {
		if _, statErr := os.Stat(expanded); statErr == nil {
			return LoadFile(expanded)
		}
	}
	return Builtin(ref)
}
