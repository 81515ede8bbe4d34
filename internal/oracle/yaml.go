package oracle

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadTestDefinitionFile reads and parses a TestDefinition YAML file:
// read bytes, unmarshal, apply defaults, validate.
func LoadTestDefinitionFile(path string) (*TestDefinition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from a trusted test directory
	if err != nil {
		return nil, fmt.Errorf("reading test definition file: %w", err)
	}
	return LoadTestDefinition(data)
}

// LoadTestDefinition parses TestDefinition YAML content from bytes, applies
// defaults, and validates the result before returning it.
func LoadTestDefinition(data []byte) (*TestDefinition, error) {
	var t TestDefinition
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing test definition YAML: %w", err)
	}

	t.applyDefaults()

	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := t.UniqueCheckpointNames(); err != nil {
		return nil, err
	}

	return &t, nil
}

func (t *TestDefinition) applyDefaults() {
	if t.Viewport.Width == 0 && t.Viewport.Height == 0 {
		t.Viewport = DefaultViewport()
	}
	for i := range t.Steps {
		t.Steps[i].applyDefaults()
	}
	for i := range t.BeforeAll {
		t.BeforeAll[i].applyDefaults()
	}
	for i := range t.AfterAll {
		t.AfterAll[i].applyDefaults()
	}
}

func (s *TestStep) applyDefaults() {
	switch s.Kind {
	case StepNavigate:
		if s.NavigateOptions.WaitUntil == "" {
			s.NavigateOptions.WaitUntil = WaitUntilLoad
		}
	case StepClick:
		if s.ClickOptions.Button == "" {
			s.ClickOptions.Button = ButtonLeft
		}
		if s.ClickOptions.ClickCount == 0 {
			s.ClickOptions.ClickCount = 1
		}
	case StepScroll:
		if s.ScrollBehavior == "" {
			s.ScrollBehavior = ScrollAuto
		}
	}
}
