package oracle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func validTestDefinition() TestDefinition {
	return TestDefinition{
		ID:   "t1",
		Name: "smoke",
		Steps: []TestStep{
			{ID: "s1", Kind: StepNavigate, URL: "https://example.test/"},
		},
	}
}

func TestValidatePassesOnWellFormedDefinition(t *testing.T) {
	def := validTestDefinition()
	require.NoError(t, def.Validate())
}

func TestValidateRejectsMissingFields(t *testing.T) {
	def := TestDefinition{}
	err := def.Validate()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrConfiguration)
	require.Contains(t, err.Error(), "id is required")
	require.Contains(t, err.Error(), "name is required")
	require.Contains(t, err.Error(), "steps must not be empty")
}

func TestValidatePreservesCaptureUnsupportedSentinel(t *testing.T) {
	def := validTestDefinition()
	def.Steps = append(def.Steps, TestStep{
		ID:   "s2",
		Kind: StepCheckpoint,
		Checkpoint: &CheckpointDefinition{
			ID:   "cp1",
			Name: "home",
			Capture: CaptureConfig{
				Network: true,
			},
		},
	})

	err := def.Validate()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrConfiguration)
	require.ErrorIs(t, err, ErrCaptureUnsupported)
	require.True(t, errors.Is(err, ErrCaptureUnsupported), "errors.Is chain must survive through joined validation errors")
}

func TestValidateRejectsDuplicateStepIDs(t *testing.T) {
	def := validTestDefinition()
	def.Steps = append(def.Steps, TestStep{ID: "s1", Kind: StepNavigate, URL: "https://example.test/other"})

	err := def.Validate()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrConfiguration)
	require.Contains(t, err.Error(), `duplicate step id "s1"`)
}
