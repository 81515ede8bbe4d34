package builder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/smoketest/internal/oracle"
)

func TestBuildProducesValidDefinition(t *testing.T) {
	def, err := New("t1", "homepage smoke").
		Description("checks the homepage loads").
		Viewport(1024, 768).
		Navigate("nav", "https://example.com").
		Click("click-cta", "#cta").
		Checkpoint(oracle.CheckpointDefinition{ID: "cp1", Name: "landing", Capture: oracle.CaptureConfig{HTML: true}}).
		Build()

	require.NoError(t, err)
	require.Equal(t, "t1", def.ID)
	require.Len(t, def.Steps, 3)
	require.Equal(t, oracle.StepCheckpoint, def.Steps[2].Kind)
}

func TestBeforeAllAfterAllSpliceSteps(t *testing.T) {
	def, err := New("t1", "with lifecycle").
		Navigate("main-nav", "https://example.com").
		BeforeAll(func(s *StepBuilder) {
			s.Navigate("login-nav", "https://example.com/login").
				Type("login-user", "#username", "admin")
		}).
		AfterAll(func(s *StepBuilder) {
			s.Checkpoint(oracle.CheckpointDefinition{ID: "final", Name: "final-state", Capture: oracle.CaptureConfig{HTML: true}})
		}).
		Build()

	require.NoError(t, err)
	require.Len(t, def.BeforeAll, 2)
	require.Len(t, def.AfterAll, 1)
	require.Len(t, def.Steps, 1)
}

func TestBuildRejectsInvalidDefinition(t *testing.T) {
	_, err := New("", "").Build()
	require.Error(t, err)
}

func TestFromDefinitionClonesAndExtends(t *testing.T) {
	base := oracle.TestDefinition{ID: "t1", Name: "base", Steps: []oracle.TestStep{{ID: "s1", Kind: oracle.StepNavigate, URL: "https://example.com"}}}

	def, err := FromDefinition(base).Click("click-1", "#btn").Build()
	require.NoError(t, err)
	require.Len(t, def.Steps, 2)
}
