package main

import (
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitment-infra/config"
)

func newTestApp(context map[string]interface{}) awscdk.App {
	context["aws:cdk:bundling-stacks"] = []string{}
	return awscdk.NewApp(&awscdk.AppProps{Context: &context})
}

func TestNewStackVariants(t *testing.T) {
	tests := []struct {
		name    string
		context map[string]interface{}
		want    string
	}{
		{"defaults", map[string]interface{}{}, "Recruitment-Dev"},
		{"prod", map[string]interface{}{config.ContextEnvironment: "prod"}, "Recruitment-Prod"},
		{"simple", map[string]interface{}{config.ContextEnvironment: "staging", config.ContextStackVariant: "simple"}, "RecruitmentSimple-Staging"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := newStack(newTestApp(tt.context), config.DeployVariables{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, *s.StackName())
		})
	}
}

func TestNewStackUnknownEnvironment(t *testing.T) {
	_, err := newStack(newTestApp(map[string]interface{}{config.ContextEnvironment: "qa"}), config.DeployVariables{})
	require.ErrorIs(t, err, config.ErrUnknownEnvironment)
	assert.EqualError(t, err, "no configuration found for environment: qa")
}

func TestNewStackInvalidVariant(t *testing.T) {
	app := newTestApp(map[string]interface{}{config.ContextStackVariant: "tiny"})
	_, err := newStack(app, config.DeployVariables{})
	require.ErrorIs(t, err, config.ErrInvalidStackVariant)
	assert.Empty(t, *app.Node().Children())
}

func TestNewStackMissingOverrides(t *testing.T) {
	app := newTestApp(map[string]interface{}{config.ContextConfigOverrides: "does-not-exist.toml"})
	_, err := newStack(app, config.DeployVariables{})
	require.Error(t, err)
	assert.Nil(t, app.Node().TryFindChild(jsii.String("Recruitment-Dev")))
}
