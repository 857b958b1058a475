package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitment-infra/config"
)

func TestLoadDeployVariables(t *testing.T) {
	t.Setenv("CDK_DEPLOY_ACCOUNT", "")
	t.Setenv("CDK_DEPLOY_REGION", "")
	t.Setenv("CDK_DEFAULT_ACCOUNT", "111111111111")
	t.Setenv("CDK_DEFAULT_REGION", "eu-west-1")
	t.Setenv("DOMAIN_NAME", "jobs.example.com")
	t.Setenv("HOSTED_ZONE_ID", "Z123")
	t.Setenv("IMAGE_TAG", "sha-abc")

	vars, err := config.LoadDeployVariables()
	require.NoError(t, err)

	assert.Equal(t, "sha-abc", vars.ImageTag)
	assert.True(t, vars.HasDomain())

	env := vars.AwsEnvironment()
	require.NotNil(t, env)
	assert.Equal(t, "111111111111", *env.Account)
	assert.Equal(t, "eu-west-1", *env.Region)
}

func TestAwsEnvironmentPrefersDeployVariables(t *testing.T) {
	vars := config.DeployVariables{
		DeployAccount:  "222222222222",
		DeployRegion:   "us-west-2",
		DefaultAccount: "111111111111",
		DefaultRegion:  "eu-west-1",
	}
	env := vars.AwsEnvironment()
	require.NotNil(t, env)
	assert.Equal(t, "222222222222", *env.Account)
	assert.Equal(t, "us-west-2", *env.Region)
}

func TestAwsEnvironmentIncomplete(t *testing.T) {
	assert.Nil(t, config.DeployVariables{DeployAccount: "222222222222"}.AwsEnvironment())
	assert.Nil(t, config.DeployVariables{}.AwsEnvironment())
}

func TestHasDomainNeedsZone(t *testing.T) {
	assert.False(t, config.DeployVariables{DomainName: "jobs.example.com"}.HasDomain())
}
