// Package testutil builds the scaffolding shared by construct and stack tests.
package testutil

import (
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/jsii-runtime-go"
	"github.com/stretchr/testify/require"

	"recruitment-infra/config"
)

const (
	Account = "123456789012"
	Region  = "us-east-1"
)

// NewApp returns an app that skips asset bundling so tests never invoke the Go toolchain.
func NewApp() awscdk.App {
	return awscdk.NewApp(&awscdk.AppProps{
		Context: &map[string]interface{}{
			"aws:cdk:bundling-stacks": []string{},
		},
	})
}

// NewStack returns an environment-bound stack inside a fresh NewApp.
func NewStack() awscdk.Stack {
	return awscdk.NewStack(NewApp(), jsii.String("TestStack"), &awscdk.StackProps{
		Env: &awscdk.Environment{
			Account: jsii.String(Account),
			Region:  jsii.String(Region),
		},
	})
}

// NewVpc declares a two-AZ VPC with public, private and isolated subnets.
func NewVpc(stack awscdk.Stack) awsec2.Vpc {
	return awsec2.NewVpc(stack, jsii.String("Vpc"), &awsec2.VpcProps{
		MaxAzs:      jsii.Number(2),
		NatGateways: jsii.Number(1),
		SubnetConfiguration: &[]*awsec2.SubnetConfiguration{
			{Name: jsii.String("public"), SubnetType: awsec2.SubnetType_PUBLIC, CidrMask: jsii.Number(24)},
			{Name: jsii.String("private"), SubnetType: awsec2.SubnetType_PRIVATE_WITH_EGRESS, CidrMask: jsii.Number(24)},
			{Name: jsii.String("isolated"), SubnetType: awsec2.SubnetType_PRIVATE_ISOLATED, CidrMask: jsii.Number(24)},
		},
	})
}

// Config loads the built-in configuration for env and fails the test on error.
func Config(t *testing.T, env config.Environment) *config.EnvironmentConfig {
	t.Helper()
	cfg, err := config.New(string(env))
	require.NoError(t, err)
	return cfg
}
