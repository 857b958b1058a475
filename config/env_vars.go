package config

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/caarlos0/env/v11"
)

// DeployVariables are read from the process environment of `cdk synth`/`cdk deploy`.
type DeployVariables struct {
	DeployAccount  string `env:"CDK_DEPLOY_ACCOUNT"`
	DeployRegion   string `env:"CDK_DEPLOY_REGION"`
	DefaultAccount string `env:"CDK_DEFAULT_ACCOUNT"`
	DefaultRegion  string `env:"CDK_DEFAULT_REGION"`

	// AlarmEmail receives CloudWatch alarm notifications; empty disables the subscription.
	AlarmEmail string `env:"ALARM_EMAIL"`
	// DomainName and HostedZoneID enable DNS records and a DNS-validated certificate.
	DomainName   string `env:"DOMAIN_NAME"`
	HostedZoneID string `env:"HOSTED_ZONE_ID"`
	// CertificateArn is an existing regional ACM certificate for the load balancer.
	CertificateArn string `env:"CERTIFICATE_ARN"`
	// EdgeCertificateArn is an existing us-east-1 ACM certificate for CloudFront.
	EdgeCertificateArn string `env:"EDGE_CERTIFICATE_ARN"`

	ImageTag      string `env:"IMAGE_TAG" envDefault:"latest"`
	OverridesPath string `env:"CONFIG_OVERRIDES"`
}

// LoadDeployVariables parses DeployVariables from the process environment.
func LoadDeployVariables() (DeployVariables, error) {
	vars, err := env.ParseAs[DeployVariables]()
	if err != nil {
		return DeployVariables{}, fmt.Errorf("parse deploy variables: %w", err)
	}
	return vars, nil
}

// GetEnvironmentVariables parses T from the environment only while the scope's
// stack is being synthesized; otherwise it returns the zero value.
func GetEnvironmentVariables[T any](scope constructs.Construct) T {
	var envObj T

	if !IsStackInSynthesis(scope) {
		return envObj
	}

	if err := env.Parse(&envObj); err != nil {
		panic(err)
	}

	return envObj
}

// AwsEnvironment determines the account and region the stacks deploy to.
// CDK_DEPLOY_* wins over the CLI-derived CDK_DEFAULT_* pair. With neither set the
// stacks stay environment-agnostic.
func (v DeployVariables) AwsEnvironment() *awscdk.Environment {
	account, region := v.DeployAccount, v.DeployRegion
	if account == "" || region == "" {
		account, region = v.DefaultAccount, v.DefaultRegion
	}
	if account == "" || region == "" {
		return nil
	}
	return &awscdk.Environment{
		Account: jsii.String(account),
		Region:  jsii.String(region),
	}
}

// HasDomain reports whether both a domain name and its hosted zone are configured.
func (v DeployVariables) HasDomain() bool {
	return v.DomainName != "" && v.HostedZoneID != ""
}
