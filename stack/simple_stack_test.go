package stack_test

import (
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/assertions"
	"github.com/aws/jsii-runtime-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitment-infra/config"
	"recruitment-infra/lib/testutil"
	"recruitment-infra/stack"
)

func newSimpleStack(t *testing.T, env config.Environment) (*stack.SimpleRecruitmentStack, assertions.Template) {
	t.Helper()
	s := stack.NewSimpleRecruitmentStack(testutil.NewApp(), config.StackName(stack.SimpleStackBaseName, env), &stack.SimpleRecruitmentStackProps{
		StackProps: awscdk.StackProps{
			Env: &awscdk.Environment{
				Account: jsii.String(testutil.Account),
				Region:  jsii.String(testutil.Region),
			},
		},
		Config: testutil.Config(t, env),
		Deploy: config.DeployVariables{ImageTag: "v1"},
	})
	return s, assertions.Template_FromStack(s.Stack, nil)
}

func TestSimpleRecruitmentStack(t *testing.T) {
	s, template := newSimpleStack(t, config.EnvDev)

	template.ResourceCountIs(jsii.String("AWS::EC2::VPC"), jsii.Number(1))
	template.ResourceCountIs(jsii.String("AWS::EC2::NatGateway"), jsii.Number(0))
	template.ResourceCountIs(jsii.String("AWS::RDS::DBInstance"), jsii.Number(1))
	template.ResourceCountIs(jsii.String("AWS::ECS::Cluster"), jsii.Number(1))
	template.ResourceCountIs(jsii.String("AWS::ECS::Service"), jsii.Number(0))
	template.ResourceCountIs(jsii.String("AWS::EC2::Instance"), jsii.Number(1))
	template.ResourceCountIs(jsii.String("AWS::ElasticLoadBalancingV2::LoadBalancer"), jsii.Number(1))
	template.ResourceCountIs(jsii.String("AWS::WAFv2::WebACL"), jsii.Number(0))
	template.ResourceCountIs(jsii.String("AWS::CloudFront::Distribution"), jsii.Number(0))

	assert.Nil(t, s.Database.Bootstrap)

	template.HasResourceProperties(jsii.String("AWS::EC2::Instance"), map[string]interface{}{
		"InstanceType": "t3.micro",
		"UserData":     assertions.Match_AnyValue(),
	})
	template.HasResourceProperties(jsii.String("AWS::ElasticLoadBalancingV2::TargetGroup"), map[string]interface{}{
		"Port":       3000,
		"TargetType": "instance",
	})
	template.HasResourceProperties(jsii.String("AWS::EC2::SecurityGroupIngress"), map[string]interface{}{
		"FromPort":    5432,
		"Description": "Frontend instance",
	})

	template.HasOutput(jsii.String("FrontendInstanceId"), map[string]interface{}{
		"Export": map[string]interface{}{"Name": "RecruitmentSimple-Dev-FrontendInstanceId"},
	})
}

func TestSimpleRecruitmentStackInstanceSize(t *testing.T) {
	_, template := newSimpleStack(t, config.EnvStaging)

	template.HasResourceProperties(jsii.String("AWS::EC2::Instance"), map[string]interface{}{
		"InstanceType": "t3.small",
	})
}

func TestRenderFrontendUserData(t *testing.T) {
	script, err := stack.RenderFrontendUserData(stack.FrontendUserData{
		Environment:       "dev",
		NodeEnv:           "development",
		Region:            "eu-west-1",
		Port:              3000,
		ContainerName:     "web",
		Registry:          "123456789012.dkr.ecr.eu-west-1.amazonaws.com",
		Repository:        "123456789012.dkr.ecr.eu-west-1.amazonaws.com/recruitment-dev-frontend",
		DatabaseHost:      "db.internal",
		DatabasePort:      5432,
		DatabaseName:      "recruitment",
		DatabaseSecretArn: "arn:aws:secretsmanager:eu-west-1:123456789012:secret:db",
		Extra:             map[string]string{"parameter_prefix": "/recruitment/dev/"},
	})
	require.NoError(t, err)

	assert.Contains(t, script, `--secret-id "arn:aws:secretsmanager:eu-west-1:123456789012:secret:db"`)
	assert.Contains(t, script, "PORT=3000\n")
	assert.Contains(t, script, "DATABASE_HOST=db.internal\n")
	assert.Contains(t, script, "PARAMETER_PREFIX=/recruitment/dev/\n")
	assert.Contains(t, script, "-p 3000:3000")
	// empty tag falls back to latest
	assert.Contains(t, script, `"123456789012.dkr.ecr.eu-west-1.amazonaws.com/recruitment-dev-frontend:latest"`)
}
