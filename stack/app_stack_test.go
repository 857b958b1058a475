package stack_test

import (
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/assertions"
	"github.com/aws/jsii-runtime-go"
	"github.com/stretchr/testify/assert"

	"recruitment-infra/config"
	"recruitment-infra/lib/resource"
	"recruitment-infra/lib/testutil"
	"recruitment-infra/stack"
)

func newRecruitmentStack(t *testing.T, env config.Environment, deploy config.DeployVariables) (*stack.RecruitmentStack, assertions.Template) {
	t.Helper()
	s := stack.NewRecruitmentStack(testutil.NewApp(), config.StackName(stack.StackBaseName, env), &stack.RecruitmentStackProps{
		StackProps: awscdk.StackProps{
			Env: &awscdk.Environment{
				Account: jsii.String(testutil.Account),
				Region:  jsii.String(testutil.Region),
			},
		},
		Config: testutil.Config(t, env),
		Deploy: deploy,
	})
	return s, assertions.Template_FromStack(s.Stack, nil)
}

func TestRecruitmentStackResourcesPerEnvironment(t *testing.T) {
	tests := []struct {
		env          config.Environment
		dbInstances  int
		webAcls      int
		distribution int
		flowLogs     int
		natGateways  int
		parameters   int
	}{
		{config.EnvDev, 1, 0, 0, 0, 1, 10},
		{config.EnvStaging, 1, 1, 1, 0, 1, 13},
		{config.EnvProd, 2, 1, 1, 1, 2, 13},
	}

	for _, tt := range tests {
		t.Run(string(tt.env), func(t *testing.T) {
			s, template := newRecruitmentStack(t, tt.env, config.DeployVariables{})

			template.ResourceCountIs(jsii.String("AWS::EC2::VPC"), jsii.Number(1))
			template.ResourceCountIs(jsii.String("AWS::EC2::NatGateway"), jsii.Number(tt.natGateways))
			template.ResourceCountIs(jsii.String("AWS::EC2::FlowLog"), jsii.Number(tt.flowLogs))
			template.ResourceCountIs(jsii.String("AWS::EC2::VPCEndpoint"), jsii.Number(1))
			template.ResourceCountIs(jsii.String("AWS::RDS::DBInstance"), jsii.Number(tt.dbInstances))
			template.ResourceCountIs(jsii.String("AWS::ElastiCache::ReplicationGroup"), jsii.Number(1))
			template.ResourceCountIs(jsii.String("AWS::ECS::Service"), jsii.Number(1))
			template.ResourceCountIs(jsii.String("AWS::ElasticLoadBalancingV2::LoadBalancer"), jsii.Number(1))
			template.ResourceCountIs(jsii.String("AWS::WAFv2::WebACL"), jsii.Number(tt.webAcls))
			template.ResourceCountIs(jsii.String("AWS::WAFv2::WebACLAssociation"), jsii.Number(tt.webAcls))
			template.ResourceCountIs(jsii.String("AWS::CloudFront::Distribution"), jsii.Number(tt.distribution))
			template.ResourceCountIs(jsii.String("AWS::SSM::Parameter"), jsii.Number(tt.parameters))
			template.ResourceCountIs(jsii.String("AWS::SNS::Topic"), jsii.Number(1))

			assert.Equal(t, tt.webAcls == 1, s.Waf != nil)
			assert.Equal(t, tt.distribution == 1, s.CloudFront != nil)
			assert.NotNil(t, s.Database.Bootstrap)
		})
	}
}

func TestRecruitmentStackWiresServiceEnvironment(t *testing.T) {
	_, template := newRecruitmentStack(t, config.EnvStaging, config.DeployVariables{})

	for _, name := range []string{"DATABASE_HOST", "DATABASE_NAME", "REDIS_HOST", "REDIS_PORT"} {
		template.HasResourceProperties(jsii.String("AWS::ECS::TaskDefinition"), map[string]interface{}{
			"ContainerDefinitions": assertions.Match_ArrayWith(&[]interface{}{
				assertions.Match_ObjectLike(&map[string]interface{}{
					"Environment": assertions.Match_ArrayWith(&[]interface{}{
						assertions.Match_ObjectLike(&map[string]interface{}{"Name": name}),
					}),
				}),
			}),
		})
	}

	template.HasResourceProperties(jsii.String("AWS::EC2::SecurityGroupIngress"), map[string]interface{}{
		"FromPort":    5432,
		"ToPort":      5432,
		"Description": "Recruitment web tasks",
	})
	template.HasResourceProperties(jsii.String("AWS::EC2::SecurityGroupIngress"), map[string]interface{}{
		"FromPort":    6379,
		"ToPort":      6379,
		"Description": "Recruitment web tasks",
	})
}

func TestRecruitmentStackParameters(t *testing.T) {
	_, template := newRecruitmentStack(t, config.EnvProd, config.DeployVariables{})

	for _, path := range []string{
		resource.ParameterPath(config.EnvProd, "database", "endpoint"),
		resource.ParameterPath(config.EnvProd, "redis", "endpoint"),
		resource.ParameterPath(config.EnvProd, "deployment", "ecr-repository-uri"),
		resource.ParameterPath(config.EnvProd, "frontend", "thank-you-url"),
	} {
		template.HasResourceProperties(jsii.String("AWS::SSM::Parameter"), map[string]interface{}{
			"Name": path,
			"Type": "String",
		})
	}
}

func TestRecruitmentStackOutputs(t *testing.T) {
	_, template := newRecruitmentStack(t, config.EnvDev, config.DeployVariables{})

	for _, id := range []string{"LoadBalancerURL", "DatabaseEndpoint", "RedisEndpoint", "ECRRepositoryURI", "ECSClusterName", "AlarmTopicARN"} {
		template.HasOutput(jsii.String(id), map[string]interface{}{
			"Export": map[string]interface{}{"Name": "Recruitment-Dev-" + id},
		})
	}

	outputs := template.FindOutputs(jsii.String("CloudFrontDistributionID"), nil)
	assert.Empty(t, *outputs)
	outputs = template.FindOutputs(jsii.String("WebACLARN"), nil)
	assert.Empty(t, *outputs)
}

func TestRecruitmentStackWithDomain(t *testing.T) {
	_, template := newRecruitmentStack(t, config.EnvProd, config.DeployVariables{
		DomainName:         "jobs.example.com",
		HostedZoneID:       "Z0123456789",
		EdgeCertificateArn: "arn:aws:acm:us-east-1:123456789012:certificate/edge",
	})

	template.ResourceCountIs(jsii.String("AWS::CertificateManager::Certificate"), jsii.Number(1))
	template.HasResourceProperties(jsii.String("AWS::Route53::RecordSet"), map[string]interface{}{
		"Name": assertions.Match_StringLikeRegexp(jsii.String(`^origin\.jobs\.example\.com`)),
		"Type": "A",
	})
	template.HasResourceProperties(jsii.String("AWS::CloudFront::Distribution"), map[string]interface{}{
		"DistributionConfig": assertions.Match_ObjectLike(&map[string]interface{}{
			"Aliases": []interface{}{"jobs.example.com"},
			"Origins": assertions.Match_ArrayWith(&[]interface{}{
				assertions.Match_ObjectLike(&map[string]interface{}{
					"DomainName": "origin.jobs.example.com",
				}),
			}),
		}),
	})
}

func TestRecruitmentStackTags(t *testing.T) {
	_, template := newRecruitmentStack(t, config.EnvStaging, config.DeployVariables{})

	template.HasResourceProperties(jsii.String("AWS::EC2::VPC"), map[string]interface{}{
		"Tags": assertions.Match_ArrayWith(&[]interface{}{
			map[string]interface{}{"Key": resource.EnvironmentTagKey, "Value": "staging"},
		}),
	})
	template.HasResourceProperties(jsii.String("AWS::EC2::VPC"), map[string]interface{}{
		"Tags": assertions.Match_ArrayWith(&[]interface{}{
			map[string]interface{}{"Key": resource.ProjectTagKey, "Value": resource.ProjectName},
		}),
	})
}
