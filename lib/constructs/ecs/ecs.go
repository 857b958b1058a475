// Package ecs runs the recruitment web application on Fargate.
package ecs

import (
	"fmt"
	"strconv"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapplicationautoscaling"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecr"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssecretsmanager"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/samber/lo"

	"recruitment-infra/config"
	"recruitment-infra/lib/resource"
)

const (
	ContainerName = "web"
	// DefaultImageTag is deployed when EcsProps.ImageTag is empty.
	DefaultImageTag = "latest"
)

// EcsProps holds inputs for NewEcs. Config and Vpc are required.
type EcsProps struct {
	Config *config.EnvironmentConfig
	Vpc    awsec2.IVpc
	// Cluster reuses an existing cluster instead of creating one.
	Cluster  awsecs.ICluster
	ImageTag string
	// DatabaseSecret is injected as DATABASE_USERNAME/DATABASE_PASSWORD and granted to the task.
	DatabaseSecret awssecretsmanager.ISecret
	// Environment is merged over the default container environment.
	Environment map[string]*string
}

// Ecs is the Fargate service with its image repository, roles and logs.
type Ecs struct {
	constructs.Construct

	Cluster        awsecs.ICluster
	Repository     awsecr.Repository
	LogGroup       awslogs.LogGroup
	TaskRole       awsiam.Role
	ExecutionRole  awsiam.Role
	TaskDefinition awsecs.FargateTaskDefinition
	Container      awsecs.ContainerDefinition
	Service        awsecs.FargateService
	SecurityGroup  awsec2.SecurityGroup
	Scaling        awsecs.ScalableTaskCount
}

// NewEcs declares the cluster, repository, task definition and auto-scaled service.
// The service is not attached to a load balancer here.
func NewEcs(scope constructs.Construct, id string, props *EcsProps) *Ecs {
	node := constructs.NewConstruct(scope, jsii.String(id))
	cfg := props.Config
	ecsCfg := cfg.Ecs
	e := &Ecs{Construct: node}

	// Cluster
	e.Cluster = props.Cluster
	if e.Cluster == nil {
		e.Cluster = NewCluster(node, "Cluster", cfg, props.Vpc)
	}

	// Image repository
	e.Repository = awsecr.NewRepository(node, jsii.String("Repository"), &awsecr.RepositoryProps{
		RepositoryName:     jsii.String(resource.Name(cfg.Name, "web")),
		ImageScanOnPush:    jsii.Bool(true),
		ImageTagMutability: awsecr.TagMutability_MUTABLE,
		LifecycleRules: &[]*awsecr.LifecycleRule{
			{
				Description:   jsii.String("Keep the last 20 images"),
				MaxImageCount: jsii.Number(20),
			},
		},
		RemovalPolicy: cfg.RemovalPolicy(),
		EmptyOnDelete: jsii.Bool(!cfg.IsProd()),
	})

	e.LogGroup = awslogs.NewLogGroup(node, jsii.String("LogGroup"), &awslogs.LogGroupProps{
		LogGroupName:  jsii.String(fmt.Sprintf("/ecs/%s", resource.Name(cfg.Name, "web"))),
		Retention:     resource.LogRetention(ecsCfg.LogRetentionDays),
		RemovalPolicy: cfg.RemovalPolicy(),
	})

	// Roles
	e.ExecutionRole = awsiam.NewRole(node, jsii.String("ExecutionRole"), &awsiam.RoleProps{
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("ecs-tasks.amazonaws.com"), nil),
		ManagedPolicies: &[]awsiam.IManagedPolicy{
			awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("service-role/AmazonECSTaskExecutionRolePolicy")),
		},
	})
	e.TaskRole = awsiam.NewRole(node, jsii.String("TaskRole"), &awsiam.RoleProps{
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("ecs-tasks.amazonaws.com"), nil),
	})
	addTaskPolicies(node, e.TaskRole, cfg)

	// Task definition and container
	e.TaskDefinition = awsecs.NewFargateTaskDefinition(node, jsii.String("TaskDefinition"), &awsecs.FargateTaskDefinitionProps{
		Family:         jsii.String(resource.Name(cfg.Name, "web")),
		Cpu:            jsii.Number(ecsCfg.Cpu),
		MemoryLimitMiB: jsii.Number(ecsCfg.MemoryLimitMiB),
		TaskRole:       e.TaskRole,
		ExecutionRole:  e.ExecutionRole,
		RuntimePlatform: &awsecs.RuntimePlatform{
			OperatingSystemFamily: awsecs.OperatingSystemFamily_LINUX(),
			CpuArchitecture:       awsecs.CpuArchitecture_X86_64(),
		},
	})

	containerOpts := &awsecs.ContainerDefinitionOptions{
		ContainerName: jsii.String(ContainerName),
		Image:         awsecs.ContainerImage_FromEcrRepository(e.Repository, jsii.String(lo.CoalesceOrEmpty(props.ImageTag, DefaultImageTag))),
		Logging: awsecs.LogDrivers_AwsLogs(&awsecs.AwsLogDriverProps{
			StreamPrefix: jsii.String(ContainerName),
			LogGroup:     e.LogGroup,
		}),
		Environment: containerEnvironment(cfg, props.Environment),
		PortMappings: &[]*awsecs.PortMapping{
			{
				ContainerPort: jsii.Number(ecsCfg.ContainerPort),
				Protocol:      awsecs.Protocol_TCP,
			},
		},
		Essential: jsii.Bool(true),
	}
	if props.DatabaseSecret != nil {
		props.DatabaseSecret.GrantRead(e.TaskRole, nil)
		containerOpts.Secrets = &map[string]awsecs.Secret{
			"DATABASE_USERNAME": awsecs.Secret_FromSecretsManager(props.DatabaseSecret, jsii.String("username")),
			"DATABASE_PASSWORD": awsecs.Secret_FromSecretsManager(props.DatabaseSecret, jsii.String("password")),
		}
	}
	e.Container = e.TaskDefinition.AddContainer(jsii.String("Container"), containerOpts)

	// Service
	e.SecurityGroup = awsec2.NewSecurityGroup(node, jsii.String("ServiceSG"), &awsec2.SecurityGroupProps{
		Vpc:              props.Vpc,
		Description:      jsii.String("Recruitment web tasks"),
		AllowAllOutbound: jsii.Bool(true),
	})

	e.Service = awsecs.NewFargateService(node, jsii.String("Service"), &awsecs.FargateServiceProps{
		ServiceName:    jsii.String(resource.Name(cfg.Name, "web")),
		Cluster:        e.Cluster,
		TaskDefinition: e.TaskDefinition,
		DesiredCount:   jsii.Number(ecsCfg.DesiredCount),
		VpcSubnets: &awsec2.SubnetSelection{
			SubnetType: awsec2.SubnetType_PRIVATE_WITH_EGRESS,
		},
		AssignPublicIp:         jsii.Bool(false),
		SecurityGroups:         &[]awsec2.ISecurityGroup{e.SecurityGroup},
		MinHealthyPercent:      jsii.Number(100),
		MaxHealthyPercent:      jsii.Number(200),
		HealthCheckGracePeriod: awscdk.Duration_Seconds(jsii.Number(ecsCfg.HealthCheckGracePeriodSec)),
		CircuitBreaker: &awsecs.DeploymentCircuitBreaker{
			Enable:   jsii.Bool(true),
			Rollback: jsii.Bool(true),
		},
		PropagateTags: awsecs.PropagatedTagSource_SERVICE,
	})

	// Auto scaling
	e.Scaling = e.Service.AutoScaleTaskCount(&awsapplicationautoscaling.EnableScalingProps{
		MinCapacity: jsii.Number(ecsCfg.MinCapacity),
		MaxCapacity: jsii.Number(ecsCfg.MaxCapacity),
	})
	e.Scaling.ScaleOnCpuUtilization(jsii.String("CpuScaling"), &awsecs.CpuUtilizationScalingProps{
		TargetUtilizationPercent: jsii.Number(ecsCfg.CpuTargetUtilization),
		ScaleInCooldown:          awscdk.Duration_Seconds(jsii.Number(300)),
		ScaleOutCooldown:         awscdk.Duration_Seconds(jsii.Number(60)),
	})
	e.Scaling.ScaleOnMemoryUtilization(jsii.String("MemoryScaling"), &awsecs.MemoryUtilizationScalingProps{
		TargetUtilizationPercent: jsii.Number(ecsCfg.MemoryTargetUtilization),
		ScaleInCooldown:          awscdk.Duration_Seconds(jsii.Number(300)),
		ScaleOutCooldown:         awscdk.Duration_Seconds(jsii.Number(60)),
	})

	resource.TagComponent(node, "web")

	return e
}

// NewCluster declares an ECS cluster with container insights as configured.
func NewCluster(scope constructs.Construct, id string, cfg *config.EnvironmentConfig, vpc awsec2.IVpc) awsecs.Cluster {
	return awsecs.NewCluster(scope, jsii.String(id), &awsecs.ClusterProps{
		ClusterName: jsii.String(resource.Name(cfg.Name, "cluster")),
		Vpc:         vpc,
		ContainerInsightsV2: lo.Ternary(cfg.Ecs.EnableContainerInsights,
			awsecs.ContainerInsights_ENABLED,
			awsecs.ContainerInsights_DISABLED,
		),
	})
}

// addTaskPolicies lets the application read its parameters and publish custom metrics.
func addTaskPolicies(scope constructs.Construct, role awsiam.Role, cfg *config.EnvironmentConfig) {
	stack := awscdk.Stack_Of(scope)

	role.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Sid:    jsii.String("ReadParameters"),
		Effect: awsiam.Effect_ALLOW,
		Actions: jsii.Strings(
			"ssm:GetParameter",
			"ssm:GetParameters",
			"ssm:GetParametersByPath",
		),
		Resources: jsii.Strings(
			*stack.FormatArn(&awscdk.ArnComponents{
				Service:      jsii.String("ssm"),
				Resource:     jsii.String("parameter"),
				ResourceName: jsii.String(resource.ParameterPrefix(cfg.Name)[1:] + "*"),
			}),
		),
	}))

	role.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Sid:       jsii.String("PublishMetrics"),
		Effect:    awsiam.Effect_ALLOW,
		Actions:   jsii.Strings("cloudwatch:PutMetricData"),
		Resources: jsii.Strings("*"),
		Conditions: &map[string]interface{}{
			"StringEquals": map[string]interface{}{
				"cloudwatch:namespace": resource.MetricsNamespace,
			},
		},
	}))
}

func containerEnvironment(cfg *config.EnvironmentConfig, extra map[string]*string) *map[string]*string {
	base := map[string]*string{
		"NODE_ENV":          jsii.String("production"),
		"APP_ENV":           jsii.String(string(cfg.Name)),
		"PORT":              jsii.String(strconv.Itoa(cfg.Ecs.ContainerPort)),
		"PARAMETER_PREFIX":  jsii.String(resource.ParameterPrefix(cfg.Name)),
		"METRICS_NAMESPACE": jsii.String(resource.MetricsNamespace),
		"LOG_LEVEL":         jsii.String(lo.Ternary(cfg.IsProd(), "info", "debug")),
	}
	merged := lo.Assign(base, extra)
	return &merged
}
