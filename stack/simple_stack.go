package stack

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecr"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/samber/lo"

	"recruitment-infra/config"
	"recruitment-infra/lib/cdklogger"
	"recruitment-infra/lib/constructs/alb"
	"recruitment-infra/lib/constructs/database"
	"recruitment-infra/lib/constructs/ecs"
	"recruitment-infra/lib/resource"
)

// SimpleStackBaseName prefixes the minimal stack name, e.g. "RecruitmentSimple-Dev".
const SimpleStackBaseName = "RecruitmentSimple"

type SimpleRecruitmentStackProps struct {
	awscdk.StackProps
	Config *config.EnvironmentConfig
	Deploy config.DeployVariables
}

// SimpleRecruitmentStack is the minimal deployment: one frontend instance behind an
// ALB, a database and an empty ECS cluster for later services.
type SimpleRecruitmentStack struct {
	awscdk.Stack
	Config *config.EnvironmentConfig

	Vpc        awsec2.Vpc
	Database   *database.Database
	Cluster    awsecs.Cluster
	Repository awsecr.Repository
	Frontend   awsec2.Instance
	Alb        *alb.Alb
}

func NewSimpleRecruitmentStack(scope constructs.Construct, id string, props *SimpleRecruitmentStackProps) *SimpleRecruitmentStack {
	stack := awscdk.NewStack(scope, jsii.String(id), &props.StackProps)
	cfg := props.Config

	// Create VPC without NAT; the frontend lives in the public subnets
	vpc := awsec2.NewVpc(stack, jsii.String("Vpc"), &awsec2.VpcProps{
		VpcName:     jsii.String(resource.Name(cfg.Name, "simple-vpc")),
		MaxAzs:      jsii.Number(2),
		NatGateways: jsii.Number(0),
		SubnetConfiguration: &[]*awsec2.SubnetConfiguration{
			{
				CidrMask:   jsii.Number(24),
				Name:       jsii.String("Public"),
				SubnetType: awsec2.SubnetType_PUBLIC,
			},
			{
				CidrMask:   jsii.Number(24),
				Name:       jsii.String("Isolated"),
				SubnetType: awsec2.SubnetType_PRIVATE_ISOLATED,
			},
		},
	})

	// Create database
	db := database.NewDatabase(stack, "Database", &database.DatabaseProps{
		Config: cfg,
		Vpc:    vpc,
	})

	// Create ECS cluster
	cluster := ecs.NewCluster(stack, "Cluster", cfg, vpc)

	// Create frontend image repository
	repository := awsecr.NewRepository(stack, jsii.String("FrontendRepository"), &awsecr.RepositoryProps{
		RepositoryName:  jsii.String(resource.Name(cfg.Name, "frontend")),
		ImageScanOnPush: jsii.Bool(true),
		RemovalPolicy:   cfg.RemovalPolicy(),
		EmptyOnDelete:   jsii.Bool(!cfg.IsProd()),
	})

	frontend := createFrontendInstance(stack, cfg, props.Deploy, vpc, db, repository)
	db.AllowFrom(frontend, "Frontend instance")

	// Create ALB in front of the instance
	lb := alb.NewAlb(stack, "Alb", &alb.AlbProps{
		Config:          cfg,
		Vpc:             vpc,
		Instances:       []awsec2.Instance{frontend},
		TargetPort:      cfg.Ecs.ContainerPort,
		HealthCheckPath: "/",
	})

	output := func(id, description string, value *string) {
		awscdk.NewCfnOutput(stack, jsii.String(id), &awscdk.CfnOutputProps{
			Value:       value,
			Description: jsii.String(description),
			ExportName:  jsii.String(config.StackName(SimpleStackBaseName, cfg.Name) + "-" + id),
		})
	}
	output("LoadBalancerURL", "Public URL of the frontend load balancer",
		jsii.String(fmt.Sprintf("http://%s", *lb.LoadBalancer.LoadBalancerDnsName())))
	output("DatabaseEndpoint", "PostgreSQL writer endpoint", db.Endpoint())
	output("DatabaseSecretARN", "PostgreSQL credentials secret", db.Secret.SecretArn())
	output("ECSClusterName", "ECS cluster", cluster.ClusterName())
	output("FrontendInstanceId", "Frontend EC2 instance", frontend.InstanceId())
	output("ECRRepositoryURI", "Frontend image repository", repository.RepositoryUri())

	resource.Tag(stack, cfg.Name)

	return &SimpleRecruitmentStack{
		Stack:      stack,
		Config:     cfg,
		Vpc:        vpc,
		Database:   db,
		Cluster:    cluster,
		Repository: repository,
		Frontend:   frontend,
		Alb:        lb,
	}
}

// createFrontendInstance creates the Amazon Linux 2023 host running the frontend container
func createFrontendInstance(stack awscdk.Stack, cfg *config.EnvironmentConfig, deploy config.DeployVariables, vpc awsec2.IVpc, db *database.Database, repository awsecr.Repository) awsec2.Instance {
	role := awsiam.NewRole(stack, jsii.String("FrontendRole"), &awsiam.RoleProps{
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("ec2.amazonaws.com"), nil),
		ManagedPolicies: &[]awsiam.IManagedPolicy{
			awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("AmazonSSMManagedInstanceCore")),
		},
	})
	db.Secret.GrantRead(role, nil)
	repository.GrantPull(role)

	script, err := RenderFrontendUserData(FrontendUserData{
		Environment:       string(cfg.Name),
		NodeEnv:           lo.Ternary(cfg.IsDev(), "development", "production"),
		Region:            *stack.Region(),
		Port:              cfg.Ecs.ContainerPort,
		ContainerName:     ecs.ContainerName,
		Registry:          fmt.Sprintf("%s.dkr.ecr.%s.%s", *stack.Account(), *stack.Region(), *stack.UrlSuffix()),
		Repository:        *repository.RepositoryUri(),
		ImageTag:          deploy.ImageTag,
		DatabaseHost:      *db.Endpoint(),
		DatabasePort:      database.Port,
		DatabaseName:      db.DatabaseName,
		DatabaseSecretArn: *db.Secret.SecretArn(),
		Extra: map[string]string{
			"parameter_prefix": resource.ParameterPrefix(cfg.Name),
		},
	})
	if err != nil {
		panic(err)
	}

	userData := awsec2.UserData_ForLinux(nil)
	userData.AddCommands(jsii.String(script))

	instanceSize := lo.Ternary(cfg.IsDev(), awsec2.InstanceSize_MICRO, awsec2.InstanceSize_SMALL)
	if cfg.IsDev() {
		cdklogger.LogInfo(stack, "Frontend", "using t3.micro frontend instance for %s", cfg.Name)
	}

	return awsec2.NewInstance(stack, jsii.String("Frontend"), &awsec2.InstanceProps{
		InstanceName: jsii.String(resource.Name(cfg.Name, "frontend")),
		InstanceType: awsec2.InstanceType_Of(awsec2.InstanceClass_T3, instanceSize),
		MachineImage: awsec2.MachineImage_LatestAmazonLinux2023(nil),
		Vpc:          vpc,
		VpcSubnets: &awsec2.SubnetSelection{
			SubnetType: awsec2.SubnetType_PUBLIC,
		},
		Role:               role,
		UserData:           userData,
		RequireImdsv2:      jsii.Bool(true),
		DetailedMonitoring: jsii.Bool(cfg.Monitoring.EnableDetailedMonitoring),
		BlockDevices: &[]*awsec2.BlockDevice{
			{
				DeviceName: jsii.String("/dev/xvda"),
				Volume: awsec2.BlockDeviceVolume_Ebs(jsii.Number(20), &awsec2.EbsDeviceOptions{
					VolumeType:          awsec2.EbsDeviceVolumeType_GP3,
					DeleteOnTermination: jsii.Bool(true),
					Encrypted:           jsii.Bool(true),
				}),
			},
		},
	})
}
