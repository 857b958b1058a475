// Package stack provides the CDK stacks for the recruitment application infrastructure.
package stack

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsssm"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/samber/lo"

	"recruitment-infra/config"
	"recruitment-infra/lib/cdklogger"
	"recruitment-infra/lib/constructs/cloudfront"
	"recruitment-infra/lib/constructs/database"
	"recruitment-infra/lib/constructs/ecs"
	"recruitment-infra/lib/constructs/loadbalancer"
	"recruitment-infra/lib/constructs/monitoring"
	"recruitment-infra/lib/constructs/redis"
	"recruitment-infra/lib/constructs/waf"
	"recruitment-infra/lib/resource"
)

// StackBaseName prefixes every stack name, e.g. "Recruitment-Prod".
const StackBaseName = "Recruitment"

// RecruitmentStackProps defines the properties for the full recruitment stack.
type RecruitmentStackProps struct {
	awscdk.StackProps
	Config *config.EnvironmentConfig
	Deploy config.DeployVariables
}

// RecruitmentStack is the full deployment: networking, data stores, the Fargate service,
// its edge protection and monitoring.
type RecruitmentStack struct {
	awscdk.Stack
	Config *config.EnvironmentConfig

	Vpc          awsec2.Vpc
	Database     *database.Database
	Redis        *redis.Redis
	Web          *ecs.Ecs
	LoadBalancer *loadbalancer.LoadBalancer
	// Waf and CloudFront are nil when disabled for the environment.
	Waf        *waf.Waf
	CloudFront *cloudfront.CloudFront
	Monitoring *monitoring.Monitoring
}

// Resources holds the common inputs shared across the create* helpers.
type Resources struct {
	Stack  awscdk.Stack
	Config *config.EnvironmentConfig
	Deploy config.DeployVariables
}

// DataResources holds the stateful stores.
type DataResources struct {
	Database *database.Database
	Redis    *redis.Redis
}

// EdgeResources holds everything between the internet and the service.
type EdgeResources struct {
	LoadBalancer *loadbalancer.LoadBalancer
	Waf          *waf.Waf
	CloudFront   *cloudfront.CloudFront
}

// NewRecruitmentStack creates the full recruitment stack for props.Config.
func NewRecruitmentStack(scope constructs.Construct, id string, props *RecruitmentStackProps) *RecruitmentStack {
	stack := awscdk.NewStack(scope, jsii.String(id), &props.StackProps)
	cfg := props.Config

	resources := &Resources{
		Stack:  stack,
		Config: cfg,
		Deploy: props.Deploy,
	}

	vpc := createNetworkingResources(resources)
	data := createDataResources(resources, vpc)
	web := createComputeResources(resources, vpc, data)
	edge := createEdgeResources(resources, vpc, web)
	mon := monitoring.NewMonitoring(stack, "Monitoring", &monitoring.MonitoringProps{
		Config:       cfg,
		AlarmEmail:   props.Deploy.AlarmEmail,
		Service:      web.Service,
		LoadBalancer: edge.LoadBalancer.LoadBalancer,
		TargetGroup:  edge.LoadBalancer.TargetGroup,
		Database:     data.Database.Instance,
	})

	createConfigurationStores(resources, data, web, edge)
	createOutputs(resources, data, web, edge, mon)

	resource.Tag(stack, cfg.Name)

	return &RecruitmentStack{
		Stack:        stack,
		Config:       cfg,
		Vpc:          vpc,
		Database:     data.Database,
		Redis:        data.Redis,
		Web:          web,
		LoadBalancer: edge.LoadBalancer,
		Waf:          edge.Waf,
		CloudFront:   edge.CloudFront,
		Monitoring:   mon,
	}
}

// createNetworkingResources creates the VPC with public, private and isolated tiers
func createNetworkingResources(resources *Resources) awsec2.Vpc {
	cfg := resources.Config

	vpc := awsec2.NewVpc(resources.Stack, jsii.String("Vpc"), &awsec2.VpcProps{
		VpcName:     jsii.String(resource.Name(cfg.Name, "vpc")),
		MaxAzs:      jsii.Number(lo.Ternary(cfg.IsProd(), 3, 2)),
		NatGateways: jsii.Number(cfg.Security.NatGateways),
		SubnetConfiguration: &[]*awsec2.SubnetConfiguration{
			{
				CidrMask:   jsii.Number(24),
				Name:       jsii.String("Public"),
				SubnetType: awsec2.SubnetType_PUBLIC,
			},
			{
				CidrMask:   jsii.Number(22),
				Name:       jsii.String("Private"),
				SubnetType: awsec2.SubnetType_PRIVATE_WITH_EGRESS,
			},
			{
				CidrMask:   jsii.Number(24),
				Name:       jsii.String("Isolated"),
				SubnetType: awsec2.SubnetType_PRIVATE_ISOLATED,
			},
		},
		GatewayEndpoints: &map[string]*awsec2.GatewayVpcEndpointOptions{
			"S3": {Service: awsec2.GatewayVpcEndpointAwsService_S3()},
		},
	})

	if cfg.Security.EnableFlowLogs {
		logGroup := awslogs.NewLogGroup(resources.Stack, jsii.String("FlowLogGroup"), &awslogs.LogGroupProps{
			LogGroupName:  jsii.String(fmt.Sprintf("/vpc/%s", resource.Name(cfg.Name, "flow-logs"))),
			Retention:     resource.LogRetention(cfg.Monitoring.LogRetentionDays),
			RemovalPolicy: cfg.RemovalPolicy(),
		})
		vpc.AddFlowLog(jsii.String("FlowLog"), &awsec2.FlowLogOptions{
			Destination: awsec2.FlowLogDestination_ToCloudWatchLogs(logGroup, nil),
			TrafficType: awsec2.FlowLogTrafficType_ALL,
		})
	}

	return vpc
}

// createDataResources creates the PostgreSQL instance and the Redis replication group
func createDataResources(resources *Resources, vpc awsec2.IVpc) *DataResources {
	cfg := resources.Config

	db := database.NewDatabase(resources.Stack, "Database", &database.DatabaseProps{
		Config: cfg,
		Vpc:    vpc,
		Bootstrap: &database.BootstrapOptions{
			Schemas:    []string{"app", "audit"},
			Extensions: []string{"pgcrypto", "citext"},
			Version:    "1",
		},
	})

	cache := redis.NewRedis(resources.Stack, "Redis", &redis.RedisProps{
		Config: cfg,
		Vpc:    vpc,
	})

	return &DataResources{
		Database: db,
		Redis:    cache,
	}
}

// createComputeResources creates the Fargate service and grants it the data stores
func createComputeResources(resources *Resources, vpc awsec2.IVpc, data *DataResources) *ecs.Ecs {
	cfg := resources.Config

	web := ecs.NewEcs(resources.Stack, "Web", &ecs.EcsProps{
		Config:         cfg,
		Vpc:            vpc,
		ImageTag:       resources.Deploy.ImageTag,
		DatabaseSecret: data.Database.Secret,
		Environment: map[string]*string{
			"DATABASE_HOST":        data.Database.Endpoint(),
			"DATABASE_READER_HOST": data.Database.ReaderEndpoint(),
			"DATABASE_PORT":        jsii.String(fmt.Sprint(database.Port)),
			"DATABASE_NAME":        jsii.String(data.Database.DatabaseName),
			"REDIS_HOST":           data.Redis.Endpoint(),
			"REDIS_PORT":           data.Redis.EndpointPort(),
			"REDIS_TLS":            jsii.String(fmt.Sprint(cfg.Redis.TransitEncryptionEnabled)),
		},
	})

	data.Database.AllowFrom(web.Service, "Recruitment web tasks")
	data.Redis.AllowFrom(web.Service, "Recruitment web tasks")

	return web
}

// createEdgeResources creates the load balancer and, when enabled, WAF and CloudFront
func createEdgeResources(resources *Resources, vpc awsec2.IVpc, web *ecs.Ecs) *EdgeResources {
	cfg := resources.Config
	deploy := resources.Deploy
	edge := &EdgeResources{}

	// With CloudFront in front the apex name belongs to the distribution and the
	// load balancer answers on origin.<domain>.
	recordName := ""
	if cfg.Security.EnableCloudFront {
		recordName = "origin"
	}

	edge.LoadBalancer = loadbalancer.NewLoadBalancer(resources.Stack, "LoadBalancer", &loadbalancer.LoadBalancerProps{
		Config:         cfg,
		Vpc:            vpc,
		Service:        web.Service,
		CertificateArn: deploy.CertificateArn,
		DomainName:     lo.Ternary(deploy.HasDomain(), deploy.DomainName, ""),
		HostedZoneID:   lo.Ternary(deploy.HasDomain(), deploy.HostedZoneID, ""),
		RecordName:     recordName,
	})

	if cfg.Security.EnableWaf {
		edge.Waf = waf.NewWaf(resources.Stack, "Waf", &waf.WafProps{
			Config:      cfg,
			ResourceArn: edge.LoadBalancer.LoadBalancer.LoadBalancerArn(),
		})
	} else {
		cdklogger.LogInfo(resources.Stack, "Waf", "WAF disabled for %s", cfg.Name)
	}

	if cfg.Security.EnableCloudFront {
		originDomain := ""
		if edge.LoadBalancer.AliasRecord != nil && edge.LoadBalancer.Certificate != nil {
			originDomain = recordName + "." + deploy.DomainName
		}
		edge.CloudFront = cloudfront.NewCloudFront(resources.Stack, "CloudFront", &cloudfront.CloudFrontProps{
			Config:             cfg,
			LoadBalancer:       edge.LoadBalancer.LoadBalancer,
			OriginDomainName:   originDomain,
			DomainName:         lo.Ternary(deploy.HasDomain(), deploy.DomainName, ""),
			EdgeCertificateArn: deploy.EdgeCertificateArn,
			HostedZone:         edge.LoadBalancer.HostedZone,
		})
	}

	return edge
}

type parameter struct {
	path        []string
	value       *string
	description string
}

// createConfigurationStores publishes resource identifiers under /recruitment/<env>/
// for the application and deployment pipelines
func createConfigurationStores(resources *Resources, data *DataResources, web *ecs.Ecs, edge *EdgeResources) {
	cfg := resources.Config

	params := []parameter{
		{[]string{"database", "endpoint"}, data.Database.Endpoint(), "PostgreSQL writer endpoint"},
		{[]string{"database", "reader-endpoint"}, data.Database.ReaderEndpoint(), "PostgreSQL reader endpoint"},
		{[]string{"database", "name"}, jsii.String(data.Database.DatabaseName), "PostgreSQL database name"},
		{[]string{"database", "secret-arn"}, data.Database.Secret.SecretArn(), "PostgreSQL credentials secret"},
		{[]string{"redis", "endpoint"}, data.Redis.Endpoint(), "Redis primary endpoint"},
		{[]string{"redis", "port"}, data.Redis.EndpointPort(), "Redis port"},
		{[]string{"deployment", "ecr-repository-uri"}, web.Repository.RepositoryUri(), "Container image repository"},
		{[]string{"deployment", "ecs-cluster-name"}, web.Cluster.ClusterName(), "ECS cluster"},
		{[]string{"deployment", "ecs-service-name"}, web.Service.ServiceName(), "ECS service"},
		{[]string{"frontend", "base-url"}, edge.LoadBalancer.URL(), "Load balancer base URL"},
	}
	if edge.CloudFront != nil {
		params = append(params,
			parameter{[]string{"frontend", "cloudfront-domain"}, edge.CloudFront.Distribution.DistributionDomainName(), "CloudFront domain"},
			parameter{[]string{"frontend", "thank-you-url"}, edge.CloudFront.ThankYouURL(), "Application thank-you page"},
			parameter{[]string{"deployment", "static-bucket"}, edge.CloudFront.StaticBucket.BucketName(), "Static assets bucket"},
		)
	}

	sort.Slice(params, func(i, j int) bool {
		return strings.Join(params[i].path, "/") < strings.Join(params[j].path, "/")
	})

	for _, p := range params {
		awsssm.NewStringParameter(resources.Stack, jsii.String("Param"+constructID(p.path)), &awsssm.StringParameterProps{
			ParameterName: jsii.String(resource.ParameterPath(cfg.Name, p.path...)),
			StringValue:   p.value,
			Description:   jsii.String(p.description),
			Tier:          awsssm.ParameterTier_STANDARD,
		})
	}
}

// createOutputs exports the identifiers operators need after a deploy
func createOutputs(resources *Resources, data *DataResources, web *ecs.Ecs, edge *EdgeResources, mon *monitoring.Monitoring) {
	output := func(id, description string, value *string) {
		awscdk.NewCfnOutput(resources.Stack, jsii.String(id), &awscdk.CfnOutputProps{
			Value:       value,
			Description: jsii.String(description),
			ExportName:  jsii.String(config.StackName(StackBaseName, resources.Config.Name) + "-" + id),
		})
	}

	output("LoadBalancerURL", "Public URL of the application load balancer", edge.LoadBalancer.URL())
	output("DatabaseEndpoint", "PostgreSQL writer endpoint", data.Database.Endpoint())
	output("DatabaseSecretARN", "PostgreSQL credentials secret", data.Database.Secret.SecretArn())
	output("RedisEndpoint", "Redis primary endpoint", data.Redis.Endpoint())
	output("ECRRepositoryURI", "Container image repository", web.Repository.RepositoryUri())
	output("ECSClusterName", "ECS cluster", web.Cluster.ClusterName())
	output("ECSServiceName", "ECS service", web.Service.ServiceName())
	output("AlarmTopicARN", "SNS topic receiving CloudWatch alarms", mon.Topic.TopicArn())

	if edge.CloudFront != nil {
		output("CloudFrontDistributionID", "CloudFront distribution ID", edge.CloudFront.Distribution.DistributionId())
		output("CloudFrontDomainName", "CloudFront distribution domain", edge.CloudFront.Distribution.DistributionDomainName())
		output("ThankYouPageURL", "Application thank-you page", edge.CloudFront.ThankYouURL())
	}
	if edge.Waf != nil {
		output("WebACLARN", "WAF web ACL protecting the load balancer", edge.Waf.WebAcl.AttrArn())
	}
}

// constructID turns ["database", "reader-endpoint"] into "DatabaseReaderEndpoint".
func constructID(parts []string) string {
	return lo.PascalCase(strings.Join(parts, " "))
}
