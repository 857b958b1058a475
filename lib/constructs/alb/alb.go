// Package alb is the minimal load balancer of the simple deployment: one HTTP
// listener in front of EC2 instances.
package alb

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	elbv2 "github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2targets"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/samber/lo"

	"recruitment-infra/config"
	"recruitment-infra/lib/resource"
)

type AlbProps struct {
	Config *config.EnvironmentConfig
	Vpc    awsec2.IVpc
	// Instances are registered on TargetPort.
	Instances  []awsec2.Instance
	TargetPort int
	// HealthCheckPath defaults to "/".
	HealthCheckPath string
}

type Alb struct {
	constructs.Construct

	LoadBalancer  elbv2.ApplicationLoadBalancer
	SecurityGroup awsec2.SecurityGroup
	Listener      elbv2.ApplicationListener
	TargetGroup   elbv2.ApplicationTargetGroup
}

func NewAlb(scope constructs.Construct, id string, props *AlbProps) *Alb {
	node := constructs.NewConstruct(scope, jsii.String(id))
	cfg := props.Config
	a := &Alb{Construct: node}

	a.SecurityGroup = awsec2.NewSecurityGroup(node, jsii.String("SecurityGroup"), &awsec2.SecurityGroupProps{
		Vpc:              props.Vpc,
		Description:      jsii.String("HTTP access to the frontend load balancer"),
		AllowAllOutbound: jsii.Bool(true),
	})
	a.SecurityGroup.AddIngressRule(awsec2.Peer_AnyIpv4(), awsec2.Port_Tcp(jsii.Number(80)), jsii.String("HTTP from anywhere"), nil)

	a.LoadBalancer = elbv2.NewApplicationLoadBalancer(node, jsii.String("Alb"), &elbv2.ApplicationLoadBalancerProps{
		LoadBalancerName: jsii.String(resource.Name(cfg.Name, "frontend")),
		Vpc:              props.Vpc,
		InternetFacing:   jsii.Bool(true),
		VpcSubnets: &awsec2.SubnetSelection{
			SubnetType: awsec2.SubnetType_PUBLIC,
		},
		SecurityGroup: a.SecurityGroup,
	})

	targets := make([]elbv2.IApplicationLoadBalancerTarget, 0, len(props.Instances))
	for _, instance := range props.Instances {
		targets = append(targets, awselasticloadbalancingv2targets.NewInstanceTarget(instance, jsii.Number(props.TargetPort)))
		instance.Connections().AllowFrom(a.SecurityGroup, awsec2.Port_Tcp(jsii.Number(props.TargetPort)), jsii.String("Traffic from the frontend load balancer"))
	}

	a.TargetGroup = elbv2.NewApplicationTargetGroup(node, jsii.String("TargetGroup"), &elbv2.ApplicationTargetGroupProps{
		Vpc:        props.Vpc,
		Port:       jsii.Number(props.TargetPort),
		Protocol:   elbv2.ApplicationProtocol_HTTP,
		TargetType: elbv2.TargetType_INSTANCE,
		Targets:    &targets,
		HealthCheck: &elbv2.HealthCheck{
			Path:     jsii.String(lo.CoalesceOrEmpty(props.HealthCheckPath, "/")),
			Interval: awscdk.Duration_Seconds(jsii.Number(30)),
		},
	})

	a.Listener = a.LoadBalancer.AddListener(jsii.String("Http"), &elbv2.BaseApplicationListenerProps{
		Port:     jsii.Number(80),
		Protocol: elbv2.ApplicationProtocol_HTTP,
		DefaultTargetGroups: &[]elbv2.IApplicationTargetGroup{
			a.TargetGroup,
		},
		Open: jsii.Bool(false),
	})

	resource.TagComponent(node, "frontend-alb")

	return a
}
