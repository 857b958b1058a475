// Package loadbalancer puts an internet-facing ALB in front of the Fargate service.
package loadbalancer

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscertificatemanager"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	elbv2 "github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53targets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"recruitment-infra/config"
	"recruitment-infra/lib/cdklogger"
	"recruitment-infra/lib/resource"
)

const HealthCheckPath = "/health"

// LoadBalancerProps holds inputs for NewLoadBalancer. Config and Vpc are required.
type LoadBalancerProps struct {
	Config *config.EnvironmentConfig
	Vpc    awsec2.IVpc
	// Service is registered as an IP target when set.
	Service awsecs.FargateService

	// CertificateArn imports an existing regional certificate.
	CertificateArn string
	// DomainName and HostedZoneID request a DNS-validated certificate when no ARN is
	// given, and enable the alias record.
	DomainName   string
	HostedZoneID string
	// RecordName is the alias created under DomainName; empty means the apex.
	RecordName string
}

// LoadBalancer is the ALB with its listeners and target group.
type LoadBalancer struct {
	constructs.Construct

	LoadBalancer  elbv2.ApplicationLoadBalancer
	SecurityGroup awsec2.SecurityGroup
	TargetGroup   elbv2.ApplicationTargetGroup
	HttpListener  elbv2.ApplicationListener
	HttpsListener elbv2.ApplicationListener
	Certificate   awscertificatemanager.ICertificate
	HostedZone    awsroute53.IHostedZone
	AccessLogs    awss3.Bucket
	AliasRecord   awsroute53.ARecord
}

// NewLoadBalancer declares the ALB. Listeners serve HTTPS with an HTTP redirect when a
// certificate can be obtained, plain HTTP otherwise.
func NewLoadBalancer(scope constructs.Construct, id string, props *LoadBalancerProps) *LoadBalancer {
	node := constructs.NewConstruct(scope, jsii.String(id))
	cfg := props.Config
	lb := &LoadBalancer{Construct: node}

	lb.SecurityGroup = awsec2.NewSecurityGroup(node, jsii.String("SecurityGroup"), &awsec2.SecurityGroupProps{
		Vpc:              props.Vpc,
		Description:      jsii.String("Public HTTP(S) access to the recruitment load balancer"),
		AllowAllOutbound: jsii.Bool(true),
	})
	lb.SecurityGroup.AddIngressRule(awsec2.Peer_AnyIpv4(), awsec2.Port_Tcp(jsii.Number(80)), jsii.String("HTTP from anywhere"), nil)
	lb.SecurityGroup.AddIngressRule(awsec2.Peer_AnyIpv4(), awsec2.Port_Tcp(jsii.Number(443)), jsii.String("HTTPS from anywhere"), nil)

	lb.LoadBalancer = elbv2.NewApplicationLoadBalancer(node, jsii.String("Alb"), &elbv2.ApplicationLoadBalancerProps{
		LoadBalancerName: jsii.String(resource.Name(cfg.Name, "alb")),
		Vpc:              props.Vpc,
		InternetFacing:   jsii.Bool(true),
		VpcSubnets: &awsec2.SubnetSelection{
			SubnetType: awsec2.SubnetType_PUBLIC,
		},
		SecurityGroup:           lb.SecurityGroup,
		DeletionProtection:      jsii.Bool(cfg.IsProd()),
		IdleTimeout:             awscdk.Duration_Seconds(jsii.Number(60)),
		DropInvalidHeaderFields: jsii.Bool(true),
	})

	lb.TargetGroup = elbv2.NewApplicationTargetGroup(node, jsii.String("TargetGroup"), &elbv2.ApplicationTargetGroupProps{
		Vpc:        props.Vpc,
		Port:       jsii.Number(cfg.Ecs.ContainerPort),
		Protocol:   elbv2.ApplicationProtocol_HTTP,
		TargetType: elbv2.TargetType_IP,
		HealthCheck: &elbv2.HealthCheck{
			Path:                    jsii.String(HealthCheckPath),
			HealthyHttpCodes:        jsii.String("200"),
			HealthyThresholdCount:   jsii.Number(2),
			UnhealthyThresholdCount: jsii.Number(3),
			Timeout:                 awscdk.Duration_Seconds(jsii.Number(5)),
			Interval:                awscdk.Duration_Seconds(jsii.Number(30)),
		},
		DeregistrationDelay: awscdk.Duration_Seconds(jsii.Number(30)),
	})

	if props.Service != nil {
		props.Service.AttachToApplicationTargetGroup(lb.TargetGroup)
		props.Service.Connections().AllowFrom(lb.LoadBalancer, awsec2.Port_Tcp(jsii.Number(cfg.Ecs.ContainerPort)), jsii.String("Traffic from the load balancer"))
	}

	if props.DomainName != "" && props.HostedZoneID != "" {
		lb.HostedZone = awsroute53.HostedZone_FromHostedZoneAttributes(node, jsii.String("Zone"), &awsroute53.HostedZoneAttributes{
			HostedZoneId: jsii.String(props.HostedZoneID),
			ZoneName:     jsii.String(props.DomainName),
		})
	}
	lb.Certificate = lb.certificate(props)

	if lb.Certificate != nil {
		lb.HttpsListener = lb.LoadBalancer.AddListener(jsii.String("Https"), &elbv2.BaseApplicationListenerProps{
			Port:         jsii.Number(443),
			Protocol:     elbv2.ApplicationProtocol_HTTPS,
			Certificates: &[]elbv2.IListenerCertificate{elbv2.ListenerCertificate_FromCertificateManager(lb.Certificate)},
			SslPolicy:    elbv2.SslPolicy_RECOMMENDED_TLS,
			DefaultTargetGroups: &[]elbv2.IApplicationTargetGroup{
				lb.TargetGroup,
			},
			Open: jsii.Bool(false),
		})
		lb.HttpListener = lb.LoadBalancer.AddListener(jsii.String("Http"), &elbv2.BaseApplicationListenerProps{
			Port:     jsii.Number(80),
			Protocol: elbv2.ApplicationProtocol_HTTP,
			DefaultAction: elbv2.ListenerAction_Redirect(&elbv2.RedirectOptions{
				Protocol:  jsii.String("HTTPS"),
				Port:      jsii.String("443"),
				Permanent: jsii.Bool(true),
			}),
			Open: jsii.Bool(false),
		})
	} else {
		if cfg.Security.HttpsOnly {
			cdklogger.LogWarning(node, "", "https_only is set for %s but no certificate is configured; serving plain HTTP", cfg.Name)
		}
		lb.HttpListener = lb.LoadBalancer.AddListener(jsii.String("Http"), &elbv2.BaseApplicationListenerProps{
			Port:     jsii.Number(80),
			Protocol: elbv2.ApplicationProtocol_HTTP,
			DefaultTargetGroups: &[]elbv2.IApplicationTargetGroup{
				lb.TargetGroup,
			},
			Open: jsii.Bool(false),
		})
	}

	if cfg.IsProd() {
		lb.enableAccessLogs(node, cfg)
	}

	if lb.HostedZone != nil {
		lb.AliasRecord = awsroute53.NewARecord(node, jsii.String("AliasRecord"), &awsroute53.ARecordProps{
			Zone:       lb.HostedZone,
			RecordName: recordName(props),
			Target:     awsroute53.RecordTarget_FromAlias(awsroute53targets.NewLoadBalancerTarget(lb.LoadBalancer, nil)),
		})
	}

	resource.TagComponent(node, "load-balancer")

	return lb
}

// certificate resolves the listener certificate: imported ARN, then DNS validated, then none.
func (lb *LoadBalancer) certificate(props *LoadBalancerProps) awscertificatemanager.ICertificate {
	switch {
	case props.CertificateArn != "":
		return awscertificatemanager.Certificate_FromCertificateArn(lb.Construct, jsii.String("Certificate"), jsii.String(props.CertificateArn))
	case lb.HostedZone != nil:
		return awscertificatemanager.NewCertificate(lb.Construct, jsii.String("Certificate"), &awscertificatemanager.CertificateProps{
			DomainName:              jsii.String(props.DomainName),
			SubjectAlternativeNames: jsii.Strings("*." + props.DomainName),
			Validation:              awscertificatemanager.CertificateValidation_FromDns(lb.HostedZone),
		})
	default:
		return nil
	}
}

// enableAccessLogs writes ALB access logs to S3. The ELB log delivery principal
// depends on the region, so an environment-agnostic stack skips it.
func (lb *LoadBalancer) enableAccessLogs(scope constructs.Construct, cfg *config.EnvironmentConfig) {
	region := awscdk.Stack_Of(scope).Region()
	if *awscdk.Token_IsUnresolved(region) {
		cdklogger.LogWarning(scope, "", "Access logs skipped: stack region is not known at synth time")
		return
	}

	lb.AccessLogs = awss3.NewBucket(scope, jsii.String("AccessLogs"), &awss3.BucketProps{
		Encryption:        awss3.BucketEncryption_S3_MANAGED,
		BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ALL(),
		EnforceSSL:        jsii.Bool(true),
		LifecycleRules: &[]*awss3.LifecycleRule{
			{Expiration: awscdk.Duration_Days(jsii.Number(cfg.Monitoring.LogRetentionDays))},
		},
		RemovalPolicy: cfg.RemovalPolicy(),
	})
	lb.LoadBalancer.LogAccessLogs(lb.AccessLogs, jsii.String("alb"))
}

// URL is the public base URL the load balancer serves.
func (lb *LoadBalancer) URL() *string {
	scheme := "http://"
	if lb.Certificate != nil {
		scheme = "https://"
	}
	return awscdk.Fn_Join(jsii.String(""), &[]*string{jsii.String(scheme), lb.LoadBalancer.LoadBalancerDnsName()})
}

func recordName(props *LoadBalancerProps) *string {
	if props.RecordName == "" {
		return jsii.String(props.DomainName)
	}
	return jsii.String(props.RecordName + "." + props.DomainName)
}
