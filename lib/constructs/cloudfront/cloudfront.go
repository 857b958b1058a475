// Package cloudfront fronts the load balancer with a CloudFront distribution and
// serves static assets, including the post-application thank-you page, from S3.
package cloudfront

import (
	_ "embed"
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscertificatemanager"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfront"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfrontorigins"
	elbv2 "github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53targets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3deployment"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/samber/lo"

	"recruitment-infra/config"
	"recruitment-infra/lib/cdklogger"
	"recruitment-infra/lib/resource"
)

const (
	StaticPathPattern = "/static/*"
	ThankYouPageKey   = "static/thank-you.html"
)

//go:embed assets/thank-you.html
var thankYouPage string

type CloudFrontProps struct {
	Config       *config.EnvironmentConfig
	LoadBalancer elbv2.IApplicationLoadBalancer
	// OriginDomainName is a name covered by the load balancer certificate. When set,
	// CloudFront talks HTTPS to the origin; otherwise HTTP to the ALB DNS name.
	OriginDomainName string

	// DomainName is served by the distribution when EdgeCertificateArn (us-east-1) is set.
	DomainName         string
	EdgeCertificateArn string
	// HostedZone receives the alias record for DomainName.
	HostedZone awsroute53.IHostedZone
}

type CloudFront struct {
	constructs.Construct

	Distribution awscloudfront.Distribution
	StaticBucket awss3.Bucket
	Deployment   awss3deployment.BucketDeployment
	AliasRecord  awsroute53.ARecord
}

func NewCloudFront(scope constructs.Construct, id string, props *CloudFrontProps) *CloudFront {
	node := constructs.NewConstruct(scope, jsii.String(id))
	cfg := props.Config
	cf := &CloudFront{Construct: node}

	// Static assets bucket, reachable only through the OAI
	cf.StaticBucket = awss3.NewBucket(node, jsii.String("StaticBucket"), &awss3.BucketProps{
		BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ALL(),
		Encryption:        awss3.BucketEncryption_S3_MANAGED,
		EnforceSSL:        jsii.Bool(true),
		RemovalPolicy:     cfg.RemovalPolicy(),
		AutoDeleteObjects: jsii.Bool(!cfg.IsProd()),
	})

	oai := awscloudfront.NewOriginAccessIdentity(node, jsii.String("OAI"), &awscloudfront.OriginAccessIdentityProps{
		Comment: jsii.String(fmt.Sprintf("Recruitment %s static assets", cfg.Name)),
	})
	cf.StaticBucket.GrantRead(oai.GrantPrincipal(), jsii.String("*"))

	distProps := &awscloudfront.DistributionProps{
		Comment: jsii.String(fmt.Sprintf("Recruitment %s", cfg.Name)),
		DefaultBehavior: &awscloudfront.BehaviorOptions{
			Origin:               applicationOrigin(props),
			AllowedMethods:       awscloudfront.AllowedMethods_ALLOW_ALL(),
			CachePolicy:          awscloudfront.CachePolicy_CACHING_DISABLED(),
			OriginRequestPolicy:  awscloudfront.OriginRequestPolicy_ALL_VIEWER(),
			ViewerProtocolPolicy: awscloudfront.ViewerProtocolPolicy_REDIRECT_TO_HTTPS,
			Compress:             jsii.Bool(true),
		},
		AdditionalBehaviors: &map[string]*awscloudfront.BehaviorOptions{
			StaticPathPattern: {
				Origin: awscloudfrontorigins.S3BucketOrigin_WithOriginAccessIdentity(cf.StaticBucket, &awscloudfrontorigins.S3BucketOriginWithOAIProps{
					OriginAccessIdentity: oai,
				}),
				AllowedMethods:       awscloudfront.AllowedMethods_ALLOW_GET_HEAD(),
				CachedMethods:        awscloudfront.CachedMethods_CACHE_GET_HEAD(),
				CachePolicy:          awscloudfront.CachePolicy_CACHING_OPTIMIZED(),
				ViewerProtocolPolicy: awscloudfront.ViewerProtocolPolicy_REDIRECT_TO_HTTPS,
				Compress:             jsii.Bool(true),
			},
		},
		EnableIpv6:             jsii.Bool(true),
		HttpVersion:            awscloudfront.HttpVersion_HTTP2_AND_3,
		MinimumProtocolVersion: awscloudfront.SecurityPolicyProtocol_TLS_V1_2_2021,
		PriceClass: lo.Ternary(cfg.IsProd(),
			awscloudfront.PriceClass_PRICE_CLASS_ALL,
			awscloudfront.PriceClass_PRICE_CLASS_100,
		),
	}

	switch {
	case props.DomainName != "" && props.EdgeCertificateArn != "":
		distProps.DomainNames = jsii.Strings(props.DomainName)
		distProps.Certificate = awscertificatemanager.Certificate_FromCertificateArn(node, jsii.String("EdgeCertificate"), jsii.String(props.EdgeCertificateArn))
	case props.DomainName != "":
		cdklogger.LogWarning(node, "", "No edge certificate for %s; the distribution keeps its cloudfront.net name", props.DomainName)
	}

	cf.Distribution = awscloudfront.NewDistribution(node, jsii.String("Distribution"), distProps)

	cf.Deployment = awss3deployment.NewBucketDeployment(node, jsii.String("ThankYouPage"), &awss3deployment.BucketDeploymentProps{
		Sources: &[]awss3deployment.ISource{
			awss3deployment.Source_Data(jsii.String("thank-you.html"), jsii.String(thankYouPage), nil),
		},
		DestinationBucket:    cf.StaticBucket,
		DestinationKeyPrefix: jsii.String("static/"),
		Prune:                jsii.Bool(false),
		ContentType:          jsii.String("text/html; charset=utf-8"),
		CacheControl: &[]awss3deployment.CacheControl{
			awss3deployment.CacheControl_MaxAge(awscdk.Duration_Hours(jsii.Number(1))),
		},
		Distribution:      cf.Distribution,
		DistributionPaths: jsii.Strings("/" + ThankYouPageKey),
	})

	if distProps.DomainNames != nil && props.HostedZone != nil {
		cf.AliasRecord = awsroute53.NewARecord(node, jsii.String("AliasRecord"), &awsroute53.ARecordProps{
			Zone:       props.HostedZone,
			RecordName: jsii.String(props.DomainName),
			Target:     awsroute53.RecordTarget_FromAlias(awsroute53targets.NewCloudFrontTarget(cf.Distribution)),
		})
	}

	resource.TagComponent(node, "cdn")

	return cf
}

func applicationOrigin(props *CloudFrontProps) awscloudfront.IOrigin {
	if props.OriginDomainName != "" {
		return awscloudfrontorigins.NewHttpOrigin(jsii.String(props.OriginDomainName), &awscloudfrontorigins.HttpOriginProps{
			ProtocolPolicy: awscloudfront.OriginProtocolPolicy_HTTPS_ONLY,
		})
	}
	return awscloudfrontorigins.NewLoadBalancerV2Origin(props.LoadBalancer, &awscloudfrontorigins.LoadBalancerV2OriginProps{
		ProtocolPolicy: awscloudfront.OriginProtocolPolicy_HTTP_ONLY,
	})
}

// ThankYouURL is where the thank-you page is served.
func (cf *CloudFront) ThankYouURL() *string {
	return awscdk.Fn_Join(jsii.String(""), &[]*string{
		jsii.String("https://"),
		cf.Distribution.DistributionDomainName(),
		jsii.String("/" + ThankYouPageKey),
	})
}
