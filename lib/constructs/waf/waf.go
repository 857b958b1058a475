// Package waf attaches a regional WAFv2 web ACL to the application load balancer.
package waf

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2/awswafv2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"recruitment-infra/config"
	"recruitment-infra/lib/resource"
)

// ManagedRuleGroups are the AWS managed rule groups evaluated ahead of the rate limit,
// in priority order.
var ManagedRuleGroups = []string{
	"AWSManagedRulesCommonRuleSet",
	"AWSManagedRulesKnownBadInputsRuleSet",
	"AWSManagedRulesSQLiRuleSet",
	"AWSManagedRulesAmazonIpReputationList",
}

const RateLimitRuleName = "RateLimitPerIp"

type WafProps struct {
	Config *config.EnvironmentConfig
	// ResourceArn is the load balancer the ACL protects.
	ResourceArn *string
}

type Waf struct {
	constructs.Construct

	WebAcl      awswafv2.CfnWebACL
	Association awswafv2.CfnWebACLAssociation
}

func NewWaf(scope constructs.Construct, id string, props *WafProps) *Waf {
	node := constructs.NewConstruct(scope, jsii.String(id))
	cfg := props.Config
	name := resource.Name(cfg.Name, "waf")

	rules := make([]interface{}, 0, len(ManagedRuleGroups)+1)
	for i, group := range ManagedRuleGroups {
		rules = append(rules, managedRule(group, i))
	}
	rules = append(rules, rateLimitRule(cfg.Security.WafRateLimit, len(ManagedRuleGroups)))

	acl := awswafv2.NewCfnWebACL(node, jsii.String("WebAcl"), &awswafv2.CfnWebACLProps{
		Name:  jsii.String(name),
		Scope: jsii.String("REGIONAL"),
		DefaultAction: &awswafv2.CfnWebACL_DefaultActionProperty{
			Allow: &awswafv2.CfnWebACL_AllowActionProperty{},
		},
		VisibilityConfig: visibility(name),
		Rules:            &rules,
	})

	assoc := awswafv2.NewCfnWebACLAssociation(node, jsii.String("Association"), &awswafv2.CfnWebACLAssociationProps{
		ResourceArn: props.ResourceArn,
		WebAclArn:   acl.AttrArn(),
	})

	resource.TagComponent(node, "waf")

	return &Waf{
		Construct:   node,
		WebAcl:      acl,
		Association: assoc,
	}
}

func managedRule(group string, priority int) *awswafv2.CfnWebACL_RuleProperty {
	return &awswafv2.CfnWebACL_RuleProperty{
		Name:     jsii.String(group),
		Priority: jsii.Number(priority),
		OverrideAction: &awswafv2.CfnWebACL_OverrideActionProperty{
			None: map[string]interface{}{},
		},
		Statement: &awswafv2.CfnWebACL_StatementProperty{
			ManagedRuleGroupStatement: &awswafv2.CfnWebACL_ManagedRuleGroupStatementProperty{
				VendorName: jsii.String("AWS"),
				Name:       jsii.String(group),
			},
		},
		VisibilityConfig: visibility(group),
	}
}

func rateLimitRule(limit, priority int) *awswafv2.CfnWebACL_RuleProperty {
	return &awswafv2.CfnWebACL_RuleProperty{
		Name:     jsii.String(RateLimitRuleName),
		Priority: jsii.Number(priority),
		Action: &awswafv2.CfnWebACL_RuleActionProperty{
			Block: &awswafv2.CfnWebACL_BlockActionProperty{},
		},
		Statement: &awswafv2.CfnWebACL_StatementProperty{
			RateBasedStatement: &awswafv2.CfnWebACL_RateBasedStatementProperty{
				Limit:            jsii.Number(limit),
				AggregateKeyType: jsii.String("IP"),
			},
		},
		VisibilityConfig: visibility(RateLimitRuleName),
	}
}

func visibility(metric string) *awswafv2.CfnWebACL_VisibilityConfigProperty {
	return &awswafv2.CfnWebACL_VisibilityConfigProperty{
		CloudWatchMetricsEnabled: jsii.Bool(true),
		MetricName:               jsii.String(fmt.Sprintf("%s-metric", metric)),
		SampledRequestsEnabled:   jsii.Bool(true),
	}
}
