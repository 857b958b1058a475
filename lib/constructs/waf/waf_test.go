package waf_test

import (
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2/assertions"
	"github.com/aws/jsii-runtime-go"

	"recruitment-infra/config"
	"recruitment-infra/lib/constructs/waf"
	"recruitment-infra/lib/testutil"
)

func TestWafSynth(t *testing.T) {
	stack := testutil.NewStack()
	cfg := testutil.Config(t, config.EnvProd)
	albArn := "arn:aws:elasticloadbalancing:us-east-1:123456789012:loadbalancer/app/test/abc"

	waf.NewWaf(stack, "Waf", &waf.WafProps{
		Config:      cfg,
		ResourceArn: jsii.String(albArn),
	})

	template := assertions.Template_FromStack(stack, nil)
	template.ResourceCountIs(jsii.String("AWS::WAFv2::WebACL"), jsii.Number(1))
	template.HasResourceProperties(jsii.String("AWS::WAFv2::WebACL"), map[string]interface{}{
		"Scope":         "REGIONAL",
		"DefaultAction": map[string]interface{}{"Allow": map[string]interface{}{}},
		"Rules": assertions.Match_ArrayWith(&[]interface{}{
			assertions.Match_ObjectLike(&map[string]interface{}{
				"Name":     "AWSManagedRulesCommonRuleSet",
				"Priority": 0,
			}),
			assertions.Match_ObjectLike(&map[string]interface{}{
				"Name":   waf.RateLimitRuleName,
				"Action": map[string]interface{}{"Block": map[string]interface{}{}},
				"Statement": map[string]interface{}{
					"RateBasedStatement": map[string]interface{}{
						"Limit":            cfg.Security.WafRateLimit,
						"AggregateKeyType": "IP",
					},
				},
			}),
		}),
	})
	template.HasResourceProperties(jsii.String("AWS::WAFv2::WebACLAssociation"), map[string]interface{}{
		"ResourceArn": albArn,
	})
}
