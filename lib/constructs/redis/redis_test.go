package redis_test

import (
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2/assertions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/jsii-runtime-go"
	"github.com/stretchr/testify/assert"

	"recruitment-infra/config"
	"recruitment-infra/lib/constructs/redis"
	"recruitment-infra/lib/testutil"
)

func TestRedisSynth(t *testing.T) {
	tests := []struct {
		env      config.Environment
		nodeType string
		clusters int
		failover bool
	}{
		{config.EnvDev, "cache.t3.micro", 1, false},
		{config.EnvStaging, "cache.t3.small", 1, false},
		{config.EnvProd, "cache.r6g.large", 2, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.env), func(t *testing.T) {
			stack := testutil.NewStack()
			r := redis.NewRedis(stack, "Redis", &redis.RedisProps{
				Config: testutil.Config(t, tt.env),
				Vpc:    testutil.NewVpc(stack),
			})
			assert.NotNil(t, r.Endpoint())

			template := assertions.Template_FromStack(stack, nil)
			template.ResourceCountIs(jsii.String("AWS::ElastiCache::SubnetGroup"), jsii.Number(1))
			template.HasResourceProperties(jsii.String("AWS::ElastiCache::ReplicationGroup"), map[string]interface{}{
				"CacheNodeType":            tt.nodeType,
				"NumCacheClusters":         tt.clusters,
				"AutomaticFailoverEnabled": tt.failover,
				"MultiAZEnabled":           tt.failover,
				"AtRestEncryptionEnabled":  true,
				"Port":                     redis.Port,
			})
		})
	}
}

func TestRedisFailoverNeedsReplica(t *testing.T) {
	stack := testutil.NewStack()
	cfg := testutil.Config(t, config.EnvDev)
	cfg.Redis.AutomaticFailover = true

	redis.NewRedis(stack, "Redis", &redis.RedisProps{
		Config: cfg,
		Vpc:    testutil.NewVpc(stack),
	})

	template := assertions.Template_FromStack(stack, nil)
	template.HasResourceProperties(jsii.String("AWS::ElastiCache::ReplicationGroup"), map[string]interface{}{
		"AutomaticFailoverEnabled": false,
	})
	assertions.Annotations_FromStack(stack).HasWarning(jsii.String("*"), assertions.Match_StringLikeRegexp(jsii.String("automatic failover ignored")))
}

func TestRedisAllowFrom(t *testing.T) {
	stack := testutil.NewStack()
	vpc := testutil.NewVpc(stack)
	r := redis.NewRedis(stack, "Redis", &redis.RedisProps{
		Config: testutil.Config(t, config.EnvDev),
		Vpc:    vpc,
	})

	peer := awsec2.NewSecurityGroup(stack, jsii.String("Peer"), &awsec2.SecurityGroupProps{Vpc: vpc})
	r.AllowFrom(peer, "web tasks")

	template := assertions.Template_FromStack(stack, nil)
	template.HasResourceProperties(jsii.String("AWS::EC2::SecurityGroupIngress"), map[string]interface{}{
		"FromPort":    redis.Port,
		"ToPort":      redis.Port,
		"Description": "web tasks",
	})
}
