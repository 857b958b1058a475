// Package redis provisions the ElastiCache replication group used for sessions and caching.
package redis

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awselasticache"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/samber/lo"

	"recruitment-infra/config"
	"recruitment-infra/lib/cdklogger"
	"recruitment-infra/lib/resource"
)

const Port = 6379

type RedisProps struct {
	Config *config.EnvironmentConfig
	Vpc    awsec2.IVpc
}

// Redis wraps the L1 replication group; there is no L2 construct for ElastiCache.
type Redis struct {
	constructs.Construct

	ReplicationGroup awselasticache.CfnReplicationGroup
	SubnetGroup      awselasticache.CfnSubnetGroup
	SecurityGroup    awsec2.SecurityGroup
}

func NewRedis(scope constructs.Construct, id string, props *RedisProps) *Redis {
	node := constructs.NewConstruct(scope, jsii.String(id))
	cfg := props.Config
	redisCfg := cfg.Redis
	r := &Redis{Construct: node}

	subnets := props.Vpc.SelectSubnets(&awsec2.SubnetSelection{
		SubnetType: awsec2.SubnetType_PRIVATE_WITH_EGRESS,
	})

	r.SubnetGroup = awselasticache.NewCfnSubnetGroup(node, jsii.String("SubnetGroup"), &awselasticache.CfnSubnetGroupProps{
		CacheSubnetGroupName: jsii.String(resource.Name(cfg.Name, "redis")),
		Description:          jsii.String(fmt.Sprintf("Redis subnets for %s", cfg.Name)),
		SubnetIds:            subnets.SubnetIds,
	})

	r.SecurityGroup = awsec2.NewSecurityGroup(node, jsii.String("SecurityGroup"), &awsec2.SecurityGroupProps{
		Vpc:              props.Vpc,
		Description:      jsii.String("Redis access for the recruitment application"),
		AllowAllOutbound: jsii.Bool(false),
	})

	// Failover needs a replica to promote.
	failover := redisCfg.AutomaticFailover && redisCfg.NumCacheClusters > 1
	if redisCfg.AutomaticFailover && !failover {
		cdklogger.LogWarning(node, "", "automatic failover ignored: %d cache cluster(s)", redisCfg.NumCacheClusters)
	}

	r.ReplicationGroup = awselasticache.NewCfnReplicationGroup(node, jsii.String("ReplicationGroup"), &awselasticache.CfnReplicationGroupProps{
		ReplicationGroupId:          jsii.String(resource.Name(cfg.Name, "redis")),
		ReplicationGroupDescription: jsii.String(fmt.Sprintf("Recruitment %s cache", cfg.Name)),
		Engine:                      jsii.String("redis"),
		EngineVersion:               jsii.String(redisCfg.EngineVersion),
		CacheNodeType:               jsii.String(redisCfg.NodeType),
		NumCacheClusters:            jsii.Number(redisCfg.NumCacheClusters),
		AutomaticFailoverEnabled:    jsii.Bool(failover),
		MultiAzEnabled:              jsii.Bool(failover),
		CacheSubnetGroupName:        r.SubnetGroup.Ref(),
		SecurityGroupIds:            jsii.Strings(*r.SecurityGroup.SecurityGroupId()),
		Port:                        jsii.Number(Port),
		AtRestEncryptionEnabled:     jsii.Bool(true),
		TransitEncryptionEnabled:    jsii.Bool(redisCfg.TransitEncryptionEnabled),
		SnapshotRetentionLimit:      jsii.Number(redisCfg.SnapshotRetentionDays),
		AutoMinorVersionUpgrade:     jsii.Bool(true),
		PreferredMaintenanceWindow:  jsii.String("sun:05:00-sun:06:00"),
		SnapshotWindow:              lo.Ternary(redisCfg.SnapshotRetentionDays > 0, jsii.String("03:00-04:00"), nil),
	})
	r.ReplicationGroup.AddDependency(r.SubnetGroup)
	r.ReplicationGroup.ApplyRemovalPolicy(cfg.RemovalPolicy(), nil)

	resource.TagComponent(node, "redis")

	return r
}

// AllowFrom opens the Redis port to peer.
func (r *Redis) AllowFrom(peer awsec2.IConnectable, description string) {
	r.SecurityGroup.Connections().AllowFrom(peer, awsec2.Port_Tcp(jsii.Number(Port)), jsii.String(description))
}

// Endpoint is the primary endpoint address.
func (r *Redis) Endpoint() *string {
	return r.ReplicationGroup.AttrPrimaryEndPointAddress()
}

// EndpointPort is the primary endpoint port as a string token.
func (r *Redis) EndpointPort() *string {
	return r.ReplicationGroup.AttrPrimaryEndPointPort()
}

// ReaderEndpoint balances reads across replicas.
func (r *Redis) ReaderEndpoint() *string {
	return r.ReplicationGroup.AttrReaderEndPointAddress()
}
