// Package config holds the per-environment configuration table that
// parameterizes every construct in the recruitment infrastructure.
package config

import (
	"errors"
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Environment is the name of a deployment environment.
type Environment string

const (
	EnvDev     Environment = "dev"
	EnvStaging Environment = "staging"
	EnvProd    Environment = "prod"
)

// ErrUnknownEnvironment is returned when no configuration exists for a name.
var ErrUnknownEnvironment = errors.New("no configuration found for environment")

// Title returns the environment name capitalized for construct IDs and stack names.
func (e Environment) Title() string {
	return lo.Capitalize(string(e))
}

// DatabaseConfig sizes the PostgreSQL instance.
type DatabaseConfig struct {
	InstanceClass             string `toml:"instance_class" validate:"required"`
	EngineVersion             string `toml:"engine_version" validate:"required"`
	AllocatedStorage          int    `toml:"allocated_storage" validate:"gte=20,ltefield=MaxAllocatedStorage"`
	MaxAllocatedStorage       int    `toml:"max_allocated_storage" validate:"gte=20"`
	MultiAz                   bool   `toml:"multi_az"`
	BackupRetentionDays       int    `toml:"backup_retention_days" validate:"gte=1,lte=35"`
	DeletionProtection        bool   `toml:"deletion_protection"`
	EnablePerformanceInsights bool   `toml:"enable_performance_insights"`
	ReadReplica               bool   `toml:"read_replica"`
}

// EcsConfig sizes the Fargate service and its scaling bounds.
type EcsConfig struct {
	Cpu                       int  `toml:"cpu" validate:"oneof=256 512 1024 2048 4096"`
	MemoryLimitMiB            int  `toml:"memory_limit_mib" validate:"gte=512"`
	DesiredCount              int  `toml:"desired_count" validate:"gtefield=MinCapacity,ltefield=MaxCapacity"`
	MinCapacity               int  `toml:"min_capacity" validate:"gte=1,ltefield=MaxCapacity"`
	MaxCapacity               int  `toml:"max_capacity" validate:"gte=1"`
	CpuTargetUtilization      int  `toml:"cpu_target_utilization" validate:"gte=10,lte=95"`
	MemoryTargetUtilization   int  `toml:"memory_target_utilization" validate:"gte=10,lte=95"`
	EnableContainerInsights   bool `toml:"enable_container_insights"`
	LogRetentionDays          int  `toml:"log_retention_days" validate:"gte=1"`
	ContainerPort             int  `toml:"container_port" validate:"gte=1,lte=65535"`
	HealthCheckGracePeriodSec int  `toml:"health_check_grace_period_sec" validate:"gte=0"`
}

// RedisConfig sizes the ElastiCache replication group.
type RedisConfig struct {
	NodeType                 string `toml:"node_type" validate:"required,startswith=cache."`
	EngineVersion            string `toml:"engine_version" validate:"required"`
	NumCacheClusters         int    `toml:"num_cache_clusters" validate:"gte=1,lte=6"`
	AutomaticFailover        bool   `toml:"automatic_failover"`
	SnapshotRetentionDays    int    `toml:"snapshot_retention_days" validate:"gte=0,lte=35"`
	TransitEncryptionEnabled bool   `toml:"transit_encryption_enabled"`
}

// MonitoringConfig holds log retention and alarm thresholds.
type MonitoringConfig struct {
	LogRetentionDays          int     `toml:"log_retention_days" validate:"gte=1"`
	EnableDetailedMonitoring  bool    `toml:"enable_detailed_monitoring"`
	CpuAlarmThreshold         int     `toml:"cpu_alarm_threshold" validate:"gte=1,lte=100"`
	MemoryAlarmThreshold      int     `toml:"memory_alarm_threshold" validate:"gte=1,lte=100"`
	Http5xxAlarmThreshold     int     `toml:"http_5xx_alarm_threshold" validate:"gte=1"`
	ResponseTimeThresholdSec  float64 `toml:"response_time_threshold_sec" validate:"gt=0"`
	DbFreeStorageThresholdGiB int     `toml:"db_free_storage_threshold_gib" validate:"gte=1"`
	EvaluationPeriods         int     `toml:"evaluation_periods" validate:"gte=1"`
	EnableDashboard           bool    `toml:"enable_dashboard"`
}

// SecurityConfig toggles the edge and network protections.
type SecurityConfig struct {
	EnableWaf        bool `toml:"enable_waf"`
	WafRateLimit     int  `toml:"waf_rate_limit" validate:"gte=100"`
	EnableCloudFront bool `toml:"enable_cloudfront"`
	EnableFlowLogs   bool `toml:"enable_flow_logs"`
	HttpsOnly        bool `toml:"https_only"`
	NatGateways      int  `toml:"nat_gateways" validate:"gte=1,lte=3"`
}

// EnvironmentConfig is the full configuration record for one environment.
type EnvironmentConfig struct {
	Name       Environment      `toml:"-"`
	Database   DatabaseConfig   `toml:"database"`
	Ecs        EcsConfig        `toml:"ecs"`
	Redis      RedisConfig      `toml:"redis"`
	Monitoring MonitoringConfig `toml:"monitoring"`
	Security   SecurityConfig   `toml:"security"`
}

var environments = map[Environment]EnvironmentConfig{
	EnvDev: {
		Database: DatabaseConfig{
			InstanceClass:       "t3.micro",
			EngineVersion:       "15",
			AllocatedStorage:    20,
			MaxAllocatedStorage: 100,
			BackupRetentionDays: 1,
		},
		Ecs: EcsConfig{
			Cpu:                       256,
			MemoryLimitMiB:            512,
			DesiredCount:              1,
			MinCapacity:               1,
			MaxCapacity:               2,
			CpuTargetUtilization:      70,
			MemoryTargetUtilization:   75,
			LogRetentionDays:          7,
			ContainerPort:             3000,
			HealthCheckGracePeriodSec: 60,
		},
		Redis: RedisConfig{
			NodeType:                 "cache.t3.micro",
			EngineVersion:            "7.1",
			NumCacheClusters:         1,
			TransitEncryptionEnabled: true,
		},
		Monitoring: MonitoringConfig{
			LogRetentionDays:          7,
			CpuAlarmThreshold:         85,
			MemoryAlarmThreshold:      85,
			Http5xxAlarmThreshold:     50,
			ResponseTimeThresholdSec:  3,
			DbFreeStorageThresholdGiB: 2,
			EvaluationPeriods:         3,
		},
		Security: SecurityConfig{
			WafRateLimit: 2000,
			NatGateways:  1,
		},
	},
	EnvStaging: {
		Database: DatabaseConfig{
			InstanceClass:             "t3.small",
			EngineVersion:             "15",
			AllocatedStorage:          50,
			MaxAllocatedStorage:       200,
			BackupRetentionDays:       7,
			EnablePerformanceInsights: true,
		},
		Ecs: EcsConfig{
			Cpu:                       512,
			MemoryLimitMiB:            1024,
			DesiredCount:              2,
			MinCapacity:               1,
			MaxCapacity:               4,
			CpuTargetUtilization:      70,
			MemoryTargetUtilization:   75,
			EnableContainerInsights:   true,
			LogRetentionDays:          14,
			ContainerPort:             3000,
			HealthCheckGracePeriodSec: 60,
		},
		Redis: RedisConfig{
			NodeType:                 "cache.t3.small",
			EngineVersion:            "7.1",
			NumCacheClusters:         1,
			SnapshotRetentionDays:    1,
			TransitEncryptionEnabled: true,
		},
		Monitoring: MonitoringConfig{
			LogRetentionDays:          14,
			CpuAlarmThreshold:         80,
			MemoryAlarmThreshold:      80,
			Http5xxAlarmThreshold:     20,
			ResponseTimeThresholdSec:  2,
			DbFreeStorageThresholdGiB: 5,
			EvaluationPeriods:         2,
			EnableDashboard:           true,
		},
		Security: SecurityConfig{
			EnableWaf:        true,
			WafRateLimit:     2000,
			EnableCloudFront: true,
			HttpsOnly:        true,
			NatGateways:      1,
		},
	},
	EnvProd: {
		Database: DatabaseConfig{
			InstanceClass:             "r6g.large",
			EngineVersion:             "15",
			AllocatedStorage:          100,
			MaxAllocatedStorage:       1000,
			MultiAz:                   true,
			BackupRetentionDays:       30,
			DeletionProtection:        true,
			EnablePerformanceInsights: true,
			ReadReplica:               true,
		},
		Ecs: EcsConfig{
			Cpu:                       1024,
			MemoryLimitMiB:            2048,
			DesiredCount:              3,
			MinCapacity:               2,
			MaxCapacity:               10,
			CpuTargetUtilization:      60,
			MemoryTargetUtilization:   70,
			EnableContainerInsights:   true,
			LogRetentionDays:          90,
			ContainerPort:             3000,
			HealthCheckGracePeriodSec: 120,
		},
		Redis: RedisConfig{
			NodeType:                 "cache.r6g.large",
			EngineVersion:            "7.1",
			NumCacheClusters:         2,
			AutomaticFailover:        true,
			SnapshotRetentionDays:    7,
			TransitEncryptionEnabled: true,
		},
		Monitoring: MonitoringConfig{
			LogRetentionDays:          90,
			EnableDetailedMonitoring:  true,
			CpuAlarmThreshold:         70,
			MemoryAlarmThreshold:      75,
			Http5xxAlarmThreshold:     10,
			ResponseTimeThresholdSec:  1,
			DbFreeStorageThresholdGiB: 10,
			EvaluationPeriods:         2,
			EnableDashboard:           true,
		},
		Security: SecurityConfig{
			EnableWaf:        true,
			WafRateLimit:     1000,
			EnableCloudFront: true,
			EnableFlowLogs:   true,
			HttpsOnly:        true,
			NatGateways:      2,
		},
	},
}

// Environments returns the known environment names in promotion order.
func Environments() []Environment {
	return []Environment{EnvDev, EnvStaging, EnvProd}
}

// New returns a copy of the configuration record for the named environment.
func New(name string) (*EnvironmentConfig, error) {
	env := Environment(name)
	cfg, ok := environments[env]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEnvironment, name)
	}
	cfg.Name = env
	return &cfg, nil
}

// MustNew is like New but panics on an unknown environment. Intended for synth time.
func MustNew(name string) *EnvironmentConfig {
	cfg, err := New(name)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *EnvironmentConfig) IsProd() bool    { return c.Name == EnvProd }
func (c *EnvironmentConfig) IsDev() bool     { return c.Name == EnvDev }
func (c *EnvironmentConfig) IsStaging() bool { return c.Name == EnvStaging }

// RemovalPolicy keeps stateful resources in prod and tears everything down elsewhere.
func (c *EnvironmentConfig) RemovalPolicy() awscdk.RemovalPolicy {
	return lo.Ternary(c.IsProd(), awscdk.RemovalPolicy_RETAIN, awscdk.RemovalPolicy_DESTROY)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		redis := sl.Current().Interface().(RedisConfig)
		if redis.AutomaticFailover && redis.NumCacheClusters < 2 {
			sl.ReportError(redis.NumCacheClusters, "NumCacheClusters", "NumCacheClusters", "failover_requires_replica", "")
		}
	}, RedisConfig{})
	return v
}

// Validate checks that every record is populated and internally consistent.
func (c *EnvironmentConfig) Validate() error {
	if _, ok := environments[c.Name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEnvironment, c.Name)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration for environment %s: %w", c.Name, err)
	}
	return nil
}
