// Package database provisions the PostgreSQL instance backing the recruitment app.
package database

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsrds"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssecretsmanager"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/samber/lo"

	"recruitment-infra/config"
	"recruitment-infra/lib/cdklogger"
	"recruitment-infra/lib/resource"
)

const (
	// Port is the PostgreSQL listener port.
	Port = 5432
	// MasterUsername is the admin user stored in the generated secret.
	MasterUsername = "postgres"
	// DefaultDatabaseName is used when DatabaseProps.DatabaseName is empty.
	DefaultDatabaseName = "recruitment"
)

// DatabaseProps holds inputs for NewDatabase. Config and Vpc are required.
type DatabaseProps struct {
	Config *config.EnvironmentConfig
	Vpc    awsec2.IVpc
	// SubnetType defaults to PRIVATE_ISOLATED.
	SubnetType   awsec2.SubnetType
	DatabaseName string
	// Bootstrap, when set, creates the schemas and extensions after the instance is up.
	Bootstrap *BootstrapOptions
}

// Database is the RDS instance, its credentials and its optional read replica.
type Database struct {
	constructs.Construct

	Instance      awsrds.DatabaseInstance
	ReadReplica   awsrds.DatabaseInstanceReadReplica
	Secret        awssecretsmanager.ISecret
	SecurityGroup awsec2.SecurityGroup
	DatabaseName  string
	Bootstrap     awscdk.CustomResource
}

// NewDatabase declares the credentials secret, security group, instance and, when
// configured, a read replica.
func NewDatabase(scope constructs.Construct, id string, props *DatabaseProps) *Database {
	node := constructs.NewConstruct(scope, jsii.String(id))
	cfg := props.Config
	dbCfg := cfg.Database
	db := &Database{
		Construct:    node,
		DatabaseName: lo.CoalesceOrEmpty(props.DatabaseName, DefaultDatabaseName),
	}
	subnetType := lo.CoalesceOrEmpty(props.SubnetType, awsec2.SubnetType_PRIVATE_ISOLATED)
	subnets := &awsec2.SubnetSelection{SubnetType: subnetType}

	db.Secret = awssecretsmanager.NewSecret(node, jsii.String("Credentials"), &awssecretsmanager.SecretProps{
		SecretName:  jsii.String(resource.ParameterPath(cfg.Name, "database", "credentials")),
		Description: jsii.String(fmt.Sprintf("Master credentials for the %s recruitment database", cfg.Name)),
		GenerateSecretString: &awssecretsmanager.SecretStringGenerator{
			SecretStringTemplate: jsii.String(fmt.Sprintf("{\"username\": %q}", MasterUsername)),
			GenerateStringKey:    jsii.String("password"),
			ExcludeCharacters:    jsii.String("\"@/\\ '"),
			PasswordLength:       jsii.Number(32),
		},
		RemovalPolicy: cfg.RemovalPolicy(),
	})

	db.SecurityGroup = awsec2.NewSecurityGroup(node, jsii.String("SecurityGroup"), &awsec2.SecurityGroupProps{
		Vpc:              props.Vpc,
		Description:      jsii.String("PostgreSQL access for the recruitment application"),
		AllowAllOutbound: jsii.Bool(false),
	})

	instanceType := awsec2.NewInstanceType(jsii.String(dbCfg.InstanceClass))
	engine := awsrds.DatabaseInstanceEngine_Postgres(&awsrds.PostgresInstanceEngineProps{
		Version: awsrds.PostgresEngineVersion_Of(jsii.String(dbCfg.EngineVersion), jsii.String(dbCfg.EngineVersion), nil),
	})

	instanceProps := &awsrds.DatabaseInstanceProps{
		Engine:                    engine,
		InstanceType:              instanceType,
		InstanceIdentifier:        jsii.String(resource.Name(cfg.Name, "db")),
		Vpc:                       props.Vpc,
		VpcSubnets:                subnets,
		SecurityGroups:            &[]awsec2.ISecurityGroup{db.SecurityGroup},
		Credentials:               awsrds.Credentials_FromSecret(db.Secret, jsii.String(MasterUsername)),
		DatabaseName:              jsii.String(db.DatabaseName),
		Port:                      jsii.Number(Port),
		AllocatedStorage:          jsii.Number(dbCfg.AllocatedStorage),
		MaxAllocatedStorage:       jsii.Number(dbCfg.MaxAllocatedStorage),
		StorageType:               awsrds.StorageType_GP3,
		StorageEncrypted:          jsii.Bool(true),
		MultiAz:                   jsii.Bool(dbCfg.MultiAz),
		BackupRetention:           awscdk.Duration_Days(jsii.Number(dbCfg.BackupRetentionDays)),
		DeletionProtection:        jsii.Bool(dbCfg.DeletionProtection),
		EnablePerformanceInsights: jsii.Bool(dbCfg.EnablePerformanceInsights),
		AutoMinorVersionUpgrade:   jsii.Bool(true),
		CloudwatchLogsExports:     jsii.Strings("postgresql", "upgrade"),
		RemovalPolicy:             cfg.RemovalPolicy(),
	}
	if cfg.Monitoring.EnableDetailedMonitoring {
		instanceProps.MonitoringInterval = awscdk.Duration_Seconds(jsii.Number(60))
	}
	db.Instance = awsrds.NewDatabaseInstance(node, jsii.String("Instance"), instanceProps)

	if dbCfg.ReadReplica {
		db.ReadReplica = awsrds.NewDatabaseInstanceReadReplica(node, jsii.String("ReadReplica"), &awsrds.DatabaseInstanceReadReplicaProps{
			SourceDatabaseInstance:    db.Instance,
			InstanceType:              instanceType,
			InstanceIdentifier:        jsii.String(resource.Name(cfg.Name, "db", "replica")),
			Vpc:                       props.Vpc,
			VpcSubnets:                subnets,
			SecurityGroups:            &[]awsec2.ISecurityGroup{db.SecurityGroup},
			DeletionProtection:        jsii.Bool(dbCfg.DeletionProtection),
			EnablePerformanceInsights: jsii.Bool(dbCfg.EnablePerformanceInsights),
			AutoMinorVersionUpgrade:   jsii.Bool(true),
			RemovalPolicy:             cfg.RemovalPolicy(),
		})
		cdklogger.LogInfo(node, "", "Read replica enabled for %s (%s)", cfg.Name, dbCfg.InstanceClass)
	}

	if props.Bootstrap != nil {
		db.Bootstrap = newBootstrap(node, db, props, props.Bootstrap)
	}

	resource.TagComponent(node, "database")

	return db
}

// AllowFrom opens the PostgreSQL port to peer.
func (d *Database) AllowFrom(peer awsec2.IConnectable, description string) {
	d.Instance.Connections().AllowFrom(peer, awsec2.Port_Tcp(jsii.Number(Port)), jsii.String(description))
}

// Endpoint is the writer hostname.
func (d *Database) Endpoint() *string {
	return d.Instance.DbInstanceEndpointAddress()
}

// ReaderEndpoint is the replica hostname when a replica exists, otherwise the writer.
func (d *Database) ReaderEndpoint() *string {
	if d.ReadReplica != nil {
		return d.ReadReplica.DbInstanceEndpointAddress()
	}
	return d.Endpoint()
}
