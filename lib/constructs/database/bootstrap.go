package database

import (
	"path/filepath"
	"runtime"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdklambdagoalpha/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/samber/lo"

	"recruitment-infra/config"
)

// BootstrapResourceType is the CloudFormation type of the schema bootstrap resource.
const BootstrapResourceType = "Custom::DatabaseBootstrap"

// BootstrapOptions selects what the bootstrap function creates inside the database.
type BootstrapOptions struct {
	Schemas    []string
	Extensions []string
	// Version forces the resource to re-run when bumped.
	Version string
	// SubnetType is where the function runs; it needs egress to reach Secrets
	// Manager and the CloudFormation response URL. Defaults to PRIVATE_WITH_EGRESS.
	SubnetType awsec2.SubnetType
}

// bootstrapVariables tune the function from the synth environment.
type bootstrapVariables struct {
	LogLevel string `env:"DBINIT_LOG_LEVEL" envDefault:"info"`
}

// newBootstrap declares the dbinit function and the custom resource invoking it.
func newBootstrap(scope constructs.Construct, db *Database, props *DatabaseProps, opts *BootstrapOptions) awscdk.CustomResource {
	node := constructs.NewConstruct(scope, jsii.String("Bootstrap"))

	subnetType := opts.SubnetType
	if subnetType == "" {
		subnetType = awsec2.SubnetType_PRIVATE_WITH_EGRESS
	}

	vars := config.GetEnvironmentVariables[bootstrapVariables](node)

	sg := awsec2.NewSecurityGroup(node, jsii.String("FunctionSG"), &awsec2.SecurityGroupProps{
		Vpc:              props.Vpc,
		Description:      jsii.String("Outbound access for the database bootstrap function"),
		AllowAllOutbound: jsii.Bool(true),
	})
	db.AllowFrom(sg, "Allow database bootstrap function")

	fn := awscdklambdagoalpha.NewGoFunction(node, jsii.String("Function"), &awscdklambdagoalpha.GoFunctionProps{
		Entry:        jsii.String(filepath.Join(repositoryRoot(), "lambdas", "dbinit")),
		ModuleDir:    jsii.String(filepath.Join(repositoryRoot(), "go.mod")),
		Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
		Architecture: awslambda.Architecture_ARM_64(),
		Timeout:      awscdk.Duration_Minutes(jsii.Number(2)),
		MemorySize:   jsii.Number(256),
		Vpc:          props.Vpc,
		VpcSubnets:   &awsec2.SubnetSelection{SubnetType: subnetType},
		SecurityGroups: &[]awsec2.ISecurityGroup{
			sg,
		},
		LogRetention: awslogs.RetentionDays_ONE_MONTH,
		Environment: &map[string]*string{
			"LOG_LEVEL": jsii.String(lo.CoalesceOrEmpty(vars.LogLevel, "info")),
		},
		Bundling: &awscdklambdagoalpha.BundlingOptions{
			GoBuildFlags: jsii.Strings(`-ldflags "-s -w"`),
		},
	})
	db.Secret.GrantRead(fn, nil)

	cr := awscdk.NewCustomResource(node, jsii.String("Resource"), &awscdk.CustomResourceProps{
		ServiceToken: fn.FunctionArn(),
		ResourceType: jsii.String(BootstrapResourceType),
		Properties: &map[string]interface{}{
			"SecretArn":    db.Secret.SecretArn(),
			"Host":         db.Instance.DbInstanceEndpointAddress(),
			"Port":         db.Instance.DbInstanceEndpointPort(),
			"DatabaseName": jsii.String(db.DatabaseName),
			"Schemas":      jsii.Strings(opts.Schemas...),
			"Extensions":   jsii.Strings(opts.Extensions...),
			"Version":      jsii.String(opts.Version),
		},
	})
	cr.Node().AddDependency(db.Instance)

	return cr
}

func repositoryRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("unable to get current file path")
	}
	return filepath.Join(filepath.Dir(filename), "..", "..", "..")
}
