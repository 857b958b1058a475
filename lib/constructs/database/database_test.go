package database_test

import (
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2/assertions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/jsii-runtime-go"
	"github.com/stretchr/testify/assert"

	"recruitment-infra/config"
	"recruitment-infra/lib/constructs/database"
	"recruitment-infra/lib/testutil"
)

func TestDatabaseSynth(t *testing.T) {
	tests := []struct {
		env           config.Environment
		instances     int
		instanceClass string
		multiAz       bool
	}{
		{config.EnvDev, 1, "db.t3.micro", false},
		{config.EnvStaging, 1, "db.t3.small", false},
		{config.EnvProd, 2, "db.r6g.large", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.env), func(t *testing.T) {
			stack := testutil.NewStack()
			cfg := testutil.Config(t, tt.env)

			db := database.NewDatabase(stack, "Database", &database.DatabaseProps{
				Config: cfg,
				Vpc:    testutil.NewVpc(stack),
			})
			assert.Equal(t, tt.env == config.EnvProd, db.ReadReplica != nil)
			assert.Nil(t, db.Bootstrap)

			template := assertions.Template_FromStack(stack, nil)
			template.ResourceCountIs(jsii.String("AWS::RDS::DBInstance"), jsii.Number(tt.instances))
			template.ResourceCountIs(jsii.String("AWS::SecretsManager::Secret"), jsii.Number(1))
			template.HasResourceProperties(jsii.String("AWS::RDS::DBInstance"), map[string]interface{}{
				"DBInstanceClass":     tt.instanceClass,
				"Engine":              "postgres",
				"MultiAZ":             tt.multiAz,
				"AllocatedStorage":    assertions.Match_AnyValue(),
				"MaxAllocatedStorage": cfg.Database.MaxAllocatedStorage,
				"StorageEncrypted":    true,
				"DeletionProtection":  cfg.Database.DeletionProtection,
				"DBName":              database.DefaultDatabaseName,
			})
			template.HasResourceProperties(jsii.String("AWS::SecretsManager::Secret"), map[string]interface{}{
				"Name": "/recruitment/" + string(tt.env) + "/database/credentials",
			})
		})
	}
}

func TestDatabaseRemovalPolicy(t *testing.T) {
	for env, policy := range map[config.Environment]string{config.EnvProd: "Retain", config.EnvDev: "Delete"} {
		stack := testutil.NewStack()
		database.NewDatabase(stack, "Database", &database.DatabaseProps{
			Config: testutil.Config(t, env),
			Vpc:    testutil.NewVpc(stack),
		})

		template := assertions.Template_FromStack(stack, nil)
		template.HasResource(jsii.String("AWS::RDS::DBInstance"), map[string]interface{}{
			"DeletionPolicy": policy,
		})
	}
}

func TestDatabaseAllowFrom(t *testing.T) {
	stack := testutil.NewStack()
	vpc := testutil.NewVpc(stack)
	db := database.NewDatabase(stack, "Database", &database.DatabaseProps{
		Config: testutil.Config(t, config.EnvDev),
		Vpc:    vpc,
	})

	peer := awsec2.NewSecurityGroup(stack, jsii.String("Peer"), &awsec2.SecurityGroupProps{Vpc: vpc})
	db.AllowFrom(peer, "web tasks")

	template := assertions.Template_FromStack(stack, nil)
	template.HasResourceProperties(jsii.String("AWS::EC2::SecurityGroupIngress"), map[string]interface{}{
		"FromPort":    database.Port,
		"ToPort":      database.Port,
		"Description": "web tasks",
	})
}

func TestDatabaseBootstrap(t *testing.T) {
	stack := testutil.NewStack()
	db := database.NewDatabase(stack, "Database", &database.DatabaseProps{
		Config: testutil.Config(t, config.EnvStaging),
		Vpc:    testutil.NewVpc(stack),
		Bootstrap: &database.BootstrapOptions{
			Schemas:    []string{"app"},
			Extensions: []string{"pgcrypto"},
			Version:    "1",
		},
	})
	assert.NotNil(t, db.Bootstrap)

	template := assertions.Template_FromStack(stack, nil)
	template.HasResourceProperties(jsii.String("AWS::Lambda::Function"), map[string]interface{}{
		"Runtime":       "provided.al2023",
		"Architectures": []interface{}{"arm64"},
	})
	template.HasResourceProperties(jsii.String(database.BootstrapResourceType), map[string]interface{}{
		"DatabaseName": database.DefaultDatabaseName,
		"Schemas":      []interface{}{"app"},
		"Extensions":   []interface{}{"pgcrypto"},
		"Version":      "1",
	})
}
