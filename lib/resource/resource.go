// Package resource holds naming and tagging conventions shared by all constructs.
package resource

import (
	"fmt"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"recruitment-infra/config"
)

const (
	ProjectName = "recruitment"

	ProjectTagKey     = "Project"
	EnvironmentTagKey = "Environment"
	ManagedByTagKey   = "ManagedBy"
	ManagedByTagValue = "cdk"
	ComponentTagKey   = "Component"

	// MetricsNamespace is the CloudWatch namespace the application publishes to.
	MetricsNamespace = "Recruitment/App"
)

// Tag applies the project tags to scope and everything below it.
func Tag(scope constructs.IConstruct, env config.Environment) {
	tags := awscdk.Tags_Of(scope)
	tags.Add(jsii.String(ProjectTagKey), jsii.String(ProjectName), nil)
	tags.Add(jsii.String(EnvironmentTagKey), jsii.String(string(env)), nil)
	tags.Add(jsii.String(ManagedByTagKey), jsii.String(ManagedByTagValue), nil)
}

// TagComponent marks scope as belonging to one logical component (database, redis...).
func TagComponent(scope constructs.IConstruct, component string) {
	awscdk.Tags_Of(scope).Add(jsii.String(ComponentTagKey), jsii.String(component), nil)
}

// Name builds a physical resource name such as "recruitment-prod-redis".
func Name(env config.Environment, parts ...string) string {
	return strings.Join(append([]string{ProjectName, string(env)}, parts...), "-")
}

// ParameterPath builds an SSM parameter name such as "/recruitment/prod/database/endpoint".
func ParameterPath(env config.Environment, parts ...string) string {
	return fmt.Sprintf("/%s/%s/%s", ProjectName, env, strings.Join(parts, "/"))
}

// ParameterPrefix is the SSM path covering every parameter of an environment.
func ParameterPrefix(env config.Environment) string {
	return fmt.Sprintf("/%s/%s/", ProjectName, env)
}

var retentionSteps = []struct {
	days      int
	retention awslogs.RetentionDays
}{
	{1, awslogs.RetentionDays_ONE_DAY},
	{3, awslogs.RetentionDays_THREE_DAYS},
	{5, awslogs.RetentionDays_FIVE_DAYS},
	{7, awslogs.RetentionDays_ONE_WEEK},
	{14, awslogs.RetentionDays_TWO_WEEKS},
	{30, awslogs.RetentionDays_ONE_MONTH},
	{60, awslogs.RetentionDays_TWO_MONTHS},
	{90, awslogs.RetentionDays_THREE_MONTHS},
	{120, awslogs.RetentionDays_FOUR_MONTHS},
	{150, awslogs.RetentionDays_FIVE_MONTHS},
	{180, awslogs.RetentionDays_SIX_MONTHS},
	{365, awslogs.RetentionDays_ONE_YEAR},
	{400, awslogs.RetentionDays_THIRTEEN_MONTHS},
	{545, awslogs.RetentionDays_EIGHTEEN_MONTHS},
	{731, awslogs.RetentionDays_TWO_YEARS},
	{1827, awslogs.RetentionDays_FIVE_YEARS},
	{3653, awslogs.RetentionDays_TEN_YEARS},
}

// LogRetention maps a day count onto the smallest CloudWatch retention that keeps
// logs at least that long. Anything beyond ten years is kept forever.
func LogRetention(days int) awslogs.RetentionDays {
	for _, step := range retentionSteps {
		if days <= step.days {
			return step.retention
		}
	}
	return awslogs.RetentionDays_INFINITE
}
