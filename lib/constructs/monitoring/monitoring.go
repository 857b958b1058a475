// Package monitoring declares the alarm topic, CloudWatch alarms and dashboard.
package monitoring

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatch"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatchactions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	elbv2 "github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsrds"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssns"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssnssubscriptions"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"recruitment-infra/config"
	"recruitment-infra/lib/cdklogger"
	"recruitment-infra/lib/resource"
)

const gib = 1024 * 1024 * 1024

// MonitoringProps holds the resources to watch. Any of them may be nil, in which
// case its alarms are skipped.
type MonitoringProps struct {
	Config     *config.EnvironmentConfig
	AlarmEmail string

	Service      awsecs.FargateService
	LoadBalancer elbv2.ApplicationLoadBalancer
	TargetGroup  elbv2.ApplicationTargetGroup
	Database     awsrds.DatabaseInstance
}

type Monitoring struct {
	constructs.Construct

	Topic     awssns.Topic
	Alarms    map[string]awscloudwatch.Alarm
	Dashboard awscloudwatch.Dashboard
}

type alarmSpec struct {
	id          string
	description string
	metric      awscloudwatch.IMetric
	threshold   float64
	comparison  awscloudwatch.ComparisonOperator
}

func NewMonitoring(scope constructs.Construct, id string, props *MonitoringProps) *Monitoring {
	node := constructs.NewConstruct(scope, jsii.String(id))
	cfg := props.Config
	m := &Monitoring{
		Construct: node,
		Alarms:    map[string]awscloudwatch.Alarm{},
	}

	m.Topic = awssns.NewTopic(node, jsii.String("AlarmTopic"), &awssns.TopicProps{
		TopicName:   jsii.String(resource.Name(cfg.Name, "alarms")),
		DisplayName: jsii.String(fmt.Sprintf("Recruitment %s alarms", cfg.Name)),
	})
	if props.AlarmEmail != "" {
		m.Topic.AddSubscription(awssnssubscriptions.NewEmailSubscription(jsii.String(props.AlarmEmail), nil))
	} else {
		cdklogger.LogInfo(node, "", "No alarm e-mail configured; subscribe to %s manually", resource.Name(cfg.Name, "alarms"))
	}

	specs := alarmSpecs(props)
	action := awscloudwatchactions.NewSnsAction(m.Topic)
	for _, spec := range specs {
		alarm := awscloudwatch.NewAlarm(node, jsii.String(spec.id), &awscloudwatch.AlarmProps{
			AlarmName:          jsii.String(resource.Name(cfg.Name, spec.id)),
			AlarmDescription:   jsii.String(spec.description),
			Metric:             spec.metric,
			Threshold:          jsii.Number(spec.threshold),
			EvaluationPeriods:  jsii.Number(cfg.Monitoring.EvaluationPeriods),
			ComparisonOperator: spec.comparison,
			TreatMissingData:   awscloudwatch.TreatMissingData_NOT_BREACHING,
		})
		alarm.AddAlarmAction(action)
		alarm.AddOkAction(action)
		m.Alarms[spec.id] = alarm
	}

	if cfg.Monitoring.EnableDashboard {
		m.Dashboard = newDashboard(node, cfg, specs)
	}

	resource.TagComponent(node, "monitoring")

	return m
}

func alarmSpecs(props *MonitoringProps) []alarmSpec {
	mon := props.Config.Monitoring
	period := &awscloudwatch.MetricOptions{Period: awscdk.Duration_Minutes(jsii.Number(5))}
	sum := &awscloudwatch.MetricOptions{Period: awscdk.Duration_Minutes(jsii.Number(5)), Statistic: jsii.String("Sum")}
	var specs []alarmSpec

	if props.Service != nil {
		specs = append(specs,
			alarmSpec{
				id:          "ecs-cpu-high",
				description: fmt.Sprintf("ECS service CPU above %d%%", mon.CpuAlarmThreshold),
				metric:      props.Service.MetricCpuUtilization(period),
				threshold:   float64(mon.CpuAlarmThreshold),
				comparison:  awscloudwatch.ComparisonOperator_GREATER_THAN_THRESHOLD,
			},
			alarmSpec{
				id:          "ecs-memory-high",
				description: fmt.Sprintf("ECS service memory above %d%%", mon.MemoryAlarmThreshold),
				metric:      props.Service.MetricMemoryUtilization(period),
				threshold:   float64(mon.MemoryAlarmThreshold),
				comparison:  awscloudwatch.ComparisonOperator_GREATER_THAN_THRESHOLD,
			},
		)
	}

	if props.LoadBalancer != nil {
		specs = append(specs, alarmSpec{
			id:          "alb-5xx",
			description: fmt.Sprintf("More than %d target 5xx responses in 5 minutes", mon.Http5xxAlarmThreshold),
			metric:      props.LoadBalancer.Metrics().HttpCodeTarget(elbv2.HttpCodeTarget_TARGET_5XX_COUNT, sum),
			threshold:   float64(mon.Http5xxAlarmThreshold),
			comparison:  awscloudwatch.ComparisonOperator_GREATER_THAN_THRESHOLD,
		})
	}

	if props.TargetGroup != nil {
		specs = append(specs,
			alarmSpec{
				id:          "alb-response-time",
				description: fmt.Sprintf("Average target response time above %.1fs", mon.ResponseTimeThresholdSec),
				metric:      props.TargetGroup.Metrics().TargetResponseTime(period),
				threshold:   mon.ResponseTimeThresholdSec,
				comparison:  awscloudwatch.ComparisonOperator_GREATER_THAN_THRESHOLD,
			},
			alarmSpec{
				id:          "alb-unhealthy-hosts",
				description: "At least one unhealthy target",
				metric:      props.TargetGroup.Metrics().UnhealthyHostCount(period),
				threshold:   1,
				comparison:  awscloudwatch.ComparisonOperator_GREATER_THAN_OR_EQUAL_TO_THRESHOLD,
			},
		)
	}

	if props.Database != nil {
		specs = append(specs,
			alarmSpec{
				id:          "rds-cpu-high",
				description: fmt.Sprintf("Database CPU above %d%%", mon.CpuAlarmThreshold),
				metric:      props.Database.MetricCPUUtilization(period),
				threshold:   float64(mon.CpuAlarmThreshold),
				comparison:  awscloudwatch.ComparisonOperator_GREATER_THAN_THRESHOLD,
			},
			alarmSpec{
				id:          "rds-free-storage-low",
				description: fmt.Sprintf("Database free storage below %d GiB", mon.DbFreeStorageThresholdGiB),
				metric:      props.Database.MetricFreeStorageSpace(period),
				threshold:   float64(mon.DbFreeStorageThresholdGiB) * gib,
				comparison:  awscloudwatch.ComparisonOperator_LESS_THAN_THRESHOLD,
			},
		)
	}

	return specs
}

// newDashboard lays the alarm metrics out two graphs per row.
func newDashboard(scope constructs.Construct, cfg *config.EnvironmentConfig, specs []alarmSpec) awscloudwatch.Dashboard {
	dashboard := awscloudwatch.NewDashboard(scope, jsii.String("Dashboard"), &awscloudwatch.DashboardProps{
		DashboardName:   jsii.String(resource.Name(cfg.Name, "overview")),
		DefaultInterval: awscdk.Duration_Hours(jsii.Number(3)),
	})

	widgets := make([]awscloudwatch.IWidget, 0, len(specs))
	for _, spec := range specs {
		widgets = append(widgets, awscloudwatch.NewGraphWidget(&awscloudwatch.GraphWidgetProps{
			Title: jsii.String(spec.description),
			Left:  &[]awscloudwatch.IMetric{spec.metric},
			LeftAnnotations: &[]*awscloudwatch.HorizontalAnnotation{
				{Value: jsii.Number(spec.threshold), Label: jsii.String("threshold")},
			},
			Width:  jsii.Number(12),
			Height: jsii.Number(6),
		}))
	}
	for i := 0; i < len(widgets); i += 2 {
		dashboard.AddWidgets(widgets[i:min(i+2, len(widgets))]...)
	}

	return dashboard
}
