package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"recruitment-infra/config"
	"recruitment-infra/stack"
)

func main() {
	logger := zap.Must(zap.NewDevelopment())
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	app := awscdk.NewApp(nil)

	deploy, err := config.LoadDeployVariables()
	if err != nil {
		logger.Fatal("Failed to load deploy variables", zap.Error(err))
	}

	if _, err := newStack(app, deploy); err != nil {
		logger.Error("Failed to create stack", zap.Error(err))
		os.Exit(1)
	}

	app.Synth(nil)
}

// newStack resolves the environment configuration from the app context and creates
// the selected stack variant in app.
func newStack(app awscdk.App, deploy config.DeployVariables) (awscdk.Stack, error) {
	variant, err := config.StackVariant(app)
	if err != nil {
		return nil, err
	}

	cfg, err := config.New(config.EnvironmentName(app))
	if err != nil {
		return nil, err
	}

	overrides := lo.CoalesceOrEmpty(config.ContextString(app, config.ContextConfigOverrides, ""), deploy.OverridesPath)
	if err := config.ApplyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	props := awscdk.StackProps{
		Env:         deploy.AwsEnvironment(),
		Description: lo.ToPtr(fmt.Sprintf("Recruitment application infrastructure (%s)", cfg.Name)),
	}

	zap.L().Info("Synthesizing stack",
		zap.String("environment", string(cfg.Name)),
		zap.String("variant", variant),
		zap.Bool("domain", deploy.HasDomain()),
	)

	switch variant {
	case config.StackVariantSimple:
		s := stack.NewSimpleRecruitmentStack(app, config.StackName(stack.SimpleStackBaseName, cfg.Name), &stack.SimpleRecruitmentStackProps{
			StackProps: props,
			Config:     cfg,
			Deploy:     deploy,
		})
		return s.Stack, nil
	default:
		s := stack.NewRecruitmentStack(app, config.StackName(stack.StackBaseName, cfg.Name), &stack.RecruitmentStackProps{
			StackProps: props,
			Config:     cfg,
			Deploy:     deploy,
		})
		return s.Stack, nil
	}
}
