// Command dbinit is the CloudFormation custom resource that prepares the
// recruitment database: extensions and schemas, created idempotently.
package main

import (
	"os"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	level := zapcore.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if err := level.Set(raw); err != nil {
			level = zapcore.InfoLevel
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	sess := session.Must(session.NewSession())

	b := &bootstrapper{
		secrets: secretsmanager.New(sess),
		connect: pgxConnect,
		logger:  logger,
	}

	lambda.Start(cfn.LambdaWrap(b.Handle))
}
