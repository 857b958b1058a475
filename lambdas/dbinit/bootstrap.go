package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"regexp"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// Properties mirrors the custom resource properties declared by the database construct.
// CloudFormation delivers every scalar as a string.
type Properties struct {
	SecretArn    string   `mapstructure:"SecretArn"`
	Host         string   `mapstructure:"Host"`
	Port         string   `mapstructure:"Port"`
	DatabaseName string   `mapstructure:"DatabaseName"`
	Schemas      []string `mapstructure:"Schemas"`
	Extensions   []string `mapstructure:"Extensions"`
	Version      string   `mapstructure:"Version"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

type connectFunc func(ctx context.Context, connString string) (execer, error)

func pgxConnect(ctx context.Context, connString string) (execer, error) {
	return pgx.Connect(ctx, connString)
}

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// bootstrapper creates schemas and extensions in the application database.
type bootstrapper struct {
	secrets secretsmanageriface.SecretsManagerAPI
	connect connectFunc
	logger  *zap.Logger
}

// Handle is the cfn.CustomResourceFunction for Custom::DatabaseBootstrap.
func (b *bootstrapper) Handle(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	var props Properties
	if err := mapstructure.Decode(event.ResourceProperties, &props); err != nil {
		return "", nil, fmt.Errorf("decode resource properties: %w", err)
	}

	physicalID := event.PhysicalResourceID
	if physicalID == "" {
		physicalID = fmt.Sprintf("dbinit-%s", props.DatabaseName)
	}

	logger := b.logger.With(
		zap.String("requestType", string(event.RequestType)),
		zap.String("database", props.DatabaseName),
		zap.String("version", props.Version),
	)

	switch event.RequestType {
	case cfn.RequestCreate, cfn.RequestUpdate:
	case cfn.RequestDelete:
		// Schemas hold application data and outlive the stack resource.
		logger.Info("delete requested, leaving database untouched")
		return physicalID, nil, nil
	default:
		return physicalID, nil, fmt.Errorf("unknown request type %s", event.RequestType)
	}

	statements, err := Statements(props)
	if err != nil {
		return physicalID, nil, err
	}

	creds, err := b.credentials(ctx, props.SecretArn)
	if err != nil {
		return physicalID, nil, err
	}

	conn, err := b.connect(ctx, ConnString(props, creds))
	if err != nil {
		return physicalID, nil, fmt.Errorf("connect to %s: %w", props.Host, err)
	}
	defer func() {
		if cerr := conn.Close(ctx); cerr != nil {
			logger.Warn("close connection", zap.Error(cerr))
		}
	}()

	for _, stmt := range statements {
		logger.Info("executing", zap.String("statement", stmt))
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return physicalID, nil, fmt.Errorf("execute %q: %w", stmt, err)
		}
	}

	return physicalID, map[string]interface{}{
		"Statements": len(statements),
	}, nil
}

func (b *bootstrapper) credentials(ctx context.Context, secretArn string) (credentials, error) {
	out, err := b.secrets.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretArn),
	})
	if err != nil {
		return credentials{}, fmt.Errorf("get secret %s: %w", secretArn, err)
	}

	var creds credentials
	if err := json.Unmarshal([]byte(aws.StringValue(out.SecretString)), &creds); err != nil {
		return credentials{}, fmt.Errorf("decode secret %s: %w", secretArn, err)
	}
	if creds.Username == "" || creds.Password == "" {
		return credentials{}, fmt.Errorf("secret %s has no username or password", secretArn)
	}
	return creds, nil
}

// Statements returns the idempotent DDL for props, extensions first.
func Statements(props Properties) ([]string, error) {
	stmts := make([]string, 0, len(props.Extensions)+len(props.Schemas))
	for _, ext := range props.Extensions {
		if !identifierPattern.MatchString(ext) {
			return nil, fmt.Errorf("invalid extension name %q", ext)
		}
		stmts = append(stmts, "CREATE EXTENSION IF NOT EXISTS "+pgx.Identifier{ext}.Sanitize())
	}
	for _, schema := range props.Schemas {
		if !identifierPattern.MatchString(schema) {
			return nil, fmt.Errorf("invalid schema name %q", schema)
		}
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize())
	}
	return stmts, nil
}

// ConnString builds a TLS connection URL for the instance.
func ConnString(props Properties, creds credentials) string {
	port := props.Port
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(creds.Username, creds.Password),
		Host:     net.JoinHostPort(props.Host, port),
		Path:     "/" + props.DatabaseName,
		RawQuery: "sslmode=require&connect_timeout=10",
	}
	return u.String()
}
