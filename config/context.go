package config

import (
	"errors"
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// CDK context keys, set in cdk.json or with `cdk synth --context key=value`.
const (
	ContextEnvironment     = "environment"
	ContextStackVariant    = "stackVariant"
	ContextConfigOverrides = "configOverrides"
)

// Stack variants selectable through the stackVariant context key.
const (
	StackVariantFull   = "full"
	StackVariantSimple = "simple"
)

// ContextString reads a string context value, falling back to def when unset.
// A value of the wrong type is a configuration error and panics.
func ContextString(scope constructs.Construct, key, def string) string {
	raw := scope.Node().TryGetContext(jsii.String(key))
	if raw == nil {
		return def
	}
	v, ok := raw.(string)
	if !ok {
		panic(fmt.Sprintf("context %q must be a string, got %T", key, raw))
	}
	return v
}

// EnvironmentName returns the environment selected with --context environment=<name>.
func EnvironmentName(scope constructs.Construct) string {
	return ContextString(scope, ContextEnvironment, string(EnvDev))
}

// ErrInvalidStackVariant is returned for a stackVariant other than full or simple.
var ErrInvalidStackVariant = errors.New("invalid stack variant")

// ParseStackVariant validates a stack variant name.
func ParseStackVariant(s string) (string, error) {
	switch s {
	case StackVariantFull, StackVariantSimple:
		return s, nil
	default:
		return "", fmt.Errorf("%w %q - allowed: %s | %s", ErrInvalidStackVariant, s, StackVariantFull, StackVariantSimple)
	}
}

// StackVariant returns the requested stack flavour, full (default) or simple.
func StackVariant(scope constructs.Construct) (string, error) {
	return ParseStackVariant(ContextString(scope, ContextStackVariant, StackVariantFull))
}

// StackName builds the CloudFormation stack name for a base name and environment,
// e.g. "Recruitment-Prod".
func StackName(base string, env Environment) string {
	return fmt.Sprintf("%s-%s", base, env.Title())
}

// IsStackInSynthesis reports whether assets of the scope's stack are being bundled,
// which is false for `cdk list` and for tests that disable bundling.
func IsStackInSynthesis(scope constructs.Construct) bool {
	stack := awscdk.Stack_Of(scope)
	if stack == nil {
		return false
	}
	return *stack.BundlingRequired()
}
