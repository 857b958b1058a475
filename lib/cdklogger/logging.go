// Package cdklogger attaches synth-time messages to constructs. The messages end
// up in the cloud assembly metadata and are printed by `cdk synth`.
package cdklogger

import (
	"fmt"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// LogInfo adds an INFO annotation to scope.
func LogInfo(scope constructs.Construct, constructID string, format string, args ...interface{}) {
	awscdk.Annotations_Of(scope).AddInfo(jsii.String(message(scope, constructID, format, args...)))
}

// LogWarning adds a WARNING annotation to scope. `cdk synth --strict` fails on these.
func LogWarning(scope constructs.Construct, constructID string, format string, args ...interface{}) {
	awscdk.Annotations_Of(scope).AddWarning(jsii.String(message(scope, constructID, format, args...)))
}

// LogError adds an ERROR annotation to scope, which aborts deployment.
func LogError(scope constructs.Construct, constructID string, format string, args ...interface{}) {
	awscdk.Annotations_Of(scope).AddError(jsii.String(message(scope, constructID, format, args...)))
}

// message prefixes the text with [constructID] unless the scope path already ends
// with that ID.
func message(scope constructs.Construct, constructID string, format string, args ...interface{}) string {
	text := fmt.Sprintf(format, args...)
	if constructID == "" {
		return text
	}
	path := *scope.Node().Path()
	if path == constructID || strings.HasSuffix(path, "/"+constructID) {
		return text
	}
	return fmt.Sprintf("[%s] %s", constructID, text)
}
