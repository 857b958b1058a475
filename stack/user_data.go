package stack

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

const frontendUserDataTemplate = "frontend-user-data.sh.tmpl"

// FrontendUserData is rendered into the boot script of the frontend instance.
// Values may carry unresolved CDK tokens; they are resolved at synth time.
type FrontendUserData struct {
	Environment   string
	NodeEnv       string
	Region        string
	Port          int
	ContainerName string

	Registry   string
	Repository string
	ImageTag   string

	DatabaseHost      string
	DatabasePort      int
	DatabaseName      string
	DatabaseSecretArn string

	// Extra is written to the env file with upper-cased keys.
	Extra map[string]string
}

// RenderFrontendUserData executes the embedded boot script template.
func RenderFrontendUserData(data FrontendUserData) (string, error) {
	tmpl, err := template.New(frontendUserDataTemplate).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		ParseFS(templatesFS, "templates/"+frontendUserDataTemplate)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", frontendUserDataTemplate, err)
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", frontendUserDataTemplate, err)
	}

	return out.String(), nil
}
