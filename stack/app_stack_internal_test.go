package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructID(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"database", "reader-endpoint"}, "DatabaseReaderEndpoint"},
		{[]string{"deployment", "ecr-repository-uri"}, "DeploymentEcrRepositoryUri"},
		{[]string{"frontend", "thank-you-url"}, "FrontendThankYouUrl"},
		{[]string{"redis", "port"}, "RedisPort"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, constructID(tt.parts))
	}
}
