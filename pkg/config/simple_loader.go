package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile loads a YAML document into out, substituting ${VAR_NAME} references
// from the environment first.
func LoadFile(filePath string, out interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
