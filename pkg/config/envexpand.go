package config

import (
	"bytes"
	"os"
	"text/template"
)

// ExpandEnv expands environment variables in config file content using Go
// templates. Uses {{.VAR_NAME}} syntax so literal $ characters in passkeys
// and command strings pass through untouched.
//
// Missing variables expand to empty string. Content that fails to parse as
// a template is returned unchanged and left to the TOML parser.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		// Split only on the first = to handle values containing =.
		if idx := bytes.IndexByte([]byte(env), '='); idx > 0 {
			envMap[env[:idx]] = env[idx+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envMap); err != nil {
		return data
	}

	return buf.Bytes()
}
