package sandbox

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// statusSentinel prefixes the one status line the bootstrap writes to stderr.
const statusSentinel = "\x1etta-status:"

//go:embed bootstrap.py.tmpl
var bootstrapSource string

var bootstrapTemplate = template.Must(template.New("bootstrap").Funcs(template.FuncMap{
	"py": pyLiteral,
}).Parse(bootstrapSource))

// renderBootstrap produces the interpreter program that builds the restricted
// context from caps and runs the code passed as its first argument.
func renderBootstrap(caps CapabilitySet) (string, error) {
	var b strings.Builder
	err := bootstrapTemplate.Execute(&b, struct {
		Sentinel    string
		ImportHook  string
		Builtins    []string
		Modules     []string
		HostModules []string
		Imports     []string
	}{
		Sentinel:    statusSentinel,
		ImportHook:  ImportHook,
		Builtins:    caps.Builtins(),
		Modules:     caps.Modules(),
		HostModules: caps.HostModules(),
		Imports:     caps.Imports(),
	})
	if err != nil {
		return "", fmt.Errorf("render bootstrap: %w", err)
	}
	return b.String(), nil
}

// pyLiteral encodes v as JSON, which is a valid Python literal for strings
// and lists of strings.
func pyLiteral(v interface{}) (string, error) {
	if list, ok := v.([]string); ok && list == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
