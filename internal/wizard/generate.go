package wizard

import (
	"bytes"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"
)

// WizardAnswers holds all user responses from the wizard.
type WizardAnswers struct {
	// Fabric shape
	Density  int
	Base     string
	Scope    string
	Verify   bool
	TierSize TierSize

	// Gateway settings
	Driver      string
	OfctlPath   string
	VsctlPath   string
	Protocol    string
	Parallelism int

	// Output settings
	Output      string
	Format      string
	Theme       string
	Direction   string
	DetailLevel string
	AutoRender  bool
}

// TierSize is the switch count per tier. Zero fields are left out of the
// generated file so the built-in testbed shape applies.
type TierSize struct {
	Edge        int
	Aggregation int
	Core        int
	Metro       int
	CDN         int
	Servers     int
}

// Custom reports whether any tier size was set.
func (s TierSize) Custom() bool {
	return s != TierSize{}
}

const configTemplate = `# ipman configuration
# Keys can also be set as IPMAN_<SECTION>_<KEY> environment variables.

density: {{ .Density }}
{{- if .TierSize.Custom }}

fabric:
{{- with .TierSize }}
{{- if .Edge }}
  edge: {{ .Edge }}
{{- end }}
{{- if .Aggregation }}
  aggregation: {{ .Aggregation }}
{{- end }}
{{- if .Core }}
  core: {{ .Core }}
{{- end }}
{{- if .Metro }}
  metro: {{ .Metro }}
{{- end }}
{{- if .CDN }}
  cdn: {{ .CDN }}
{{- end }}
{{- if .Servers }}
  servers: {{ .Servers }}
{{- end }}
{{- end }}
{{- end }}

addressing:
  base: {{ .Base }}

compile:
  scope: {{ .Scope }}
  verify: {{ if .Verify }}true{{ else }}false{{ end }}

gateway:
  driver: {{ .Driver }}
{{- if .OfctlPath }}
  ofctl_path: {{ .OfctlPath }}
{{- end }}
{{- if .VsctlPath }}
  vsctl_path: {{ .VsctlPath }}
{{- end }}
  protocol: {{ .Protocol }}
  parallelism: {{ .Parallelism }}
{{- if .Output }}

output: {{ .Output }}
{{- end }}

render:
  format: {{ .Format }}
  theme: {{ .Theme }}
  direction: {{ .Direction }}
  detail_level: {{ .DetailLevel }}
  auto_render: {{ if .AutoRender }}true{{ else }}false{{ end }}
`

var configTmpl = template.Must(template.New("config").Parse(configTemplate))

// GenerateConfig renders the YAML config from wizard answers.
func GenerateConfig(answers WizardAnswers) (string, error) {
	if answers.Density == 0 {
		answers.Density = 15
	}
	if answers.Base == "" {
		answers.Base = "10.0.0.0/8"
	}
	if answers.Scope == "" {
		answers.Scope = "host-server"
	}
	if answers.Driver == "" {
		answers.Driver = "ofctl"
	}
	if answers.Protocol == "" {
		answers.Protocol = "OpenFlow13"
	}
	if answers.Parallelism == 0 {
		answers.Parallelism = 4
	}
	if answers.Format == "" {
		answers.Format = "table"
	}
	if answers.Theme == "" {
		answers.Theme = "default"
	}
	if answers.Direction == "" {
		answers.Direction = "down"
	}
	if answers.DetailLevel == "" {
		answers.DetailLevel = "standard"
	}

	var buf bytes.Buffer
	if err := configTmpl.Execute(&buf, answers); err != nil {
		return "", err
	}

	// paths typed into the wizard can break the document
	var check map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &check); err != nil {
		return "", fmt.Errorf("generated config is not valid YAML: %w", err)
	}

	return buf.String(), nil
}
