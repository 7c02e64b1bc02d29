package bootstrap

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"

	"github.com/imamik/nodeseed/internal/cloud"
)

// DefaultScript installs a Salt minion with the upstream bootstrap script
// and points it at vars.master. vars.version selects the Salt release.
const DefaultScript = `#!/bin/sh
set -eu

mkdir -p /etc/salt
cat > /etc/salt/minion <<'MINION'
master: {{ .Vars.master | default "salt" }}
id: {{ .Name }}
MINION

curl -fsSL {{ .Vars.bootstrap_url | default "https://github.com/saltstack/salt-bootstrap/releases/latest/download/bootstrap-salt.sh" | squote }} -o /tmp/bootstrap-salt.sh
sh /tmp/bootstrap-salt.sh -P -i {{ .Name | squote }} -A {{ .Vars.master | default "salt" | squote }} {{ .Vars.version | default "stable" | squote }}
`

// ScriptData is the template input of a bootstrap script.
type ScriptData struct {
	Name    string
	Address string
	Node    *cloud.NodeRecord
	Vars    map[string]string
}

// Script is a parsed bootstrap script template.
type Script struct {
	tmpl *template.Template
}

// ParseScript parses body as a template. An empty body selects DefaultScript.
func ParseScript(name, body string) (*Script, error) {
	if strings.TrimSpace(body) == "" {
		body = DefaultScript
	}
	tmpl, err := template.New(name).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=zero").
		Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bootstrap script %s: %w", name, err)
	}
	return &Script{tmpl: tmpl}, nil
}

// Render executes the template for one node.
func (s *Script) Render(data ScriptData) (string, error) {
	if data.Vars == nil {
		data.Vars = map[string]string{}
	}
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render bootstrap script %s for %s: %w", s.tmpl.Name(), data.Name, err)
	}
	return buf.String(), nil
}

type cloudConfig struct {
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys"`
}

// AuthorizedKeyUserData returns cloud-init user data that installs
// publicKey for the default login user.
func AuthorizedKeyUserData(publicKey string) (string, error) {
	body, err := yaml.Marshal(cloudConfig{SSHAuthorizedKeys: []string{strings.TrimSpace(publicKey)}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal cloud-config: %w", err)
	}
	return "#cloud-config\n" + string(body), nil
}
