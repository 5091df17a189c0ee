// Package template renders the remote maintenance command for a server.
package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Leonid-98/optimize-table/internal/target"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DryRunFlag is passed to the remote script ahead of the database list in dry-run mode
const DryRunFlag = "-n"

// DefaultCommand is the remote script invocation used when none is configured
const DefaultCommand = "/usr/local/bin/optimize_table.sh %s"

// shellMeta lists characters that would change the meaning of the remote shell command
const shellMeta = " \t'\"`$;&|<>(){}[]*?!\\#~"

// BuildArgs joins database names into the argument string handed to the remote
// script, prefixed with DryRunFlag when dryRun is set. Names containing shell
// metacharacters are single-quoted; plain names are passed as they are.
func BuildArgs(databases []string, dryRun bool) (string, error) {
	if len(databases) == 0 {
		return "", fmt.Errorf("at least one database name is required")
	}
	for _, db := range databases {
		if db == "" {
			return "", fmt.Errorf("database name cannot be empty")
		}
		if strings.ContainsAny(db, "\x00\r\n") {
			return "", fmt.Errorf("database name %q contains a line break or NUL byte", db)
		}
	}

	args := ShellJoin(databases)
	if dryRun {
		args = DryRunFlag + " " + args
	}
	return args, nil
}

// ShellQuote returns s unchanged when the shell would read it as one plain
// word, and single-quoted otherwise.
func ShellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, shellMeta) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ShellJoin quotes each word as needed and joins them with spaces
func ShellJoin(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = ShellQuote(w)
	}
	return strings.Join(quoted, " ")
}

// TemplateContext provides data available in command templates
type TemplateContext struct {
	Args      string   `json:"args"`
	Databases []string `json:"databases"`
	DryRun    bool     `json:"dry_run"`
	Host      string   `json:"host"`
	User      string   `json:"user"`
	Port      int      `json:"port"`
}

// NewTemplateContext creates a template context for one server
func NewTemplateContext(t target.Target, databases []string, dryRun bool) (TemplateContext, error) {
	args, err := BuildArgs(databases, dryRun)
	if err != nil {
		return TemplateContext{}, err
	}
	return TemplateContext{
		Args:      args,
		Databases: databases,
		DryRun:    dryRun,
		Host:      t.Host,
		User:      t.User,
		Port:      t.Port,
	}, nil
}

// TemplateEngine provides command templating functionality
type TemplateEngine struct {
	templates map[string]*template.Template
}

// NewTemplateEngine creates a new template engine with the predefined templates loaded
func NewTemplateEngine() (*TemplateEngine, error) {
	te := &TemplateEngine{
		templates: make(map[string]*template.Template),
	}
	for name, templateStr := range PredefinedTemplates {
		if err := te.RegisterTemplate(name, templateStr); err != nil {
			return nil, fmt.Errorf("failed to load predefined template '%s': %w", name, err)
		}
	}
	return te, nil
}

// RegisterTemplate registers a named template
func (te *TemplateEngine) RegisterTemplate(name, templateStr string) error {
	tmpl, err := template.New(name).Funcs(templateFuncs()).Parse(templateStr)
	if err != nil {
		return fmt.Errorf("failed to parse template '%s': %w", name, err)
	}

	te.templates[name] = tmpl
	return nil
}

// Render produces the remote command for one server. command may name a
// predefined template, be an inline text/template, contain a single %s for the
// argument string, or be a bare path that gets the arguments appended.
func (te *TemplateEngine) Render(command string, ctx TemplateContext) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", fmt.Errorf("remote command cannot be empty")
	}

	if tmpl, exists := te.templates[command]; exists {
		return execute(tmpl, ctx)
	}

	if IsTemplate(command) {
		tmpl, err := template.New("inline").Funcs(templateFuncs()).Parse(command)
		if err != nil {
			return "", fmt.Errorf("failed to parse inline template: %w", err)
		}
		return execute(tmpl, ctx)
	}

	switch strings.Count(command, "%s") {
	case 0:
		return command + " " + ctx.Args, nil
	case 1:
		return fmt.Sprintf(command, ctx.Args), nil
	default:
		return "", fmt.Errorf("remote command %q must contain at most one %%s placeholder", command)
	}
}

func execute(tmpl *template.Template, ctx TemplateContext) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// templateFuncs returns custom template functions
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"title": cases.Title(language.English).String,
		"trim":  strings.TrimSpace,
		"join":  strings.Join,
		"quote": func(s string) string {
			return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
		},
		"shellJoin": ShellJoin,
		"hostShort": func(host string) string {
			if idx := strings.Index(host, "."); idx != -1 {
				return host[:idx]
			}
			return host
		},
	}
}

// PredefinedTemplates contains the built-in remote command layouts.
// "mysqlcheck" runs mysqlcheck directly and prints the chunk delimiter before
// each database, which is what the optimize script on the servers does; dry-run
// switches it to a read-only check.
var PredefinedTemplates = map[string]string{
	"mysqlcheck": `for db in {{shellJoin .Databases}}; do echo "=========="; ` +
		`mysqlcheck {{if .DryRun}}--check{{else}}--optimize{{end}} "$db" 2>&1; done`,
}

// IsTemplate checks if a command string contains template syntax
func IsTemplate(command string) bool {
	return strings.Contains(command, "{{") && strings.Contains(command, "}}")
}

// ValidateTemplate validates a command without executing it
func ValidateTemplate(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("remote command cannot be empty")
	}
	if _, exists := PredefinedTemplates[command]; exists {
		return nil
	}
	if IsTemplate(command) {
		_, err := template.New("validation").Funcs(templateFuncs()).Parse(command)
		return err
	}
	if strings.Count(command, "%s") > 1 {
		return fmt.Errorf("remote command %q must contain at most one %%s placeholder", command)
	}
	return nil
}
