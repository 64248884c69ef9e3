package stub

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"mvdan.cc/sh/v3/syntax"
)

// Dialect selects the language of the rendered installer.
type Dialect string

const (
	// DialectNode renders a script run with the node binary.
	DialectNode Dialect = "node"
	// DialectShell renders a POSIX shell script.
	DialectShell Dialect = "sh"
)

const (
	// scriptBase is the file name of the installer without extension.
	scriptBase = "installArchSpecificPackage"
	// defaultBinDir is the canonical binary directory inside the metapackage.
	defaultBinDir = "bin"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var (
	// errUnknownDialect is returned for dialects without a template.
	errUnknownDialect = errors.New("unknown stub dialect")
	// errMissingParam is returned when a required parameter is empty.
	errMissingParam = errors.New("missing stub parameter")
	// errInvalidScript is returned when the rendered shell script does not parse.
	errInvalidScript = errors.New("rendered script is invalid")
)

// Params is the full input of Render.
type Params struct {
	// Product is the executable name linked into BinDir.
	Product string
	// Version is the exact version of the architecture package to install.
	Version string
	// PackagePrefix prefixes "-<platform>-<arch>" to form the package name.
	PackagePrefix string
	// BinDir is the canonical binary directory, "bin" when empty.
	BinDir string
}

// Script is a rendered installer ready to be written into the metapackage.
type Script struct {
	// Filename is the name the script must be written under.
	Filename string
	// Hook is the preinstall command that runs the script.
	Hook string
	// Content is the script text.
	Content []byte
	// Mode is the file mode to write the script with.
	Mode fs.FileMode
}

// ParseDialect validates a dialect name coming from flags or config.
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(name))); d {
	case DialectNode, DialectShell:
		return d, nil
	case "":
		return DialectNode, nil
	default:
		return "", fmt.Errorf("%w %q", errUnknownDialect, name)
	}
}

// Hook returns the preinstall command for the dialect without rendering.
func (d Dialect) Hook() string {
	if d == DialectShell {
		return "sh " + d.Filename()
	}

	return "node " + scriptBase
}

// Filename returns the name the installer is written under.
func (d Dialect) Filename() string {
	if d == DialectShell {
		return scriptBase + ".sh"
	}

	return scriptBase + ".js"
}

// Render produces the installer script for the dialect.
func Render(d Dialect, p Params) (*Script, error) {
	if p.Product == "" || p.Version == "" || p.PackagePrefix == "" {
		return nil, fmt.Errorf("%w: product, version and package prefix are required", errMissingParam)
	}

	if p.BinDir == "" {
		p.BinDir = defaultBinDir
	}

	var (
		name string
		mode fs.FileMode
	)

	switch d {
	case DialectNode:
		name, mode = "install.js.tmpl", 0o644
	case DialectShell:
		name, mode = "install.sh.tmpl", 0o755
	default:
		return nil, fmt.Errorf("%w %q", errUnknownDialect, d)
	}

	tmpl, err := template.New(name).
		Funcs(template.FuncMap{
			"jsString": jsString,
			"shQuote":  shQuote,
		}).
		ParseFS(templatesFS, "templates/"+name)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}

	if d == DialectShell {
		if err = validateShell(buf.Bytes()); err != nil {
			return nil, err
		}
	}

	return &Script{
		Filename: d.Filename(),
		Hook:     d.Hook(),
		Content:  buf.Bytes(),
		Mode:     mode,
	}, nil
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// shQuote renders s as a single-quoted POSIX shell word.
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func validateShell(content []byte) error {
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	if _, err := parser.Parse(bytes.NewReader(content), scriptBase+".sh"); err != nil {
		return fmt.Errorf("%w: %w", errInvalidScript, err)
	}

	return nil
}
