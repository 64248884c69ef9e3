package packager

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/oshokin/node-bin-gen/internal/domain/release"
	"github.com/oshokin/node-bin-gen/internal/logger"
	"github.com/oshokin/node-bin-gen/internal/service/descriptor"
	"github.com/oshokin/node-bin-gen/internal/service/stub"
)

const (
	// readmeFilename is the document written next to the metapackage descriptor.
	readmeFilename = "README.md"
	// defaultReadmeTemplate is the embedded README template.
	defaultReadmeTemplate = "templates/README.md.tmpl"
	// metaFilePermissions is used for the descriptor and README.
	metaFilePermissions = 0o644
)

//go:embed templates/README.md.tmpl
var readmeFS embed.FS

// readmeData is what README templates can reference.
type readmeData struct {
	PackageName string
	Product     string
	Version     string
}

// writeMetapackage creates the metapackage directory and writes its
// descriptor, installer stub and README.
func (g *generator) writeMetapackage(
	ctx context.Context,
	spec release.VersionSpec,
	meta *release.PackageDescriptor,
) (string, error) {
	dir := filepath.Join(g.cfg.OutputDir, meta.Name)

	if err := os.MkdirAll(dir, stagingPermissions); err != nil {
		return "", &release.FilesystemError{Op: "mkdir", Path: dir, Err: err}
	}

	script, err := stub.Render(g.dialect, stub.Params{
		Product:       g.cfg.Product,
		Version:       spec.PackageVersion(),
		PackagePrefix: g.cfg.Product,
	})
	if err != nil {
		return "", err
	}

	if err = descriptor.Write(dir, meta); err != nil {
		return "", err
	}

	scriptPath := filepath.Join(dir, script.Filename)
	if err = os.WriteFile(scriptPath, script.Content, script.Mode); err != nil {
		return "", &release.FilesystemError{Op: "write", Path: scriptPath, Err: err}
	}

	readme, err := g.renderReadme(readmeData{
		PackageName: meta.Name,
		Product:     g.cfg.Product,
		Version:     meta.Version,
	})
	if err != nil {
		return "", err
	}

	readmePath := filepath.Join(dir, readmeFilename)
	if err = os.WriteFile(readmePath, readme, metaFilePermissions); err != nil {
		return "", &release.FilesystemError{Op: "write", Path: readmePath, Err: err}
	}

	logger.InfoKV(ctx, "Wrote metapackage", "name", meta.Name, "version", meta.Version, "dir", dir)

	return dir, nil
}

// renderReadme executes the configured README template or the embedded one.
func (g *generator) renderReadme(data readmeData) ([]byte, error) {
	var (
		tmpl *template.Template
		err  error
	)

	if g.cfg.ReadmeTemplate != "" {
		tmpl, err = template.ParseFiles(g.cfg.ReadmeTemplate)
		if err != nil {
			return nil, &release.FilesystemError{Op: "read", Path: g.cfg.ReadmeTemplate, Err: err}
		}
	} else {
		tmpl, err = template.ParseFS(readmeFS, defaultReadmeTemplate)
		if err != nil {
			return nil, fmt.Errorf("parse readme template: %w", err)
		}
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render readme: %w", err)
	}

	return buf.Bytes(), nil
}
