// Package template implements the TemplateEngine (spec §4.3): rendering a
// template source tree's file paths and contents against a variable
// context, using a mustache-style bracket syntax with a fixed helper
// catalogue.
//
// No mustache implementation appears anywhere in the retrieved reference
// corpus (confirmed by searching every example's go.mod for a templating
// dependency), and the standard library's text/template does not support
// mustache's {{#section}}/{{^section}} bracket syntax or its strict
// unknown-variable failure mode. This package is therefore a minimal
// hand-rolled parser rather than a wrapped third-party engine; see
// DESIGN.md for the full justification.
package template

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/reporoller/reporoller/pkg/constants"
	"github.com/reporoller/reporoller/pkg/rrerrors"
)

const maxRecursionDepth = constants.MaxHelperRecursionDepth

// SourceFile is one file from a template source tree prior to rendering.
type SourceFile struct {
	Path       string
	Content    []byte
	Executable bool
}

// RenderedFile is one file after the two-phase render (§4.3).
type RenderedFile struct {
	Path       string
	Content    []byte
	Executable bool
	Binary     bool
}

// Engine is the TemplateEngine.
type Engine struct {
	// Now supplies the fixed render timestamp used by the timestamp
	// helper and propagated to every file so a render is deterministic
	// (§4.3 "Determinism"). Defaults to time.Now if nil.
	Now func() time.Time
}

// NewEngine returns an Engine using the wall clock for its render timestamp.
func NewEngine() *Engine {
	return &Engine{Now: time.Now}
}

// Render runs the two-phase render (path, then content) over every file in
// source against vars, enforcing the resource limits and path-safety rules
// of §4.3. It returns one error on the first violation — rendering is
// all-or-nothing for a repository.
func (e *Engine) Render(ctx context.Context, source []SourceFile, vars map[string]any) ([]RenderedFile, error) {
	deadline := time.Now().Add(constants.TemplateRenderTimeoutSeconds * time.Second)
	renderCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	renderTime := now()

	rendered := make([]RenderedFile, 0, len(source))
	var totalBytes int64

	for _, file := range source {
		select {
		case <-renderCtx.Done():
			return nil, rrerrors.Wrap(rrerrors.KindTemplate, renderCtx.Err(),
				"template rendering exceeded its time budget")
		default:
		}

		if int64(len(file.Content)) > constants.MaxTemplateFileSizeBytes {
			return nil, rrerrors.Wrap(rrerrors.KindTemplate, rrerrors.ErrFileTooLarge,
				fmt.Sprintf("file %q is %d bytes, exceeding the %d byte limit", file.Path, len(file.Content), constants.MaxTemplateFileSizeBytes))
		}

		destPath := file.Path
		binary := isBinary(file.Path, file.Content)

		if !binary {
			renderedPath, err := e.renderString(file.Path, vars, renderTime)
			if err != nil {
				return nil, fmt.Errorf("rendering path %q: %w", file.Path, err)
			}
			destPath = renderedPath
		}

		cleaned := cleanPath(destPath)
		if err := validatePath(cleaned); err != nil {
			return nil, err
		}

		var destContent []byte
		if binary {
			destContent = file.Content
		} else {
			text, err := e.renderString(string(file.Content), vars, renderTime)
			if err != nil {
				return nil, fmt.Errorf("rendering content of %q: %w", file.Path, err)
			}
			destContent = []byte(text)
		}

		totalBytes += int64(len(destContent))
		if totalBytes > constants.MaxRenderingMemoryBytes {
			return nil, rrerrors.New(rrerrors.KindTemplate,
				fmt.Sprintf("rendered output exceeds the %d byte memory budget", constants.MaxRenderingMemoryBytes))
		}

		rendered = append(rendered, RenderedFile{
			Path:       cleaned,
			Content:    destContent,
			Executable: file.Executable,
			Binary:     binary,
		})
	}

	paths := make([]string, len(rendered))
	for i, f := range rendered {
		paths[i] = f.Path
	}
	if err := detectCollisions(paths); err != nil {
		return nil, err
	}

	return rendered, nil
}

func (e *Engine) renderString(src string, vars map[string]any, renderTime time.Time) (string, error) {
	nodes, err := parse(src)
	if err != nil {
		return "", rrerrors.New(rrerrors.KindTemplate, err.Error())
	}
	return renderNodes(nodes, vars, renderTime)
}

// cleanPath normalises a rendered path to forward-slash form, tolerant of
// backslash separators that might appear in a rendered Windows-flavoured
// path literal, before handing it to path.Clean for validation.
func cleanPath(p string) string {
	normalised := make([]byte, len(p))
	for i := 0; i < len(p); i++ {
		if p[i] == '\\' {
			normalised[i] = '/'
		} else {
			normalised[i] = p[i]
		}
	}
	return path.Clean(string(normalised))
}
