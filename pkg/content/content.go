// Package content implements the ContentProvider (spec §4.4): producing
// the initial set of files a new repository is seeded with, under one of
// three strategies, and layering in any organisation-mandated required
// files regardless of which strategy was chosen.
package content

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/reporoller/reporoller/pkg/hub"
	"github.com/reporoller/reporoller/pkg/rrerrors"
	"github.com/reporoller/reporoller/pkg/stringutil"
	"github.com/reporoller/reporoller/pkg/template"
)

// Strategy selects one of the three ContentProvider variants (spec §4.4).
type Strategy string

const (
	StrategyFromTemplate      Strategy = "from_template"
	StrategyEmpty             Strategy = "empty"
	StrategyCustomInitialised Strategy = "custom_initialised"
)

// ErrUnknownCatalogueEntry is returned by the catalogue lookups for a
// gitignore language tag or license identifier that isn't in the built-in
// catalogue. Provide does not pass it on: it reports such a request as an
// error wrapping rrerrors.ErrTemplateNotFound instead.
var ErrUnknownCatalogueEntry = errors.New("unknown catalogue entry")

// CustomFile is one explicit file supplied by the caller for the
// CustomInitialised strategy (spec §4.4 "explicit custom files with path +
// content + executable-bit").
type CustomFile struct {
	Path       string
	Content    []byte
	Executable bool
}

// Request describes what ContentProvider.Provide should produce.
type Request struct {
	Strategy Strategy

	// FromTemplate inputs: the source repository to fetch and render.
	TemplateOrg  string
	TemplateRepo string
	TemplateRef  string
	Variables    map[string]any

	// CustomInitialised inputs.
	CustomFiles        []CustomFile
	IncludeReadme      bool
	GitignoreLanguages []string
	LicenseIdentifier  string

	// RequiredFiles names files the organisation mandates be present
	// (EffectiveConfiguration.RequiredFiles); honoured for every strategy.
	RequiredFiles []string
}

// Provider is the ContentProvider.
type Provider struct {
	hub    hub.HubClient
	engine *template.Engine
}

// NewProvider builds a Provider. engine defaults to template.NewEngine()
// when nil.
func NewProvider(client hub.HubClient, engine *template.Engine) *Provider {
	if engine == nil {
		engine = template.NewEngine()
	}
	return &Provider{hub: client, engine: engine}
}

// Provide resolves req into the file set RepositoryBuilder should commit.
// A nil, nil result (Empty strategy with no required files) tells the
// builder to suppress the initial commit entirely (spec §4.4 "Empty:
// emits nothing... created with auto-initialisation suppressed").
func (p *Provider) Provide(ctx context.Context, req Request) ([]hub.FileChange, error) {
	var files []hub.FileChange
	var err error

	switch req.Strategy {
	case StrategyFromTemplate:
		files, err = p.fromTemplate(ctx, req)
	case StrategyCustomInitialised:
		files, err = p.customInitialised(ctx, req)
	case StrategyEmpty:
		files = nil
	default:
		return nil, rrerrors.New(rrerrors.KindValidation, fmt.Sprintf("unknown content strategy %q", req.Strategy))
	}
	if err != nil {
		return nil, err
	}

	files, err = p.applyRequiredFiles(files, req.RequiredFiles)
	if err != nil {
		return nil, err
	}
	return files, nil
}

// fromTemplate fetches the template repository's full tree, renders it
// through the TemplateEngine, and converts the result into file changes
// (spec §4.4 "fetches the template source from the Hub, passes it through
// the TemplateEngine, emits the result as the initial commit").
func (p *Provider) fromTemplate(ctx context.Context, req Request) ([]hub.FileChange, error) {
	source, err := p.fetchTemplateTree(ctx, req.TemplateOrg, req.TemplateRepo, "", req.TemplateRef)
	if err != nil {
		return nil, err
	}
	rendered, err := p.engine.Render(ctx, source, req.Variables)
	if err != nil {
		return nil, err
	}
	changes := make([]hub.FileChange, len(rendered))
	for i, f := range rendered {
		changes[i] = hub.FileChange{Path: f.Path, Content: f.Content, Executable: f.Executable}
	}
	return changes, nil
}

// fetchTemplateTree walks the template repository's tree from dir
// downward, producing one template.SourceFile per blob it finds.
func (p *Provider) fetchTemplateTree(ctx context.Context, org, repo, dir, ref string) ([]template.SourceFile, error) {
	entries, err := p.hub.ListDirectory(ctx, org, repo, dir, ref)
	if err != nil {
		return nil, fmt.Errorf("listing %s/%s:%s: %w", org, repo, dir, err)
	}

	var files []template.SourceFile
	for _, entry := range entries {
		if entry.IsDir {
			nested, err := p.fetchTemplateTree(ctx, org, repo, entry.Path, ref)
			if err != nil {
				return nil, err
			}
			files = append(files, nested...)
			continue
		}
		content, err := p.hub.GetFileContents(ctx, org, repo, entry.Path, ref)
		if err != nil {
			return nil, fmt.Errorf("fetching %s/%s:%s: %w", org, repo, entry.Path, err)
		}
		files = append(files, template.SourceFile{Path: entry.Path, Content: content})
	}
	return files, nil
}

// customInitialised assembles the caller's explicit files plus any
// catalogue-backed README/.gitignore/LICENSE entries requested.
func (p *Provider) customInitialised(ctx context.Context, req Request) ([]hub.FileChange, error) {
	var files []hub.FileChange

	for _, f := range req.CustomFiles {
		files = append(files, hub.FileChange{Path: f.Path, Content: f.Content, Executable: f.Executable})
	}

	if req.IncludeReadme {
		rendered, err := p.engine.Render(ctx, []template.SourceFile{{Path: "README.md", Content: readmeCatalogue()}}, req.Variables)
		if err != nil {
			return nil, err
		}
		files = append(files, hub.FileChange{Path: "README.md", Content: normalizeTextFile(rendered[0].Content)})
	}

	for _, lang := range req.GitignoreLanguages {
		data, err := gitignoreCatalogue(lang)
		if err != nil {
			return nil, p.notFoundError("gitignore", lang, gitignoreLanguages())
		}
		files = append(files, hub.FileChange{Path: ".gitignore", Content: data})
	}

	if req.LicenseIdentifier != "" {
		data, err := licenseCatalogue(req.LicenseIdentifier)
		if err != nil {
			return nil, p.notFoundError("license", req.LicenseIdentifier, licenseIdentifiers())
		}
		rendered, err := p.engine.Render(ctx, []template.SourceFile{{Path: "LICENSE", Content: data}}, req.Variables)
		if err != nil {
			return nil, err
		}
		files = append(files, hub.FileChange{Path: "LICENSE", Content: normalizeTextFile(rendered[0].Content)})
	}

	return files, nil
}

// normalizeTextFile trims trailing whitespace and collapses trailing
// blank lines in a rendered text file, so a template author's line-ending
// habits don't produce a one-line diff on every future edit.
func normalizeTextFile(content []byte) []byte {
	return []byte(stringutil.NormalizeWhitespace(string(content)))
}

func (p *Provider) notFoundError(catalogue, key string, known []string) error {
	sort.Strings(known)
	return rrerrors.Wrap(rrerrors.KindValidation, rrerrors.ErrTemplateNotFound,
		fmt.Sprintf("unknown %s catalogue entry %q (known: %v)", catalogue, key, known))
}

// applyRequiredFiles adds any organisation-mandated file not already
// present in files, sourcing placeholder content from the built-in
// catalogue when the strategy didn't otherwise supply it.
func (p *Provider) applyRequiredFiles(files []hub.FileChange, required []string) ([]hub.FileChange, error) {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[path.Clean(f.Path)] = true
	}

	for _, name := range required {
		cleaned := path.Clean(name)
		if present[cleaned] {
			continue
		}
		content, ok := requiredFileCatalogue(cleaned)
		if !ok {
			return nil, rrerrors.Wrap(rrerrors.KindValidation, rrerrors.ErrTemplateNotFound,
				fmt.Sprintf("required file %q has no catalogue fallback and was not otherwise provided", name))
		}
		files = append(files, hub.FileChange{Path: cleaned, Content: content})
		present[cleaned] = true
	}
	return files, nil
}
