// Package reporoller wires ConfigResolver, VisibilityResolver,
// ContentProvider, RepositoryBuilder, and EventPublisher into the single
// request-to-repository Pipeline described in spec §2: "Request →
// ConfigResolver → VisibilityResolver → ContentProvider(+ TemplateEngine)
// → RepositoryBuilder → EventPublisher."
package reporoller

import (
	"context"
	"fmt"
	"time"

	"github.com/reporoller/reporoller/pkg/builder"
	"github.com/reporoller/reporoller/pkg/config"
	"github.com/reporoller/reporoller/pkg/content"
	"github.com/reporoller/reporoller/pkg/hub"
	"github.com/reporoller/reporoller/pkg/observer"
	"github.com/reporoller/reporoller/pkg/publisher"
	"github.com/reporoller/reporoller/pkg/visibility"
)

// CreationRequest is the pipeline's single input (spec §3 "CreationRequest").
type CreationRequest struct {
	Organisation   string
	Name           string
	Description    string
	Team           string
	RepositoryType string

	// ContentStrategy selects one of ContentProvider's three variants.
	ContentStrategy content.Strategy

	// TemplateOrg/TemplateRepo/TemplateRef identify the template source
	// when ContentStrategy is StrategyFromTemplate; TemplateRepo also
	// drives ConfigResolver's level-5 document lookup when set.
	TemplateOrg  string
	TemplateRepo string
	TemplateRef  string

	// Variables bind template/README/LICENSE placeholders by name (spec
	// §3 "variable bindings: mapping variable-name -> string value").
	Variables map[string]any

	// CustomFiles, IncludeReadme, GitignoreLanguages, LicenseIdentifier
	// feed the CustomInitialised strategy.
	CustomFiles        []content.CustomFile
	IncludeReadme      bool
	GitignoreLanguages []string
	LicenseIdentifier  string

	// VisibilityPreference is the caller's optional visibility request
	// (spec §3 "visibility preference (optional)"); the empty string
	// means no preference was expressed.
	VisibilityPreference hub.RepositoryVisibility
}

// CreationResult is the pipeline's single output (spec §4.5 "the final
// result distinguishes Success, SuccessWithWarnings(list), and Failed";
// §4.6 "best-effort outbound event notifier").
type CreationResult struct {
	Status     builder.Status
	Repository *hub.RepositoryDescriptor
	Warnings   []builder.StepOutcome
	Err        error
}

// Pipeline is the top-level orchestrator (spec §2 "Control flow").
type Pipeline struct {
	configResolver     *config.Resolver
	visibilityResolver *visibility.Resolver
	contentProvider    *content.Provider
	builder            *builder.Builder
	publisher          *publisher.Publisher
	observer           observer.Observer
	environment        visibility.Environment
	now                func() time.Time
}

// New assembles a Pipeline from its component capabilities. obs defaults
// to observer.NoopObserver{} if nil. env describes the Hub deployment
// VisibilityResolver validates decisions against (spec §4.2 step 5).
func New(
	client hub.HubClient,
	configResolver *config.Resolver,
	contentProvider *content.Provider,
	secretPublisher *publisher.Publisher,
	obs observer.Observer,
	env visibility.Environment,
) *Pipeline {
	if obs == nil {
		obs = observer.NoopObserver{}
	}
	return &Pipeline{
		configResolver:     configResolver,
		visibilityResolver: visibility.NewResolver(),
		contentProvider:    contentProvider,
		builder:            builder.NewBuilder(client, obs),
		publisher:          secretPublisher,
		observer:           obs,
		environment:        env,
		now:                time.Now,
	}
}

// Create runs the four synchronous stages of spec §2 and, on a non-failed
// outcome, spawns EventPublisher as a detached background task (spec §4.6
// "Invoked only after RepositoryBuilder returns success-or-warnings...
// the creator's reply is never delayed by its progress").
func (p *Pipeline) Create(ctx context.Context, req CreationRequest) CreationResult {
	resolved, err := p.configResolver.Resolve(ctx, config.ResolveParams{
		Organisation:   req.Organisation,
		Team:           req.Team,
		RepositoryType: req.RepositoryType,
		TemplateOrg:    req.TemplateOrg,
		TemplateRepo:   req.TemplateRepo,
		TemplateRef:    req.TemplateRef,
	})
	if err != nil {
		return CreationResult{Status: builder.StatusFailed, Err: err}
	}
	for _, warn := range resolved.Warnings {
		p.observer.Warn("reporoller:pipeline", warn)
	}
	cfg := resolved.Configuration

	templateDefault := hub.RepositoryVisibility("")
	if resolved.TemplateManifest != nil {
		templateDefault = hub.RepositoryVisibility(resolved.TemplateManifest.DefaultVisibility)
	}
	decision, err := p.visibilityResolver.Resolve(cfg.VisibilityPolicy, req.VisibilityPreference, templateDefault, p.environment)
	if err != nil {
		return CreationResult{Status: builder.StatusFailed, Err: err}
	}
	p.observer.Info("reporoller:pipeline", fmt.Sprintf("visibility resolved to %s (source=%s)", decision.Visibility, decision.Source))

	files, err := p.contentProvider.Provide(ctx, p.contentRequest(req, cfg))
	if err != nil {
		return CreationResult{Status: builder.StatusFailed, Err: err}
	}

	result := p.builder.Create(ctx, builder.Request{
		Organisation:   req.Organisation,
		Name:           req.Name,
		Visibility:     decision.Visibility,
		Description:    req.Description,
		TeamSlug:       req.Team,
		RepositoryType: req.RepositoryType,
		Files:          files,
		Configuration:  cfg,
	})
	if result.Status == builder.StatusFailed {
		return CreationResult{Status: result.Status, Err: result.Err}
	}

	p.publishAsync(req, cfg, decision, result)

	return CreationResult{Status: result.Status, Repository: result.Repository, Warnings: result.Warnings}
}

// contentRequest translates a CreationRequest plus its resolved
// configuration into ContentProvider's Request shape (spec §4.4).
func (p *Pipeline) contentRequest(req CreationRequest, cfg config.EffectiveConfiguration) content.Request {
	return content.Request{
		Strategy:           req.ContentStrategy,
		TemplateOrg:        req.TemplateOrg,
		TemplateRepo:       req.TemplateRepo,
		TemplateRef:        req.TemplateRef,
		Variables:          req.Variables,
		CustomFiles:        req.CustomFiles,
		IncludeReadme:      req.IncludeReadme,
		GitignoreLanguages: req.GitignoreLanguages,
		LicenseIdentifier:  req.LicenseIdentifier,
		RequiredFiles:      cfg.RequiredFiles,
	}
}

// publishAsync spawns EventPublisher as a detached goroutine (spec §4.6).
// It builds its own background context so the delivery outlives the
// request context the caller may cancel the instant Create returns.
func (p *Pipeline) publishAsync(req CreationRequest, cfg config.EffectiveConfiguration, decision visibility.Decision, result builder.Result) {
	if p.publisher == nil || result.Repository == nil {
		return
	}
	event := publisher.NewRepositoryCreatedEvent(
		req.Organisation,
		req.Name,
		string(decision.Visibility),
		result.Repository.URL,
		result.Repository.DefaultBranch,
		req.RepositoryType,
		p.now().UTC(),
	)
	endpoints := cfg.NotificationEndpoints
	go p.publisher.Publish(context.Background(), endpoints, event)
}

// WithClock overrides the pipeline's source of the event timestamp,
// letting tests pin RepositoryCreatedEvent.CreatedAt.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}
