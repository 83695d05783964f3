package config

import (
	"context"
	"fmt"

	"github.com/reporoller/reporoller/pkg/constants"
	"github.com/reporoller/reporoller/pkg/hub"
	"github.com/reporoller/reporoller/pkg/observer"
	"github.com/reporoller/reporoller/pkg/repoutil"
	"github.com/reporoller/reporoller/pkg/rrerrors"
)

// CompiledDefaults is the level-1 document: the settings RepoRoller
// ships with when an organisation supplies nothing at all (spec §4.1).
var CompiledDefaults = Document{
	Settings: &SettingsDocument{
		HasIssues:           boolPtr(true),
		HasWiki:             boolPtr(false),
		HasProjects:         boolPtr(false),
		HasDiscussions:      boolPtr(false),
		DefaultBranch:       "main",
		AllowMergeCommit:    boolPtr(true),
		AllowSquashMerge:    boolPtr(true),
		AllowRebaseMerge:    boolPtr(false),
		DeleteBranchOnMerge: boolPtr(true),
	},
	Visibility: &VisibilityDocument{
		Required: "",
	},
}

func boolPtr(b bool) *bool { return &b }

// Resolver is the ConfigResolver (spec §4.1). One instance is shared
// across requests; its Cache is safe for concurrent use.
type Resolver struct {
	hub                hub.HubClient
	cache              *Cache
	observer           observer.Observer
	applicationDefaults *Document
}

// Option configures a Resolver at construction time.
type Option func(*Resolver)

// WithApplicationDefaults installs the level-2 "application-level
// configuration" document (spec §4.1), loaded once by the caller from
// wherever this RepoRoller deployment keeps its own static config
// (typically a local file, outside the Hub).
func WithApplicationDefaults(doc Document) Option {
	return func(r *Resolver) { r.applicationDefaults = &doc }
}

// WithObserver installs an Observer for warnings and metrics.
func WithObserver(o observer.Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

// NewResolver returns a Resolver backed by client.
func NewResolver(client hub.HubClient, opts ...Option) *Resolver {
	r := &Resolver{hub: client, cache: NewCache(), observer: observer.NoopObserver{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveParams names the (organisation, team, repository-type, template)
// tuple a single resolution is scoped to.
type ResolveParams struct {
	Organisation   string
	Team           string
	RepositoryType string
	// TemplateOrg/TemplateRepo identify the template repository to read
	// template.toml from, when the request uses a template content
	// strategy. Both empty means no level-5 document is loaded.
	TemplateOrg  string
	TemplateRepo string
	TemplateRef  string
}

func (p ResolveParams) cacheKey() string {
	template := ""
	if p.TemplateRepo != "" {
		template = repoutil.JoinRepoSlug(p.TemplateOrg, p.TemplateRepo)
	}
	return Key(p.Organisation, p.Team, template)
}

// Resolve produces an EffectiveConfiguration for params, consulting the
// cache first (spec §4.1 "Caching").
func (r *Resolver) Resolve(ctx context.Context, params ResolveParams) (ResolveResult, error) {
	key := params.cacheKey()
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	result, err := r.resolveFresh(ctx, params)
	if err != nil {
		if hub.IsUnavailable(err) {
			return r.degradeToCompiledDefaults(err)
		}
		return ResolveResult{}, err
	}
	r.cache.Put(key, result)
	return result, nil
}

// degradeToCompiledDefaults handles a Hub-unavailable failure with nothing
// cached to fall back to: it resolves from CompiledDefaults (and the
// application-level document, when one was supplied) alone and surfaces a
// warning rather than a fatal error (spec §4.1, §7 "may fall back to
// defaults if cause is availability"). The degraded result is not cached,
// so the next request tries the Hub again.
func (r *Resolver) degradeToCompiledDefaults(cause error) (ResolveResult, error) {
	warn := fmt.Sprintf("hub unavailable, falling back to compiled defaults: %v", cause)
	r.observer.Warn("config:resolver", warn)

	levels := []levelDocument{{Level: LevelCompiledDefaults, Doc: CompiledDefaults}}
	if r.applicationDefaults != nil {
		levels = append(levels, levelDocument{Level: LevelApplication, Doc: *r.applicationDefaults})
	}
	cfg, err := mergeLevels(levels)
	if err != nil {
		return ResolveResult{}, err
	}
	return ResolveResult{Configuration: cfg, Warnings: []string{warn}}, nil
}

func (r *Resolver) resolveFresh(ctx context.Context, params ResolveParams) (ResolveResult, error) {
	var warnings []string
	var levels []levelDocument

	levels = append(levels, levelDocument{Level: LevelCompiledDefaults, Doc: CompiledDefaults})
	if r.applicationDefaults != nil {
		levels = append(levels, levelDocument{Level: LevelApplication, Doc: *r.applicationDefaults})
	}

	metaRepo, warn, err := r.discoverMetadataRepository(ctx, params.Organisation)
	if err != nil {
		return ResolveResult{}, err
	}
	if warn != "" {
		warnings = append(warnings, warn)
		r.observer.Warn("config:resolver", warn)
	}

	var notificationScopes [3][]NotificationEndpoint
	var templateManifest *TemplateManifestDocument

	if metaRepo != "" {
		orgDoc, orgWarn := r.loadDocument(ctx, params.Organisation, metaRepo, constants.GlobalDefaultsPath, "main")
		if orgWarn != "" {
			warnings = append(warnings, orgWarn)
			r.observer.Warn("config:resolver", orgWarn)
		}
		if orgDoc != nil {
			levels = append(levels, levelDocument{Level: LevelOrganisation, Doc: *orgDoc})
		}
		notificationScopes[0] = r.loadNotifications(ctx, params.Organisation, metaRepo, constants.GlobalNotificationsPath, &warnings)

		if params.RepositoryType != "" {
			typePath := fmt.Sprintf(constants.TypeConfigPathFormat, params.RepositoryType)
			typeDoc, typeWarn := r.loadDocument(ctx, params.Organisation, metaRepo, typePath, "main")
			if typeWarn != "" {
				warnings = append(warnings, typeWarn)
				r.observer.Warn("config:resolver", typeWarn)
			}
			if typeDoc != nil {
				levels = append(levels, levelDocument{Level: LevelRepositoryType, Doc: *typeDoc})
			}
		}

		if params.Team != "" {
			teamPath := fmt.Sprintf(constants.TeamConfigPathFormat, params.Team)
			teamDoc, teamWarn := r.loadDocument(ctx, params.Organisation, metaRepo, teamPath, "main")
			if teamWarn != "" {
				warnings = append(warnings, teamWarn)
				r.observer.Warn("config:resolver", teamWarn)
			}
			if teamDoc != nil {
				levels = append(levels, levelDocument{Level: LevelTeam, Doc: *teamDoc})
			}
			teamNotifPath := fmt.Sprintf(constants.TeamNotificationsPathFormat, params.Team)
			notificationScopes[1] = r.loadNotifications(ctx, params.Organisation, metaRepo, teamNotifPath, &warnings)
		}
	}

	if params.TemplateRepo != "" {
		ref := params.TemplateRef
		if ref == "" {
			ref = "main"
		}
		templateOrg := params.TemplateOrg
		if templateOrg == "" {
			templateOrg = params.Organisation
		}
		manifest, templateWarn := r.loadTemplateManifest(ctx, templateOrg, params.TemplateRepo, constants.TemplateManifestPath, ref)
		if templateWarn != "" {
			warnings = append(warnings, templateWarn)
			r.observer.Warn("config:resolver", templateWarn)
		}
		if manifest != nil {
			templateManifest = manifest
			levels = append(levels, levelDocument{Level: LevelTemplate, Doc: manifest.Document})
		}
		notificationScopes[2] = r.loadNotifications(ctx, templateOrg, params.TemplateRepo, constants.TemplateNotificationsPath, &warnings)
	}

	cfg, err := mergeLevels(levels)
	if err != nil {
		return ResolveResult{}, err
	}
	cfg.NotificationEndpoints = mergeNotificationEndpoints(notificationScopes[0], notificationScopes[1], notificationScopes[2])

	return ResolveResult{Configuration: cfg, Warnings: warnings, TemplateManifest: templateManifest}, nil
}

// discoverMetadataRepository finds the organisation's metadata
// repository by topic (spec §4.1 "Metadata-repository discovery").
// Returns ("", warning, nil) when none is found (fallback to compiled
// defaults), the repo name on success, or a fatal AmbiguousMetadataRepository.
func (r *Resolver) discoverMetadataRepository(ctx context.Context, org string) (string, string, error) {
	repos, err := r.hub.SearchRepositoriesByTopic(ctx, org, constants.MetadataRepositoryTopic)
	if err != nil {
		return "", "", rrerrors.Wrap(rrerrors.KindConfiguration, err, "failed to search for metadata repository").
			WithRemediation("verify the Hub is reachable and the organisation exists")
	}
	switch len(repos) {
	case 0:
		return "", fmt.Sprintf("no repository tagged %q found in %s, falling back to compiled defaults", constants.MetadataRepositoryTopic, org), nil
	case 1:
		return repos[0].Name, "", nil
	default:
		names := make([]string, len(repos))
		for i, repo := range repos {
			names[i] = repo.Name
		}
		return "", "", rrerrors.Wrap(rrerrors.KindConfiguration, rrerrors.ErrAmbiguousMetadataRepository,
			fmt.Sprintf("organisation %s has %d repositories tagged %q: %v", org, len(repos), constants.MetadataRepositoryTopic, names))
	}
}

// loadDocument reads and validates one configuration file. A missing
// file is not a warning (a level may simply be absent); a malformed
// file is (spec §4.1 "Invalid entries are skipped with a warning").
func (r *Resolver) loadDocument(ctx context.Context, org, repo, path, ref string) (*Document, string) {
	raw, err := r.hub.GetFileContents(ctx, org, repo, path, ref)
	if err != nil {
		if hub.IsNotFound(err) {
			return nil, ""
		}
		return nil, fmt.Sprintf("failed to read %s/%s/%s: %v", org, repo, path, err)
	}
	doc, err := decodeAndValidateDocument(raw, path)
	if err != nil {
		return nil, fmt.Sprintf("invalid configuration file %s/%s/%s: %v", org, repo, path, err)
	}
	return &doc, ""
}

// loadTemplateManifest is loadDocument's counterpart for
// .reporoller/template.toml, which additionally carries the template's
// variables, metadata, and default visibility (spec §6).
func (r *Resolver) loadTemplateManifest(ctx context.Context, org, repo, path, ref string) (*TemplateManifestDocument, string) {
	raw, err := r.hub.GetFileContents(ctx, org, repo, path, ref)
	if err != nil {
		if hub.IsNotFound(err) {
			return nil, ""
		}
		return nil, fmt.Sprintf("failed to read %s/%s/%s: %v", org, repo, path, err)
	}
	doc, err := decodeAndValidateDocument(raw, path)
	if err != nil {
		return nil, fmt.Sprintf("invalid configuration file %s/%s/%s: %v", org, repo, path, err)
	}
	manifest, err := decodeTemplateManifestExtras(raw, path)
	if err != nil {
		return nil, fmt.Sprintf("invalid template manifest %s/%s/%s: %v", org, repo, path, err)
	}
	manifest.Document = doc
	return manifest, ""
}

func (r *Resolver) loadNotifications(ctx context.Context, org, repo, path string, warnings *[]string) []NotificationEndpoint {
	raw, err := r.hub.GetFileContents(ctx, org, repo, path, "main")
	if err != nil {
		if !hub.IsNotFound(err) {
			warn := fmt.Sprintf("failed to read %s/%s/%s: %v", org, repo, path, err)
			*warnings = append(*warnings, warn)
			r.observer.Warn("config:resolver", warn)
		}
		return nil
	}
	doc, err := decodeAndValidateNotifications(raw, path)
	if err != nil {
		warn := fmt.Sprintf("invalid notifications file %s/%s/%s: %v", org, repo, path, err)
		*warnings = append(*warnings, warn)
		r.observer.Warn("config:resolver", warn)
		return nil
	}
	endpoints := make([]NotificationEndpoint, 0, len(doc.Endpoints))
	for _, e := range doc.Endpoints {
		active := true
		if e.Active != nil {
			active = *e.Active
		}
		timeout := e.TimeoutSeconds
		if timeout == 0 {
			timeout = constants.DefaultWebhookTimeoutSeconds
		}
		endpoints = append(endpoints, NotificationEndpoint{
			URL: e.URL, EventFilter: e.EventFilter, Active: active,
			TimeoutSeconds: timeout, SigningSecretRef: e.SigningSecretRef, Description: e.Description,
		})
	}
	return endpoints
}
