// Package config implements the ConfigResolver (spec §4.1): discovering
// an organisation's metadata repository, loading its layered policy
// documents, merging them into one EffectiveConfiguration, and caching
// the result.
package config

import (
	"time"

	"github.com/reporoller/reporoller/pkg/hub"
	"github.com/reporoller/reporoller/pkg/sliceutil"
)

// Level names one level of the precedence hierarchy: the five fixed levels
// plus the optional repository-type level, listed lowest first.
type Level string

const (
	LevelCompiledDefaults Level = "compiled_defaults"
	LevelApplication      Level = "application"
	LevelOrganisation     Level = "organisation"
	LevelRepositoryType   Level = "repository_type"
	LevelTeam             Level = "team"
	LevelTemplate         Level = "template"
)

// precedence is the full ordering, lowest precedence first. LevelRepositoryType
// sits between organisation and team: it is optional (only present when the
// request names a repository-type tag) and more specific than an
// organisation-wide default but less specific than a team's own policy.
var precedence = []Level{
	LevelCompiledDefaults,
	LevelApplication,
	LevelOrganisation,
	LevelRepositoryType,
	LevelTeam,
	LevelTemplate,
}

// NotificationEndpoint is one entry of EffectiveConfiguration's outbound
// notification list (spec §3, §4.6).
type NotificationEndpoint struct {
	URL                  string
	EventFilter          []string
	Active               bool
	TimeoutSeconds       int
	SigningSecretRef      string
	Description          string
}

// Key returns the (url, event-filter) deduplication key (§4.6 "Endpoint assembly").
func (e NotificationEndpoint) Key() string {
	key := e.URL + "|"
	for _, evt := range e.EventFilter {
		key += evt + ","
	}
	return key
}

// AcceptsEvent reports whether eventType is in the endpoint's filter.
func (e NotificationEndpoint) AcceptsEvent(eventType string) bool {
	return sliceutil.Contains(e.EventFilter, eventType)
}

// FieldOrigin records which level supplied the final value of one field,
// the override-trace spec §3 requires on EffectiveConfiguration.
type FieldOrigin struct {
	Field string
	Level Level
}

// EffectiveConfiguration is the merged output of the level hierarchy in
// precedence (spec §3, §4.1).
type EffectiveConfiguration struct {
	Settings           hub.RepositorySettings
	BranchProtection   hub.BranchProtectionSpec
	Labels             map[string]hub.LabelSpec
	Webhooks           []hub.WebhookSpec
	NotificationEndpoints []NotificationEndpoint
	CustomProperties   map[string]string
	RequiredFiles      []string

	// VisibilityPolicy carries the organisation's visibility rules through
	// to VisibilityResolver (spec §4.2); it is immutable at organisation
	// level per §4.1.
	VisibilityPolicy VisibilityPolicy

	OverrideTrace []FieldOrigin
}

// VisibilityPolicy is the organisation-level visibility rule set
// consumed by VisibilityResolver (spec §4.2).
type VisibilityPolicy struct {
	// Required, if non-empty, forces this visibility regardless of user
	// preference or template default.
	Required hub.RepositoryVisibility
	// Restricted lists visibilities a user may not request.
	Restricted []hub.RepositoryVisibility
}

// Allows reports whether visibility is absent from the restricted list.
func (p VisibilityPolicy) Allows(v hub.RepositoryVisibility) bool {
	for _, r := range p.Restricted {
		if r == v {
			return false
		}
	}
	return true
}

// alwaysImmutableFields names the EffectiveConfiguration fields that §4.1
// always marks immutable once set at organisation level: visibility
// policy, required files, and forbidden webhook URLs are security
// critical and may never be loosened by a team or template document.
var alwaysImmutableFields = map[string]bool{
	"visibility_policy": true,
	"required_files":    true,
	"forbidden_webhooks": true,
}

// ResolveResult is what ConfigResolver.Resolve returns: the merged
// configuration plus any warnings accumulated while loading individual
// levels (spec §4.1 "Invalid entries are skipped with a warning").
type ResolveResult struct {
	Configuration    EffectiveConfiguration
	Warnings         []string
	ResolvedAt       time.Time
	TemplateManifest *TemplateManifestDocument
}
