package config

// Document is the shape every level's config.toml / defaults.toml decodes
// into (spec §4.1, §6). Scalar fields use pointers so the merge algorithm
// can distinguish "absent, inherit from a lower level" from "explicitly
// set to the zero value".
type Document struct {
	// Immutable lists the dotted field names this level locks: a lower
	// (less-precedent... here, a document is loaded at a single level, so
	// "lower" means any level with LOWER precedence may not override
	// these) level may not set them (spec §4.1 "immutable").
	// Correction of terminology: Immutable fields declared at a level
	// bind every level that is MORE specific (has higher precedence).
	Immutable []string `toml:"immutable"`

	Settings         *SettingsDocument         `toml:"settings"`
	BranchProtection *BranchProtectionDocument `toml:"branch_protection"`
	Labels           map[string]LabelDocument  `toml:"labels"`
	Webhooks         []WebhookDocument         `toml:"webhooks"`
	CustomProperties map[string]string         `toml:"custom_properties"`
	RequiredFiles    []string                  `toml:"required_files"`
	Visibility       *VisibilityDocument       `toml:"visibility"`
}

// SettingsDocument decodes the [settings] table.
type SettingsDocument struct {
	HasIssues           *bool  `toml:"has_issues"`
	HasWiki             *bool  `toml:"has_wiki"`
	HasProjects         *bool  `toml:"has_projects"`
	HasDiscussions      *bool  `toml:"has_discussions"`
	DefaultBranch       string `toml:"default_branch"`
	AllowMergeCommit    *bool  `toml:"allow_merge_commit"`
	AllowSquashMerge    *bool  `toml:"allow_squash_merge"`
	AllowRebaseMerge    *bool  `toml:"allow_rebase_merge"`
	DeleteBranchOnMerge *bool  `toml:"delete_branch_on_merge"`
}

// BranchProtectionDocument decodes the [branch_protection] table.
type BranchProtectionDocument struct {
	Branch                 string   `toml:"branch"`
	RequiredReviewers      *int     `toml:"required_reviewers"`
	RequireCodeOwnerReview *bool    `toml:"require_code_owner_review"`
	RequiredStatusChecks   []string `toml:"required_status_checks"`
	EnforceAdmins          *bool    `toml:"enforce_admins"`
}

// LabelDocument decodes one entry of the [labels.<name>] table.
type LabelDocument struct {
	Color       string `toml:"color"`
	Description string `toml:"description"`
}

// WebhookDocument decodes one entry of the [[webhooks]] array.
type WebhookDocument struct {
	URL         string   `toml:"url"`
	Events      []string `toml:"events"`
	SecretRef   string   `toml:"secret_ref"`
	Active      *bool    `toml:"active"`
	ContentType string   `toml:"content_type"`
}

// VisibilityDocument decodes the [visibility] table, organisation-level
// only in practice (spec §4.1 "visibility policy... always immutable at
// the organisation level").
type VisibilityDocument struct {
	Required   string   `toml:"required"`
	Restricted []string `toml:"restricted"`
}

// NotificationsDocument decodes a notifications.toml file (spec §4.6).
type NotificationsDocument struct {
	Endpoints []NotificationEndpointDocument `toml:"endpoints"`
}

// NotificationEndpointDocument decodes one [[endpoints]] entry.
type NotificationEndpointDocument struct {
	URL              string   `toml:"url"`
	EventFilter      []string `toml:"event_filter"`
	Active           *bool    `toml:"active"`
	TimeoutSeconds   int      `toml:"timeout_seconds"`
	SigningSecretRef string   `toml:"signing_secret_ref"`
	Description      string   `toml:"description"`
}

// TemplateManifestDocument decodes .reporoller/template.toml: the
// template's own variables, metadata, and default visibility (spec §6),
// plus whatever Document-level overrides the template author wants to
// contribute as the most-specific hierarchy level.
type TemplateManifestDocument struct {
	Document

	Variables         map[string]string `toml:"variables"`
	Metadata          map[string]string `toml:"metadata"`
	DefaultVisibility string            `toml:"default_visibility"`
}
