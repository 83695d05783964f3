// Package hub defines the HubClient capability (spec §4, §6): every
// outbound call RepoRoller makes to the remote code-hosting service. The
// interface is the seam between the core pipeline and the Hub's wire
// protocol — production code drives the real Hub via GHClient, tests
// drive an in-memory FakeClient.
package hub

import "context"

// RepositoryVisibility mirrors spec §3's VisibilityDecision.Visibility domain.
type RepositoryVisibility string

const (
	VisibilityPublic   RepositoryVisibility = "public"
	VisibilityPrivate  RepositoryVisibility = "private"
	VisibilityInternal RepositoryVisibility = "internal"
)

// RepositoryDescriptor is the Hub's view of a repository, returned after
// creation and by topic search (§4.1 metadata-repository discovery).
type RepositoryDescriptor struct {
	ID         int64
	Org        string
	Name       string
	URL        string
	Visibility RepositoryVisibility
	DefaultBranch string
}

// FileEntry is one entry returned by ListDirectory: a file or, when IsDir
// is set, a directory. It carries no text/binary classification.
type FileEntry struct {
	Path     string
	IsDir    bool
	SHA      string
	Size     int64
}

// FileChange is one file to stage into a commit (§4.5 step 2).
type FileChange struct {
	Path       string
	Content    []byte
	Executable bool
}

// LabelSpec is one entry of EffectiveConfiguration.Labels (§3, §4.5 step 5).
type LabelSpec struct {
	Name        string
	Color       string
	Description string
}

// WebhookSpec is one entry of EffectiveConfiguration.Webhooks (§3, §4.5 step 6).
type WebhookSpec struct {
	URL         string
	Events      []string
	Secret      string
	Active      bool
	ContentType string
}

// WebhookDescriptor is a webhook as currently configured on the Hub,
// returned by ListWebhooks so the builder can decide create vs. patch.
type WebhookDescriptor struct {
	ID     int64
	URL    string
	Events []string
	Active bool
}

// RepositorySettings is the scalar settings slice of EffectiveConfiguration
// applied in RepositoryBuilder step 3 (§4.5).
type RepositorySettings struct {
	HasIssues       bool
	HasWiki         bool
	HasProjects     bool
	HasDiscussions  bool
	DefaultBranch   string
	AllowMergeCommit bool
	AllowSquashMerge bool
	AllowRebaseMerge bool
	DeleteBranchOnMerge bool
}

// BranchProtectionSpec is applied in RepositoryBuilder step 4 (§4.5).
type BranchProtectionSpec struct {
	Branch                 string
	RequiredReviewers      int
	RequireCodeOwnerReview bool
	RequiredStatusChecks   []string
	EnforceAdmins          bool
}

// CreateRepositoryOptions configures the initial creation call
// (RepositoryBuilder step 1, §4.5): auto_init is always false, per spec.
type CreateRepositoryOptions struct {
	Visibility  RepositoryVisibility
	Description string
	TeamSlug    string
}

// RateLimitSignal carries the Hub's retry-after hint so callers can honour
// it (§4.5 "Rate limiting", §5).
type RateLimitSignal struct {
	RetryAfterSeconds int
}

// HubClient is every outbound call RepoRoller makes to the Hub (§4,
// §6). Authentication is delegated; implementations are assumed
// ready-to-use.
type HubClient interface {
	// CreateRepository issues the bare repository creation call. Hard
	// step 1 of §4.5 — auto_init is always false.
	CreateRepository(ctx context.Context, org, name string, opts CreateRepositoryOptions) (*RepositoryDescriptor, error)

	// DeleteRepository is the compensating action for a failed step 2
	// (§4.5 "Partial-failure policy").
	DeleteRepository(ctx context.Context, org, name string) error

	// GetFileContents reads a single file at a commit-ish ref.
	GetFileContents(ctx context.Context, org, repo, path, ref string) ([]byte, error)

	// ListDirectory lists one directory's entries at a commit-ish ref.
	ListDirectory(ctx context.Context, org, repo, path, ref string) ([]FileEntry, error)

	// SearchRepositoriesByTopic finds repositories in org tagged with topic
	// (§4.1 metadata-repository discovery, §6 template-repository layout).
	SearchRepositoriesByTopic(ctx context.Context, org, topic string) ([]RepositoryDescriptor, error)

	// CreateCommit stages files on branch (§4.5 step 2) and returns the
	// resulting commit SHA. GHClient makes one commit per file; FakeClient
	// stores all files in one call.
	CreateCommit(ctx context.Context, org, repo, branch string, files []FileChange, message string) (commitSHA string, err error)

	// CreateLabel and UpdateLabel together make label application
	// idempotent (§4.5 step 5, §8).
	CreateLabel(ctx context.Context, org, repo string, label LabelSpec) error
	UpdateLabel(ctx context.Context, org, repo string, label LabelSpec) error

	// ListWebhooks, CreateWebhook, UpdateWebhook together make webhook
	// application idempotent (§4.5 step 6).
	ListWebhooks(ctx context.Context, org, repo string) ([]WebhookDescriptor, error)
	CreateWebhook(ctx context.Context, org, repo string, hook WebhookSpec) error
	UpdateWebhook(ctx context.Context, org, repo string, hookID int64, hook WebhookSpec) error

	// SetRepositorySettings, SetBranchProtection, SetCustomProperties apply
	// the remaining soft steps (§4.5 steps 3, 4, 7).
	SetRepositorySettings(ctx context.Context, org, repo string, settings RepositorySettings) error
	SetBranchProtection(ctx context.Context, org, repo string, rules BranchProtectionSpec) error
	SetCustomProperties(ctx context.Context, org, repo string, props map[string]string) error
}
