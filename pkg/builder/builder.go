// Package builder implements the RepositoryBuilder (spec §4.5): the
// strictly-ordered, partially-idempotent protocol that drives the Hub
// from a bare repository to a fully configured one.
package builder

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/reporoller/reporoller/pkg/config"
	"github.com/reporoller/reporoller/pkg/hub"
	"github.com/reporoller/reporoller/pkg/observer"
	"github.com/reporoller/reporoller/pkg/ratelimit"
	"github.com/reporoller/reporoller/pkg/repoutil"
)

// Status is the builder's final outcome classification (spec §4.5).
type Status string

const (
	StatusSuccess             Status = "success"
	StatusSuccessWithWarnings Status = "success_with_warnings"
	StatusFailed              Status = "failed"
)

// StepOutcome records one soft step's failure (spec §4.5 "collected in an
// outcome record").
type StepOutcome struct {
	Step string
	Err  error
}

// Request is everything RepositoryBuilder needs to produce one repository.
type Request struct {
	Organisation   string
	Name           string
	Visibility     hub.RepositoryVisibility
	Description    string
	TeamSlug       string
	RepositoryType string

	// Files is the ContentProvider's output; nil suppresses the initial
	// commit entirely (spec §4.5 step 2 "If ContentProvider emitted files").
	Files []hub.FileChange

	Configuration config.EffectiveConfiguration
}

// Result is the builder's final outcome (spec §4.5 "the final result
// distinguishes Success, SuccessWithWarnings(list), and Failed").
type Result struct {
	Status     Status
	Repository *hub.RepositoryDescriptor
	Warnings   []StepOutcome
	Err        error
}

const defaultCommitMessage = "Initial commit"

// maxConcurrentIdempotentCalls bounds the label/webhook worker pools
// (spec §5 "Concurrency & resource model"), grounded on the teacher's
// pool.NewWithResults(...).WithMaxGoroutines(...) pattern.
const maxConcurrentIdempotentCalls = 8

// Builder is the RepositoryBuilder.
type Builder struct {
	hub      hub.HubClient
	observer observer.Observer
}

// NewBuilder constructs a Builder. obs defaults to observer.NoopObserver{} if nil.
func NewBuilder(client hub.HubClient, obs observer.Observer) *Builder {
	if obs == nil {
		obs = observer.NoopObserver{}
	}
	return &Builder{hub: client, observer: obs}
}

// Create runs the eight-step protocol of spec §4.5 against req.
func (b *Builder) Create(ctx context.Context, req Request) Result {
	repo, err := b.createRepository(ctx, req)
	if err != nil {
		return Result{Status: StatusFailed, Err: err}
	}

	if len(req.Files) > 0 {
		if err := b.stageInitialCommit(ctx, req, repo); err != nil {
			b.compensateFailedCreation(ctx, req)
			return Result{Status: StatusFailed, Err: err}
		}
	}

	var warnings []StepOutcome
	warnings = append(warnings, b.applySettings(ctx, req)...)
	warnings = append(warnings, b.applyBranchProtection(ctx, req)...)
	warnings = append(warnings, b.applyLabels(ctx, req)...)
	warnings = append(warnings, b.applyWebhooks(ctx, req)...)
	warnings = append(warnings, b.applyCustomProperties(ctx, req)...)

	status := StatusSuccess
	if len(warnings) > 0 {
		status = StatusSuccessWithWarnings
	}
	return Result{Status: status, Repository: repo, Warnings: warnings}
}

// createRepository is hard step 1: failure aborts the whole operation.
func (b *Builder) createRepository(ctx context.Context, req Request) (*hub.RepositoryDescriptor, error) {
	var repo *hub.RepositoryDescriptor
	err := ratelimit.ExecuteWithRetry(ctx, ratelimit.OperationHubAPI, func() error {
		var callErr error
		repo, callErr = b.hub.CreateRepository(ctx, req.Organisation, req.Name, hub.CreateRepositoryOptions{
			Visibility:  req.Visibility,
			Description: req.Description,
			TeamSlug:    req.TeamSlug,
		})
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("creating repository %s/%s: %w", req.Organisation, req.Name, err)
	}
	b.observer.Info("builder", fmt.Sprintf("repository created: %s", repoutil.JoinRepoSlug(req.Organisation, req.Name)))
	return repo, nil
}

// stageInitialCommit is hard step 2.
func (b *Builder) stageInitialCommit(ctx context.Context, req Request, repo *hub.RepositoryDescriptor) error {
	branch := repo.DefaultBranch
	if branch == "" {
		branch = req.Configuration.Settings.DefaultBranch
	}
	err := ratelimit.ExecuteWithRetry(ctx, ratelimit.OperationHubAPI, func() error {
		_, callErr := b.hub.CreateCommit(ctx, req.Organisation, req.Name, branch, req.Files, defaultCommitMessage)
		return callErr
	})
	if err != nil {
		return fmt.Errorf("staging initial commit for %s/%s: %w", req.Organisation, req.Name, err)
	}
	return nil
}

// compensateFailedCreation is the best-effort compensating delete when
// step 2 fails after step 1 succeeded (spec §4.5 "Partial-failure policy").
func (b *Builder) compensateFailedCreation(ctx context.Context, req Request) {
	if err := b.hub.DeleteRepository(ctx, req.Organisation, req.Name); err != nil {
		b.observer.Error("builder", fmt.Sprintf(
			"compensating delete failed for %s/%s after initial-commit failure: %v",
			req.Organisation, req.Name, err))
	}
}

func (b *Builder) applySettings(ctx context.Context, req Request) []StepOutcome {
	err := ratelimit.ExecuteWithRetry(ctx, ratelimit.OperationHubAPI, func() error {
		return b.hub.SetRepositorySettings(ctx, req.Organisation, req.Name, req.Configuration.Settings)
	})
	return b.softOutcome("apply_settings", err)
}

func (b *Builder) applyBranchProtection(ctx context.Context, req Request) []StepOutcome {
	rules := req.Configuration.BranchProtection
	if rules.Branch == "" {
		rules.Branch = req.Configuration.Settings.DefaultBranch
	}
	err := ratelimit.ExecuteWithRetry(ctx, ratelimit.OperationHubAPI, func() error {
		return b.hub.SetBranchProtection(ctx, req.Organisation, req.Name, rules)
	})
	return b.softOutcome("apply_branch_protection", err)
}

// applyLabels is soft step 5, made idempotent by falling back to
// UpdateLabel on an AlreadyExists response, run with bounded concurrency
// (spec §4.5 step 5, §5).
func (b *Builder) applyLabels(ctx context.Context, req Request) []StepOutcome {
	labels := req.Configuration.Labels
	if len(labels) == 0 {
		return nil
	}

	p := pool.NewWithResults[[]StepOutcome]().WithMaxGoroutines(maxConcurrentIdempotentCalls)
	for _, label := range labels {
		label := label
		p.Go(func() []StepOutcome {
			return b.applyOneLabel(ctx, req, label)
		})
	}
	return flatten(p.Wait())
}

func (b *Builder) applyOneLabel(ctx context.Context, req Request, label hub.LabelSpec) []StepOutcome {
	err := ratelimit.ExecuteWithRetry(ctx, ratelimit.OperationHubAPI, func() error {
		createErr := b.hub.CreateLabel(ctx, req.Organisation, req.Name, label)
		if createErr == nil || !hub.IsAlreadyExists(createErr) {
			return createErr
		}
		return b.hub.UpdateLabel(ctx, req.Organisation, req.Name, label)
	})
	return b.softOutcome(fmt.Sprintf("apply_label[%s]", label.Name), err)
}

// applyWebhooks is soft step 6: list-then-create-or-patch, also run with
// bounded concurrency since each endpoint's idempotency check is
// independent of the others.
func (b *Builder) applyWebhooks(ctx context.Context, req Request) []StepOutcome {
	webhooks := req.Configuration.Webhooks
	if len(webhooks) == 0 {
		return nil
	}

	var existing []hub.WebhookDescriptor
	err := ratelimit.ExecuteWithRetry(ctx, ratelimit.OperationHubAPI, func() error {
		var listErr error
		existing, listErr = b.hub.ListWebhooks(ctx, req.Organisation, req.Name)
		return listErr
	})
	if err != nil {
		return b.softOutcome("list_webhooks", err)
	}

	byURL := make(map[string]int64, len(existing))
	for _, e := range existing {
		byURL[e.URL] = e.ID
	}

	p := pool.NewWithResults[[]StepOutcome]().WithMaxGoroutines(maxConcurrentIdempotentCalls)
	for _, hook := range webhooks {
		hook := hook
		p.Go(func() []StepOutcome {
			return b.applyOneWebhook(ctx, req, hook, byURL)
		})
	}
	return flatten(p.Wait())
}

func (b *Builder) applyOneWebhook(ctx context.Context, req Request, hook hub.WebhookSpec, byURL map[string]int64) []StepOutcome {
	err := ratelimit.ExecuteWithRetry(ctx, ratelimit.OperationHubAPI, func() error {
		if id, ok := byURL[hook.URL]; ok {
			return b.hub.UpdateWebhook(ctx, req.Organisation, req.Name, id, hook)
		}
		return b.hub.CreateWebhook(ctx, req.Organisation, req.Name, hook)
	})
	return b.softOutcome(fmt.Sprintf("apply_webhook[%s]", hook.URL), err)
}

func (b *Builder) applyCustomProperties(ctx context.Context, req Request) []StepOutcome {
	props := req.Configuration.CustomProperties
	if req.RepositoryType != "" {
		if props == nil {
			props = make(map[string]string, 1)
		} else {
			merged := make(map[string]string, len(props)+1)
			for k, v := range props {
				merged[k] = v
			}
			props = merged
		}
		props["repository_type"] = req.RepositoryType
	}
	if len(props) == 0 {
		return nil
	}
	err := ratelimit.ExecuteWithRetry(ctx, ratelimit.OperationHubAPI, func() error {
		return b.hub.SetCustomProperties(ctx, req.Organisation, req.Name, props)
	})
	return b.softOutcome("apply_custom_properties", err)
}

func (b *Builder) softOutcome(step string, err error) []StepOutcome {
	if err == nil {
		return nil
	}
	b.observer.Warn("builder", fmt.Sprintf("%s failed: %v", step, err))
	return []StepOutcome{{Step: step, Err: err}}
}

func flatten(groups [][]StepOutcome) []StepOutcome {
	var all []StepOutcome
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}
