// Package visibility implements the VisibilityResolver (spec §4.2):
// computing a repository's final visibility from organisation policy,
// user preference, template default, and the Hub's environment
// constraints.
package visibility

import (
	"github.com/reporoller/reporoller/pkg/config"
	"github.com/reporoller/reporoller/pkg/hub"
	"github.com/reporoller/reporoller/pkg/rrerrors"
)

// Source names which input produced the final Decision (spec §3
// VisibilityDecision).
type Source string

const (
	SourceOrgPolicy        Source = "org_policy"
	SourceUserPreference   Source = "user_preference"
	SourceTemplateDefault  Source = "template_default"
	SourceSystemDefault    Source = "system_default"
)

// SystemDefaultVisibility is returned when neither policy, preference,
// nor template supplies one (spec §4.2 step 4).
const SystemDefaultVisibility = hub.VisibilityPrivate

// Environment describes the Hub deployment's capabilities, consulted in
// step 5 of the algorithm (spec §4.2 "Validate the chosen visibility
// against the Hub environment").
type Environment struct {
	// IsEnterprise reports whether Internal visibility is available at all.
	IsEnterprise bool
	// SupportsPrivate reports whether the Hub's plan allows private
	// repositories (some free-tier Hub deployments do not).
	SupportsPrivate bool
}

// Decision is the resolver's output (spec §3).
type Decision struct {
	Visibility         hub.RepositoryVisibility
	Source             Source
	ConstraintsApplied []string
}

// Resolver is the VisibilityResolver (spec §4.2).
type Resolver struct{}

// NewResolver returns a stateless Resolver; visibility resolution reads
// no external state, so one instance is safe to share across requests.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve runs the five-step algorithm of spec §4.2. userPreference and
// templateDefault are the empty string when absent.
func (r *Resolver) Resolve(
	policy config.VisibilityPolicy,
	userPreference hub.RepositoryVisibility,
	templateDefault hub.RepositoryVisibility,
	env Environment,
) (Decision, error) {
	var decision Decision

	switch {
	case policy.Required != "":
		decision = Decision{Visibility: policy.Required, Source: SourceOrgPolicy}

	case userPreference != "":
		if !policy.Allows(userPreference) {
			return Decision{}, rrerrors.Wrap(rrerrors.KindVisibility, rrerrors.ErrPolicyViolation,
				"requested visibility is restricted by organisation policy").
				WithRemediation("choose a visibility not listed in the organisation's restricted set")
		}
		decision = Decision{Visibility: userPreference, Source: SourceUserPreference}

	case templateDefault != "" && policy.Allows(templateDefault):
		decision = Decision{Visibility: templateDefault, Source: SourceTemplateDefault}

	default:
		decision = Decision{Visibility: SystemDefaultVisibility, Source: SourceSystemDefault}
	}

	if err := r.validateAgainstEnvironment(&decision, env); err != nil {
		return Decision{}, err
	}
	return decision, nil
}

// validateAgainstEnvironment applies step 5: Internal requires an
// enterprise Hub; Private requires a plan that supports it. A violation
// that originated from explicit user preference is a PolicyViolation
// (not a fallback); any other violation is a GitHubConstraint.
func (r *Resolver) validateAgainstEnvironment(decision *Decision, env Environment) error {
	switch decision.Visibility {
	case hub.VisibilityInternal:
		if !env.IsEnterprise {
			return r.constraintError(*decision, "internal visibility requires an enterprise Hub environment")
		}
		decision.ConstraintsApplied = append(decision.ConstraintsApplied, "requires_enterprise")
	case hub.VisibilityPrivate:
		if !env.SupportsPrivate {
			return r.constraintError(*decision, "private visibility is not supported by this Hub's plan")
		}
		decision.ConstraintsApplied = append(decision.ConstraintsApplied, "requires_private_plan")
	}
	return nil
}

func (r *Resolver) constraintError(decision Decision, message string) error {
	kind := rrerrors.KindVisibility
	if decision.Source == SourceUserPreference {
		return rrerrors.Wrap(kind, rrerrors.ErrPolicyViolation, message)
	}
	return rrerrors.Wrap(kind, rrerrors.ErrGitHubConstraint, message)
}
