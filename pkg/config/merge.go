package config

import (
	"fmt"
	"sort"

	"github.com/reporoller/reporoller/pkg/hub"
	"github.com/reporoller/reporoller/pkg/rrerrors"
)

// levelDocument pairs a parsed Document with the hierarchy level it came
// from, in the order mergeLevels expects to receive them: lowest
// precedence first (spec §4.1).
type levelDocument struct {
	Level Level
	Doc   Document
}

// mergeLevels folds levels, lowest precedence first, into one
// EffectiveConfiguration, honouring immutability (spec §4.1 "no field
// marked immutable at a higher level has been overwritten by a lower
// level" — read the other direction during a bottom-up fold: once a
// level locks a field, no later, more-specific level may change it).
func mergeLevels(levels []levelDocument) (EffectiveConfiguration, error) {
	cfg := EffectiveConfiguration{
		Labels:           map[string]hub.LabelSpec{},
		CustomProperties: map[string]string{},
	}
	locked := map[string]Level{}
	var trace []FieldOrigin
	var webhooks []hub.WebhookSpec
	var requiredFiles []string

	lock := func(field string, level Level) error {
		if lockedAt, ok := locked[field]; ok {
			return rrerrors.New(rrerrors.KindConfiguration,
				fmt.Sprintf("level %q may not override field %q, locked immutable at level %q", level, field, lockedAt)).
				WithRemediation("remove the override or have the locking level relax it")
		}
		return nil
	}

	for _, ld := range levels {
		level, doc := ld.Level, ld.Doc

		if doc.Settings != nil {
			if err := lock("settings", level); err != nil {
				return cfg, err
			}
			mergeSettings(&cfg.Settings, doc.Settings)
			trace = append(trace, FieldOrigin{Field: "settings", Level: level})
		}

		if doc.BranchProtection != nil {
			if err := lock("branch_protection", level); err != nil {
				return cfg, err
			}
			mergeBranchProtection(&cfg.BranchProtection, doc.BranchProtection)
			trace = append(trace, FieldOrigin{Field: "branch_protection", Level: level})
		}

		if len(doc.Labels) > 0 {
			if err := lock("labels", level); err != nil {
				return cfg, err
			}
			for name, label := range doc.Labels {
				cfg.Labels[name] = hub.LabelSpec{Name: name, Color: label.Color, Description: label.Description}
			}
			trace = append(trace, FieldOrigin{Field: "labels", Level: level})
		}

		if len(doc.Webhooks) > 0 {
			if err := lock("webhooks", level); err != nil {
				return cfg, err
			}
			for _, w := range doc.Webhooks {
				active := true
				if w.Active != nil {
					active = *w.Active
				}
				webhooks = append(webhooks, hub.WebhookSpec{
					URL: w.URL, Events: w.Events, Secret: w.SecretRef, Active: active, ContentType: w.ContentType,
				})
			}
			trace = append(trace, FieldOrigin{Field: "webhooks", Level: level})
		}

		if len(doc.CustomProperties) > 0 {
			if err := lock("custom_properties", level); err != nil {
				return cfg, err
			}
			for k, v := range doc.CustomProperties {
				cfg.CustomProperties[k] = v
			}
			trace = append(trace, FieldOrigin{Field: "custom_properties", Level: level})
		}

		if len(doc.RequiredFiles) > 0 {
			if err := lock("required_files", level); err != nil {
				return cfg, err
			}
			requiredFiles = append(requiredFiles, doc.RequiredFiles...)
			trace = append(trace, FieldOrigin{Field: "required_files", Level: level})
		}

		if doc.Visibility != nil {
			if err := lock("visibility", level); err != nil {
				return cfg, err
			}
			cfg.VisibilityPolicy = VisibilityPolicy{
				Required:   hub.RepositoryVisibility(doc.Visibility.Required),
				Restricted: toVisibilities(doc.Visibility.Restricted),
			}
			trace = append(trace, FieldOrigin{Field: "visibility", Level: level})
		}

		// Security-critical fields are always immutable once the
		// organisation level has spoken, even if that level's document
		// did not explicitly list them under `immutable` (spec §4.1).
		if level == LevelOrganisation {
			if _, ok := locked["visibility"]; !ok && doc.Visibility != nil {
				locked["visibility"] = level
			}
			if _, ok := locked["required_files"]; !ok && len(doc.RequiredFiles) > 0 {
				locked["required_files"] = level
			}
		}

		for _, field := range doc.Immutable {
			if _, ok := locked[field]; !ok {
				locked[field] = level
			}
		}
	}

	cfg.Webhooks = dedupeWebhooks(webhooks)
	cfg.RequiredFiles = dedupeStrings(requiredFiles)
	cfg.OverrideTrace = trace
	return cfg, nil
}

func mergeSettings(dst *hub.RepositorySettings, src *SettingsDocument) {
	if src.HasIssues != nil {
		dst.HasIssues = *src.HasIssues
	}
	if src.HasWiki != nil {
		dst.HasWiki = *src.HasWiki
	}
	if src.HasProjects != nil {
		dst.HasProjects = *src.HasProjects
	}
	if src.HasDiscussions != nil {
		dst.HasDiscussions = *src.HasDiscussions
	}
	if src.DefaultBranch != "" {
		dst.DefaultBranch = src.DefaultBranch
	}
	if src.AllowMergeCommit != nil {
		dst.AllowMergeCommit = *src.AllowMergeCommit
	}
	if src.AllowSquashMerge != nil {
		dst.AllowSquashMerge = *src.AllowSquashMerge
	}
	if src.AllowRebaseMerge != nil {
		dst.AllowRebaseMerge = *src.AllowRebaseMerge
	}
	if src.DeleteBranchOnMerge != nil {
		dst.DeleteBranchOnMerge = *src.DeleteBranchOnMerge
	}
}

func mergeBranchProtection(dst *hub.BranchProtectionSpec, src *BranchProtectionDocument) {
	if src.Branch != "" {
		dst.Branch = src.Branch
	}
	if src.RequiredReviewers != nil {
		dst.RequiredReviewers = *src.RequiredReviewers
	}
	if src.RequireCodeOwnerReview != nil {
		dst.RequireCodeOwnerReview = *src.RequireCodeOwnerReview
	}
	if len(src.RequiredStatusChecks) > 0 {
		dst.RequiredStatusChecks = src.RequiredStatusChecks
	}
	if src.EnforceAdmins != nil {
		dst.EnforceAdmins = *src.EnforceAdmins
	}
}

func toVisibilities(raw []string) []hub.RepositoryVisibility {
	out := make([]hub.RepositoryVisibility, len(raw))
	for i, r := range raw {
		out[i] = hub.RepositoryVisibility(r)
	}
	return out
}

// dedupeWebhooks deduplicates by (url, events), keeping the last (highest
// precedence) occurrence — concatenation order is lowest precedence
// first, so a later entry with the same key represents an override. Two
// webhooks that share a URL but differ in event filter are distinct
// entries, not an override of each other.
func dedupeWebhooks(webhooks []hub.WebhookSpec) []hub.WebhookSpec {
	byKey := make(map[string]hub.WebhookSpec, len(webhooks))
	order := make([]string, 0, len(webhooks))
	for _, w := range webhooks {
		key := webhookKey(w)
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = w
	}
	out := make([]hub.WebhookSpec, len(order))
	for i, key := range order {
		out[i] = byKey[key]
	}
	return out
}

// webhookKey mirrors NotificationEndpoint.Key's (url, event-filter) keying.
func webhookKey(w hub.WebhookSpec) string {
	key := w.URL + "|"
	for _, evt := range w.Events {
		key += evt + ","
	}
	return key
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// mergeNotificationEndpoints concatenates endpoint lists from all three
// applicable scopes and deduplicates by (url, event-filter), spec §4.6
// "Endpoint assembly". Unlike webhooks, endpoint order does not express
// override precedence — all three scopes are genuinely additive — so
// the first occurrence of a duplicate key wins.
func mergeNotificationEndpoints(scopes ...[]NotificationEndpoint) []NotificationEndpoint {
	seen := make(map[string]bool)
	var out []NotificationEndpoint
	for _, scope := range scopes {
		for _, ep := range scope {
			key := ep.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, ep)
		}
	}
	return out
}
