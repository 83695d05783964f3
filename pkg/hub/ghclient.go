package hub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	gh "github.com/cli/go-gh/v2"
	"github.com/reporoller/reporoller/pkg/gitutil"
	"github.com/reporoller/reporoller/pkg/logger"
)

var ghLog = logger.New("hub:ghclient")

// GHClient drives the real Hub through the `gh` CLI's authenticated REST
// API plumbing, the same approach the teacher uses for its own GitHub
// reads (ExecGH / gh.Exec in pkg/workflow/gh_helper.go and
// pkg/parser/remote_fetch.go). It implements HubClient.
type GHClient struct{}

// NewGHClient returns a production HubClient backed by the gh CLI.
func NewGHClient() *GHClient {
	return &GHClient{}
}

func (c *GHClient) apiJSON(args []string, out any) error {
	stdout, stderr, err := gh.Exec(args...)
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if gitutil.IsAuthError(msg) {
			return fmt.Errorf("hub authentication failed: %s: %w", msg, err)
		}
		if retryAfter, isRate := parseRateLimitStderr(msg); isRate {
			return &RateLimitError{RetryAfter: retryAfter, Cause: err}
		}
		if strings.Contains(strings.ToLower(msg), "not found") || strings.Contains(msg, "404") {
			return &NotFoundError{Resource: strings.Join(args, " ")}
		}
		if strings.Contains(strings.ToLower(msg), "already exists") || strings.Contains(msg, "422") {
			return &AlreadyExistsError{Resource: strings.Join(args, " ")}
		}
		return &UnavailableError{Resource: strings.Join(args, " "), Cause: fmt.Errorf("%s: %w", msg, err)}
	}
	if out == nil {
		return nil
	}
	body := stdout.Bytes()
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse hub response for %q: %w", strings.Join(args, " "), err)
	}
	return nil
}

func parseRateLimitStderr(msg string) (time.Duration, bool) {
	lower := strings.ToLower(msg)
	if !strings.Contains(lower, "rate limit") && !strings.Contains(msg, "403") && !strings.Contains(msg, "429") {
		return 0, false
	}
	return 60 * time.Second, true
}

func (c *GHClient) CreateRepository(_ context.Context, org, name string, opts CreateRepositoryOptions) (*RepositoryDescriptor, error) {
	args := []string{
		"api", fmt.Sprintf("/orgs/%s/repos", org),
		"--method", "POST",
		"-f", "name=" + name,
		"-f", "private=" + strconv.FormatBool(opts.Visibility != VisibilityPublic),
		"-f", "auto_init=false",
	}
	if opts.Description != "" {
		args = append(args, "-f", "description="+opts.Description)
	}
	if opts.Visibility == VisibilityInternal {
		args = append(args, "-f", "visibility=internal")
	}

	var resp struct {
		ID            int64  `json:"id"`
		Name          string `json:"name"`
		HTMLURL       string `json:"html_url"`
		DefaultBranch string `json:"default_branch"`
		Visibility    string `json:"visibility"`
	}
	if err := c.apiJSON(args, &resp); err != nil {
		return nil, err
	}
	return &RepositoryDescriptor{
		ID:            resp.ID,
		Org:           org,
		Name:          resp.Name,
		URL:           resp.HTMLURL,
		Visibility:    RepositoryVisibility(resp.Visibility),
		DefaultBranch: resp.DefaultBranch,
	}, nil
}

func (c *GHClient) DeleteRepository(_ context.Context, org, name string) error {
	return c.apiJSON([]string{"api", fmt.Sprintf("/repos/%s/%s", org, name), "--method", "DELETE"}, nil)
}

func (c *GHClient) GetFileContents(_ context.Context, org, repo, path, ref string) ([]byte, error) {
	args := []string{"api", fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s", org, repo, path, ref)}
	var resp struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := c.apiJSON(args, &resp); err != nil {
		return nil, err
	}
	if resp.Encoding != "base64" {
		return []byte(resp.Content), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(resp.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode file contents for %s/%s/%s@%s: %w", org, repo, path, ref, err)
	}
	return decoded, nil
}

func (c *GHClient) ListDirectory(_ context.Context, org, repo, path, ref string) ([]FileEntry, error) {
	args := []string{"api", fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s", org, repo, path, ref)}
	var resp []struct {
		Path string `json:"path"`
		Type string `json:"type"`
		SHA  string `json:"sha"`
		Size int64  `json:"size"`
	}
	if err := c.apiJSON(args, &resp); err != nil {
		return nil, err
	}
	entries := make([]FileEntry, 0, len(resp))
	for _, e := range resp {
		entries = append(entries, FileEntry{Path: e.Path, IsDir: e.Type == "dir", SHA: e.SHA, Size: e.Size})
	}
	return entries, nil
}

func (c *GHClient) SearchRepositoriesByTopic(_ context.Context, org, topic string) ([]RepositoryDescriptor, error) {
	args := []string{"api", fmt.Sprintf("/search/repositories?q=org:%s+topic:%s", org, topic)}
	var resp struct {
		Items []struct {
			ID            int64  `json:"id"`
			Name          string `json:"name"`
			HTMLURL       string `json:"html_url"`
			DefaultBranch string `json:"default_branch"`
			Visibility    string `json:"visibility"`
		} `json:"items"`
	}
	if err := c.apiJSON(args, &resp); err != nil {
		return nil, err
	}
	out := make([]RepositoryDescriptor, 0, len(resp.Items))
	for _, item := range resp.Items {
		out = append(out, RepositoryDescriptor{
			ID: item.ID, Org: org, Name: item.Name, URL: item.HTMLURL,
			Visibility: RepositoryVisibility(item.Visibility), DefaultBranch: item.DefaultBranch,
		})
	}
	return out, nil
}

func (c *GHClient) CreateCommit(_ context.Context, org, repo, branch string, files []FileChange, message string) (string, error) {
	// Each file is written with its own "contents" API PUT, in insertion
	// order, so the branch receives one commit per file rather than a
	// single initial commit; the returned SHA is that of the last one.
	var lastSHA string
	for _, f := range files {
		args := []string{
			"api", fmt.Sprintf("/repos/%s/%s/contents/%s", org, repo, f.Path),
			"--method", "PUT",
			"-f", "message=" + message,
			"-f", "content=" + base64.StdEncoding.EncodeToString(f.Content),
			"-f", "branch=" + branch,
		}
		var resp struct {
			Commit struct {
				SHA string `json:"sha"`
			} `json:"commit"`
		}
		if err := c.apiJSON(args, &resp); err != nil {
			return "", fmt.Errorf("failed to commit %s: %w", f.Path, err)
		}
		lastSHA = resp.Commit.SHA
	}
	return lastSHA, nil
}

func (c *GHClient) CreateLabel(_ context.Context, org, repo string, label LabelSpec) error {
	args := []string{
		"api", fmt.Sprintf("/repos/%s/%s/labels", org, repo),
		"--method", "POST",
		"-f", "name=" + label.Name,
		"-f", "color=" + label.Color,
		"-f", "description=" + label.Description,
	}
	return c.apiJSON(args, nil)
}

func (c *GHClient) UpdateLabel(_ context.Context, org, repo string, label LabelSpec) error {
	args := []string{
		"api", fmt.Sprintf("/repos/%s/%s/labels/%s", org, repo, label.Name),
		"--method", "PATCH",
		"-f", "color=" + label.Color,
		"-f", "description=" + label.Description,
	}
	return c.apiJSON(args, nil)
}

func (c *GHClient) ListWebhooks(_ context.Context, org, repo string) ([]WebhookDescriptor, error) {
	args := []string{"api", fmt.Sprintf("/repos/%s/%s/hooks", org, repo)}
	var resp []struct {
		ID     int64  `json:"id"`
		Active bool   `json:"active"`
		Config struct {
			URL string `json:"url"`
		} `json:"config"`
		Events []string `json:"events"`
	}
	if err := c.apiJSON(args, &resp); err != nil {
		return nil, err
	}
	out := make([]WebhookDescriptor, 0, len(resp))
	for _, h := range resp {
		out = append(out, WebhookDescriptor{ID: h.ID, URL: h.Config.URL, Events: h.Events, Active: h.Active})
	}
	return out, nil
}

func (c *GHClient) CreateWebhook(_ context.Context, org, repo string, hook WebhookSpec) error {
	args := []string{
		"api", fmt.Sprintf("/repos/%s/%s/hooks", org, repo),
		"--method", "POST",
		"-f", "name=web",
		"-f", "config[url]=" + hook.URL,
		"-f", "config[content_type]=" + hook.ContentType,
		"-f", "config[secret]=" + hook.Secret,
		"-F", "active=" + strconv.FormatBool(hook.Active),
	}
	for _, event := range hook.Events {
		args = append(args, "-f", "events[]="+event)
	}
	return c.apiJSON(args, nil)
}

func (c *GHClient) UpdateWebhook(_ context.Context, org, repo string, hookID int64, hook WebhookSpec) error {
	args := []string{
		"api", fmt.Sprintf("/repos/%s/%s/hooks/%d", org, repo, hookID),
		"--method", "PATCH",
		"-f", "config[url]=" + hook.URL,
		"-f", "config[content_type]=" + hook.ContentType,
		"-f", "config[secret]=" + hook.Secret,
		"-F", "active=" + strconv.FormatBool(hook.Active),
	}
	for _, event := range hook.Events {
		args = append(args, "-f", "events[]="+event)
	}
	return c.apiJSON(args, nil)
}

func (c *GHClient) SetRepositorySettings(_ context.Context, org, repo string, settings RepositorySettings) error {
	args := []string{
		"api", fmt.Sprintf("/repos/%s/%s", org, repo),
		"--method", "PATCH",
		"-F", "has_issues=" + strconv.FormatBool(settings.HasIssues),
		"-F", "has_wiki=" + strconv.FormatBool(settings.HasWiki),
		"-F", "has_projects=" + strconv.FormatBool(settings.HasProjects),
		"-F", "has_discussions=" + strconv.FormatBool(settings.HasDiscussions),
		"-F", "allow_merge_commit=" + strconv.FormatBool(settings.AllowMergeCommit),
		"-F", "allow_squash_merge=" + strconv.FormatBool(settings.AllowSquashMerge),
		"-F", "allow_rebase_merge=" + strconv.FormatBool(settings.AllowRebaseMerge),
		"-F", "delete_branch_on_merge=" + strconv.FormatBool(settings.DeleteBranchOnMerge),
	}
	if settings.DefaultBranch != "" {
		args = append(args, "-f", "default_branch="+settings.DefaultBranch)
	}
	return c.apiJSON(args, nil)
}

func (c *GHClient) SetBranchProtection(_ context.Context, org, repo string, rules BranchProtectionSpec) error {
	args := []string{
		"api", fmt.Sprintf("/repos/%s/%s/branches/%s/protection", org, repo, rules.Branch),
		"--method", "PUT",
		"-F", "enforce_admins=" + strconv.FormatBool(rules.EnforceAdmins),
		"-F", "required_pull_request_reviews[required_approving_review_count]=" + strconv.Itoa(rules.RequiredReviewers),
		"-F", "required_pull_request_reviews[require_code_owner_reviews]=" + strconv.FormatBool(rules.RequireCodeOwnerReview),
	}
	for _, check := range rules.RequiredStatusChecks {
		args = append(args, "-f", "required_status_checks[contexts][]="+check)
	}
	return c.apiJSON(args, nil)
}

func (c *GHClient) SetCustomProperties(_ context.Context, org, repo string, props map[string]string) error {
	args := []string{
		"api", fmt.Sprintf("/repos/%s/%s/properties/values", org, repo),
		"--method", "PATCH",
	}
	for k, v := range props {
		args = append(args, "-f", fmt.Sprintf("properties[][property_name]=%s", k), "-f", fmt.Sprintf("properties[][value]=%s", v))
	}
	return c.apiJSON(args, nil)
}
