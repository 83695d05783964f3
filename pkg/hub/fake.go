package hub

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient is an in-memory HubClient for tests (spec package list calls
// this out as a first-class package): it keeps the state its calls
// produce (repositories, files, labels, webhooks, settings) and serves it
// back deterministically, so pipeline tests never touch the network. It
// does not keep a log of the calls themselves.
type FakeClient struct {
	mu sync.Mutex

	repos       map[string]*RepositoryDescriptor // "org/name" -> descriptor
	files       map[string][]byte                // "org/repo/path@ref" -> content
	dirs        map[string][]FileEntry           // "org/repo/path@ref" -> entries
	topicIndex  map[string][]RepositoryDescriptor // "org/topic" -> descriptors
	labels      map[string]map[string]LabelSpec   // "org/repo" -> name -> spec
	webhooks    map[string][]WebhookDescriptor    // "org/repo" -> hooks
	settings    map[string]RepositorySettings
	protections map[string]BranchProtectionSpec
	properties  map[string]map[string]string

	nextRepoID   int64
	nextWebhookID int64

	// CreateRepositoryErr, when set, is returned by every CreateRepository call.
	CreateRepositoryErr error
	// SearchRepositoriesByTopicErr, when set, is returned by every
	// SearchRepositoriesByTopic call, simulating a Hub outage during
	// metadata-repository discovery.
	SearchRepositoriesByTopicErr error
}

// NewFakeClient returns an empty FakeClient ready to be seeded.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		repos:       make(map[string]*RepositoryDescriptor),
		files:       make(map[string][]byte),
		dirs:        make(map[string][]FileEntry),
		topicIndex:  make(map[string][]RepositoryDescriptor),
		labels:      make(map[string]map[string]LabelSpec),
		webhooks:    make(map[string][]WebhookDescriptor),
		settings:    make(map[string]RepositorySettings),
		protections: make(map[string]BranchProtectionSpec),
		properties:  make(map[string]map[string]string),
		nextRepoID:  1,
	}
}

func repoKey(org, repo string) string { return org + "/" + repo }
func refKey(org, repo, path, ref string) string {
	return fmt.Sprintf("%s/%s/%s@%s", org, repo, path, ref)
}

// SeedFile installs a file as if it already existed at ref, for
// GetFileContents/ListDirectory callers such as the metadata-repository
// and template-source readers.
func (f *FakeClient) SeedFile(org, repo, path, ref string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[refKey(org, repo, path, ref)] = content
}

// SeedDirectory installs a directory listing for ListDirectory callers.
func (f *FakeClient) SeedDirectory(org, repo, path, ref string, entries []FileEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[refKey(org, repo, path, ref)] = entries
}

// SeedTopicSearch installs the result SearchRepositoriesByTopic returns
// for (org, topic), used to seed metadata- and template-repository
// discovery in tests.
func (f *FakeClient) SeedTopicSearch(org, topic string, repos []RepositoryDescriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topicIndex[org+"/"+topic] = repos
}

func (f *FakeClient) CreateRepository(_ context.Context, org, name string, opts CreateRepositoryOptions) (*RepositoryDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateRepositoryErr != nil {
		return nil, f.CreateRepositoryErr
	}
	key := repoKey(org, name)
	if _, exists := f.repos[key]; exists {
		return nil, &AlreadyExistsError{Resource: key}
	}
	visibility := opts.Visibility
	if visibility == "" {
		visibility = VisibilityPrivate
	}
	desc := &RepositoryDescriptor{
		ID:            f.nextRepoID,
		Org:           org,
		Name:          name,
		URL:           fmt.Sprintf("https://hub.example/%s", key),
		Visibility:    visibility,
		DefaultBranch: "main",
	}
	f.nextRepoID++
	f.repos[key] = desc
	return desc, nil
}

func (f *FakeClient) DeleteRepository(_ context.Context, org, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := repoKey(org, name)
	if _, exists := f.repos[key]; !exists {
		return &NotFoundError{Resource: key}
	}
	delete(f.repos, key)
	return nil
}

func (f *FakeClient) GetFileContents(_ context.Context, org, repo, path, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[refKey(org, repo, path, ref)]
	if !ok {
		return nil, &NotFoundError{Resource: path}
	}
	return content, nil
}

func (f *FakeClient) ListDirectory(_ context.Context, org, repo, path, ref string) ([]FileEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, ok := f.dirs[refKey(org, repo, path, ref)]
	if !ok {
		return nil, &NotFoundError{Resource: path}
	}
	return entries, nil
}

func (f *FakeClient) SearchRepositoriesByTopic(_ context.Context, org, topic string) ([]RepositoryDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SearchRepositoriesByTopicErr != nil {
		return nil, f.SearchRepositoriesByTopicErr
	}
	return f.topicIndex[org+"/"+topic], nil
}

func (f *FakeClient) CreateCommit(_ context.Context, org, repo, branch string, files []FileChange, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, change := range files {
		f.files[refKey(org, repo, change.Path, branch)] = change.Content
	}
	return fmt.Sprintf("fake-commit-%s-%s-%d", org, repo, len(files)), nil
}

func (f *FakeClient) CreateLabel(_ context.Context, org, repo string, label LabelSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := repoKey(org, repo)
	if f.labels[key] == nil {
		f.labels[key] = make(map[string]LabelSpec)
	}
	if _, exists := f.labels[key][label.Name]; exists {
		return &AlreadyExistsError{Resource: label.Name}
	}
	f.labels[key][label.Name] = label
	return nil
}

func (f *FakeClient) UpdateLabel(_ context.Context, org, repo string, label LabelSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := repoKey(org, repo)
	if f.labels[key] == nil {
		f.labels[key] = make(map[string]LabelSpec)
	}
	f.labels[key][label.Name] = label
	return nil
}

func (f *FakeClient) ListWebhooks(_ context.Context, org, repo string) ([]WebhookDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.webhooks[repoKey(org, repo)], nil
}

func (f *FakeClient) CreateWebhook(_ context.Context, org, repo string, hook WebhookSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := repoKey(org, repo)
	f.nextWebhookID++
	f.webhooks[key] = append(f.webhooks[key], WebhookDescriptor{
		ID: f.nextWebhookID, URL: hook.URL, Events: hook.Events, Active: hook.Active,
	})
	return nil
}

func (f *FakeClient) UpdateWebhook(_ context.Context, org, repo string, hookID int64, hook WebhookSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := repoKey(org, repo)
	for i, existing := range f.webhooks[key] {
		if existing.ID == hookID {
			f.webhooks[key][i] = WebhookDescriptor{ID: hookID, URL: hook.URL, Events: hook.Events, Active: hook.Active}
			return nil
		}
	}
	return &NotFoundError{Resource: fmt.Sprintf("webhook %d", hookID)}
}

func (f *FakeClient) SetRepositorySettings(_ context.Context, org, repo string, settings RepositorySettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[repoKey(org, repo)] = settings
	return nil
}

func (f *FakeClient) SetBranchProtection(_ context.Context, org, repo string, rules BranchProtectionSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.protections[repoKey(org, repo)] = rules
	return nil
}

func (f *FakeClient) SetCustomProperties(_ context.Context, org, repo string, props map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := repoKey(org, repo)
	if f.properties[key] == nil {
		f.properties[key] = make(map[string]string)
	}
	for k, v := range props {
		f.properties[key][k] = v
	}
	return nil
}

// Repository returns the recorded descriptor for org/name, for test
// assertions after a builder run.
func (f *FakeClient) Repository(org, name string) (*RepositoryDescriptor, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	desc, ok := f.repos[repoKey(org, name)]
	return desc, ok
}

// Labels returns the recorded labels for org/repo, for test assertions.
func (f *FakeClient) Labels(org, repo string) map[string]LabelSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.labels[repoKey(org, repo)]
}

// Properties returns the recorded custom properties for org/repo.
func (f *FakeClient) Properties(org, repo string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.properties[repoKey(org, repo)]
}
