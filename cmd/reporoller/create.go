package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/reporoller/reporoller/pkg/config"
	"github.com/reporoller/reporoller/pkg/constants"
	"github.com/reporoller/reporoller/pkg/content"
	"github.com/reporoller/reporoller/pkg/hub"
	"github.com/reporoller/reporoller/pkg/observer"
	"github.com/reporoller/reporoller/pkg/publisher"
	"github.com/reporoller/reporoller/pkg/reporoller"
	"github.com/reporoller/reporoller/pkg/secret"
	"github.com/reporoller/reporoller/pkg/visibility"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a repository from a CreationRequest built from flags",
	Long: `Create resolves an organisation's layered configuration, decides the
repository's visibility, provisions its initial content, drives the Hub
through the creation protocol, and fires off any configured webhook
notifications in the background.

Examples:
  ` + constants.CLIExtensionPrefix + ` create --org acme --name widgets --strategy empty
  ` + constants.CLIExtensionPrefix + ` create --org acme --name widgets --strategy from_template \
      --template-org acme --template-repo svc-template --var project_name=Widgets
  ` + constants.CLIExtensionPrefix + ` create --org acme --name widgets --strategy custom_initialised \
      --readme --gitignore Go --license MIT`,
	RunE: runCreate,
}

func init() {
	flags := createCmd.Flags()
	flags.String("org", "", "owning organisation (required)")
	flags.String("name", "", "repository name (required)")
	flags.String("description", "", "repository description")
	flags.String("team", "", "owning team slug")
	flags.String("repository-type", "", "organisation-defined repository-type tag")
	flags.String("strategy", "empty", "content strategy: from_template, empty, or custom_initialised")
	flags.String("template-org", "", "template source organisation (defaults to --org)")
	flags.String("template-repo", "", "template source repository")
	flags.String("template-ref", "main", "template source commit-ish ref")
	flags.StringArray("var", nil, "template variable binding name=value, may be repeated")
	flags.Bool("readme", false, "include the built-in README template (custom_initialised strategy)")
	flags.StringArray("gitignore", nil, "built-in .gitignore language to include, may be repeated")
	flags.String("license", "", "built-in LICENSE identifier to include (e.g. MIT, Apache-2.0)")
	flags.String("visibility", "", "requested visibility: public, private, or internal")
	flags.Bool("enterprise", false, "the target Hub deployment is an enterprise installation")
	flags.Bool("supports-private", true, "the target Hub's plan supports private repositories")
	flags.String("secret-env-prefix", "REPOROLLER", "prefix EnvResolver prepends when resolving webhook secrets")
	flags.String("app-config", "", "path to a local TOML file supplying the application-level configuration level")
	flags.Int("timeout", constants.CreationRequestTimeoutSeconds, "overall pipeline timeout in seconds")

	_ = createCmd.MarkFlagRequired("org")
	_ = createCmd.MarkFlagRequired("name")
}

func runCreate(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	org, _ := flags.GetString("org")
	name, _ := flags.GetString("name")
	templateOrg, _ := flags.GetString("template-org")
	if templateOrg == "" {
		templateOrg = org
	}

	varFlags, _ := flags.GetStringArray("var")
	variables, err := parseVariables(varFlags)
	if err != nil {
		return err
	}

	strategyFlag, _ := flags.GetString("strategy")
	strategy, err := parseStrategy(strategyFlag)
	if err != nil {
		return err
	}

	templateRepo, _ := flags.GetString("template-repo")
	templateRef, _ := flags.GetString("template-ref")
	readme, _ := flags.GetBool("readme")
	gitignoreLangs, _ := flags.GetStringArray("gitignore")
	license, _ := flags.GetString("license")
	visibilityPref, _ := flags.GetString("visibility")
	enterprise, _ := flags.GetBool("enterprise")
	supportsPrivate, _ := flags.GetBool("supports-private")
	secretPrefix, _ := flags.GetString("secret-env-prefix")
	appConfigPath, _ := flags.GetString("app-config")
	timeoutSeconds, _ := flags.GetInt("timeout")
	description, _ := flags.GetString("description")
	team, _ := flags.GetString("team")
	repositoryType, _ := flags.GetString("repository-type")

	var resolverOpts []config.Option
	if appConfigPath != "" {
		raw, err := os.ReadFile(appConfigPath)
		if err != nil {
			return fmt.Errorf("reading --app-config %s: %w", appConfigPath, err)
		}
		doc, err := config.ParseApplicationDefaults(raw)
		if err != nil {
			return fmt.Errorf("parsing --app-config %s: %w", appConfigPath, err)
		}
		resolverOpts = append(resolverOpts, config.WithApplicationDefaults(doc))
	}

	registry := prometheus.NewRegistry()
	obs := observer.NewStandardObserver(observer.NewMetrics(registry))
	resolverOpts = append(resolverOpts, config.WithObserver(obs))

	client := hub.NewGHClient()
	configResolver := config.NewResolver(client, resolverOpts...)
	contentProvider := content.NewProvider(client, nil)
	secretResolver := secret.NewEnvResolver(secretPrefix)
	eventPublisher := publisher.NewPublisher(secretResolver, obs)
	env := visibility.Environment{IsEnterprise: enterprise, SupportsPrivate: supportsPrivate}

	pipeline := reporoller.New(client, configResolver, contentProvider, eventPublisher, obs, env)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	result := pipeline.Create(ctx, reporoller.CreationRequest{
		Organisation:         org,
		Name:                 name,
		Description:          description,
		Team:                 team,
		RepositoryType:       repositoryType,
		ContentStrategy:      strategy,
		TemplateOrg:          templateOrg,
		TemplateRepo:         templateRepo,
		TemplateRef:          templateRef,
		Variables:            variables,
		IncludeReadme:        readme,
		GitignoreLanguages:   gitignoreLangs,
		LicenseIdentifier:    license,
		VisibilityPreference: hub.RepositoryVisibility(visibilityPref),
	})

	return reportResult(cmd, result)
}

func parseStrategy(flag string) (content.Strategy, error) {
	switch content.Strategy(flag) {
	case content.StrategyFromTemplate, content.StrategyEmpty, content.StrategyCustomInitialised:
		return content.Strategy(flag), nil
	default:
		return "", fmt.Errorf("unknown --strategy %q (want from_template, empty, or custom_initialised)", flag)
	}
}

// parseVariables turns repeated name=value bindings from --var into the
// map CreationRequest.Variables expects.
func parseVariables(bindings []string) (map[string]any, error) {
	if len(bindings) == 0 {
		return nil, nil
	}
	variables := make(map[string]any, len(bindings))
	for _, binding := range bindings {
		name, value, ok := strings.Cut(binding, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q (want name=value)", binding)
		}
		variables[name] = value
	}
	return variables, nil
}

func reportResult(cmd *cobra.Command, result reporoller.CreationResult) error {
	out := struct {
		Status     string   `json:"status"`
		Repository any      `json:"repository,omitempty"`
		Warnings   []string `json:"warnings,omitempty"`
		Error      string   `json:"error,omitempty"`
	}{Status: string(result.Status)}

	if result.Repository != nil {
		out.Repository = result.Repository
	}
	for _, w := range result.Warnings {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", w.Step, w.Err))
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

	if result.Err != nil {
		return fmt.Errorf("creation failed: %w", result.Err)
	}
	return nil
}
