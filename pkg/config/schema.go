package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/reporoller/reporoller/pkg/logger"
)

var schemaLog = logger.New("config:schema")

//go:embed schemas/document.schema.json
var documentSchemaJSON string

//go:embed schemas/notifications.schema.json
var notificationsSchemaJSON string

var (
	documentSchemaOnce      sync.Once
	notificationsSchemaOnce sync.Once

	compiledDocumentSchema      *jsonschema.Schema
	compiledNotificationsSchema *jsonschema.Schema

	documentSchemaErr      error
	notificationsSchemaErr error
)

func compileSchema(schemaJSON, schemaURL string) (*jsonschema.Schema, error) {
	var schemaDoc any
	if err := json.Unmarshal([]byte(schemaJSON), &schemaDoc); err != nil {
		return nil, fmt.Errorf("failed to parse embedded schema %s: %w", schemaURL, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource %s: %w", schemaURL, err)
	}
	return compiler.Compile(schemaURL)
}

func getDocumentSchema() (*jsonschema.Schema, error) {
	documentSchemaOnce.Do(func() {
		compiledDocumentSchema, documentSchemaErr = compileSchema(documentSchemaJSON, "https://reporoller.example/document-schema.json")
	})
	return compiledDocumentSchema, documentSchemaErr
}

func getNotificationsSchema() (*jsonschema.Schema, error) {
	notificationsSchemaOnce.Do(func() {
		compiledNotificationsSchema, notificationsSchemaErr = compileSchema(notificationsSchemaJSON, "https://reporoller.example/notifications-schema.json")
	})
	return compiledNotificationsSchema, notificationsSchemaErr
}

// ParseApplicationDefaults validates and decodes raw as the level-2
// "application-level configuration" document (spec §4.1), the one level
// that lives outside the Hub and is supplied by whoever deploys this
// RepoRoller instance (typically a local file read by cmd/reporoller).
func ParseApplicationDefaults(raw []byte) (Document, error) {
	return decodeAndValidateDocument(raw, "application defaults")
}

// decodeAndValidateDocument parses raw TOML text into both a generic map
// (for schema validation) and the strongly-typed Document, returning the
// Document only if it validates (spec §4.1 "Validation is per-level").
func decodeAndValidateDocument(raw []byte, sourcePath string) (Document, error) {
	var generic map[string]any
	if _, err := toml.Decode(string(raw), &generic); err != nil {
		return Document{}, fmt.Errorf("failed to parse %s as TOML: %w", sourcePath, err)
	}

	schema, err := getDocumentSchema()
	if err != nil {
		return Document{}, fmt.Errorf("document schema unavailable: %w", err)
	}
	// jsonschema validates plain JSON-shaped values; round-trip through
	// JSON to normalize TOML's richer type set (e.g. toml.Primitive)
	// down to the map/slice/string/float64/bool set the validator expects.
	normalized, err := normalizeForValidation(generic)
	if err != nil {
		return Document{}, fmt.Errorf("failed to normalize %s: %w", sourcePath, err)
	}
	if err := schema.Validate(normalized); err != nil {
		return Document{}, fmt.Errorf("schema validation failed for %s: %w", sourcePath, err)
	}

	var doc Document
	if _, err := toml.Decode(string(raw), &doc); err != nil {
		return Document{}, fmt.Errorf("failed to decode %s into document model: %w", sourcePath, err)
	}
	return doc, nil
}

// decodeAndValidateNotifications is the notifications.toml counterpart.
func decodeAndValidateNotifications(raw []byte, sourcePath string) (NotificationsDocument, error) {
	var generic map[string]any
	if _, err := toml.Decode(string(raw), &generic); err != nil {
		return NotificationsDocument{}, fmt.Errorf("failed to parse %s as TOML: %w", sourcePath, err)
	}

	schema, err := getNotificationsSchema()
	if err != nil {
		return NotificationsDocument{}, fmt.Errorf("notifications schema unavailable: %w", err)
	}
	normalized, err := normalizeForValidation(generic)
	if err != nil {
		return NotificationsDocument{}, fmt.Errorf("failed to normalize %s: %w", sourcePath, err)
	}
	if err := schema.Validate(normalized); err != nil {
		return NotificationsDocument{}, fmt.Errorf("schema validation failed for %s: %w", sourcePath, err)
	}

	var doc NotificationsDocument
	if _, err := toml.Decode(string(raw), &doc); err != nil {
		return NotificationsDocument{}, fmt.Errorf("failed to decode %s into notifications model: %w", sourcePath, err)
	}
	return doc, nil
}

// decodeTemplateManifestExtras decodes only the template-specific fields
// (variables, metadata, default_visibility) of template.toml; the
// Document portion is decoded and validated separately by
// decodeAndValidateDocument so both paths share one schema.
func decodeTemplateManifestExtras(raw []byte, sourcePath string) (*TemplateManifestDocument, error) {
	var extras struct {
		Variables         map[string]string `toml:"variables"`
		Metadata          map[string]string `toml:"metadata"`
		DefaultVisibility string            `toml:"default_visibility"`
	}
	if _, err := toml.Decode(string(raw), &extras); err != nil {
		return nil, fmt.Errorf("failed to decode %s template fields: %w", sourcePath, err)
	}
	return &TemplateManifestDocument{
		Variables:         extras.Variables,
		Metadata:          extras.Metadata,
		DefaultVisibility: extras.DefaultVisibility,
	}, nil
}

func normalizeForValidation(v map[string]any) (any, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var normalized any
	if err := json.Unmarshal(encoded, &normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}
