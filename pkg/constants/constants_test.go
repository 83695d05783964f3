package constants

import (
	"strings"
	"testing"
)

func TestCLIExtensionPrefix(t *testing.T) {
	if CLIExtensionPrefix != "reporoller" {
		t.Errorf("CLIExtensionPrefix = %q, want %q", CLIExtensionPrefix, "reporoller")
	}
}

func TestMetadataLayoutPaths(t *testing.T) {
	if GlobalDefaultsPath != ".reporoller/global/defaults.toml" {
		t.Errorf("GlobalDefaultsPath = %q", GlobalDefaultsPath)
	}
	if !strings.Contains(TeamConfigPathFormat, "%s") {
		t.Errorf("TeamConfigPathFormat must be a format string, got %q", TeamConfigPathFormat)
	}
	if !strings.Contains(TeamNotificationsPathFormat, "%s") {
		t.Errorf("TeamNotificationsPathFormat must be a format string, got %q", TeamNotificationsPathFormat)
	}
	if !strings.Contains(TypeConfigPathFormat, "%s") {
		t.Errorf("TypeConfigPathFormat must be a format string, got %q", TypeConfigPathFormat)
	}
}

func TestWebhookTimeoutBounds(t *testing.T) {
	if DefaultWebhookTimeoutSeconds < MinWebhookTimeoutSeconds || DefaultWebhookTimeoutSeconds > MaxWebhookTimeoutSeconds {
		t.Errorf("DefaultWebhookTimeoutSeconds %d out of bounds [%d, %d]",
			DefaultWebhookTimeoutSeconds, MinWebhookTimeoutSeconds, MaxWebhookTimeoutSeconds)
	}
}

func TestBinaryExtensionWhitelistNonEmpty(t *testing.T) {
	if len(BinaryExtensionWhitelist) == 0 {
		t.Fatal("BinaryExtensionWhitelist should not be empty")
	}
	for _, ext := range BinaryExtensionWhitelist {
		if !strings.HasPrefix(ext, ".") {
			t.Errorf("extension %q should start with '.'", ext)
		}
	}
}

func TestSignatureHeaderName(t *testing.T) {
	if SignatureHeader != "X-RepoRoller-Signature-256" {
		t.Errorf("SignatureHeader = %q", SignatureHeader)
	}
}
