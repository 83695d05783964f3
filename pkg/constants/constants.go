package constants

// CLIExtensionPrefix is the prefix used in user-facing CLI output.
const CLIExtensionPrefix = "reporoller"

// MetadataRepositoryTopic is the reserved Hub topic tag used to discover an
// organisation's metadata repository (§4.1, §6).
const MetadataRepositoryTopic = "reporoller-metadata"

// TemplateRepositoryTopic is the reserved Hub topic tag used to mark a
// repository as a valid RepoRoller template source.
const TemplateRepositoryTopic = "reporoller-template"

// Metadata-repository layout (§6).
const (
	GlobalDefaultsPath     = ".reporoller/global/defaults.toml"
	GlobalNotificationsPath = ".reporoller/global/notifications.toml"
	TeamConfigPathFormat    = ".reporoller/teams/%s/config.toml"
	TeamNotificationsPathFormat = ".reporoller/teams/%s/notifications.toml"
	TypeConfigPathFormat    = ".reporoller/types/%s/config.toml"
)

// Template-repository layout (§6).
const (
	TemplateManifestPath      = ".reporoller/template.toml"
	TemplateNotificationsPath = ".reporoller/notifications.toml"
)

// ConfigCacheTTLSeconds is the resolved-configuration cache lifetime in seconds (§4.1).
const ConfigCacheTTLSeconds = 5 * 60

// Resource limits (§4.3, §5).
const (
	TemplateRenderTimeoutSeconds = 30
	MaxTemplateFileSizeBytes     = 50 * 1024 * 1024
	MaxRenderingMemoryBytes      = 100 * 1024 * 1024
	MaxHelperRecursionDepth      = 32
)

// Notification defaults (§4.6).
const (
	DefaultWebhookTimeoutSeconds = 5
	MinWebhookTimeoutSeconds     = 1
	MaxWebhookTimeoutSeconds     = 30
	SignatureHeader              = "X-RepoRoller-Signature-256"
)

// CreationRequestTimeoutSeconds bounds the whole creation pipeline (§5).
const CreationRequestTimeoutSeconds = 120

// BinarySniffLength is the number of leading bytes inspected for magic-number
// based binary detection (§4.3).
const BinarySniffLength = 512

// BinaryExtensionWhitelist lists file extensions treated as binary
// regardless of magic-number inspection outcome.
var BinaryExtensionWhitelist = []string{
	".png", ".jpg", ".jpeg", ".gif", ".ico", ".webp", ".bmp",
	".pdf", ".zip", ".tar", ".gz", ".tgz", ".bz2", ".xz", ".7z",
	".woff", ".woff2", ".ttf", ".otf", ".eot",
	".so", ".dll", ".dylib", ".exe", ".bin", ".class", ".jar", ".wasm",
	".mp3", ".mp4", ".mov", ".avi", ".mkv", ".wav", ".flac",
}
