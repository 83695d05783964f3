package gitutil

import (
	"strings"

	"github.com/reporoller/reporoller/pkg/sliceutil"
)

// IsAuthError checks if an error message indicates an authentication issue
// This is used to detect when GitHub API calls fail due to missing or invalid credentials
func IsAuthError(errMsg string) bool {
	return sliceutil.ContainsAny(strings.ToLower(errMsg),
		"gh_token", "github_token", "authentication", "not logged into",
		"unauthorized", "forbidden", "permission denied")
}

// IsHexString checks if a string contains only hexadecimal characters
// This is used to validate Git commit SHAs and other hexadecimal identifiers
func IsHexString(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
