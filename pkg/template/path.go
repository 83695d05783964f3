package template

import (
	"fmt"
	"path"
	"strings"

	"github.com/reporoller/reporoller/pkg/rrerrors"
)

// maxPathLength is a conservative cross-platform bound (§4.3 "not exceed
// platform path-length limits"); Windows' historical MAX_PATH of 260 bytes
// is the tightest constraint a rendered path must respect.
const maxPathLength = 260

// validatePath enforces the path-safety rules that apply to a single
// rendered destination path, already run through path.Clean by the caller:
// non-empty, relative, inside the repository root, and within
// maxPathLength. Collisions between paths are checked by detectCollisions.
func validatePath(cleaned string) error {
	if cleaned == "" || cleaned == "." {
		return rrerrors.New(rrerrors.KindTemplate, "rendered path is empty")
	}
	if path.IsAbs(cleaned) || strings.HasPrefix(cleaned, `\`) || hasWindowsDriveLetter(cleaned) {
		return rrerrors.Wrap(rrerrors.KindTemplate, rrerrors.ErrPathTraversal,
			fmt.Sprintf("rendered path %q resolves to an absolute path", cleaned))
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/../") {
		return rrerrors.Wrap(rrerrors.KindTemplate, rrerrors.ErrPathTraversal,
			fmt.Sprintf("rendered path %q escapes the repository root", cleaned))
	}
	if len(cleaned) > maxPathLength {
		return rrerrors.New(rrerrors.KindTemplate,
			fmt.Sprintf("rendered path %q exceeds %d characters", cleaned, maxPathLength))
	}
	return nil
}

func hasWindowsDriveLetter(p string) bool {
	return len(p) >= 2 && p[1] == ':' && ((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}

// detectCollisions returns an error naming the first pair of rendered
// paths that normalise to the same destination (§4.3 "PathCollision").
func detectCollisions(paths []string) error {
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		cleaned := path.Clean(p)
		if original, ok := seen[cleaned]; ok {
			return rrerrors.Wrap(rrerrors.KindTemplate, rrerrors.ErrPathCollision,
				fmt.Sprintf("rendered paths %q and %q collide at %q", original, p, cleaned))
		}
		seen[cleaned] = p
	}
	return nil
}
