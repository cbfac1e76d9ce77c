package settings

import (
	"fmt"
	"regexp"
	"strings"
)

// sanitizePattern matches any run of characters the identifier synthesis
// treats as a separator: '/', '\', ':', '#', '.', and whitespace.
var sanitizePattern = regexp.MustCompile(`[/\\:#.\s]+`)

var collapseDashes = regexp.MustCompile(`-+`)

// Sanitize replaces any run of [/ \ : # . whitespace] with a single '-',
// collapses adjacent '-', and strips leading/trailing '-'. It is
// idempotent: Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(s string) string {
	replaced := sanitizePattern.ReplaceAllString(s, "-")
	collapsed := collapseDashes.ReplaceAllString(replaced, "-")
	return strings.Trim(collapsed, "-")
}

// ParseRemoteURL extracts (org, repo) from a git remote URL in either
// `user@host:path` or `scheme://host/path` form, with any trailing `.git`
// stripped. It returns the last two path components, so
// ParseRemoteURL(u+".git") == ParseRemoteURL(u) for every recognized form.
func ParseRemoteURL(rawURL string) (org, repo string, err error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(rawURL), ".git")

	var pathPart string
	switch {
	case strings.Contains(trimmed, "://"):
		idx := strings.Index(trimmed, "://")
		rest := trimmed[idx+len("://"):]
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return "", "", fmt.Errorf("parse remote url %q: no path component", rawURL)
		}
		pathPart = rest[slash+1:]
	case strings.Contains(trimmed, ":"):
		idx := strings.Index(trimmed, ":")
		pathPart = trimmed[idx+1:]
	default:
		return "", "", fmt.Errorf("parse remote url %q: unrecognized form", rawURL)
	}

	pathPart = strings.Trim(pathPart, "/")
	components := strings.Split(pathPart, "/")
	components = components[:len(components):len(components)]
	if len(components) < 2 {
		return "", "", fmt.Errorf("parse remote url %q: fewer than two path components", rawURL)
	}

	org = components[len(components)-2]
	repo = components[len(components)-1]
	return org, repo, nil
}

// Identifier synthesizes the `{org}-{repo}-{sanitized_branch}` task-list
// identifier from a remote URL and branch name (spec.md §4.7).
func Identifier(remoteURL, branch string) (string, error) {
	org, repo, err := ParseRemoteURL(remoteURL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", org, repo, Sanitize(branch)), nil
}
