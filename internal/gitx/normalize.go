package gitx

import (
	"net/url"
	"path/filepath"
	"strings"
)

// NormalizeURL converts a git remote URL into a comparison key.
// It is used for equality checks only and is never written back to git.
//
// Rules:
//   - Strip protocol (https://, git://, ssh://, file://) and user (git@)
//   - Convert git@host:path to host/path
//   - Lowercase the host portion
//   - Strip trailing ".git" and trailing slashes
//   - Clean local filesystem paths
//
// Examples:
//
//	git@github.com:Org/dots.git     → github.com/Org/dots
//	https://github.com/Org/dots.git → github.com/Org/dots
//	/srv/git/dots.git/              → /srv/git/dots
func NormalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	if filepath.IsAbs(rawURL) {
		return trimRepoSuffix(filepath.ToSlash(filepath.Clean(rawURL)))
	}

	var host, path string
	if i := strings.Index(rawURL, "@"); i >= 0 && !strings.Contains(rawURL[:i], "://") {
		rest := rawURL[i+1:]
		if colon := strings.Index(rest, ":"); colon >= 0 {
			host = rest[:colon]
			path = rest[colon+1:]
		} else {
			path = rest
		}
	} else {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return trimRepoSuffix(rawURL)
		}
		if parsed.Scheme == "file" {
			return trimRepoSuffix(filepath.ToSlash(filepath.Clean(parsed.Path)))
		}
		host = parsed.Hostname()
		path = strings.TrimPrefix(parsed.Path, "/")
	}

	host = strings.ToLower(host)
	path = trimRepoSuffix(path)
	if host == "" {
		return path
	}
	return host + "/" + path
}

// SameRemote reports whether two remote URLs point at the same repository.
func SameRemote(a, b string) bool {
	return NormalizeURL(a) == NormalizeURL(b)
}

func trimRepoSuffix(path string) string {
	path = strings.TrimRight(path, "/")
	path = strings.TrimSuffix(path, ".git")
	return strings.TrimRight(path, "/")
}
