package gitx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

// ErrInvalidObjectID marks rev-parse output that is not a commit id.
var ErrInvalidObjectID = errors.New("git invalid object id")

// ParseObjectID validates the output of rev-parse/merge-base and returns the
// canonical lowercase object id. SHA-1 and SHA-256 repositories are accepted.
func ParseObjectID(output string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(output))
	if plumbing.IsHash(id) {
		return plumbing.NewHash(id).String(), nil
	}
	if len(id) == 64 && isHex(id) {
		return id, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidObjectID, id)
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}

// ParseNullList splits NUL-delimited output such as `git diff --name-only -z`.
// Empty records are dropped.
func ParseNullList(output string) []string {
	if output == "" {
		return nil
	}
	var paths []string
	for _, p := range strings.Split(output, "\x00") {
		if p == "" {
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

// ParseUnmerged parses `git ls-files -u -z` records of the form
//
//	<mode> SP <object> SP <stage> TAB <path> NUL
//
// and returns each conflicted path once, in first-seen order.
func ParseUnmerged(output string) []string {
	seen := map[string]struct{}{}
	var paths []string
	for _, rec := range ParseNullList(output) {
		tab := strings.IndexByte(rec, '\t')
		if tab < 0 || tab == len(rec)-1 {
			continue
		}
		path := rec[tab+1:]
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		paths = append(paths, path)
	}
	return paths
}
