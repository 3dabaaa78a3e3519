package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// RepositoryRef identifies a repository on the hosting provider.
type RepositoryRef struct {
	Owner string
	Name  string
}

func (r RepositoryRef) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepositoryRef extracts the owner and name from a repository URL such as
// "https://github.com/owner/repo.git". Anything after the second path segment is ignored.
func ParseRepositoryRef(raw string) (RepositoryRef, error) {
	trimmed := strings.TrimSpace(raw)
	var path string
	if strings.Contains(trimmed, "://") {
		u, err := url.Parse(trimmed)
		if err != nil {
			return RepositoryRef{}, referenceError(raw, err)
		}
		path = u.Path
	} else if i := strings.Index(trimmed, "/"); i >= 0 {
		// host/owner/repo without a scheme
		path = trimmed[i:]
	}

	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 {
		return RepositoryRef{}, referenceError(raw, fmt.Errorf("expected owner and repository in path"))
	}
	name := strings.TrimSuffix(segments[1], ".git")
	if name == "" {
		return RepositoryRef{}, referenceError(raw, fmt.Errorf("empty repository name"))
	}
	return RepositoryRef{Owner: segments[0], Name: name}, nil
}

func referenceError(raw string, err error) error {
	return &Error{Kind: KindReferenceParse, Op: fmt.Sprintf("parse %q", raw), Err: err}
}
