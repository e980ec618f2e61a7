package scenario

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveURL joins a scenario path onto base. Absolute http(s) paths are returned
// unchanged. Relative paths keep any path prefix of base, so "/maps" against
// "http://host/app" yields "http://host/app/maps".
func ResolveURL(base, path string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	if (b.Scheme != "http" && b.Scheme != "https") || b.Host == "" {
		return "", fmt.Errorf("base URL %q must be absolute http(s)", base)
	}

	p, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid scenario path %q: %w", path, err)
	}
	if p.IsAbs() {
		if p.Scheme != "http" && p.Scheme != "https" {
			return "", fmt.Errorf("scenario URL %q must use http or https", path)
		}
		return p.String(), nil
	}

	resolved := *b
	resolved.Path = strings.TrimSuffix(b.Path, "/") + "/" + strings.TrimPrefix(p.Path, "/")
	resolved.RawPath = ""
	resolved.RawQuery = p.RawQuery
	resolved.Fragment = p.Fragment
	return resolved.String(), nil
}
