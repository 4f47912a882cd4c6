package bulkexport

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/flarebyte/timewarp/internal/failure"
)

// ErrUnresolvableLink is wrapped when a store link cannot be mapped onto the
// caller's base URL.
var ErrUnresolvableLink = errors.New("cannot map link onto base url")

// binarySegment is the resource category HAPI serves export files under.
const binarySegment = "Binary"

// ResolveURL rewrites a link generated by the store so that it is reachable
// through base. Stores behind a proxy often embed their internal host name.
//
// Relative links are resolved against base. With an https base, http links
// are upgraded. Links already under base are kept. Otherwise only two shapes
// are mapped: an operation link ("$export-poll-status") keeps its last
// segment, a Binary link keeps its last two segments.
func ResolveURL(link, base string) (string, error) {
	base = strings.TrimRight(base, "/")
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", failure.New(failure.TransportFailure, "resolve url", fmt.Errorf("%w: %q: %v", ErrUnresolvableLink, link, err))
	}
	if !ref.IsAbs() {
		b, err := url.Parse(base + "/")
		if err != nil {
			return "", failure.New(failure.TransportFailure, "resolve url", err)
		}
		ref = b.ResolveReference(ref)
	}
	resolved := ref.String()
	if strings.HasPrefix(base, "https://") && strings.HasPrefix(resolved, "http://") {
		resolved = "https://" + strings.TrimPrefix(resolved, "http://")
	}
	if resolved == base || strings.HasPrefix(resolved, base+"/") {
		return resolved, nil
	}

	segments := strings.Split(strings.Trim(ref.Path, "/"), "/")
	last := segments[len(segments)-1]
	query := ""
	if ref.RawQuery != "" {
		query = "?" + ref.RawQuery
	}
	switch {
	case strings.HasPrefix(last, "$"):
		return base + "/" + last + query, nil
	case len(segments) >= 2 && segments[len(segments)-2] == binarySegment && last != "":
		return base + "/" + binarySegment + "/" + last + query, nil
	default:
		return "", failure.New(failure.TransportFailure, "resolve url", fmt.Errorf("%w: %s (base %s)", ErrUnresolvableLink, link, base))
	}
}

// LocalName is the download target of a manifest entry:
// {dir}/{trailing segment}.{type}.ndjson.
func LocalName(dir string, link string, typ string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", failure.New(failure.TransportFailure, "download", err)
	}
	seg := path.Base(u.Path)
	if seg == "." || seg == "/" || seg == "" {
		return "", failure.New(failure.TransportFailure, "download", fmt.Errorf("link %s has no trailing segment", link))
	}
	if typ == "" {
		typ = "unknown"
	}
	name := seg + "." + typ + ".ndjson"
	if strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, "..") {
		return "", failure.New(failure.TransportFailure, "download", fmt.Errorf("unsafe file name %q", name))
	}
	return filepath.Join(dir, name), nil
}
