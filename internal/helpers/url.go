package helpers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"path"
	"sort"
	"strings"
)

var trackingQueryParams = map[string]struct{}{
	"utm_source":      {},
	"utm_medium":      {},
	"utm_campaign":    {},
	"utm_term":        {},
	"utm_content":     {},
	"utm_id":          {},
	"utm_name":        {},
	"utm_reader":      {},
	"utm_place":       {},
	"utm_social":      {},
	"utm_social-type": {},
	"gclid":           {},
	"dclid":           {},
	"fbclid":          {},
	"msclkid":         {},
	"igshid":          {},
}

// CanonicalURL normalises a URL string for display and fingerprinting.
// It lowercases scheme/host, removes default ports, strips fragments,
// cleans path segments, removes tracking query parameters (utm_*, fbclid,
// etc.) and sorts the remaining query parameters deterministically. When the
// scheme is omitted it defaults to https.
func CanonicalURL(raw string) (string, error) {
	parsed, err := parseLoose(raw)
	if err != nil {
		return "", err
	}

	parsed.Fragment = ""

	query := parsed.Query()
	for key := range query {
		if _, drop := trackingQueryParams[strings.ToLower(key)]; drop {
			query.Del(key)
		}
	}
	if len(query) == 0 {
		parsed.RawQuery = ""
	} else {
		for key, values := range query {
			sorted := append([]string(nil), values...)
			sort.Strings(sorted)
			query[key] = sorted
		}
		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

// DedupKey reduces a URL to the identity used when merging duplicate
// results: lowercase scheme, host and cleaned path only. Query string,
// fragment and any trailing slash are ignored, so
// "https://example.com/a/?ref=x" and "http://example.com/a" share a key.
func DedupKey(raw string) (string, error) {
	parsed, err := parseLoose(raw)
	if err != nil {
		return "", err
	}
	p := parsed.Path
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return parsed.Host + p, nil
}

// Domain extracts the registrable-ish host of a URL: lowercased, default
// ports and a leading "www." removed. Returns "" when raw has no usable host.
func Domain(raw string) string {
	parsed, err := parseLoose(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}

// URLFingerprint returns a deterministic SHA-256 hex digest derived from the
// canonical URL.
func URLFingerprint(raw string) (string, error) {
	canonical, err := CanonicalURL(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}

// parseLoose parses raw into a url.URL with scheme, host and path already
// normalised: schemeless inputs default to https, scheme and host are
// lowercased, default ports dropped, the path cleaned with an explicit
// trailing slash preserved.
func parseLoose(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty url")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" && parsed.Host == "" {
		if strings.HasPrefix(raw, "//") {
			parsed, err = url.Parse("https:" + raw)
		} else {
			parsed, err = url.Parse("https://" + raw)
		}
		if err != nil {
			return nil, err
		}
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return nil, errors.New("url missing host")
	}
	if h, port, ok := strings.Cut(host, ":"); ok {
		if (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443") {
			host = h
		}
	}
	parsed.Host = host

	if parsed.Path == "" {
		parsed.Path = "/"
	}
	clean := path.Clean(parsed.Path)
	if clean == "." {
		clean = "/"
	}
	if !strings.HasPrefix(clean, "/") {
		clean = "/" + clean
	}
	if clean != "/" && strings.HasSuffix(parsed.Path, "/") && !strings.HasSuffix(clean, "/") {
		// Preserve trailing slash if it was explicitly present and not root.
		clean += "/"
	}
	parsed.Path = clean

	return parsed, nil
}
