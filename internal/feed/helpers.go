package feed

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultSite = "yande.re"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"
)

// KeywordFeedURL builds the piclens feed URL for a search keyword.
func KeywordFeedURL(site string, keyword string) string {
	site = strings.TrimSpace(site)
	if site == "" {
		site = DefaultSite
	}

	return fmt.Sprintf("https://%s/post/piclens?tags=%s", site, url.QueryEscape(strings.TrimSpace(keyword)))
}

// AssetName returns the last path segment of rawURL, percent-decoded once.
func AssetName(rawURL string) string {
	escapedPath := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		escapedPath = u.EscapedPath()
	}

	segment := escapedPath
	if i := strings.LastIndex(escapedPath, "/"); i >= 0 {
		segment = escapedPath[i+1:]
	}

	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return segment
	}

	return decoded
}

func resolveReference(base string, ref string) (string, error) {
	ref = strings.TrimSpace(ref)

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}

	if refURL.IsAbs() {
		return ref, nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse page URL: %w", err)
	}

	return baseURL.ResolveReference(refURL).String(), nil
}
