// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

var (
	httpSchemes = []string{"http", "https"}
	natsSchemes = []string{"nats", "tls", "ws", "wss"}
)

// parseServiceURL parses rawURL and checks its scheme and host. field names
// the setting in error messages.
func parseServiceURL(rawURL, field string, schemes []string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parse %q: %w", field, rawURL, err)
	}
	if !slices.Contains(schemes, u.Scheme) {
		return nil, fmt.Errorf("%s: scheme must be one of %s, got %q", field, strings.Join(schemes, ", "), u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%s: host is required", field)
	}
	return u, nil
}

// validateHTTPURL accepts a provider base URL. Clients append their own
// endpoint paths, so anything past a trailing slash is rejected.
func validateHTTPURL(rawURL, field string) error {
	u, err := parseServiceURL(rawURL, field, httpSchemes)
	if err != nil {
		return err
	}
	if strings.Trim(u.Path, "/") != "" {
		return fmt.Errorf("%s: must be a base URL without path, got %q", field, u.Path)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("%s: must not carry a query or fragment", field)
	}
	return nil
}

func validateNATSURL(rawURL string) error {
	_, err := parseServiceURL(rawURL, "NATS_URL", natsSchemes)
	return err
}
