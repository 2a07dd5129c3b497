package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ValidateTourURL checks that raw is an absolute http(s) URL with a host.
func ValidateTourURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	if len(raw) > 2048 {
		return fmt.Errorf("URL too long: %d characters", len(raw))
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must start with http:// or https://")
	}

	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}

	return nil
}

// NormalizeTourURL canonicalises a URL for cache keys: lower-case scheme and
// host, no fragment, sorted query, no trailing slash on the path.
func NormalizeTourURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""

	if u.RawQuery != "" {
		query := u.Query()
		keys := make([]string, 0, len(query))
		for k := range query {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			values := query[k]
			sort.Strings(values)
			for _, v := range values {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(parts, "&")
	}

	return u.String()
}

// GenerateCacheKey creates a stable cache key for a tour URL.
func GenerateCacheKey(tourURL string) string {
	hash := sha256.Sum256([]byte(NormalizeTourURL(tourURL)))
	return "tour_" + hex.EncodeToString(hash[:])[:32]
}

// IsValidEmail performs basic email validation
func IsValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}

	local, domain := parts[0], parts[1]
	if len(local) == 0 || len(domain) == 0 {
		return false
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return false
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if label == "" {
			return false
		}
	}
	return true
}

// IsValidPhoneNumber performs basic phone number validation. Numbers
// without a leading + need at least one group of three or more digits.
func IsValidPhoneNumber(phone string) bool {
	digits, run, longestRun := 0, 0, 0
	for _, char := range phone {
		switch {
		case char >= '0' && char <= '9':
			digits++
			run++
			if run > longestRun {
				longestRun = run
			}
		case strings.ContainsRune(" -().+/", char):
			run = 0
		default:
			return false
		}
	}

	if digits < 10 || digits > 15 {
		return false
	}
	return strings.HasPrefix(phone, "+") || longestRun >= 3
}
