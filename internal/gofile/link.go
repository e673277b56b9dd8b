package gofile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/handiism/gofile-downloader/internal/common"
)

var contentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ExtractContentID returns the content identifier of a GoFile link.
//
// Accepted forms:
//   - https://gofile.io/d/abc123
//   - https://gofile.io/d/abc123/
//   - gofile.io/d/abc123
//   - abc123
//
// Anything else, including an empty string, yields common.ErrInvalidURL.
func ExtractContentID(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("%w: empty link", common.ErrInvalidURL)
	}

	if !strings.Contains(link, "/") {
		if contentIDPattern.MatchString(link) {
			return link, nil
		}
		return "", fmt.Errorf("%w: %q", common.ErrInvalidURL, link)
	}

	if !strings.Contains(link, "://") {
		link = "https://" + link
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrInvalidURL, err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "gofile.io" {
		return "", fmt.Errorf("%w: unsupported host %q", common.ErrInvalidURL, u.Hostname())
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "d" || !contentIDPattern.MatchString(parts[1]) {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidURL, link)
	}
	return parts[1], nil
}

// HashPassword returns the hex SHA-256 digest the API expects in place of
// a plain password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
