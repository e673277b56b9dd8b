package gofile

import (
	"fmt"
	"regexp"
)

// siteTokenPatterns match the website token in the site bootstrap script.
// The script has used both an assignment and an object literal form.
var siteTokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`appdata\.wt\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`\bwt\s*[:=]\s*["']([^"']+)["']`),
}

// extractSiteToken finds the website token embedded in the bootstrap script.
//
// The script contains a line like:
//
//	appdata.wt = "4fd6sg89d7s6";
func extractSiteToken(script string) (string, error) {
	for _, re := range siteTokenPatterns {
		if m := re.FindStringSubmatch(script); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("site token not found in script")
}
