package service

import (
	"fmt"
	"regexp"
	"strings"
)

var hrefPattern = regexp.MustCompile(`href=(?:"([^"]*)"|'([^']*)')`)

// RewriteLinks appends campaign attribution parameters to every web link target in an HTML body.
// mailto:, tel: and in-page anchors are left alone.
// It is not idempotent; rewrite exactly once per dispatch.
func RewriteLinks(body string, campaignID int) string {
	if body == "" {
		return body
	}
	params := fmt.Sprintf("utm_campaign=%d&utm_source=newsletter", campaignID)

	return hrefPattern.ReplaceAllStringFunc(body, func(match string) string {
		sub := hrefPattern.FindStringSubmatch(match)
		quote, target := `"`, sub[1]
		if strings.HasPrefix(match, "href='") {
			quote, target = `'`, sub[2]
		}
		if !trackable(target) {
			return match
		}
		return "href=" + quote + withParams(target, params) + quote
	})
}

func trackable(target string) bool {
	t := strings.ToLower(strings.TrimSpace(target))
	switch {
	case t == "", strings.HasPrefix(t, "#"), strings.HasPrefix(t, "mailto:"), strings.HasPrefix(t, "tel:"):
		return false
	}
	return true
}

func withParams(target, params string) string {
	fragment := ""
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target, fragment = target[:i], target[i:]
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + params + fragment
}
