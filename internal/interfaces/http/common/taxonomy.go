package common

import (
	"fmt"
	"strings"

	publicdomain "github.com/sngm3741/cafe-club/api/internal/public/domain"
)

// NormalizeRatingTags validates tag selections against the fixed tag list,
// dropping blanks and duplicates.
func NormalizeRatingTags(tags []string) ([]string, error) {
	result := make([]string, 0, len(tags))
	seen := make(map[string]struct{})
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !publicdomain.IsRatingTag(tag) {
			return nil, fmt.Errorf("unknown tag: %s", tag)
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	return result, nil
}

// NormalizeSearchTags trims café tag filters and drops blanks and duplicates.
// Café tags are free text, so no vocabulary check applies.
func NormalizeSearchTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	seen := make(map[string]struct{})
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	return result
}

// SplitTagValues accepts both repeated parameters and comma separated lists.
func SplitTagValues(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
