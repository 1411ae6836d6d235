package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxCafeNameRunes    = 120
	MaxLocationRunes    = 200
	MaxMenuItems        = 50
	MaxMenuItemRunes    = 80
	MaxDescriptionRunes = 2000
	MaxTagRunes         = 40
)

var (
	phonePattern     = regexp.MustCompile(`^\+?[(0-9][0-9 ()\-]{5,20}$`)
	instagramPattern = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)
)

type CafeName string

func NewCafeName(value string) (CafeName, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("cafe name is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxCafeNameRunes {
		return "", fmt.Errorf("cafe name must be at most %d characters", MaxCafeNameRunes)
	}
	return CafeName(trimmed), nil
}

func (n CafeName) String() string {
	return string(n)
}

type Location string

func NewLocation(value string) (Location, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("location is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxLocationRunes {
		return "", fmt.Errorf("location must be at most %d characters", MaxLocationRunes)
	}
	return Location(trimmed), nil
}

func (l Location) String() string {
	return string(l)
}

// NewDescription trims and length-checks a free text description.
func NewDescription(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if utf8.RuneCountInString(trimmed) > MaxDescriptionRunes {
		return "", fmt.Errorf("description must be at most %d characters", MaxDescriptionRunes)
	}
	return trimmed, nil
}

// Tag is a free-text café label. Only rating tags are drawn from a fixed list.
type Tag string

func NewTag(value string) (Tag, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("tag is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxTagRunes {
		return "", fmt.Errorf("tag must be at most %d characters", MaxTagRunes)
	}
	return Tag(trimmed), nil
}

type TagList []Tag

func NewTagList(values []string) (TagList, error) {
	if len(values) == 0 {
		return nil, nil
	}
	result := make([]Tag, 0, len(values))
	seen := make(map[Tag]struct{})
	for _, raw := range values {
		tag, err := NewTag(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	return TagList(result), nil
}

func (l TagList) Strings() []string {
	result := make([]string, 0, len(l))
	for _, v := range l {
		result = append(result, string(v))
	}
	return result
}

// MenuItemList drops blank entries and keeps input order.
type MenuItemList []string

func NewMenuItemList(values []string) (MenuItemList, error) {
	result := make([]string, 0, len(values))
	for _, raw := range values {
		item := strings.TrimSpace(raw)
		if item == "" {
			continue
		}
		if utf8.RuneCountInString(item) > MaxMenuItemRunes {
			return nil, fmt.Errorf("menu item must be at most %d characters: %s", MaxMenuItemRunes, item)
		}
		result = append(result, item)
	}
	if len(result) > MaxMenuItems {
		return nil, fmt.Errorf("menu section must have at most %d items", MaxMenuItems)
	}
	return MenuItemList(result), nil
}

func (l MenuItemList) Strings() []string {
	return append([]string{}, l...)
}

type Phone string

func NewPhone(value string) (Phone, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", nil
	}
	if !phonePattern.MatchString(trimmed) {
		return "", fmt.Errorf("invalid phone number: %s", trimmed)
	}
	return Phone(trimmed), nil
}

func (p Phone) String() string {
	return string(p)
}

// InstagramHandle is stored without the leading "@".
type InstagramHandle string

func NewInstagramHandle(value string) (InstagramHandle, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "@")
	if trimmed == "" {
		return "", nil
	}
	if !instagramPattern.MatchString(trimmed) {
		return "", fmt.Errorf("invalid instagram handle: %s", value)
	}
	return InstagramHandle(trimmed), nil
}

func (h InstagramHandle) String() string {
	return string(h)
}

type URL string

func NewURL(value string) (URL, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", nil
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	return URL(trimmed), nil
}

func (u URL) String() string {
	return string(u)
}

type PhotoURL string

func NewPhotoURL(value string) (PhotoURL, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("photo URL is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return "", fmt.Errorf("invalid photo URL: %w", err)
	}
	return PhotoURL(trimmed), nil
}

func (u PhotoURL) String() string {
	return string(u)
}

type PhotoURLList []PhotoURL

func NewPhotoURLList(values []string, limit int) (PhotoURLList, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if limit > 0 && len(values) > limit {
		return nil, fmt.Errorf("photo URLs must be <= %d", limit)
	}
	result := make([]PhotoURL, 0, len(values))
	for _, raw := range values {
		urlValue, err := NewPhotoURL(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, urlValue)
	}
	return PhotoURLList(result), nil
}

func (l PhotoURLList) Strings() []string {
	result := make([]string, 0, len(l))
	for _, v := range l {
		result = append(result, string(v))
	}
	return result
}
