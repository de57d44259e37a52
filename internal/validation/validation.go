// Package validation checks request payloads and chat content before they reach the store.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxAuthorNameLength matches the author_name column.
	MaxAuthorNameLength = 100
	// MaxTitleLength matches the streams.title column.
	MaxTitleLength = 255
	// MaxAvatarURLLength matches the avatar_url column.
	MaxAvatarURLLength = 512
	// DefaultMessageMaxLength is used when no explicit limit is configured.
	DefaultMessageMaxLength = 500
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

// Struct validates v against its `validate` tags and returns the first failure
// as a human-readable error.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Errorf("%s is required", field)
	case "max":
		return fmt.Errorf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Errorf("%s must be at least %s", field, fe.Param())
	case "gt":
		return fmt.Errorf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Errorf("%s is invalid", field)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// MessageText trims text and checks it is non-empty and at most maxLen runes.
func MessageText(text string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMessageMaxLength
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", errors.New("message text cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		return "", fmt.Errorf("message text exceeds maximum length of %d characters", maxLen)
	}
	return trimmed, nil
}

// AuthorName trims the display name and checks its length.
func AuthorName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errors.New("author is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxAuthorNameLength {
		return "", fmt.Errorf("author exceeds maximum length of %d characters", MaxAuthorNameLength)
	}
	return trimmed, nil
}

// StreamTitle trims the title, substituting fallback when it is blank.
func StreamTitle(title, fallback string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return fallback, nil
	}
	if utf8.RuneCountInString(trimmed) > MaxTitleLength {
		return "", fmt.Errorf("title exceeds maximum length of %d characters", MaxTitleLength)
	}
	return trimmed, nil
}

// AvatarURL accepts a site-relative path or an absolute http(s) URL.
// Blank input yields fallback.
func AvatarURL(raw, fallback string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback, nil
	}
	if len(trimmed) > MaxAvatarURLLength {
		return "", fmt.Errorf("avatar exceeds maximum length of %d characters", MaxAvatarURLLength)
	}
	if strings.HasPrefix(trimmed, "/") && !strings.HasPrefix(trimmed, "//") {
		return trimmed, nil
	}
	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.New("avatar must be a relative path or an http(s) URL")
	}
	return trimmed, nil
}
