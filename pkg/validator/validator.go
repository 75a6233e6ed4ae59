package validator

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// All returns the first non-nil error.
func All(errors ...error) error {
	for _, err := range errors {
		if err != nil {
			return err
		}
	}
	return nil
}

type Validatable interface {
	Validate() error
}

func Each[T Validatable](items []T) error {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func Map[T any](items []T, f func(T, string) error, description string) error {
	for i, item := range items {
		if err := f(item, fmt.Sprintf("%s[%d]", description, i)); err != nil {
			return err
		}
	}
	return nil
}

// MapDict validates entries in sorted key order so the reported error is
// stable.
func MapDict[T any](items map[string]T, f func(string, T) error) error {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if err := f(key, items[key]); err != nil {
			return err
		}
	}
	return nil
}

func NotEmpty(field, description string) error {
	if field == "" {
		return fmt.Errorf("%s must not be empty", description)
	}
	return nil
}

func NonNegative(field int, description string) error {
	if field < 0 {
		return fmt.Errorf("%s must not be negative, got %d", description, field)
	}
	return nil
}

func NoDuplicates[T comparable](slice []T, description string) error {
	seen := make(map[T]struct{})
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			return fmt.Errorf("%s contains duplicate value: %v", description, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func MatchesAllowed[T comparable](field T, allowed []T, description string) error {
	if !slices.Contains(allowed, field) {
		return fmt.Errorf("%s must be one of %v, got %v", description, allowed, field)
	}
	return nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Identifier requires field to be a plain name: a letter or underscore
// followed by letters, digits and underscores.
func Identifier(field, description string) error {
	if !identifier.MatchString(field) {
		return fmt.Errorf("%s must be an identifier, got %q", description, field)
	}
	return nil
}

// HasNoTags rejects fields that contain template tags.
func HasNoTags(field string, description string) error {
	if strings.Contains(field, "{=") || strings.Contains(field, "{/") {
		return fmt.Errorf("%s must not contain template tags", description)
	}
	return nil
}
