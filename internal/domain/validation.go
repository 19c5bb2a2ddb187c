package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneRegex   = regexp.MustCompile(`^[0-9()\-\s+]+$`)
	zipCodeRegex = regexp.MustCompile(`^\d{5}-?\d{3}$`)
	slugRegex    = regexp.MustCompile(`^@?[a-z0-9-]+$`)
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

func lengthBetween(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min {
		return fmt.Errorf("%s must be at least %d characters", field, min)
	}
	if n > max {
		return fmt.Errorf("%s cannot exceed %d characters", field, max)
	}
	return nil
}

func optionalLengthBetween(field string, value *string, min, max int) error {
	if value == nil {
		return nil
	}
	return lengthBetween(field, *value, min, max)
}

func validatePhone(phone string) error {
	if len(phone) < 10 {
		return fmt.Errorf("phone must have at least 10 digits")
	}
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("invalid phone format")
	}
	return nil
}

func validateWebsite(website string) error {
	if website == "" {
		return nil
	}
	u, err := url.ParseRequestURI(website)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid website url")
	}
	return nil
}

// NormalizeZipCode validates a Brazilian CEP and strips its dash.
func NormalizeZipCode(zip string) (string, error) {
	zip = strings.TrimSpace(zip)
	if !zipCodeRegex.MatchString(zip) {
		return "", fmt.Errorf("invalid zip code")
	}
	return strings.Replace(zip, "-", "", 1), nil
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
