// Package slug derives readable, unique hotel identifiers from a hotel's
// name, city and country.
package slug

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/diagnosis/reservou/internal/apperror"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxBaseLength     = 50
	MaxLength         = 60
	numberedBaseLimit = 55
	defaultBase       = "hotel"
	defaultAttempts   = 1000
)

var (
	disallowed = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespace = regexp.MustCompile(`\s+`)
	hyphens    = regexp.MustCompile(`-{2,}`)
	valid      = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

type Params struct {
	Name    string
	City    string
	Country string
}

// Strategy builds a candidate from already normalized parts.
type Strategy func(name, city, countryCode string) string

// Strategies are tried in order, from least to most specific.
var Strategies = []Strategy{
	func(name, _, _ string) string { return join(name) },
	func(name, city, _ string) string { return join(name, city) },
	func(name, city, _ string) string { return join(city, name) },
	func(name, city, cc string) string { return join(name, city, cc) },
	func(name, city, cc string) string { return join(cc, city, name) },
}

// Normalize lowercases s, strips diacritics, drops characters outside
// [a-z0-9 -] and joins words with single hyphens.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		stripped = strings.ToLower(s)
	}

	stripped = disallowed.ReplaceAllString(stripped, "")
	stripped = whitespace.ReplaceAllString(strings.TrimSpace(stripped), "-")
	stripped = hyphens.ReplaceAllString(stripped, "-")
	return strings.Trim(stripped, "-")
}

// Valid reports whether s has the shape of an allocated slug.
func Valid(s string) bool {
	return len(s) > 0 && len(s) <= MaxLength && valid.MatchString(s)
}

func join(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "-")
}

func truncate(s string, n int) string {
	if len(s) > n {
		s = s[:n]
	}
	return strings.TrimRight(s, "-")
}

// Base returns the candidate of strategy i, truncated to MaxBaseLength.
func Base(p Params, i int) string {
	name, city, country := Normalize(p.Name), Normalize(p.City), Normalize(p.Country)
	cc := truncate(country, 3)
	base := truncate(Strategies[i](name, city, cc), MaxBaseLength)
	if base == "" {
		return defaultBase
	}
	return base
}

// Numbered returns base with the -n suffix, keeping the result within MaxLength.
func Numbered(base string, n int) string {
	candidate := fmt.Sprintf("%s-%d", base, n)
	if len(candidate) > MaxLength {
		candidate = fmt.Sprintf("%s-%d", truncate(base, numberedBaseLimit), n)
	}
	return candidate
}

// ExistsFunc reports whether a slug is already allocated.
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

type Allocator struct {
	exists      ExistsFunc
	now         func() time.Time
	maxAttempts int
}

func NewAllocator(exists ExistsFunc) *Allocator {
	return &Allocator{
		exists:      exists,
		now:         time.Now,
		maxAttempts: defaultAttempts,
	}
}

// Allocate returns the first free candidate. Each strategy tries its base,
// then base-1, base-2, ... up to the attempt limit before the next strategy
// is consulted. When all are exhausted the first base gets a base36
// timestamp suffix. The check is advisory: the unique index on the hotel
// slug decides, and callers retry on Conflict.
func (a *Allocator) Allocate(ctx context.Context, p Params) (string, error) {
	seen := make(map[string]bool, len(Strategies))

	for i := range Strategies {
		base := Base(p, i)
		if seen[base] {
			continue
		}
		seen[base] = true

		taken, err := a.check(ctx, base)
		if err != nil {
			return "", err
		}
		if !taken {
			return base, nil
		}

		for n := 1; n <= a.maxAttempts; n++ {
			candidate := Numbered(base, n)
			taken, err := a.check(ctx, candidate)
			if err != nil {
				return "", err
			}
			if !taken {
				return candidate, nil
			}
		}
	}

	return a.fallback(p), nil
}

func (a *Allocator) fallback(p Params) string {
	suffix := strconv.FormatInt(a.now().UnixMilli(), 36)
	return truncate(Base(p, 0), MaxLength-len(suffix)-1) + "-" + suffix
}

func (a *Allocator) check(ctx context.Context, candidate string) (bool, error) {
	taken, err := a.exists(ctx, candidate)
	if err != nil {
		return false, apperror.Internal(err, "check slug availability")
	}
	return taken, nil
}
