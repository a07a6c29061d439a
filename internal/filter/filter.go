package filter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Filter transforms one human-readable fragment before it is embedded in a
// branch name or commit message.
type Filter interface {
	Filter(value string) string
}

// Func adapts a plain function to the Filter interface.
type Func func(string) string

func (f Func) Filter(value string) string { return f(value) }

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts free text into a lowercase ASCII token that is safe to use
// as a branch path segment. Accents are stripped, other scripts are
// transliterated to Latin (ß to ss, Cyrillic to its romanization) and every
// run of remaining characters becomes a single hyphen.
func Slugify(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, text)
	if err != nil {
		s = text
	}
	s = strings.ToLower(unidecode.Unidecode(s))
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Chain applies its filters in order. A zero Chain is the identity.
type Chain struct {
	filters []Filter
}

// NewChain builds a chain from already constructed filters.
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// Attach appends a filter to the end of the chain.
func (c *Chain) Attach(f Filter) {
	c.filters = append(c.filters, f)
}

// Len reports how many filters the chain holds.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.filters)
}

// Filter runs value through every filter of the chain.
func (c *Chain) Filter(value string) string {
	if c == nil {
		return value
	}
	for _, f := range c.filters {
		value = f.Filter(value)
	}
	return value
}

// New returns a fresh filter for a configured name.
func New(name string) (Filter, error) {
	switch name {
	case "slugify", `Brancho\Filter\Slugify`:
		return Func(Slugify), nil
	case "lowercase":
		return Func(strings.ToLower), nil
	case "uppercase":
		return Func(strings.ToUpper), nil
	case "trim":
		return Func(strings.TrimSpace), nil
	default:
		return nil, fmt.Errorf("unknown filter: %s (valid: slugify, lowercase, uppercase, trim)", name)
	}
}

// FromNames builds a chain from the configured filter names, in order.
// No names yields the identity chain.
func FromNames(names []string) (*Chain, error) {
	c := NewChain()
	for _, name := range names {
		f, err := New(name)
		if err != nil {
			return nil, err
		}
		c.Attach(f)
	}
	return c, nil
}
