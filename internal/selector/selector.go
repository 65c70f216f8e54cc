package selector

import (
	"errors"
	"fmt"
	"strings"
)

// Marker prefixes the short-form test id syntax, e.g. "#submit-btn"
const Marker = "#"

// DefaultAttribute is the testing attribute matched by short-form selectors
const DefaultAttribute = "data-testid"

// ErrInvalidSelector is returned for selectors matching neither supported syntax
var ErrInvalidSelector = errors.New("invalid selector")

// InvalidSelectorError names the offending selector
type InvalidSelectorError struct {
	Selector string
}

func (e *InvalidSelectorError) Error() string {
	return fmt.Sprintf("invalid selector %q: expected %s<id>, //... or (...", e.Selector, Marker)
}

func (e *InvalidSelectorError) Unwrap() error { return ErrInvalidSelector }

// Strategy tells the engine how to evaluate a query
type Strategy int

const (
	StrategyCSS Strategy = iota
	StrategyXPath
)

func (s Strategy) String() string {
	if s == StrategyXPath {
		return "xpath"
	}
	return "css"
}

// Query is a concrete query ready for the browser engine
type Query struct {
	Strategy Strategy
	Expr     string // CSS or XPath expression passed to the engine

	// Set only for short-form selectors
	Attribute string
	Value     string
}

// Translator maps logical selectors to concrete queries
type Translator struct {
	Attribute string
}

// New returns a translator matching short-form selectors against attr.
// An empty attr falls back to DefaultAttribute.
func New(attr string) Translator {
	if attr == "" {
		attr = DefaultAttribute
	}
	return Translator{Attribute: attr}
}

// Translate converts a selector using the default testing attribute
func Translate(sel string) (Query, error) {
	return New("").Translate(sel)
}

// Translate converts a selector into a concrete query.
//
//	"#submit-btn"          -> [data-testid="submit-btn"]
//	"//button[@id='go']"   -> unchanged XPath
//	"(//li)[2]"            -> unchanged XPath
func (t Translator) Translate(sel string) (Query, error) {
	attr := t.Attribute
	if attr == "" {
		attr = DefaultAttribute
	}

	switch {
	case strings.HasPrefix(sel, Marker):
		value := strings.TrimPrefix(sel, Marker)
		return Query{
			Strategy:  StrategyCSS,
			Expr:      fmt.Sprintf(`[%s="%s"]`, attr, escapeCSSString(value)),
			Attribute: attr,
			Value:     value,
		}, nil
	case IsStructural(sel):
		return Query{Strategy: StrategyXPath, Expr: sel}, nil
	default:
		return Query{}, &InvalidSelectorError{Selector: sel}
	}
}

// IsStructural reports whether sel is already a structural (XPath) query
func IsStructural(sel string) bool {
	return strings.HasPrefix(sel, "//") || strings.HasPrefix(sel, "(")
}

var cssStringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)

func escapeCSSString(s string) string {
	return cssStringEscaper.Replace(s)
}
