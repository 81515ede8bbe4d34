// Package assertion evaluates DOMAssertion and ConsoleAssertion predicates
// (spec.md §4.5) against a reconstructed document or a set of console log
// entries, producing ValidationResults.
package assertion

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/corvid-labs/smoketest/internal/oracle"
)

// EvaluateDOM evaluates one DOMAssertion against doc. Dispatch order
// matches oracle.DOMAssertion's documented field precedence: Exists,
// NotExists, TextEquals, TextContains, AttrEquals, Count.
func EvaluateDOM(doc *goquery.Document, a oracle.DOMAssertion) oracle.ValidationResult {
	switch {
	case a.Exists != "":
		return evalExists(doc, a.Exists, true)
	case a.NotExists != "":
		return evalExists(doc, a.NotExists, false)
	case a.TextEquals != nil:
		return evalTextEquals(doc, *a.TextEquals)
	case a.TextContains != nil:
		return evalTextContains(doc, *a.TextContains)
	case a.AttrEquals != nil:
		return evalAttrEquals(doc, *a.AttrEquals)
	case a.Count != nil:
		return evalCount(doc, *a.Count)
	default:
		return oracle.ValidationResult{
			Assertion: "dom",
			Passed:    false,
			Message:   "dom assertion has no recognized predicate set",
		}
	}
}

func evalExists(doc *goquery.Document, selector string, wantExists bool) oracle.ValidationResult {
	name := "exists"
	if !wantExists {
		name = "not_exists"
	}
	found := doc.Find(selector).Length() > 0
	passed := found == wantExists
	return oracle.ValidationResult{
		Assertion: fmt.Sprintf("%s(%s)", name, selector),
		Passed:    passed,
		Expected:  wantExists,
		Actual:    found,
		Message:   existsMessage(name, selector, passed, found),
	}
}

func existsMessage(name, selector string, passed, found bool) string {
	if passed {
		return fmt.Sprintf("%s(%s) passed", name, selector)
	}
	if found {
		return fmt.Sprintf("expected %q not to exist but it does", selector)
	}
	return fmt.Sprintf("expected %q to exist but it does not", selector)
}

func evalTextEquals(doc *goquery.Document, sv oracle.SelectorValue) oracle.ValidationResult {
	sel := doc.Find(sv.Selector)
	actual := ""
	if sel.Length() > 0 {
		actual = trimmedText(sel)
	}
	passed := sel.Length() > 0 && actual == sv.Value
	return oracle.ValidationResult{
		Assertion: fmt.Sprintf("text_equals(%s)", sv.Selector),
		Passed:    passed,
		Expected:  sv.Value,
		Actual:    actual,
		Message:   fmt.Sprintf("text of %q: expected %q, got %q", sv.Selector, sv.Value, actual),
	}
}

func evalTextContains(doc *goquery.Document, sv oracle.SelectorValue) oracle.ValidationResult {
	sel := doc.Find(sv.Selector)
	actual := ""
	if sel.Length() > 0 {
		actual = trimmedText(sel)
	}
	passed := sel.Length() > 0 && strings.Contains(actual, sv.Value)
	return oracle.ValidationResult{
		Assertion: fmt.Sprintf("text_contains(%s)", sv.Selector),
		Passed:    passed,
		Expected:  sv.Value,
		Actual:    actual,
		Message:   fmt.Sprintf("text of %q: expected to contain %q, got %q", sv.Selector, sv.Value, actual),
	}
}

func evalAttrEquals(doc *goquery.Document, av oracle.AttributeValue) oracle.ValidationResult {
	sel := doc.Find(av.Selector)
	actual, exists := "", false
	if sel.Length() > 0 {
		actual, exists = sel.First().Attr(av.Attr)
	}
	passed := exists && actual == av.Value
	return oracle.ValidationResult{
		Assertion: fmt.Sprintf("attribute_equals(%s, %s)", av.Selector, av.Attr),
		Passed:    passed,
		Expected:  av.Value,
		Actual:    actual,
		Message:   fmt.Sprintf("attribute %q of %q: expected %q, got %q", av.Attr, av.Selector, av.Value, actual),
	}
}

func evalCount(doc *goquery.Document, c oracle.CountAssertion) oracle.ValidationResult {
	n := doc.Find(c.Selector).Length()
	passed := false
	switch c.Op {
	case oracle.CountEq:
		passed = n == c.N
	case oracle.CountGt:
		passed = n > c.N
	case oracle.CountGte:
		passed = n >= c.N
	case oracle.CountLt:
		passed = n < c.N
	case oracle.CountLte:
		passed = n <= c.N
	}
	return oracle.ValidationResult{
		Assertion: fmt.Sprintf("count(%s %s %d)", c.Selector, c.Op, c.N),
		Passed:    passed,
		Expected:  c.N,
		Actual:    n,
		Message:   fmt.Sprintf("count of %q: expected %s %d, got %d", c.Selector, c.Op, c.N, n),
	}
}

func trimmedText(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.First().Text())
}
