package diagnostics

import (
	"regexp"
	"strings"
)

// hintRule is one entry of the remediation catalog. Match receives the
// lowercased message; Build receives the original-case message so it can
// extract identifiers for interpolation.
type hintRule struct {
	match func(lower string) bool
	build func(msg string) []string
}

var letConstantRe = regexp.MustCompile(`'(\w+)' is a 'let' constant`)
var identifierRe = regexp.MustCompile(`identifier '(\w+)'`)

// hintCatalog holds the ten common-mistake patterns rendered as advisory
// hints, evaluated in order; the first match wins.
var hintCatalog = []hintRule{
	{
		match: func(l string) bool {
			return strings.Contains(l, "cannot assign to value:") && strings.Contains(l, "is a 'let' constant")
		},
		build: func(msg string) []string {
			if m := letConstantRe.FindStringSubmatch(msg); m != nil {
				return []string{
					"Tip: change 'let " + m[1] + "' to 'var " + m[1] + "' to make it mutable",
					"Learn more: https://docs.swift.org/swift-book/LanguageGuide/TheBasics.html#ID310",
				}
			}
			return []string{"Tip: use 'var' instead of 'let' to declare mutable variables"}
		},
	},
	{
		match: func(l string) bool {
			return strings.Contains(l, "use of unresolved identifier") || strings.Contains(l, "use of undeclared identifier")
		},
		build: func(msg string) []string {
			if m := identifierRe.FindStringSubmatch(msg); m != nil {
				return []string{
					"Tip: make sure '" + m[1] + "' is defined before using it",
					"Check for typos in the variable name",
					"Ensure the variable was declared in a previous cell",
				}
			}
			return []string{"Tip: make sure the identifier is defined before using it"}
		},
	},
	{
		match: func(l string) bool { return strings.Contains(l, "cannot convert value of type") },
		build: func(string) []string {
			return []string{
				"Tip: check the types of your values",
				"You may need to convert between types explicitly",
				"Example: String(intValue) or Int(stringValue)",
			}
		},
	},
	{
		match: func(l string) bool { return strings.Contains(l, "missing return") },
		build: func(string) []string {
			return []string{
				"Tip: all code paths in this function must return a value",
				"Add a return statement to every branch (if/else, switch cases)",
			}
		},
	},
	{
		match: func(l string) bool {
			return strings.Contains(l, "value of optional type") &&
				(strings.Contains(l, "must be unwrapped") || strings.Contains(l, "not unwrapped"))
		},
		build: func(msg string) []string {
			if strings.Contains(msg, "coalesce using '??'") || strings.Contains(msg, "force-unwrap using '!'") {
				return nil
			}
			return []string{
				"Tip: optional values must be unwrapped before use",
				"Safe unwrapping: if let value = optional { ... }",
				"Guard: guard let value = optional else { return }",
				"Nil coalescing: optional ?? defaultValue",
				"Learn more: https://docs.swift.org/swift-book/LanguageGuide/TheBasics.html#ID330",
			}
		},
	},
	{
		match: func(l string) bool { return strings.Contains(l, "unexpectedly found nil") },
		build: func(string) []string {
			return []string{
				"Tip: an optional value was nil when it shouldn't be",
				"Use nil coalescing: value ?? defaultValue",
			}
		},
	},
	{
		match: func(l string) bool { return strings.Contains(l, "cannot call value of non-function type") },
		build: func(string) []string {
			return []string{
				"Tip: you're trying to call something that isn't a function",
				"Check that you're using () on functions, not properties",
			}
		},
	},
	{
		match: func(l string) bool {
			return strings.Contains(l, "consecutive statements on a line must be separated by")
		},
		build: func(string) []string {
			return []string{
				"Tip: put each statement on its own line or separate with semicolons",
			}
		},
	},
	{
		match: func(l string) bool { return strings.Contains(l, "expected expression") },
		build: func(string) []string {
			return []string{
				"Tip: Swift expected a value or expression here",
				"Check for missing values after operators, and that brackets balance",
			}
		},
	},
	{
		match: func(l string) bool {
			return strings.Contains(l, "missing argument") || strings.Contains(l, "requires that")
		},
		build: func(string) []string {
			return []string{
				"Tip: this initializer or function needs more arguments",
				"Check the function signature for required parameters",
			}
		},
	},
}

// MatchHints returns the first catalog rule matching msg, or nil if none do.
func MatchHints(msg string) []string {
	lower := strings.ToLower(msg)
	for _, rule := range hintCatalog {
		if rule.match(lower) {
			return rule.build(msg)
		}
	}
	return nil
}
