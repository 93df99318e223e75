package riskfilter

import (
	"fmt"
	"regexp"
)

// RejectionMessage is the caller-facing error for a rejected submission
const RejectionMessage = "Code contains potentially unsafe operations"

// Verdict is the outcome of a risk check
type Verdict struct {
	Allowed        bool
	MatchedPattern string
}

// Predicate reports the first pattern a piece of source code matches
type Predicate interface {
	Match(code string) (pattern string, matched bool)
}

// PatternList is an ordered list of case-insensitive patterns; first match wins
type PatternList []*regexp.Regexp

// Match implements Predicate
func (p PatternList) Match(code string) (string, bool) {
	for _, re := range p {
		if re.MatchString(code) {
			return re.String(), true
		}
	}
	return "", false
}

// Compile builds a PatternList, forcing case-insensitive matching
func Compile(patterns []string) (PatternList, error) {
	list := make(PatternList, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid deny pattern %q: %w", pattern, err)
		}
		list = append(list, re)
	}
	return list, nil
}

// Filter applies the predicate registered for the request's language
type Filter struct {
	predicates map[string]Predicate
}

// New compiles one PatternList per language
func New(rules map[string][]string) (*Filter, error) {
	f := &Filter{predicates: make(map[string]Predicate, len(rules))}
	for language, patterns := range rules {
		list, err := Compile(patterns)
		if err != nil {
			return nil, fmt.Errorf("language %s: %w", language, err)
		}
		f.Register(language, list)
	}
	return f, nil
}

// Register installs or replaces the predicate for a language
func (f *Filter) Register(language string, predicate Predicate) {
	f.predicates[language] = predicate
}

// Check runs the language's predicate over code. Languages without a
// registered predicate are allowed.
func (f *Filter) Check(code, language string) Verdict {
	predicate, ok := f.predicates[language]
	if !ok {
		return Verdict{Allowed: true}
	}
	if pattern, matched := predicate.Match(code); matched {
		return Verdict{Allowed: false, MatchedPattern: pattern}
	}
	return Verdict{Allowed: true}
}
