package index

import (
	"regexp"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	bleveregexp "github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
)

// termPattern matches maximal runs of ASCII letters, digits, and apostrophes.
var termPattern = regexp.MustCompile(`[A-Za-z0-9']+`)

// analyzer is stateless and safe for concurrent use.
var analyzer analysis.Analyzer = &analysis.DefaultAnalyzer{
	Tokenizer:    bleveregexp.NewRegexpTokenizer(termPattern),
	TokenFilters: []analysis.TokenFilter{lowercase.NewLowerCaseFilter()},
}

// Tokenize returns the lowercased terms of text in order of appearance,
// duplicates included. Every other character is a separator.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	stream := analyzer.Analyze([]byte(text))
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		terms = append(terms, string(tok.Term))
	}
	return terms
}

// UniqueTerms returns the distinct terms of text in order of first appearance.
func UniqueTerms(text string) []string {
	terms := Tokenize(text)
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// TermSet returns the distinct terms of text as a set.
func TermSet(text string) map[string]struct{} {
	terms := Tokenize(text)
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	return set
}
