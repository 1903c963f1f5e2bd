// Package moderation provides the boolean content hook consumed by the
// broker's validator. It matches a blocked-word list with an Aho-Corasick
// automaton so the per-message cost stays flat regardless of list size.
package moderation

import (
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Filter screens message content against a fixed blocked-word list.
type Filter struct {
	machine *goahocorasick.Machine
	mask    rune
	empty   bool
}

// NewFilter builds the automaton from the blocked words. Words are matched
// case-insensitively. An empty list yields a filter that allows everything.
func NewFilter(words []string, mask rune) (*Filter, error) {
	patterns := make([][]rune, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		patterns = append(patterns, normalize([]rune(w)))
	}
	if len(patterns) == 0 {
		return &Filter{mask: mask, empty: true}, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Filter{machine: m, mask: mask}, nil
}

// Allow reports whether the content is free of blocked words.
func (f *Filter) Allow(content string) bool {
	if f.empty {
		return true
	}
	return len(f.machine.MultiPatternSearch(normalize([]rune(content)), true)) == 0
}

// Censor replaces every blocked-word occurrence with the mask rune,
// preserving length and surrounding text.
func (f *Filter) Censor(content string) string {
	if f.empty {
		return content
	}
	runes := []rune(content)
	spans := f.machine.MultiPatternSearch(normalize(runes), false)
	if len(spans) == 0 {
		return content
	}
	for _, span := range spans {
		for i := span.Pos; i < span.Pos+len(span.Word) && i < len(runes); i++ {
			runes[i] = f.mask
		}
	}
	return string(runes)
}

func normalize(in []rune) []rune {
	out := make([]rune, len(in))
	for i, r := range in {
		out[i] = unicode.ToLower(r)
	}
	return out
}
