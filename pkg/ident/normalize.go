// Package ident turns free-text field labels into safe SQL column identifiers.
package ident

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxLength is the longest identifier produced.
	MaxLength = 15
	// Prefix is prepended to identifiers that are reserved words or do not
	// start with a letter.
	Prefix = "field_"
	// Fallback is used when nothing usable remains of a label.
	Fallback = "campo"
)

// Double-encoded (UTF-8 read as Latin-1) sequences come first so they win
// over single characters. ß, æ, ø and friends have no NFD decomposition.
var substitutions = strings.NewReplacer(
	"ã±", "n", "ã¡", "a", "ã©", "e", "ã\u00ad", "i", "ã³", "o", "ãº", "u",
	"ã¼", "u", "ã§", "c", "ã\u00a0", "a", "ã¨", "e", "ã¬", "i", "ã²", "o", "ã¹", "u",
	"ñ", "n", "á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	"ü", "u", "ç", "c", "à", "a", "è", "e", "ì", "i", "ò", "o", "ù", "u",
	"ß", "ss", "æ", "ae", "œ", "oe", "ø", "o", "đ", "d", "ł", "l",
)

var (
	invalidChars = regexp.MustCompile(`[^a-z0-9_]`)
	underscores  = regexp.MustCompile(`_+`)
)

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize converts a display label into an identifier matching
// ^[a-z][a-z0-9_]*$ of at most MaxLength characters.
func Normalize(display string) string {
	s := strings.ToLower(strings.TrimSpace(display))
	s = substitutions.Replace(s)
	s = stripMarks(s)
	s = invalidChars.ReplaceAllString(s, "_")
	s = underscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")

	if IsReserved(s) {
		s = Prefix + s
	}
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = Prefix + s
	}
	if s == "" {
		s = Fallback
	}
	if len(s) > MaxLength {
		s = s[:MaxLength]
	}
	return s
}

// Unique normalizes display and disambiguates it against existing names.
func Unique(display string, existing []string) string {
	set := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		set[n] = struct{}{}
	}
	return UniqueIn(display, set)
}

// UniqueIn is like Unique but takes the existing names as a set. A taken name
// gets a numeric suffix; when base plus suffix would exceed MaxLength the base
// loses its last character and the counter restarts at 1.
func UniqueIn(display string, existing map[string]struct{}) string {
	base := Normalize(display)
	if _, taken := existing[base]; !taken {
		return base
	}
	keep := min(len(base), MaxLength-2)
	counter := 1
	for {
		cand := base[:keep] + "_" + strconv.Itoa(counter)
		if len(cand) > MaxLength {
			if keep > 1 {
				keep--
				counter = 1
				continue
			}
			cand = cand[:MaxLength]
		}
		if _, taken := existing[cand]; !taken {
			return cand
		}
		counter++
	}
}

// Sequence assigns unique identifiers to labels in the order they are given.
type Sequence struct {
	seen map[string]struct{}
}

// NewSequence returns an empty Sequence.
func NewSequence() *Sequence {
	return &Sequence{seen: make(map[string]struct{})}
}

// Next returns the identifier for label and reserves it.
func (s *Sequence) Next(label string) string {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	name := UniqueIn(label, s.seen)
	s.seen[name] = struct{}{}
	return name
}

// Reserve marks an existing identifier as taken.
func (s *Sequence) Reserve(name string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	s.seen[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
}

// Names assigns identifiers to all labels in order.
func Names(labels []string) []string {
	seq := NewSequence()
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = seq.Next(l)
	}
	return out
}
