// Package directive detects inline image commands embedded in a streamed
// assistant response. The grammar it parses is the same one the composer
// advertises to the model in the tool-grammar trailer.
package directive

import (
	"regexp"
	"strings"
)

// Kind discriminates the two directive grammars.
type Kind string

const (
	KindGenerate Kind = "generate_images"
	KindEdit     Kind = "edit_image"
)

// Directive is one recognized inline command.
type Directive struct {
	Kind   Kind
	Count  int    // generate only
	Prompt string // single-quoted inner literal, quotes stripped
}

// The count is capped at two digits; a longer run is not a well-formed
// directive and stays visible as raw text.
var (
	generateRe = regexp.MustCompile(`\[generate_images\(([1-9][0-9]?)\): '([^']*)'\]`)
	editRe     = regexp.MustCompile(`\[edit_image: '([^']*)'\]`)
)

// lookbackWindow caps how far back each Feed rescans. A directive split
// across fragments is still found as long as it is shorter than the
// window; an unclosed directive longer than this stays visible as raw
// text, which is the documented degraded behavior for malformed input.
const lookbackWindow = 1024

// Scanner accumulates one assistant turn's text fragments and fires at
// most one directive for the whole turn. Not safe for concurrent use; the
// orchestrator owns one scanner per turn.
type Scanner struct {
	buf        strings.Builder
	dispatched bool
	matchStart int
	matchEnd   int
}

// Result is what one Feed call observed: the full display text so far
// (directive stripped once one fires) and, on exactly one call per turn,
// the recognized directive.
type Result struct {
	Text      string
	Directive *Directive
}

// Feed appends a streamed fragment and rescans the bounded tail of the
// accumulated buffer. The first complete match in buffer order wins;
// after it fires, recognition is disabled for the rest of the turn so a
// directive straddling fragment boundaries cannot dispatch twice.
func (s *Scanner) Feed(fragment string) Result {
	s.buf.WriteString(fragment)
	full := s.buf.String()

	if s.dispatched {
		return Result{Text: s.stripped(full)}
	}

	start := len(full) - len(fragment) - lookbackWindow
	if start < 0 {
		start = 0
	}
	region := full[start:]

	genLoc := generateRe.FindStringSubmatchIndex(region)
	editLoc := editRe.FindStringSubmatchIndex(region)

	loc, kind := genLoc, KindGenerate
	if loc == nil || (editLoc != nil && editLoc[0] < loc[0]) {
		loc, kind = editLoc, KindEdit
	}
	if loc == nil {
		return Result{Text: full}
	}

	s.dispatched = true
	s.matchStart = start + loc[0]
	s.matchEnd = start + loc[1]

	d := &Directive{Kind: kind}
	if kind == KindGenerate {
		d.Count = atoiDigits(region[loc[2]:loc[3]])
		d.Prompt = region[loc[4]:loc[5]]
	} else {
		d.Prompt = region[loc[2]:loc[3]]
	}

	return Result{Text: s.stripped(full), Directive: d}
}

// Text returns the current display text with any fired directive removed.
func (s *Scanner) Text() string {
	return s.stripped(s.buf.String())
}

// Dispatched reports whether this turn's directive has already fired.
func (s *Scanner) Dispatched() bool { return s.dispatched }

func (s *Scanner) stripped(full string) string {
	if !s.dispatched {
		return full
	}
	return strings.TrimSpace(full[:s.matchStart] + full[s.matchEnd:])
}

// atoiDigits parses a digit run already validated by the regexp.
func atoiDigits(digits string) int {
	n := 0
	for _, c := range digits {
		n = n*10 + int(c-'0')
	}
	return n
}
