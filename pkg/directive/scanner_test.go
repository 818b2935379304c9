package directive

import (
	"strings"
	"testing"
)

// feedAll streams text into the scanner in chunks of the given size and
// returns the final text plus the first directive fired, if any.
func feedAll(t *testing.T, text string, chunk int) (string, *Directive) {
	t.Helper()
	var s Scanner
	var fired *Directive
	var last Result
	for i := 0; i < len(text); i += chunk {
		end := i + chunk
		if end > len(text) {
			end = len(text)
		}
		last = s.Feed(text[i:end])
		if last.Directive != nil {
			if fired != nil {
				t.Fatal("directive dispatched twice")
			}
			fired = last.Directive
		}
	}
	return last.Text, fired
}

func TestGenerateDirective(t *testing.T) {
	for _, chunk := range []int{1, 3, 7, 1000} {
		text, d := feedAll(t, "Olá! [generate_images(2): 'two cats playing']", chunk)
		if d == nil {
			t.Fatalf("chunk=%d: no directive", chunk)
		}
		if d.Kind != KindGenerate || d.Count != 2 || d.Prompt != "two cats playing" {
			t.Fatalf("chunk=%d: got %+v", chunk, d)
		}
		if text != "Olá!" {
			t.Fatalf("chunk=%d: display text %q", chunk, text)
		}
	}
}

func TestEditDirective(t *testing.T) {
	text, d := feedAll(t, "Sure. [edit_image: 'make it blue'] Done.", 5)
	if d == nil || d.Kind != KindEdit || d.Prompt != "make it blue" {
		t.Fatalf("got %+v", d)
	}
	if !strings.Contains(text, "Sure.") || !strings.Contains(text, "Done.") {
		t.Fatalf("surrounding text lost: %q", text)
	}
	if strings.Contains(text, "edit_image") {
		t.Fatalf("directive not stripped: %q", text)
	}
}

func TestMalformedCountDoesNotFire(t *testing.T) {
	text, d := feedAll(t, "[generate_images(x): 'cats']", 4)
	if d != nil {
		t.Fatalf("malformed directive fired: %+v", d)
	}
	if text != "[generate_images(x): 'cats']" {
		t.Fatalf("raw text should remain visible, got %q", text)
	}
}

func TestOversizedCountDoesNotFire(t *testing.T) {
	for _, count := range []string{"100", "99999999999999999999"} {
		raw := "[generate_images(" + count + "): 'cats']"
		text, d := feedAll(t, raw, 8)
		if d != nil {
			t.Fatalf("count %s fired: %+v", count, d)
		}
		if text != raw {
			t.Fatalf("raw text should remain visible, got %q", text)
		}
	}
}

func TestTwoDigitCount(t *testing.T) {
	_, d := feedAll(t, "[generate_images(12): 'cats']", 1000)
	if d == nil || d.Count != 12 {
		t.Fatalf("got %+v", d)
	}
}

func TestZeroCountDoesNotFire(t *testing.T) {
	_, d := feedAll(t, "[generate_images(0): 'cats']", 6)
	if d != nil {
		t.Fatalf("zero count fired: %+v", d)
	}
}

func TestTruncatedDirectiveStaysVisible(t *testing.T) {
	text, d := feedAll(t, "here: [generate_images(3): 'dogs", 2)
	if d != nil {
		t.Fatal("truncated directive fired")
	}
	if !strings.Contains(text, "[generate_images(3): 'dogs") {
		t.Fatalf("truncated text hidden: %q", text)
	}
}

func TestFirstMatchWins(t *testing.T) {
	_, d := feedAll(t, "[edit_image: 'a'] then [generate_images(1): 'b']", 9)
	if d == nil || d.Kind != KindEdit || d.Prompt != "a" {
		t.Fatalf("expected first directive in buffer order, got %+v", d)
	}
}

func TestSingleDispatchAcrossRescans(t *testing.T) {
	var s Scanner
	r := s.Feed("[edit_image: 'x']")
	if r.Directive == nil {
		t.Fatal("no dispatch")
	}
	// Later fragments rescan the buffer but must not re-fire.
	for _, frag := range []string{" more", " text", " [edit_image: 'y']"} {
		if got := s.Feed(frag); got.Directive != nil {
			t.Fatalf("second dispatch on %q", frag)
		}
	}
	if !s.Dispatched() {
		t.Fatal("dispatched flag lost")
	}
}

func TestLongStreamBeforeDirective(t *testing.T) {
	var s Scanner
	filler := strings.Repeat("lorem ipsum ", 500)
	s.Feed(filler)
	r := s.Feed("[generate_images(4): 'sunset over hills']")
	if r.Directive == nil || r.Directive.Count != 4 {
		t.Fatalf("directive after long stream not found: %+v", r.Directive)
	}
}
