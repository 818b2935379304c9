package gemini

import (
	"testing"

	"github.com/guilhermexp/notesbraingem/pkg/core/types"
	"github.com/guilhermexp/notesbraingem/pkg/transport"
)

func TestClassifySource(t *testing.T) {
	cases := []struct {
		name string
		src  string
		file []byte
		mode transport.AnalyzeMode
		want types.SourceType
	}{
		{"youtube", "https://www.youtube.com/watch?v=abc", nil, transport.ModeAuto, types.SourceVideo},
		{"short youtube", "https://youtu.be/abc", nil, transport.ModeAuto, types.SourceVideo},
		{"github", "https://github.com/jackc/pgx", nil, transport.ModeAuto, types.SourceRepository},
		{"sheet", "https://docs.google.com/spreadsheets/d/xyz", nil, transport.ModeAuto, types.SourceSpreadsheet},
		{"csv by suffix", "quarterly-results.csv", nil, transport.ModeAuto, types.SourceSpreadsheet},
		{"uploaded file", "report.pdf", []byte("%PDF"), transport.ModeAuto, types.SourceDocument},
		{"document mode", "notes.txt", nil, transport.ModeDocument, types.SourceDocument},
		{"plain url", "https://example.com/post", nil, transport.ModeAuto, types.SourceWebpage},
		{"topic", "history of the transistor", nil, transport.ModeAuto, types.SourceSearch},
		{"search mode url-less", "latest go release", nil, transport.ModeSearch, types.SourceSearch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifySource(tc.src, tc.file, tc.mode); got != tc.want {
				t.Fatalf("classifySource(%q) = %q, want %q", tc.src, got, tc.want)
			}
		})
	}
}

func TestSplitTitle(t *testing.T) {
	title, summary := splitTitle("## The Title\n\nBody first line.\nBody second line.")
	if title != "The Title" {
		t.Fatalf("title = %q", title)
	}
	if summary != "Body first line.\nBody second line." {
		t.Fatalf("summary = %q", summary)
	}
}

func TestSplitTitleSingleLine(t *testing.T) {
	title, summary := splitTitle("Just one line.")
	if title != "Just one line." {
		t.Fatalf("title = %q", title)
	}
	if summary != "Just one line." {
		t.Fatalf("summary = %q", summary)
	}
}
