package compose

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/guilhermexp/notesbraingem/pkg/core/types"
)

func TestComposeZeroAnalyses(t *testing.T) {
	got := Compose(nil, "")
	if !strings.Contains(got, "web search") {
		t.Fatal("generic instruction should enable search")
	}
	if !strings.Contains(got, "generate_images") || !strings.Contains(got, "edit_image") {
		t.Fatal("tool grammar trailer missing")
	}
}

func TestComposeZeroWithPersona(t *testing.T) {
	got := Compose(nil, types.PersonaDataAnalyst)
	if !strings.HasPrefix(got, "PERSONA:") {
		t.Fatal("persona preamble should lead the instruction")
	}
	if !strings.Contains(got, "honest") && !strings.Contains(got, "uncertainty") {
		t.Fatal("generic body missing under persona")
	}
}

func TestComposeSingleEmbedsVerbatim(t *testing.T) {
	cases := []struct {
		name    string
		typ     types.SourceType
		persona types.Persona
		marker  string
	}{
		{"repository", types.SourceRepository, "", "code repository"},
		{"video", types.SourceVideo, "", "the video"},
		{"clip", types.SourceClip, "", "the video"},
		{"document default", types.SourceDocument, "", "the material"},
		{"data analyst wins over type", types.SourceRepository, types.PersonaDataAnalyst, "data analyst"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := types.Analysis{Title: "My Title 42", Summary: "unique summary text 9000", Type: tc.typ}
			got := Compose([]types.Analysis{a}, tc.persona)
			if !strings.Contains(got, a.Title) {
				t.Fatalf("title not embedded verbatim:\n%s", got)
			}
			if !strings.Contains(got, a.Summary) {
				t.Fatal("summary not embedded verbatim")
			}
			if !strings.Contains(got, tc.marker) {
				t.Fatalf("expected template marker %q", tc.marker)
			}
		})
	}
}

func TestComposeMultipleEnumeratesInOrder(t *testing.T) {
	as := []types.Analysis{
		{Title: "First Doc", Summary: "alpha content", Type: types.SourceDocument},
		{Title: "Second Repo", Summary: "beta content", Type: types.SourceRepository},
		{Title: "Third Video", Summary: "gamma content", Type: types.SourceVideo},
	}
	got := Compose(as, "")
	var last int
	for _, a := range as {
		for _, want := range []string{a.Title, a.Summary} {
			idx := strings.Index(got, want)
			if idx < 0 {
				t.Fatalf("%q not embedded", want)
			}
			if idx < last {
				t.Fatalf("%q appears out of store order", want)
			}
			last = idx
		}
	}
	if !strings.Contains(got, "KNOWLEDGE SOURCE 3") {
		t.Fatal("sources should be numbered")
	}
	if !strings.Contains(got, "Synthesize across sources") {
		t.Fatal("cross-source synthesis directive missing")
	}
}

func TestComposeZeroOmitsKnowledge(t *testing.T) {
	empty := Compose(nil, "")
	for _, leaked := range []string{"KNOWLEDGE SOURCE", "Source:", "Repository:", "Video:"} {
		if strings.Contains(empty, leaked) {
			t.Fatalf("zero-analysis instruction leaks knowledge scaffolding %q", leaked)
		}
	}
}

func TestWorkflowEnvelopeDecoding(t *testing.T) {
	summary := "this workflow syncs invoices"
	encoded := base64.StdEncoding.EncodeToString([]byte(summary))

	t.Run("base64 envelope", func(t *testing.T) {
		raw := `{"summary_base64":"` + encoded + `","workflow_json":{"nodes":[{"id":"n1"}]}}`
		a := types.Analysis{Title: "Zap", Summary: raw, Type: types.SourceWorkflow}
		got := Compose([]types.Analysis{a}, "")
		if !strings.Contains(got, summary) {
			t.Fatal("decoded summary missing")
		}
		if !strings.Contains(got, `"n1"`) {
			t.Fatal("workflow json missing")
		}
	})

	t.Run("plain envelope", func(t *testing.T) {
		raw := `{"summary":"plain text here"}`
		got := decodeWorkflowSummary(raw)
		if got != "plain text here" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("malformed json degrades", func(t *testing.T) {
		got := decodeWorkflowSummary(`{"summary_base64": not json`)
		if got != workflowDecodeFallback {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("bad base64 degrades", func(t *testing.T) {
		got := decodeWorkflowSummary(`{"summary_base64":"%%%not-base64%%%"}`)
		if got != workflowDecodeFallback {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("non-envelope prose passes through", func(t *testing.T) {
		if got := decodeWorkflowSummary("just a sentence"); got != "just a sentence" {
			t.Fatalf("got %q", got)
		}
	})
}
