package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/guilhermexp/notesbraingem/pkg/core/types"
	"github.com/guilhermexp/notesbraingem/pkg/transport"
)

// Engine returns the content-analysis engine.
func (c *Client) Engine() transport.AnalysisEngine {
	return &analysisEngine{client: c}
}

type analysisEngine struct {
	client *Client
}

const analyzePrompt = `Analyze the following %s and produce a knowledge summary.

Respond with a short descriptive title on the first line, then a blank line, then a thorough summary covering the key facts, structure, and anything a follow-up conversation would need. Do not use markdown headings.

%s`

func (e *analysisEngine) Analyze(ctx context.Context, sourceOrTopic string, file []byte, mode transport.AnalyzeMode) (types.Analysis, error) {
	srcType := classifySource(sourceOrTopic, file, mode)

	parts := []*genai.Part{
		{Text: fmt.Sprintf(analyzePrompt, subjectWord(srcType), sourceOrTopic)},
	}
	if len(file) > 0 {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: http.DetectContentType(file), Data: file},
		})
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	cfg := &genai.GenerateContentConfig{}
	if srcType != types.SourceDocument {
		cfg.Tools = searchTool()
	}

	resp, err := e.client.genai.Models.GenerateContent(ctx, e.client.cfg.ChatModel, contents, cfg)
	if err != nil {
		return types.Analysis{}, fmt.Errorf("analyze %s: %w", sourceOrTopic, err)
	}
	text := responseText(resp)
	if text == "" {
		return types.Analysis{}, fmt.Errorf("analyze %s: empty model response", sourceOrTopic)
	}

	title, summary := splitTitle(text)
	if title == "" {
		title = sourceOrTopic
	}
	return types.Analysis{
		ID:        types.NewAnalysisID(),
		Title:     title,
		Source:    sourceOrTopic,
		Summary:   summary,
		Type:      srcType,
		CreatedAt: time.Now(),
	}, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}

// splitTitle takes the first line as the title and the rest as the
// summary. A single-line response becomes its own summary.
func splitTitle(text string) (title, summary string) {
	line, rest, found := strings.Cut(text, "\n")
	title = strings.TrimSpace(strings.Trim(line, "#* "))
	if !found {
		return title, text
	}
	summary = strings.TrimSpace(rest)
	if summary == "" {
		summary = text
	}
	return title, summary
}

func classifySource(sourceOrTopic string, file []byte, mode transport.AnalyzeMode) types.SourceType {
	if mode == transport.ModeDocument || len(file) > 0 {
		return types.SourceDocument
	}
	lower := strings.ToLower(sourceOrTopic)
	switch {
	case strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be"):
		return types.SourceVideo
	case strings.Contains(lower, "github.com"):
		return types.SourceRepository
	case strings.Contains(lower, "spreadsheets") || strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".xlsx"):
		return types.SourceSpreadsheet
	case mode == transport.ModeSearch:
		return types.SourceSearch
	case strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://"):
		return types.SourceWebpage
	default:
		return types.SourceSearch
	}
}

func subjectWord(t types.SourceType) string {
	switch t {
	case types.SourceVideo:
		return "video"
	case types.SourceRepository:
		return "code repository"
	case types.SourceSpreadsheet:
		return "spreadsheet"
	case types.SourceDocument:
		return "document"
	case types.SourceWebpage:
		return "webpage"
	default:
		return "topic"
	}
}
