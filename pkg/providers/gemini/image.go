package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/guilhermexp/notesbraingem/pkg/transport"
)

// Images returns the out-of-band image transport.
func (c *Client) Images() transport.ImageTransport {
	return &imageTransport{client: c}
}

type imageTransport struct {
	client *Client
}

func (t *imageTransport) Generate(ctx context.Context, prompt string, count int) ([][]byte, error) {
	resp, err := t.client.genai.Models.GenerateImages(ctx, t.client.cfg.ImageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(count),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.GeneratedImages) == 0 {
		return nil, fmt.Errorf("image model returned no images")
	}
	images := make([][]byte, 0, len(resp.GeneratedImages))
	for _, gi := range resp.GeneratedImages {
		if gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
			continue
		}
		images = append(images, gi.Image.ImageBytes)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("image model returned no image bytes")
	}
	return images, nil
}

// Edit sends the source image plus the edit prompt to the image-capable
// chat model and splits the mixed response into narration and the edited
// image. The model may answer with text only; the caller decides what an
// image-less result means.
func (t *imageTransport) Edit(ctx context.Context, image []byte, prompt string) (transport.EditResult, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: image}},
			{Text: prompt},
		},
	}}
	resp, err := t.client.genai.Models.GenerateContent(ctx, t.client.cfg.EditModel, contents, nil)
	if err != nil {
		return transport.EditResult{}, err
	}

	var result transport.EditResult
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return result, fmt.Errorf("edit model returned no candidates")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			result.Text += part.Text
		}
		if part.InlineData != nil && result.Image == nil {
			result.Image = part.InlineData.Data
		}
	}
	if result.Image == nil {
		return result, fmt.Errorf("edit model returned no image")
	}
	return result, nil
}
