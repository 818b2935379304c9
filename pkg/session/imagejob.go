package session

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/guilhermexp/notesbraingem/pkg/core/types"
	"github.com/guilhermexp/notesbraingem/pkg/transport"
)

const editDefaultNarration = "Here is the edited image."

// imageRunner executes generate/edit side jobs against the image models.
// Each job owns exactly one chat message, addressed by index, and reports
// through message patches; it never blocks the primary text stream.
// Concurrent jobs are prevented upstream by the interpreter's
// single-dispatch rule, not by a lock here.
type imageRunner struct {
	images transport.ImageTransport
	o      *Orchestrator
}

func (r *imageRunner) run(cmd imageJobCmd) {
	// Jobs run to completion or failure; there is no cancellation
	// primitive at this layer.
	ctx := context.Background()
	if cmd.generate {
		r.generate(ctx, cmd.prompt, cmd.count, cmd.msgIndex)
		return
	}
	r.edit(ctx, cmd.prompt, cmd.msgIndex)
}

func (r *imageRunner) generate(ctx context.Context, prompt string, count int, msgIndex int) {
	r.o.dispatch(ctx, func(st *state) []command {
		st.patchMessage(msgIndex, types.MessagePatch{
			IsLoadingImages: types.BoolPtr(true),
			ImageCount:      types.IntPtr(count),
		})
		return nil
	})

	images, err := r.images.Generate(ctx, prompt, count)
	if err != nil {
		r.o.dispatch(ctx, func(st *state) []command {
			st.patchMessage(msgIndex, types.MessagePatch{
				IsLoadingImages: types.BoolPtr(false),
				AppendText:      types.StringPtr(fmt.Sprintf("\n\n(image generation failed: %v)", err)),
			})
			st.appendTimeline("error", fmt.Sprintf("image generation failed: %v", err))
			return nil
		})
		return
	}

	urls := make([]string, len(images))
	for i, img := range images {
		urls[i] = dataURL(img)
	}
	r.o.dispatch(ctx, func(st *state) []command {
		st.patchMessage(msgIndex, types.MessagePatch{
			IsLoadingImages: types.BoolPtr(false),
			ImageURLs:       urls,
		})
		// Only the latest batch is retained; edits chain against it.
		st.lastImages = images
		st.appendTimeline("image", fmt.Sprintf("generated %d image(s)", len(images)))
		return nil
	})
}

func (r *imageRunner) edit(ctx context.Context, prompt string, msgIndex int) {
	var source []byte
	r.o.mu.Lock()
	if len(r.o.st.lastImages) > 0 {
		source = r.o.st.lastImages[0]
	}
	r.o.mu.Unlock()

	if source == nil {
		// Local precondition failure: no remote call is made.
		r.o.dispatch(ctx, func(st *state) []command {
			st.patchMessage(msgIndex, types.MessagePatch{
				AppendText: types.StringPtr("\n\n(no image to edit: generate one first)"),
			})
			st.appendTimeline("error", "edit requested with no prior image")
			return nil
		})
		return
	}

	r.o.dispatch(ctx, func(st *state) []command {
		st.patchMessage(msgIndex, types.MessagePatch{
			IsLoadingImages: types.BoolPtr(true),
			ImageCount:      types.IntPtr(1),
		})
		return nil
	})

	result, err := r.images.Edit(ctx, source, prompt)
	if err != nil {
		r.o.dispatch(ctx, func(st *state) []command {
			st.patchMessage(msgIndex, types.MessagePatch{
				IsLoadingImages: types.BoolPtr(false),
				AppendText:      types.StringPtr(fmt.Sprintf("\n\n(image edit failed: %v)", err)),
			})
			st.appendTimeline("error", fmt.Sprintf("image edit failed: %v", err))
			return nil
		})
		return
	}

	narration := result.Text
	if narration == "" {
		narration = editDefaultNarration
	}
	r.o.dispatch(ctx, func(st *state) []command {
		patch := types.MessagePatch{
			SetText:         types.StringPtr(narration),
			IsLoadingImages: types.BoolPtr(false),
		}
		if result.Image != nil {
			patch.ImageURLs = []string{dataURL(result.Image)}
			// Replace the batch so further edits chain on the latest
			// version.
			st.lastImages = [][]byte{result.Image}
		}
		st.patchMessage(msgIndex, patch)
		st.appendTimeline("image", "image edited")
		return nil
	})
}

func dataURL(img []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(img)
}
