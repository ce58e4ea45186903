package llm

import (
	"context"
	"math"
)

// systemPrompt frames every transcript-to-reply request.
const systemPrompt = "You are a helpful assistant."

// replyTemperature keeps reply sampling effectively deterministic. An
// exact zero would be dropped from the wire request by the providers'
// omitempty handling and fall back to the API default, so the smallest
// positive float stands in for it.
const replyTemperature = math.SmallestNonzeroFloat32

// Replier turns a transcript into a single conversational reply using
// one provider and a fixed model. It is the narrow generation contract
// the audio pipeline consumes.
type Replier struct {
	provider Provider
	model    string
}

func NewReplier(p Provider, model string) *Replier {
	return &Replier{provider: p, model: model}
}

// Reply sends the transcript as the sole user message and returns the
// assistant's text.
func (r *Replier) Reply(ctx context.Context, transcript string) (string, error) {
	resp, err := r.provider.ChatCompletion(ctx, ChatRequest{
		Model: r.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: transcript},
		},
		Temperature: replyTemperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
