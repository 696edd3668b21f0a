package ai

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/suPer8Hu/chatbot/internal/chat"
)

// ConverseAPI is the subset of the Bedrock runtime client the provider uses.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

var _ ConverseAPI = (*bedrockruntime.Client)(nil)

// BedrockProvider calls the Bedrock Converse API. Retries and backoff come
// from the aws.Config the client was built with.
type BedrockProvider struct {
	client  ConverseAPI
	modelID string
}

func NewBedrockProvider(cfg aws.Config, modelID string) *BedrockProvider {
	return NewBedrockProviderWithClient(bedrockruntime.NewFromConfig(cfg), modelID)
}

func NewBedrockProviderWithClient(client ConverseAPI, modelID string) *BedrockProvider {
	return &BedrockProvider{client: client, modelID: modelID}
}

func (p *BedrockProvider) Converse(ctx context.Context, req Request) (*Response, error) {
	if p.modelID == "" {
		return nil, fmt.Errorf("bedrock: model id is required")
	}

	msgs := make([]types.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		blocks := make([]types.ContentBlock, 0, len(m.Content))
		for _, c := range m.Content {
			blocks = append(blocks, &types.ContentBlockMemberText{Value: c.Text})
		}
		msgs = append(msgs, types.Message{
			Role:    types.ConversationRole(m.Role),
			Content: blocks,
		})
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(p.modelID),
		Messages: msgs,
		InferenceConfig: &types.InferenceConfiguration{
			Temperature: aws.Float32(req.Sampling.Temperature),
		},
		// top_k is not part of the common inference config.
		AdditionalModelRequestFields: document.NewLazyDocument(map[string]any{
			"top_k": req.Sampling.TopK,
		}),
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}

	out, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, err
	}

	msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, &chat.ParseError{Field: "output", Reason: fmt.Sprintf("unexpected output type %T", out.Output)}
	}

	reply := chat.InferenceMessage{Role: string(msgOut.Value.Role)}
	for _, block := range msgOut.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			reply.Content = append(reply.Content, chat.InferenceContent{Text: b.Value})
		default:
			// non-text blocks carry no text and fail parsing
			reply.Content = append(reply.Content, chat.InferenceContent{})
		}
	}

	resp := &Response{Message: reply, StopReason: string(out.StopReason)}
	if out.Usage != nil {
		resp.Usage = Usage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	return resp, nil
}
