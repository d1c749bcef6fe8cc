package prompts

import (
	"context"
	"testing"

	"github.com/mcpcore/mcpcore/internal/jsonrpc"
)

func newPromptService() *Service {
	s := NewService()
	s.Register(jsonrpc.Prompt{
		Name:      "greet",
		Arguments: []jsonrpc.PromptArgument{{Name: "who", Required: true}},
	}, func(ctx context.Context, args map[string]string) (*jsonrpc.GetPromptResult, error) {
		return &jsonrpc.GetPromptResult{
			Messages: []jsonrpc.PromptMessage{{Role: "user", Content: jsonrpc.ToolContent{Type: "text", Text: "hi " + args["who"]}}},
		}, nil
	})
	return s
}

func TestServiceGetMissingRequiredArg(t *testing.T) {
	s := newPromptService()
	_, rpcErr := s.Get(context.Background(), "greet", map[string]string{})
	if rpcErr == nil || rpcErr.Code != jsonrpc.CodeInvalidParams {
		t.Fatalf("Get() = %v, want InvalidParams for missing required argument", rpcErr)
	}
}

func TestServiceGetNotFound(t *testing.T) {
	s := newPromptService()
	_, rpcErr := s.Get(context.Background(), "missing", nil)
	if rpcErr == nil || rpcErr.Code != jsonrpc.CodePromptNotFound {
		t.Fatalf("Get() = %v, want PromptNotFound", rpcErr)
	}
}

func TestServiceGetSuccess(t *testing.T) {
	s := newPromptService()
	result, rpcErr := s.Get(context.Background(), "greet", map[string]string{"who": "world"})
	if rpcErr != nil {
		t.Fatalf("Get() error = %v", rpcErr)
	}
	if result.Messages[0].Content.Text != "hi world" {
		t.Errorf("Text = %q", result.Messages[0].Content.Text)
	}
}

func TestServiceGetCaseInsensitive(t *testing.T) {
	s := newPromptService()
	result, rpcErr := s.Get(context.Background(), "GREET", map[string]string{"who": "world"})
	if rpcErr != nil {
		t.Fatalf("Get() with differing case = %v, want success", rpcErr)
	}
	if result.Messages[0].Content.Text != "hi world" {
		t.Errorf("Text = %q", result.Messages[0].Content.Text)
	}
}
