package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcpcore/mcpcore/internal/discovery"
	"github.com/mcpcore/mcpcore/internal/jsonrpc"
	"github.com/mcpcore/mcpcore/internal/scripting"
	"github.com/mcpcore/mcpcore/internal/server"
)

// registerDemoCatalog populates srv's tool/resource/prompt/completion
// registries with a small, self-contained catalog so every dispatcher
// method named in spec.md §6 has something real to list and invoke
// without requiring an operator-supplied mcpcore.yaml first.
func registerDemoCatalog(srv *server.Server) {
	registerEchoTool(srv)
	registerTimeTool(srv)
	registerGreetingResource(srv)
	registerGreetingPrompt(srv)
}

type echoArgs struct {
	Message string `json:"message" mcp:"message,required"`
}

func registerEchoTool(srv *server.Server) {
	srv.Tools.Register(jsonrpc.Tool{
		Name:        "echo",
		Description: "Echoes the given message back to the caller.",
		InputSchema: discovery.FromStruct(echoArgs{}),
		Annotations: discovery.Annotations("diagnostic"),
	}, func(ctx context.Context, args json.RawMessage) (*jsonrpc.CallToolResult, error) {
		var a echoArgs
		if len(args) > 0 {
			if err := json.Unmarshal(args, &a); err != nil {
				return nil, fmt.Errorf("decode echo arguments: %w", err)
			}
		}
		return &jsonrpc.CallToolResult{
			Content: []jsonrpc.ToolContent{{Type: "text", Text: a.Message}},
		}, nil
	})
}

func registerTimeTool(srv *server.Server) {
	srv.Tools.Register(jsonrpc.Tool{
		Name:        "current_time",
		Description: "Returns the current UTC time in RFC 3339 form.",
		InputSchema: discovery.Schema(nil),
	}, func(ctx context.Context, args json.RawMessage) (*jsonrpc.CallToolResult, error) {
		return &jsonrpc.CallToolResult{
			Content: []jsonrpc.ToolContent{{Type: "text", Text: time.Now().UTC().Format(time.RFC3339)}},
		}, nil
	})
}

func registerGreetingResource(srv *server.Server) {
	const uri = "demo://greeting"
	srv.Resources.Register(jsonrpc.Resource{
		URI:         uri,
		Name:        "greeting",
		Description: "A static demonstration resource.",
		MimeType:    "text/plain",
	}, func(ctx context.Context, requestedURI string) (*jsonrpc.ReadResourceResult, error) {
		return &jsonrpc.ReadResourceResult{
			Contents: []jsonrpc.ResourceContent{{URI: requestedURI, MimeType: "text/plain", Text: "Hello from mcpcore."}},
		}, nil
	})
}

// greetingNames is the candidate pool the greet prompt's completion
// handler offers; expressed as a JS array literal and evaluated through
// scripting.Evaluator so the catalog demonstrates the declarative,
// script-driven enum path alongside the plain Go handlers above.
const greetingNamesExpr = `["Ada","Grace","Linus","Margaret"]`

func registerGreetingPrompt(srv *server.Server) {
	srv.Prompts.Register(jsonrpc.Prompt{
		Name:        "greet",
		Description: "Greets the named person.",
		Arguments:   []jsonrpc.PromptArgument{{Name: "name", Description: "Who to greet", Required: true}},
	}, func(ctx context.Context, args map[string]string) (*jsonrpc.GetPromptResult, error) {
		name := args["name"]
		if name == "" {
			name = "there"
		}
		return &jsonrpc.GetPromptResult{
			Messages: []jsonrpc.PromptMessage{
				{Role: "user", Content: jsonrpc.ToolContent{Type: "text", Text: fmt.Sprintf("Say hello to %s.", name)}},
			},
		}, nil
	})

	evaluator := scripting.NewEvaluator(0)
	srv.Completions.RegisterPrompt("greet", func(ctx context.Context, argument jsonrpc.CompletionArgument) (*jsonrpc.CompletionValues, error) {
		if argument.Name != "name" {
			return &jsonrpc.CompletionValues{}, nil
		}
		names, err := evaluator.EvalStrings(greetingNamesExpr, nil)
		if err != nil {
			return nil, fmt.Errorf("evaluate greeting name candidates: %w", err)
		}
		matches := make([]string, 0, len(names))
		for _, n := range names {
			if argument.Value == "" || hasPrefixFold(n, argument.Value) {
				matches = append(matches, n)
			}
		}
		return &jsonrpc.CompletionValues{Values: matches, Total: len(matches)}, nil
	})
}

func hasPrefixFold(s, prefix string) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}
