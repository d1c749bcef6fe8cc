package config

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mcpcore/mcpcore/internal/oauthserver"
	"github.com/mcpcore/mcpcore/internal/server"
)

func newTestOAuthServer() *oauthserver.Server {
	return oauthserver.NewServer("https://issuer.test", []byte("test-signing-key-material"))
}

const sampleYAML = `
tools:
  - name: weather
    description: Returns a canned weather report.
    properties:
      - name: city
        type: string
        required: true
    response_text: "sunny"
resources:
  - uri: "demo://readme"
    name: readme
    mime_type: text/plain
    text: "hello"
oauth_clients:
  - client_id: seeded-client
    client_secret: seeded-secret
    redirect_uris: ["https://example.com/callback"]
    scope: "tools:call"
`

func TestParseAndApply(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(cfg.Tools) != 1 || cfg.Tools[0].Name != "weather" {
		t.Fatalf("Tools = %+v", cfg.Tools)
	}

	srv := server.New(server.Info{Name: "test"}, 0)
	if err := Apply(context.Background(), cfg, srv); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	tools := srv.Tools.List()
	if len(tools) != 1 || tools[0].Name != "weather" {
		t.Fatalf("registered tools = %+v", tools)
	}

	result, rpcErr := srv.Tools.Call(context.Background(), "weather", json.RawMessage(`{"city":"nowhere"}`))
	if rpcErr != nil {
		t.Fatalf("Call() error = %v", rpcErr)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "sunny" {
		t.Fatalf("result = %+v", result)
	}

	resources := srv.Resources.List()
	if len(resources) != 1 || resources[0].URI != "demo://readme" {
		t.Fatalf("registered resources = %+v", resources)
	}
}

func TestApplySeedsOAuthClientsWhenDemoASConfigured(t *testing.T) {
	srv := server.New(server.Info{Name: "test"}, 0)
	srv.OAuth = newTestOAuthServer()

	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if err := Apply(context.Background(), cfg, srv); err != nil {
		t.Fatal(err)
	}

	client, ok := srv.OAuth.Clients.Get("seeded-client")
	if !ok {
		t.Fatal("expected seeded-client to be registered")
	}
	if client.Scope != "tools:call" {
		t.Errorf("Scope = %q", client.Scope)
	}
}

func TestApplyRejectsToolMissingName(t *testing.T) {
	srv := server.New(server.Info{Name: "test"}, 0)
	cfg, err := Parse([]byte("tools:\n  - description: no name\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := Apply(context.Background(), cfg, srv); err == nil {
		t.Error("expected Apply() to reject a tool with no name")
	}
}
