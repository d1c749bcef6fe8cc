// Package config loads a declarative mcpcore.yaml describing a static
// tool/resource catalog and demo OAuth client seeds, and applies it onto
// an assembled server.Server. Ground: the teacher's internal/config
// loader.go Parse/LoadFile/Apply shape, scaled from downstream-server
// definitions to this server's own registries.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mcpcore/mcpcore/internal/discovery"
	"github.com/mcpcore/mcpcore/internal/jsonrpc"
	"github.com/mcpcore/mcpcore/internal/oauthserver"
	"github.com/mcpcore/mcpcore/internal/server"
)

// FileConfig is the top-level mcpcore.yaml structure.
type FileConfig struct {
	Tools        []ToolConfig        `yaml:"tools"`
	Resources    []ResourceConfig    `yaml:"resources"`
	OAuthClients []OAuthClientConfig `yaml:"oauth_clients"`
}

// ToolConfig declares a tool whose call handler always returns the same
// static text — enough to exercise tools/list and tools/call for an
// operator-authored catalog with no Go code of its own.
type ToolConfig struct {
	Name         string           `yaml:"name"`
	Description  string           `yaml:"description"`
	Properties   []PropertyConfig `yaml:"properties"`
	ResponseText string           `yaml:"response_text"`
}

type PropertyConfig struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Enum        []string `yaml:"enum"`
	Required    bool     `yaml:"required"`
}

// ResourceConfig declares a resource with a fixed text body.
type ResourceConfig struct {
	URI         string `yaml:"uri"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	MimeType    string `yaml:"mime_type"`
	Text        string `yaml:"text"`
}

// OAuthClientConfig seeds the demo authorization server's client
// registry with a pre-registered client, bypassing dynamic client
// registration for operators who want a fixed client_id.
type OAuthClientConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURIs []string `yaml:"redirect_uris"`
	Scope        string   `yaml:"scope"`
}

// LoadFile reads and parses the YAML config file at path.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML config data.
func Parse(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &cfg, nil
}

// Apply registers cfg's tools and resources onto srv, and seeds any
// configured OAuth clients into srv.OAuth's registry when the demo AS is
// enabled.
func Apply(_ context.Context, cfg *FileConfig, srv *server.Server) error {
	for _, t := range cfg.Tools {
		if err := applyTool(srv, t); err != nil {
			return fmt.Errorf("apply tool %s: %w", t.Name, err)
		}
	}
	for _, r := range cfg.Resources {
		applyResource(srv, r)
	}
	if srv.OAuth != nil {
		for _, c := range cfg.OAuthClients {
			srv.OAuth.Clients.Register(&oauthserver.RegisteredClient{
				ClientID:     c.ClientID,
				RedirectURIs: c.RedirectURIs,
				Scope:        c.Scope,
			})
		}
	}
	return nil
}

func applyTool(srv *server.Server, t ToolConfig) error {
	if t.Name == "" {
		return fmt.Errorf("tool entry missing name")
	}
	properties := make([]discovery.Property, 0, len(t.Properties))
	for _, p := range t.Properties {
		properties = append(properties, discovery.Property{
			Name:        p.Name,
			Type:        p.Type,
			Description: p.Description,
			Enum:        p.Enum,
			Required:    p.Required,
		})
	}
	responseText := t.ResponseText
	srv.Tools.Register(jsonrpc.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: discovery.Schema(properties),
	}, func(ctx context.Context, args json.RawMessage) (*jsonrpc.CallToolResult, error) {
		return &jsonrpc.CallToolResult{Content: []jsonrpc.ToolContent{{Type: "text", Text: responseText}}}, nil
	})
	return nil
}

func applyResource(srv *server.Server, r ResourceConfig) {
	text := r.Text
	mimeType := r.MimeType
	srv.Resources.Register(jsonrpc.Resource{
		URI:         r.URI,
		Name:        r.Name,
		Description: r.Description,
		MimeType:    mimeType,
	}, func(ctx context.Context, uri string) (*jsonrpc.ReadResourceResult, error) {
		return &jsonrpc.ReadResourceResult{
			Contents: []jsonrpc.ResourceContent{{URI: uri, MimeType: mimeType, Text: text}},
		}, nil
	})
}
