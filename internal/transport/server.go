// Package transport exposes the action registry over MCP, on stdio or HTTP.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"sqlgate/internal/action"
)

const (
	ServerName    = "sqlgate"
	ServerVersion = "1.0.0"
)

// NewServer builds an MCP server advertising one tool per registered action.
// The tool list and input schemas come straight from the registry, so the
// wire surface can never drift from the handlers behind it.
func NewServer(reg *action.Registry, disp *action.Dispatcher, log *slog.Logger) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: ServerVersion}, nil)
	for _, desc := range reg.List() {
		srv.AddTool(&mcp.Tool{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: inputSchema(desc),
		}, callHandler(desc.Name, disp, log))
	}
	return srv
}

func inputSchema(desc action.Descriptor) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: map[string]*jsonschema.Schema{},
	}
	for _, f := range desc.Fields {
		prop := &jsonschema.Schema{Description: f.Description}
		switch f.Type {
		case action.TypeString:
			prop.Type = "string"
		case action.TypeObject:
			prop.Type = "object"
		case action.TypeArray:
			prop.Type = "array"
			prop.Items = &jsonschema.Schema{Type: "array"}
		}
		schema.Properties[f.Name] = prop
		if f.Required {
			schema.Required = append(schema.Required, f.Name)
		}
	}
	return schema
}

func callHandler(name string, disp *action.Dispatcher, log *slog.Logger) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := action.Args{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				log.Warn("undecodable arguments", "action", name, "error", err)
				return toolResult(action.Fail(action.Errorf(
					action.KindInvalidArgument, "arguments must be a JSON object: %v", err))), nil
			}
		}
		return toolResult(disp.Dispatch(ctx, name, args)), nil
	}
}

// toolResult renders the envelope as pretty-printed JSON text content.
// Failures travel inside the envelope, never as protocol errors.
func toolResult(res *action.Result) *mcp.CallToolResult {
	body, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		body = []byte(`{"ok":false,"error":{"kind":"unknown_error","message":"result not serializable"}}`)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
		IsError: res.IsError(),
	}
}
