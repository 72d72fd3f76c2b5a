package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlgate/internal/action"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func contentText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content must be text")
	return text.Text
}

func TestRequireBearer(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireBearer("secret-token", discard(), next)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic secret-token", want: http.StatusUnauthorized},
		{name: "no token", header: "Bearer", want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer wrong", want: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer secret-token", want: http.StatusOK},
		{name: "case-insensitive scheme", header: "bearer secret-token", want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)

			if tc.want == http.StatusUnauthorized {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestInputSchema(t *testing.T) {
	desc := action.Descriptor{
		Name: "insert_row",
		Fields: []action.Field{
			{Name: "table", Type: action.TypeString, Required: true, Description: "Target table"},
			{Name: "data", Type: action.TypeObject, Required: true},
			{Name: "params", Type: action.TypeArray},
			{Name: "database", Type: action.TypeString},
		},
	}

	schema := inputSchema(desc)
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"table", "data"}, schema.Required)

	require.Contains(t, schema.Properties, "table")
	assert.Equal(t, "string", schema.Properties["table"].Type)
	assert.Equal(t, "Target table", schema.Properties["table"].Description)
	assert.Equal(t, "object", schema.Properties["data"].Type)
	assert.Equal(t, "array", schema.Properties["params"].Type)
	require.NotNil(t, schema.Properties["params"].Items)
	assert.Equal(t, "array", schema.Properties["params"].Items.Type)
}

func TestInputSchema_NoFields(t *testing.T) {
	schema := inputSchema(action.Descriptor{Name: "ping"})
	assert.Equal(t, "object", schema.Type)
	assert.Empty(t, schema.Required)
	assert.Empty(t, schema.Properties)
}

func TestToolResult_Success(t *testing.T) {
	res := toolResult(action.Rows([]map[string]any{{"id": int64(7)}}))
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)

	var envelope struct {
		OK       bool             `json:"ok"`
		Rows     []map[string]any `json:"rows"`
		RowCount int64            `json:"row_count"`
	}
	text := contentText(t, res)
	require.NoError(t, json.Unmarshal([]byte(text), &envelope))
	assert.True(t, envelope.OK)
	assert.Equal(t, int64(1), envelope.RowCount)
	require.Len(t, envelope.Rows, 1)
	assert.Equal(t, float64(7), envelope.Rows[0]["id"])
}

func TestToolResult_Failure(t *testing.T) {
	res := toolResult(action.Fail(action.Errorf(action.KindSyntax, "near SELEC")))
	assert.True(t, res.IsError)

	var envelope struct {
		OK  bool `json:"ok"`
		Err *struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	text := contentText(t, res)
	require.NoError(t, json.Unmarshal([]byte(text), &envelope))
	assert.False(t, envelope.OK)
	require.NotNil(t, envelope.Err)
	assert.Equal(t, "syntax_error", envelope.Err.Kind)
	assert.Equal(t, "near SELEC", envelope.Err.Message)
}

func TestNewServer_RegistersEveryAction(t *testing.T) {
	reg := action.NewRegistry()
	reg.Register(action.Descriptor{
		Name:        "ping",
		Description: "Check connectivity.",
		Handler: func(_ context.Context, _ action.Args) (*action.Result, error) {
			return action.OK(), nil
		},
	})

	srv := NewServer(reg, action.NewDispatcher(reg, discard()), discard())
	require.NotNil(t, srv)
}
