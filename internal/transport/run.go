package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"sqlgate/internal/config"
)

const shutdownGrace = 10 * time.Second

// Run serves the MCP server on the configured transport and blocks until the
// context is canceled or the transport fails.
func Run(ctx context.Context, srv *mcp.Server, cfg *config.Config, log *slog.Logger) error {
	switch cfg.Transport {
	case config.TransportStdio:
		log.Info("serving on stdio")
		return srv.Run(ctx, &mcp.StdioTransport{})
	case config.TransportHTTP:
		handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
		return serveHTTP(ctx, cfg, log, handler)
	case config.TransportSSE:
		handler := mcp.NewSSEHandler(func(*http.Request) *mcp.Server { return srv }, nil)
		return serveHTTP(ctx, cfg, log, handler)
	default:
		return errors.New("unknown transport " + string(cfg.Transport))
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, log *slog.Logger, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/", RequireBearer(cfg.AuthToken, log, handler))

	server := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving over network", "transport", cfg.Transport, "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
