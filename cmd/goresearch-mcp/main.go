// Command goresearch-mcp runs the deep research engine as an MCP server,
// exposing a single deepResearch tool over stdio or streamable HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/deepresearch/internal/app"
)

var version = "dev"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	stdio := isStdio()

	logOut := os.Stdout
	if stdio {
		// stdio transport owns stdout for protocol frames; logs go to stderr.
		logOut = os.Stderr
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: logOut, TimeFormat: time.RFC3339})

	cfg := app.Config{}
	app.ApplyEnv(&cfg)

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize app")
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "goresearch-mcp",
		Version: version,
	}, nil)

	registerDeepResearch(server, a)

	if stdio {
		log.Info().Msg("running in stdio mode")
		if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
			log.Fatal().Err(err).Msg("stdio server failed")
		}
		return
	}

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{Stateless: true})

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.Handle("/mcp/", handler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","service":"goresearch-mcp","version":"` + version + `"}`))
	})

	addr := ":" + envOr("MCP_PORT", "8891")
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func isStdio() bool {
	for _, arg := range os.Args[1:] {
		if arg == "--stdio" {
			return true
		}
	}
	return false
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
