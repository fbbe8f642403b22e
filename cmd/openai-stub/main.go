// Command openai-stub serves deterministic OpenAI-, Anthropic- and
// Responses-compatible endpoints for local runs without API keys.
package main

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(model),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", addr).Str("model", model).Msg("openai-stub listening")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}
