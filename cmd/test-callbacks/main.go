package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// echoResponse describes the request the target received, so the proxy's
// outbound call can be inspected end to end.
type echoResponse struct {
	Datetime    string              `json:"datetime"`
	Count       uint64              `json:"count"`
	Method      string              `json:"method"`
	Path        string              `json:"path"`
	QueryParams map[string][]string `json:"query_params"`
	Headers     map[string][]string `json:"headers"`
	Body        string              `json:"body,omitempty"`
}

var requestCounter uint64

func handler(w http.ResponseWriter, r *http.Request) {
	count := atomic.AddUint64(&requestCounter, 1)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read request body")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	log.Info().Uint64("count", count).Str("method", r.Method).Str("path", r.URL.Path).
		Str("user_agent", r.Header.Get("User-Agent")).Int("body_bytes", len(body)).
		Msg("Received request")

	resp := echoResponse{
		Datetime:    time.Now().UTC().Format(time.RFC3339),
		Count:       count,
		Method:      r.Method,
		Path:        r.URL.Path,
		QueryParams: r.URL.Query(),
		Headers:     r.Header,
		Body:        string(body),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

func main() {
	port := flag.Int("port", 8081, "Port to listen on")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	addr := fmt.Sprintf(":%d", *port)
	http.HandleFunc("/", handler)
	log.Info().Str("addr", addr).Msg("Echo target starting")
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal().Err(err).Msg("Echo target stopped")
	}
}
