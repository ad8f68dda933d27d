// Command mockvenue runs a standalone mock of the prediction-market venue and
// the durable workflow engine, for local development without real
// credentials. Point EXCHANGE_BASE_URL and ENGINE_BASE_URL at it.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"prediction-fleet/e2e/mocks"
	"prediction-fleet/observability"
)

func main() {
	observability.InitLogger(false)

	port := os.Getenv("MOCK_VENUE_PORT")
	if port == "" {
		port = "9090"
	}

	mock := mocks.NewMockHandler()
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           mock,
		ReadHeaderTimeout: 10 * time.Second,
	}

	observability.Info("mock venue listening", "port", port)
	if err := server.ListenAndServe(); err != nil {
		observability.Fatal("mock venue failed", "error", err)
	}
}
