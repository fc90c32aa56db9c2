package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"Go2NetProfile/internal/config"
	"Go2NetProfile/internal/query"
)

func main() {
	// Define command-line flags
	mode := flag.String("mode", "api", "Query mode: 'api' to query via HTTP API, 'direct' to query ClickHouse directly.")
	apiAddr := flag.String("api", "http://localhost:8080", "Base URL of the ns-api server.")
	scenario := flag.String("scenario", "flow_agnostic", "Scenario to query.")
	metric := flag.String("metric", "packet_size", "Metric to query.")
	application := flag.String("app", "", "Application label (optional).")
	flowKey := flag.String("flow", "", "Trace one flow key instead of the summary history (requires -app).")
	limit := flag.Int("limit", 20, "Maximum number of history rows.")

	chHost := flag.String("ch-host", "localhost", "ClickHouse host for direct mode.")
	chPort := flag.Int("ch-port", 9000, "ClickHouse port for direct mode.")
	chUser := flag.String("ch-user", "default", "ClickHouse user for direct mode.")
	chPassword := flag.String("ch-password", "", "ClickHouse password for direct mode.")

	flag.Parse()

	log.Printf("Running in '%s' mode.", *mode)

	switch *mode {
	case "api":
		if *flowKey != "" {
			get(*apiAddr+"/api/v1/flows/"+*flowKey, url.Values{"application": {*application}})
			return
		}
		get(*apiAddr+"/api/v1/history", url.Values{
			"scenario":    {*scenario},
			"metric":      {*metric},
			"application": {*application},
			"limit":       {strconv.Itoa(*limit)},
		})
	case "direct":
		q, err := query.NewClickHouseQuerier(config.ClickHouseConfig{
			Host:     *chHost,
			Port:     *chPort,
			Database: "default",
			Username: *chUser,
			Password: *chPassword,
		})
		if err != nil {
			log.Fatalf("Error connecting to ClickHouse: %v", err)
		}
		defer q.Close()
		log.Println("Successfully connected to ClickHouse.")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var result any
		if *flowKey != "" {
			result, err = q.TraceFlow(ctx, query.TraceFlowRequest{Application: *application, FlowKey: *flowKey})
		} else {
			result, err = q.SummaryHistory(ctx, query.HistoryRequest{
				Scenario:    *scenario,
				Metric:      *metric,
				Application: *application,
				Limit:       *limit,
			})
		}
		if err != nil {
			log.Fatalf("Error executing query: %v", err)
		}
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("Error encoding results: %v", err)
		}
		log.Println("--- Query Results (Direct) ---")
		fmt.Println(string(out))
	default:
		log.Fatalf("Invalid mode: %s. Use 'api' or 'direct'.", *mode)
	}
}

// --- API Query Logic ---
func get(endpoint string, params url.Values) {
	for k, v := range params {
		if len(v) == 0 || v[0] == "" {
			params.Del(k)
		}
	}
	target := endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	log.Printf("Sending request to %s", target)

	resp, err := http.Get(target)
	if err != nil {
		log.Fatalf("Error sending request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("API returned non-200 status code: %d\nResponse: %s", resp.StatusCode, string(respBody))
	}

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, respBody, "", "  "); err != nil {
		log.Printf("Could not prettify JSON, printing raw response:")
		fmt.Println(string(respBody))
		return
	}

	log.Println("---")
	fmt.Println(prettyJSON.String())
}
