package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

// Load-tests the dry-run resolution endpoint of a running server.
// Route testing never mutates round-robin counters or calls upstream
// vendors, so it isolates resolver and keyring overhead.
func main() {
	base := flag.String("base", "http://localhost:8080", "Base URL of a running server")
	botID := flag.String("bot", "", "Bot ID to resolve for")
	hint := flag.String("hint", "", "Routing hint to send")
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 100, "Requests per second")
	flag.Parse()

	if *botID == "" {
		fmt.Println("missing -bot; run cmd/seed and pass the printed bot ID")
		return
	}

	body := fmt.Sprintf(`{"bot_id":%q,"routing_hint":%q}`, *botID, *hint)

	targeter := func(t *vegeta.Target) error {
		t.Method = "POST"
		t.URL = *base + "/v1/route/test"
		t.Body = []byte(body)
		t.Header = http.Header{
			"Content-Type": []string{"application/json"},
		}
		return nil
	}

	fmt.Printf("Attacking %s/v1/route/test: %s duration, %d req/s\n", *base, *duration, *rate)

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics

	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "route-test") {
		metrics.Add(res)
	}
	metrics.Close()

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", metrics.Latencies.P99)
	fmt.Println("Mean:            ", metrics.Latencies.Mean)
	fmt.Println("Max:             ", metrics.Latencies.Max)
	fmt.Printf("Success:         %.2f%%\n", metrics.Success*100)
	fmt.Printf("Throughput:      %.2f req/s\n", metrics.Throughput)
	fmt.Println("--------------------------------------------------")

	if len(metrics.Errors) > 0 {
		fmt.Println("Error set (first 5 unique):")
		seen := make(map[string]bool)
		count := 0
		for _, msg := range metrics.Errors {
			if !seen[msg] && count < 5 {
				fmt.Println(msg)
				seen[msg] = true
				count++
			}
		}
	}
}
