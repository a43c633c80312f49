// Package main provides a load testing tool for the CTG screening API.
// It simulates clinicians creating, filling and submitting screening forms
// and collects detailed latency metrics for performance analysis.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"
)

// Config holds the load test configuration
type Config struct {
	Target       string        // Screening API URL
	Duration     time.Duration // Test duration
	RPS          int           // Target flows per second
	Workers      int           // Number of concurrent workers
	Clinicians   int           // Number of simulated clinicians
	Timeout      time.Duration // Per-flow timeout
	InvalidRatio float64       // Share of forms submitted with a non-numeric value
	Output       string        // Output format (json/text)
}

func main() {
	cfg := parseFlags()

	fmt.Println("+---------------------------------------------------------------+")
	fmt.Println("|              CTG SCREENING LOAD TEST                          |")
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Printf("|  Target       : %-45s |\n", cfg.Target)
	fmt.Printf("|  Duration     : %-45s |\n", cfg.Duration)
	fmt.Printf("|  Target RPS   : %-45d |\n", cfg.RPS)
	fmt.Printf("|  Workers      : %-45d |\n", cfg.Workers)
	fmt.Printf("|  Clinicians   : %-45d |\n", cfg.Clinicians)
	fmt.Printf("|  Invalid      : %-45.2f |\n", cfg.InvalidRatio)
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Println()

	// Create context with cancellation
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived shutdown signal, finishing current flows...")
		cancel()
	}()

	// Create client and runner
	client := NewClient(cfg.Target, cfg.Clinicians, cfg.InvalidRatio)
	runner := NewRunner(cfg, client)

	// Run the load test
	results := runner.Run(ctx)

	// Print results
	if cfg.Output == "json" {
		printJSONResults(results)
	} else {
		printTextResults(results)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.Target, "target", "http://localhost:8080", "Screening API URL")
	flag.DurationVar(&cfg.Duration, "duration", 60*time.Second, "Test duration (e.g., 60s, 5m)")
	flag.IntVar(&cfg.RPS, "rps", 20, "Target flows per second")
	flag.IntVar(&cfg.Workers, "workers", 10, "Number of concurrent workers")
	flag.IntVar(&cfg.Clinicians, "clinicians", 5, "Number of simulated clinicians")
	flag.DurationVar(&cfg.Timeout, "timeout", 15*time.Second, "Per-flow timeout")
	flag.Float64Var(&cfg.InvalidRatio, "invalid-ratio", 0, "Share of forms submitted with a non-numeric value (0-1)")
	flag.StringVar(&cfg.Output, "output", "text", "Output format (json/text)")

	flag.Parse()

	// Validate
	if cfg.RPS < 1 {
		cfg.RPS = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Clinicians < 1 {
		cfg.Clinicians = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.InvalidRatio < 0 {
		cfg.InvalidRatio = 0
	}
	if cfg.InvalidRatio > 1 {
		cfg.InvalidRatio = 1
	}

	return cfg
}

func printTextResults(results *Results) {
	total := float64(max(results.TotalRequests, 1))

	fmt.Println()
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Println("|                    LOAD TEST RESULTS                          |")
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Printf("|  Duration        : %-42.1fs |\n", results.Duration.Seconds())
	fmt.Printf("|  Target RPS      : %-42d |\n", results.TargetRPS)
	fmt.Printf("|  Achieved RPS    : %-42.1f |\n", results.AchievedRPS)
	fmt.Printf("|  Total Flows     : %-42s |\n", formatNumber(results.TotalRequests))
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Println("|  LATENCY (ms)                                                 |")
	fmt.Printf("|    P50           : %-42.1f |\n", results.LatencyP50)
	fmt.Printf("|    P90           : %-42.1f |\n", results.LatencyP90)
	fmt.Printf("|    P95           : %-42.1f |\n", results.LatencyP95)
	fmt.Printf("|    P99           : %-42.1f |\n", results.LatencyP99)
	fmt.Printf("|    Max           : %-42.1f |\n", results.LatencyMax)
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Println("|  SUCCESS/ERROR                                                |")
	fmt.Printf("|    Success       : %-7s (%5.1f%%)                            |\n",
		formatNumber(results.SuccessCount), float64(results.SuccessCount)/total*100)
	fmt.Printf("|    Rejected      : %-7s (%5.1f%%)                            |\n",
		formatNumber(results.RejectedCount), float64(results.RejectedCount)/total*100)
	fmt.Printf("|    Busy          : %-7s (%5.1f%%)                            |\n",
		formatNumber(results.BusyCount), float64(results.BusyCount)/total*100)
	fmt.Printf("|    Timeout       : %-7s (%5.1f%%)                            |\n",
		formatNumber(results.TimeoutCount), float64(results.TimeoutCount)/total*100)
	fmt.Printf("|    Server Error  : %-7s (%5.1f%%)                            |\n",
		formatNumber(results.ErrorCount), float64(results.ErrorCount)/total*100)
	fmt.Println("+---------------------------------------------------------------+")

	if len(results.Outcomes) > 0 {
		names := make([]string, 0, len(results.Outcomes))
		for name := range results.Outcomes {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println("|  OUTCOMES                                                     |")
		for _, name := range names {
			fmt.Printf("|    %-14s: %-42s |\n", name, formatNumber(results.Outcomes[name]))
		}
		fmt.Println("+---------------------------------------------------------------+")
	}

	// Print per-clinician breakdown if we have multiple clinicians
	if len(results.ClinicianResults) > 1 {
		fmt.Println()
		fmt.Println("Per-Clinician Breakdown:")
		fmt.Println("+--------------+-----------+----------+----------+----------+")
		fmt.Println("| Clinician    | Flows     | Success  | P50 (ms) | P99 (ms) |")
		fmt.Println("+--------------+-----------+----------+----------+----------+")
		for _, cr := range results.ClinicianResults {
			fmt.Printf("| %-12s | %9d | %7.1f%% | %8.1f | %8.1f |\n",
				cr.ClinicianID,
				cr.Requests,
				cr.SuccessRate*100,
				cr.LatencyP50,
				cr.LatencyP99)
		}
		fmt.Println("+--------------+-----------+----------+----------+----------+")
	}
}

func printJSONResults(results *Results) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling results: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func formatNumber(n int64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
	if n >= 1000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}
