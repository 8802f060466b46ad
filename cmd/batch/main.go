// Package main provides a command line batch evaluator for scenario CSV files.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"mortgage-scenario-engine/internal/engine"
	"mortgage-scenario-engine/internal/handlers"
	"mortgage-scenario-engine/internal/models"
	"mortgage-scenario-engine/internal/utils"
)

type rowResult struct {
	Row    int                      `json:"row"`
	ID     string                   `json:"id"`
	Result *models.EvaluationResult `json:"result"`
}

func main() {
	input := flag.String("input", "", "path to the scenario CSV file")
	output := flag.String("output", "", "path to write per-row results JSON (default stdout summary only)")
	guidelinesPath := flag.String("guidelines", "", "optional guidelines override JSON file")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: batch -input scenarios.csv [-output results.json] [-guidelines overrides.json]")
		os.Exit(2)
	}

	if err := utils.InitLogger(os.Getenv("LOG_LEVEL")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer utils.Sync()

	var g *engine.Guidelines
	if *guidelinesPath != "" {
		data, err := os.ReadFile(*guidelinesPath)
		if err != nil {
			log.Fatalf("Failed to read guidelines file: %v", err)
		}
		g, err = engine.ParseGuidelines(data)
		if err != nil {
			log.Fatalf("Failed to parse guidelines file: %v", err)
		}
	}
	eng := engine.New(g)

	content, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("Failed to read input file: %v", err)
	}

	parser := utils.NewCSVParser()
	scenarios, parseErrors := parser.ParseScenarios(string(content))
	for _, e := range parseErrors {
		log.Printf("Skipping row: %v", e)
	}
	if len(scenarios) == 0 {
		log.Fatal("No valid scenarios in input file")
	}

	summary := &models.BatchSummary{
		BatchID:     fmt.Sprintf("local_%d", time.Now().Unix()),
		TotalRows:   len(scenarios) + len(parseErrors),
		InvalidRows: len(parseErrors),
		StartedAt:   time.Now().UTC(),
	}

	var results []rowResult
	for i, scenario := range scenarios {
		result, err := eng.Evaluate(scenario)
		if err != nil {
			summary.InvalidRows++
			summary.Errors = append(summary.Errors, fmt.Sprintf("scenario %d: %v", i+1, err))
			continue
		}

		summary.Evaluated++
		if result.EligibilityOverall {
			summary.Eligible++
		} else {
			summary.Ineligible++
		}

		results = append(results, rowResult{
			Row:    i + 1,
			ID:     uuid.New().String(),
			Result: result,
		})
	}
	summary.CompletedAt = time.Now().UTC()

	if *output != "" {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal results: %v", err)
		}
		if err := os.WriteFile(*output, data, 0644); err != nil {
			log.Fatalf("Failed to write results: %v", err)
		}
		log.Printf("Wrote %d results to %s", len(results), *output)
	}

	summaryJSON, err := handlers.ResultsJSON(summary)
	if err != nil {
		log.Fatalf("Failed to marshal summary: %v", err)
	}
	fmt.Println(string(summaryJSON))

	if summary.Evaluated == 0 {
		os.Exit(1)
	}
}
