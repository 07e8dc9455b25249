package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// solvecheck submits one solve run against a live deployment, polls the job
// until it reaches a terminal status, and prints the decoded schedule. Exits
// non-zero when the job fails or the deadline passes.

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type jobStatus struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type jobResults struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Results *struct {
		SolverStatus string `json:"solver_status"`
		PlacedCount  int    `json:"placed_count"`
		TotalReqs    int    `json:"total_requests"`
		PlacedBlocks []struct {
			InstructorName string `json:"instructor_name"`
			RoomName       string `json:"room_name"`
			DayOfWeek      string `json:"day_of_week"`
			StartTime      string `json:"start_time"`
			EndTime        string `json:"end_time"`
		} `json:"placed_blocks"`
		Diagnostics []string `json:"diagnostics"`
	} `json:"results"`
	DownloadURL *string `json:"download_url"`
}

func main() {
	var (
		base     string
		orgID    int64
		termID   int64
		locID    int64
		poll     time.Duration
		deadline time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL (including prefix)")
	flag.Int64Var(&orgID, "org", 0, "Organization ID")
	flag.Int64Var(&termID, "term", 0, "Term ID")
	flag.Int64Var(&locID, "location", 0, "Optional studio location ID (0 = all)")
	flag.DurationVar(&poll, "poll", 2*time.Second, "Status poll interval")
	flag.DurationVar(&deadline, "deadline", 2*time.Minute, "Give up after this long")
	flag.Parse()

	if orgID <= 0 || termID <= 0 {
		log.Fatal("-org and -term are required")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	base = strings.TrimRight(base, "/")

	jobID, err := submit(client, base, orgID, termID, locID)
	if err != nil {
		log.Fatalf("submit failed: %v", err)
	}
	fmt.Printf("submitted job %s\n", jobID)

	status, err := waitTerminal(client, base, jobID, poll, deadline)
	if err != nil {
		log.Fatalf("poll failed: %v", err)
	}
	if status.Status != "COMPLETED" {
		fmt.Printf("job %s ended %s: %s\n", jobID, status.Status, status.Message)
		os.Exit(1)
	}

	results, err := fetchResults(client, base, jobID)
	if err != nil {
		log.Fatalf("fetch results failed: %v", err)
	}
	printSchedule(results)
}

func submit(client *http.Client, base string, orgID, termID, locID int64) (string, error) {
	payload := map[string]interface{}{
		"organization_id": orgID,
		"term_id":         termID,
	}
	if locID > 0 {
		payload["studio_location_id"] = locID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	resp, err := client.Post(base+"/solver/run", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var env envelope
	if err := decodeEnvelope(resp, &env); err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", envelopeError(resp.StatusCode, env.Error)
	}

	var status jobStatus
	if err := json.Unmarshal(env.Data, &status); err != nil {
		return "", fmt.Errorf("decode job response: %w", err)
	}
	if status.JobID == "" {
		return "", fmt.Errorf("response missing job_id")
	}
	return status.JobID, nil
}

func waitTerminal(client *http.Client, base, jobID string, poll, deadline time.Duration) (*jobStatus, error) {
	giveUp := time.Now().Add(deadline)
	for {
		resp, err := client.Get(base + "/solver/status/" + jobID)
		if err != nil {
			return nil, err
		}
		var env envelope
		err = decodeEnvelope(resp, &env)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, envelopeError(resp.StatusCode, env.Error)
		}

		var status jobStatus
		if err := json.Unmarshal(env.Data, &status); err != nil {
			return nil, fmt.Errorf("decode status: %w", err)
		}
		if status.Status == "COMPLETED" || status.Status == "FAILED" {
			return &status, nil
		}

		fmt.Printf("  %s...\n", status.Status)
		if time.Now().After(giveUp) {
			return nil, fmt.Errorf("job %s still %s after %s", jobID, status.Status, deadline)
		}
		time.Sleep(poll)
	}
}

func fetchResults(client *http.Client, base, jobID string) (*jobResults, error) {
	resp, err := client.Get(base + "/solver/results/" + jobID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := decodeEnvelope(resp, &env); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, envelopeError(resp.StatusCode, env.Error)
	}

	var results jobResults
	if err := json.Unmarshal(env.Data, &results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return &results, nil
}

func decodeEnvelope(resp *http.Response, env *envelope) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, env); err != nil {
		return fmt.Errorf("decode envelope (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

func envelopeError(status int, apiErr *apiError) error {
	if apiErr != nil {
		return fmt.Errorf("HTTP %d: %s (%s)", status, apiErr.Message, apiErr.Code)
	}
	return fmt.Errorf("HTTP %d", status)
}

func printSchedule(results *jobResults) {
	if results.Results == nil {
		fmt.Println("job completed but carries no results")
		return
	}
	out := results.Results
	fmt.Printf("solver status: %s, placed %d of %d\n", out.SolverStatus, out.PlacedCount, out.TotalReqs)
	for _, block := range out.PlacedBlocks {
		fmt.Printf("  %-9s %s-%s  %s @ %s\n", block.DayOfWeek, block.StartTime, block.EndTime, block.InstructorName, block.RoomName)
	}
	for _, diag := range out.Diagnostics {
		fmt.Printf("  note: %s\n", diag)
	}
	if results.DownloadURL != nil {
		fmt.Printf("download: %s\n", *results.DownloadURL)
	}
}
