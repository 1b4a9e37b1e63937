// Package main provides a performance benchmarking tool for the strata CLI.
// It generates synthetic logger workloads of different sizes, runs the level
// chain several times per workload, treats the first successful cached run as
// cold and averages the rest as warm, and writes CSV output for analysis.
//
// Prerequisites:
// - strata binary installed and available in PATH
//
// Usage: go run benchmark/main.go [work-dir]
//
//	work-dir: Directory that receives generated data, rules and levels
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// BenchmarkResult holds the result of a benchmark run (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Workload    string
	Command     string
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// Workload describes one synthetic data set.
type Workload struct {
	Name      string
	Loggers   int
	Rows      int
	Variables int
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir     string
	Timeout     time.Duration
	Workers     int
	NoCacheRuns int
	CacheRuns   int
	Workloads   []Workload
}

func main() {
	// Parse command line arguments
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [work-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		WorkDir:     os.Args[1],
		Timeout:     5 * time.Minute,
		Workers:     8,
		NoCacheRuns: 3,
		CacheRuns:   4,
		Workloads: []Workload{
			{Name: "small", Loggers: 2, Rows: 1_000, Variables: 4},
			{Name: "medium", Loggers: 8, Rows: 17_520, Variables: 12},
			{Name: "large", Loggers: 24, Rows: 105_120, Variables: 24},
		},
	}

	if _, err := exec.LookPath("strata"); err != nil {
		fmt.Printf("Prerequisites check failed: strata binary not found in PATH\n")
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// runBenchmarks generates every workload and benchmarks the run command on it.
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d workloads, %v timeout, %d workers, no-cache: %d runs, cache: %d runs\n",
		len(config.Workloads), config.Timeout, config.Workers, config.NoCacheRuns, config.CacheRuns)

	for _, wl := range config.Workloads {
		dir := filepath.Join(config.WorkDir, wl.Name)
		fmt.Printf("Generating %s (%d loggers x %d rows x %d variables)\n", wl.Name, wl.Loggers, wl.Rows, wl.Variables)
		if err := generateWorkload(dir, wl); err != nil {
			fmt.Printf("Warning: failed to generate %s: %v\n", wl.Name, err)
			continue
		}
		results = append(results, runBenchmarkSuite(config, wl.Name, dir))
	}

	return results
}

// runBenchmarkSuite runs both no-cache and cache benchmarks for a workload.
func runBenchmarkSuite(config BenchmarkConfig, name, dir string) BenchmarkResult {
	fmt.Printf("Running level chain on %s\n", name)

	// Helper to run a benchmark phase
	runPhase := func(cacheBackend string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, dir, cacheBackend, numRuns)
		if len(times) == 0 {
			avgTime = "TIMEOUT"
		} else {
			var sum float64
			for _, t := range times {
				sum += t
			}
			avgTime = fmt.Sprintf("%.3fs", sum/float64(len(times)))
		}
		return cold, avgTime
	}

	// Phase 1: No-cache runs
	_, noCacheAvg := runPhase("none", config.NoCacheRuns, "No-cache")

	// Phase 2: Cache runs, starting from an empty cache
	clearCmd := exec.Command("strata", "cache", "clear")
	clearCmd.Env = append(os.Environ(), "HOME="+dir)
	if output, err := clearCmd.CombinedOutput(); err != nil {
		fmt.Printf("Warning: failed to clear cache: %v\nOutput: %s\n", err, string(output))
	}
	coldTime, warmAvg := runPhase("sqlite", config.CacheRuns, "Cache")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Workload:    name,
		Command:     "run",
		NoCacheTime: noCacheAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark executes strata run multiple times with the given cache backend and returns cold time and warm times.
func runBenchmark(config BenchmarkConfig, dir, cacheBackend string, numRuns int) (coldTime float64, warmTimes []float64) {
	args := []string{
		"run",
		"--cache-backend", cacheBackend,
		"--workers", strconv.Itoa(config.Workers),
		"--data-dir", filepath.Join(dir, "data"),
		"--out-dir", filepath.Join(dir, "levels"),
		"--quality-rules", filepath.Join(dir, "quality.csv"),
		"--gapfill-rules", filepath.Join(dir, "gapfill.csv"),
	}

	var times []float64
	for range numRuns {
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		start := time.Now()

		cmd := exec.CommandContext(ctx, "strata", args...)
		cmd.Env = append(os.Environ(), "HOME="+dir)
		output, err := cmd.Output()
		if err == nil && isSuccess(output) {
			times = append(times, time.Since(start).Seconds())
		}
		cancel()
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// isSuccess checks if command output indicates successful completion
func isSuccess(output []byte) bool {
	outputStr := string(output)
	return strings.Contains(outputStr, "Run completed in") && strings.Contains(outputStr, "workers")
}

// generateWorkload writes raw tables and rule files for a workload.
func generateWorkload(dir string, wl Workload) error {
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o755); err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(uint64(wl.Rows), uint64(wl.Loggers)))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var quality, gapfill [][]string
	for l := range wl.Loggers {
		logger := fmt.Sprintf("CR%04d", l+1)
		header := []string{"timestamp"}
		for v := range wl.Variables {
			varname := fmt.Sprintf("AirTC_%d", v+1)
			header = append(header, varname)
			quality = append(quality,
				[]string{logger, "1", varname, "range_check", "min=-40", "max=60", "", "", "", "", "", "plausible range"},
				[]string{logger, "2", varname, "mask_by_comparison", "above", "45", "", "", "", "", "", "heat spikes"},
			)
			gapfill = append(gapfill, []string{logger, "1", varname, "", "", "interpolate", "", "", "", "", "", "short gaps"})
		}

		rows := [][]string{header}
		for i := range wl.Rows {
			row := []string{start.Add(time.Duration(i) * 30 * time.Minute).Format(time.DateTime)}
			for v := range wl.Variables {
				day := 2 * math.Pi * float64(i%48) / 48
				value := 10 + float64(v) + 8*math.Sin(day) + rng.NormFloat64()
				switch p := rng.Float64(); {
				case p < 0.01:
					row = append(row, "NA")
				case p < 0.015:
					row = append(row, "999")
				default:
					row = append(row, strconv.FormatFloat(value, 'f', 2, 64))
				}
			}
			rows = append(rows, row)
		}
		if err := writeCSV(filepath.Join(dir, "data", logger+".csv"), rows); err != nil {
			return err
		}
	}

	qualityHeader := []string{"logger", "flagnum", "varname", "q_func", "q_func_arg1", "q_func_arg2", "q_func_arg3", "q_func_arg4", "q_func_arg5", "startflag", "endflag", "description"}
	gapfillHeader := []string{"logger", "flagnum", "varname", "src_level", "src_varname", "gf_func", "startflag", "endflag", "startfit", "endfit", "gf_kwargs", "description"}
	if err := writeCSV(filepath.Join(dir, "quality.csv"), append([][]string{qualityHeader}, quality...)); err != nil {
		return err
	}
	return writeCSV(filepath.Join(dir, "gapfill.csv"), append([][]string{gapfillHeader}, gapfill...))
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(file)
	if err := writer.WriteAll(rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("strata_benchmark_%s.csv", timestamp))

	rows := [][]string{{"workload", "cmd", "no_cache_avg", "cold_time", "warm_avg"}}
	for _, result := range results {
		rows = append(rows, []string{result.Workload, result.Command, result.NoCacheTime, result.ColdTime, result.WarmTime})
	}
	if err := writeCSV(filename, rows); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, result := range results {
		fmt.Printf("  %-8s: No-cache: %s, Cold: %s, Warm: %s\n", result.Workload, result.NoCacheTime, result.ColdTime, result.WarmTime)
	}
}
