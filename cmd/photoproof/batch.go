package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/omni-inspector/photoproof/internal/forensic"
)

// batchEntry is one line of the batch summary document.
type batchEntry struct {
	File   string           `json:"file"`
	Result *forensic.Result `json:"result"`
}

type batchSummary struct {
	Directory string       `json:"directory"`
	StartedAt time.Time    `json:"started_at"`
	Duration  string       `json:"duration"`
	Total     int          `json:"total"`
	Authentic int          `json:"authentic"`
	Rejected  int          `json:"rejected"`
	Entries   []batchEntry `json:"entries"`
}

func newBatchCmd() *cobra.Command {
	var (
		threshold  float64
		workers    int
		outputPath string
	)
	cmd := &cobra.Command{
		Use:   "batch <directory>",
		Short: "Analyze every image in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzer, err := forensic.NewAnalyzer(threshold, forensic.DefaultMaxPixels)
			if err != nil {
				return err
			}
			if workers < 1 {
				workers = 1
			}
			files, err := imageFiles(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no images found in %s", args[0])
			}

			start := time.Now()
			entries := runBatch(analyzer, files, workers)

			summary := batchSummary{
				Directory: args[0],
				StartedAt: start.UTC(),
				Duration:  time.Since(start).Round(time.Millisecond).String(),
				Total:     len(entries),
				Entries:   entries,
			}
			out := cmd.OutOrStdout()
			for _, entry := range entries {
				if entry.Result.Authentic {
					summary.Authentic++
					fmt.Fprintf(out, "  ok      %s\n", entry.File)
				} else {
					summary.Rejected++
					fmt.Fprintf(out, "  reject  %s: %s\n", entry.File, rejectionText(entry.Result))
				}
			}
			fmt.Fprintf(out, "%d analyzed, %d authentic, %d rejected in %s\n",
				summary.Total, summary.Authentic, summary.Rejected, summary.Duration)
			if outputPath != "" {
				data, err := json.MarshalIndent(summary, "", "  ")
				if err != nil {
					return fmt.Errorf("encode summary: %w", err)
				}
				if err := os.WriteFile(outputPath, append(data, '\n'), 0o644); err != nil {
					return fmt.Errorf("write summary: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", forensic.DefaultELAThreshold, "ELA tampering threshold, strictly between 0 and 1")
	cmd.Flags().IntVar(&workers, "workers", 4, "Number of concurrent analyses")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the batch summary document to a file")
	return cmd
}

func imageFiles(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	var files []string
	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func runBatch(analyzer *forensic.Analyzer, files []string, workers int) []batchEntry {
	entries := make([]batchEntry, len(files))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				result := analyzer.AnalyzeFile(files[idx])
				entries[idx] = batchEntry{File: files[idx], Result: &result}
			}
		}()
	}
	for idx := range files {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
	return entries
}
