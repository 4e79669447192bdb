package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omni-inspector/photoproof/internal/forensic"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		threshold  float64
		jsonOutput bool
		outputPath string
	)
	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Analyze a single image for authenticity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzer, err := forensic.NewAnalyzer(threshold, forensic.DefaultMaxPixels)
			if err != nil {
				return err
			}
			result := analyzer.AnalyzeFile(args[0])
			if outputPath != "" {
				if err := writeResultFile(outputPath, &result); err != nil {
					return err
				}
			}
			if jsonOutput {
				if err := printResultJSON(cmd, &result); err != nil {
					return err
				}
			} else {
				printReport(cmd, args[0], &result)
			}
			if !result.Authentic {
				return fmt.Errorf("image rejected: %s", rejectionText(&result))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", forensic.DefaultELAThreshold, "ELA tampering threshold, strictly between 0 and 1")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw result document instead of the report")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Also write the result document to a file")
	return cmd
}

func writeResultFile(path string, result *forensic.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func printResultJSON(cmd *cobra.Command, result *forensic.Result) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func rejectionText(result *forensic.Result) string {
	if result.RejectionReason != nil {
		return *result.RejectionReason
	}
	return "unknown reason"
}

func printReport(cmd *cobra.Command, path string, result *forensic.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Forensic report: %s\n", path)
	fmt.Fprintln(out, strings.Repeat("-", 40))
	verdict := "AUTHENTIC"
	if !result.Authentic {
		verdict = "REJECTED"
	}
	fmt.Fprintf(out, "Verdict:        %s\n", verdict)
	if result.RejectionReason != nil {
		fmt.Fprintf(out, "Reason:         %s\n", *result.RejectionReason)
	}
	if result.FileHash != "" {
		fmt.Fprintf(out, "Hash:           %s\n", result.FileHash)
	}
	if result.FileSize > 0 {
		fmt.Fprintf(out, "Size:           %d bytes\n", result.FileSize)
	}
	if result.Dimensions.Width > 0 {
		fmt.Fprintf(out, "Dimensions:     %dx%d\n", result.Dimensions.Width, result.Dimensions.Height)
	}
	if cam := cameraText(result.Camera); cam != "" {
		fmt.Fprintf(out, "Camera:         %s\n", cam)
	}
	if result.GPS.Valid() {
		fmt.Fprintf(out, "GPS:            %.6f, %.6f\n", *result.GPS.Latitude, *result.GPS.Longitude)
	}
	if result.Timestamp.Original != nil {
		fmt.Fprintf(out, "Captured:       %s\n", result.Timestamp.Original.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(out, "ELA score:      %.3f (confidence %.2f)\n", result.Tampering.ELAScore, result.Tampering.Confidence)
	if len(result.Tampering.SuspiciousRegions) > 0 {
		for _, region := range result.Tampering.SuspiciousRegions {
			fmt.Fprintf(out, "Suspicious:     region at (%d,%d) size %dx%d\n", region.X, region.Y, region.Width, region.Height)
		}
	}
}

func cameraText(cam forensic.CameraInfo) string {
	var parts []string
	if cam.Make != nil {
		parts = append(parts, *cam.Make)
	}
	if cam.Model != nil {
		parts = append(parts, *cam.Model)
	}
	if cam.Lens != nil {
		parts = append(parts, *cam.Lens)
	}
	return strings.Join(parts, " ")
}
