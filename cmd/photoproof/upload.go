package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/omni-inspector/photoproof/internal/config"
	"github.com/omni-inspector/photoproof/internal/forensic"
	"github.com/omni-inspector/photoproof/internal/s3storage"
)

func newUploadCmd() *cobra.Command {
	var (
		threshold   float64
		caseID      string
		inspectorID string
		bucket      string
	)
	cmd := &cobra.Command{
		Use:   "upload <image>",
		Short: "Analyze an image and push accepted evidence to object storage",
		Long: `upload analyzes the image locally and, when the verdict is authentic, stores
the original plus its forensic report under an immutable evidence key. Rejected
images are never uploaded. Storage credentials come from the PHOTOPROOF_S3_*
environment variables.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if caseID == "" {
				return fmt.Errorf("--case-id is required")
			}

			analyzer, err := forensic.NewAnalyzer(threshold, forensic.DefaultMaxPixels)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			result := analyzer.AnalyzeBytes(data)
			if !result.Authentic {
				return fmt.Errorf("refusing to upload rejected image: %s", rejectionText(&result))
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if bucket != "" {
				cfg.EvidenceBucket = bucket
			}
			store, err := s3storage.New(cfg)
			if err != nil {
				return fmt.Errorf("init storage: %w", err)
			}
			if err := store.EnsureBuckets(ctx); err != nil {
				return fmt.Errorf("ensure buckets: %w", err)
			}

			fileName := filepath.Base(args[0])
			objectKey := s3storage.EvidenceKey(caseID, fileName, time.Now())
			contentType := http.DetectContentType(data)
			if err := store.UploadEvidence(ctx, objectKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
				return fmt.Errorf("upload evidence: %w", err)
			}

			report := struct {
				CaseID      string           `json:"case_id"`
				InspectorID string           `json:"inspector_id,omitempty"`
				FileName    string           `json:"file_name"`
				UploadedAt  time.Time        `json:"uploaded_at"`
				Result      *forensic.Result `json:"result"`
			}{
				CaseID:      caseID,
				InspectorID: inspectorID,
				FileName:    fileName,
				UploadedAt:  time.Now().UTC(),
				Result:      &result,
			}
			reportJSON, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			reportKey := s3storage.ReportKey(objectKey)
			if err := store.UploadReport(ctx, reportKey, reportJSON); err != nil {
				return fmt.Errorf("upload report: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "evidence: %s\n", objectKey)
			fmt.Fprintf(out, "report:   %s\n", reportKey)
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", forensic.DefaultELAThreshold, "ELA tampering threshold, strictly between 0 and 1")
	cmd.Flags().StringVar(&caseID, "case-id", "", "Case identifier the evidence belongs to")
	cmd.Flags().StringVar(&inspectorID, "inspector-id", "", "Identifier of the submitting inspector")
	cmd.Flags().StringVar(&bucket, "bucket", "", "Override the evidence bucket")
	return cmd
}
