package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/internal/app"
	"github.com/Ramsey-B/clover/pkg/models"
)

type scanOptions struct {
	tenantID  string
	kind      string
	threshold int
	page      int
	pageSize  int
}

func scanCommand(s *settings) *cobra.Command {
	opts := scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a tenant for duplicate pairs and print them as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("threshold") {
				opts.threshold = s.cfg.DetectionDefaultThreshold
			}

			a, err := app.New(s.cfg)
			if err != nil {
				return err
			}
			if err := a.Start(cmd.Context()); err != nil {
				_ = a.Stop(context.Background())
				return err
			}
			defer a.Stop(context.Background())

			return runScan(cmd.Context(), a, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.tenantID, "tenant", "", "tenant to scan")
	cmd.Flags().StringVar(&opts.kind, "kind", string(models.EntityKindPerson), "person or organization")
	cmd.Flags().IntVar(&opts.threshold, "threshold", 0, "minimum score (0-100); defaults to DETECTION_DEFAULT_THRESHOLD")
	cmd.Flags().IntVar(&opts.page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 50, "pairs per page")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func runScan(ctx context.Context, a *app.App, opts scanOptions, out io.Writer) error {
	kind, err := models.ParseEntityKind(opts.kind)
	if err != nil {
		return err
	}

	result, err := a.Detector.ScanAllDuplicates(ctx, opts.tenantID, kind, opts.threshold, opts.page, opts.pageSize)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
