package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"soc-log-pipeline/config"
	"soc-log-pipeline/internal/archive"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dir string
	var asJSON bool

	cmd := &cobra.Command{
		Use:           "verify",
		Short:         "Recompute integrity hashes of every archived log event",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				zerolog.SetGlobalLevel(zerolog.WarnLevel)
				cfg, err := config.NewConfig()
				if err != nil {
					return err
				}
				dir = cfg.Watcher.ArchiveDir
			}
			report, err := archive.New(dir).Verify()
			if err != nil {
				log.Error().Err(err).Str("dir", dir).Msg("Verification failed")
				return err
			}
			if err := printReport(cmd, report, asJSON); err != nil {
				return err
			}
			if !report.OK() {
				return fmt.Errorf("%d tampered records, %d unreadable files", len(report.Tampered), len(report.Errors))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "archive directory (defaults to ARCHIVE_DIR)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printReport(cmd *cobra.Command, report archive.Report, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprintf(out, "files: %d  records: %d  tampered: %d\n", report.Files, report.Records, len(report.Tampered))
	for _, t := range report.Tampered {
		fmt.Fprintf(out, "TAMPERED %s[%d] event=%s stored=%s expected=%s\n", t.File, t.Index, t.EventID, t.Stored, t.Expected)
	}
	for _, e := range report.Errors {
		fmt.Fprintf(out, "ERROR %s\n", e)
	}
	return nil
}
