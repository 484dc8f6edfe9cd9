package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Domenick1991/jcsyfill/internal/bootstrap"
	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/Domenick1991/jcsyfill/internal/render"
	"github.com/Domenick1991/jcsyfill/internal/service/processing"
	"github.com/spf13/cobra"
)

func newProcessCmd(flags *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Process a JCSY list file and write the annotated list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = processedPath(args[0])
			}

			progress := processing.WithProgress(func(done, total int, row domain.QueryFlight) {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s %s\n", done, total, row.FlightCode(), row.Status)
			})
			return withApp(cmd, flags, func(app *bootstrap.App) error {
				out, err := app.Processor.Process(cmd.Context(), string(data))
				if err != nil {
					return err
				}
				if err := os.WriteFile(output, []byte(out.Text), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				render.Table(cmd.OutOrStdout(), out.List)
				for _, s := range out.Skips {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipped line %d: %s\n", s.Index+1, s.Reason)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "list %d: %d updated, %d without result, %d failed -> %s\n",
					out.List.ID, out.Updated, out.NoResult, out.Failed, output)
				return nil
			}, progress)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <file>_PROCESSED.TXT)")
	return cmd
}

// processedPath turns "lists/JCSY.TXT" into "lists/JCSY_PROCESSED.TXT".
func processedPath(input string) string {
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(input, ext)
	return base + "_PROCESSED.TXT"
}
