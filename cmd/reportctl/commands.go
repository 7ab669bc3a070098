package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	reportapp "github.com/possales/backend/internal/application/report"
	"github.com/possales/backend/internal/domain/report"
	"github.com/spf13/cobra"
)

const commandTimeout = 10 * time.Minute

func newRootCmd(open runtimeFactory) *cobra.Command {
	root := &cobra.Command{
		Use:          "reportctl",
		Short:        "Generate POS sales reports from the command line",
		SilenceUsage: true,
	}
	root.AddCommand(newGenerateCmd(open), newWindowCmd(open))
	return root
}

type generateCmd struct {
	open runtimeFactory
	date string
	full bool
}

func newGenerateCmd(open runtimeFactory) *cobra.Command {
	gc := &generateCmd{open: open}
	cmd := &cobra.Command{
		Use:       "generate <" + strings.Join(kindNames(), "|") + ">",
		Short:     "Regenerate one report and print its rows as JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: kindNames(),
		RunE:      gc.run,
	}
	cmd.Flags().StringVar(&gc.date, "date", "", "Reference date (YYYY-MM-DD), defaults to today in the report time zone")
	cmd.Flags().BoolVar(&gc.full, "full", false, "Regenerate every window, or all history for criteria reports")
	return cmd
}

func (gc *generateCmd) run(cmd *cobra.Command, args []string) error {
	kind, err := report.ParseKind(args[0])
	if err != nil {
		return err
	}
	req := reportapp.Request{Kind: kind, Full: reportapp.DefaultFull(kind)}
	if cmd.Flags().Changed("full") {
		req.Full = gc.full
	}
	if gc.date != "" {
		if req.Reference, err = report.ParseDate(gc.date); err != nil {
			return err
		}
	}

	rt, err := gc.open(true)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer rt.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	result, err := rt.generator.Generate(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

type windowCmd struct {
	open runtimeFactory
	date string
}

func newWindowCmd(open runtimeFactory) *cobra.Command {
	wc := &windowCmd{open: open}
	cmd := &cobra.Command{
		Use:   "window <" + strings.Join(kindNames(), "|") + ">",
		Short: "Print the window a report covers on a date without generating it",
		Args:  cobra.ExactArgs(1),
		RunE:  wc.run,
	}
	cmd.Flags().StringVar(&wc.date, "date", "", "Reference date (YYYY-MM-DD), defaults to today in the report time zone")
	return cmd
}

// windowOutput mirrors the HTTP window response
type windowOutput struct {
	ReportType string `json:"report_type"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Days       int    `json:"days"`
}

func (wc *windowCmd) run(cmd *cobra.Command, args []string) error {
	kind, err := report.ParseKind(args[0])
	if err != nil {
		return err
	}

	var reference time.Time
	if wc.date != "" {
		if reference, err = report.ParseDate(wc.date); err != nil {
			return err
		}
	} else {
		rt, err := wc.open(false)
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		defer rt.close()
		reference = rt.today()
	}

	window, err := report.ResolveWindow(kind.ReportType(), reference)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), windowOutput{
		ReportType: string(kind.ReportType()),
		StartDate:  window.Start.Format(report.DateLayout),
		EndDate:    window.End.Format(report.DateLayout),
		Days:       window.Days(),
	})
}

func kindNames() []string {
	names := make([]string, 0, len(report.AllKinds))
	for _, k := range report.AllKinds {
		names = append(names, string(k))
	}
	return names
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
