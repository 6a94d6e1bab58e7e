package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	reportsvc "farmreport/services/report-svc"
	"farmreport/services/report-svc/internal/domain"
)

type exportFlags struct {
	format  string
	outDir  string
	groupBy string
	search  string
	filters []string
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	ef := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export <property|herd|producer|production_unit>",
		Short: "Export a report to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := ef.request()
			if err != nil {
				return err
			}

			cfg, err := flags.load()
			if err != nil {
				return err
			}

			app, err := reportsvc.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			rt, _ := domain.ParseReportType(args[0])
			artifact, err := app.Service.ExportReport(cmd.Context(), rt, req)
			if err != nil {
				return err
			}
			defer artifact.Close()

			path, err := saveArtifact(artifact.WriteTo, ef.outDir, artifact.Filename)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d registros, %d bytes)\n", path, artifact.Records, artifact.Size)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&ef.format, "format", "f", "", "xlsx, csv or pdf (default pdf)")
	f.StringVarP(&ef.outDir, "out", "o", ".", "output directory")
	f.StringVar(&ef.groupBy, "group-by", "", "grouping dimension")
	f.StringVar(&ef.search, "search", "", "substring search")
	f.StringArrayVar(&ef.filters, "filter", nil, "exact filter key=value, repeatable")
	return cmd
}

func (ef *exportFlags) request() (domain.ReportRequest, error) {
	filters := make(domain.Filters)
	for _, kv := range ef.filters {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return domain.ReportRequest{}, fmt.Errorf("invalid filter %q, expected key=value", kv)
		}
		filters[strings.TrimSpace(key)] = value
	}
	if ef.search != "" {
		filters[domain.FilterSearch] = ef.search
	}

	return domain.ReportRequest{
		Format:  domain.ParseFormat(ef.format),
		Filters: filters,
		GroupBy: ef.groupBy,
	}, nil
}

// saveArtifact копирует временный файл в каталог назначения
func saveArtifact(write func(w io.Writer) (int64, error), dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	if _, err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close output file: %w", err)
	}
	return path, nil
}
