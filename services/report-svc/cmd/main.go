package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"farmreport/pkg/config"
	"farmreport/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags флаги, общие для всех команд
type globalFlags struct {
	configPath  string
	logLevel    string
	dbDriver    string
	fixturePath string
}

// overrides переводит заданные флаги в ключи конфигурации
func (f *globalFlags) overrides() map[string]any {
	out := make(map[string]any)
	if f.logLevel != "" {
		out["log.level"] = f.logLevel
	}
	if f.dbDriver != "" {
		out["database.driver"] = f.dbDriver
	}
	if f.fixturePath != "" {
		out["database.fixture_path"] = f.fixturePath
	}
	return out
}

func (f *globalFlags) load() (*config.Config, error) {
	opts := []config.LoaderOption{config.WithOverrides(f.overrides())}
	if f.configPath != "" {
		opts = append(opts, config.WithConfigPaths(f.configPath))
	}

	loader := config.NewLoader(opts...)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		Service:    cfg.App.Name,
	})
	if loader.ConfigFile() == "" {
		logger.Log.Debug("No config file found, using defaults and environment")
	} else {
		logger.Log.Debug("Config loaded", "file", loader.ConfigFile())
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "report-svc",
		Short: "Relatórios de produtores, propriedades, rebanhos e unidades produtivas",
		Long: `report-svc serves and exports farm reports as XLSX, CSV (;) and PDF.

Examples:
  report-svc serve
  report-svc export herd --format csv --out ./out
  report-svc export herd --format xlsx --group-by especie
  report-svc migrate up
  report-svc cache forget dashboard`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to config.yaml")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&flags.dbDriver, "db-driver", "", "postgres or memory")
	pf.StringVar(&flags.fixturePath, "fixtures", "", "yaml fixtures for the memory driver")

	root.AddCommand(
		newServeCmd(flags),
		newExportCmd(flags),
		newMigrateCmd(flags),
		newCacheCmd(flags),
	)
	return root
}
