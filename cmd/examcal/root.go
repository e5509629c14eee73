package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"examcal/internal/config"
	"examcal/internal/examtime"
	appLog "examcal/internal/log"
	"examcal/internal/sheet"
)

var (
	configPath string
	cfg        *config.Config
)

// rootCmd is the base command; it does nothing on its own.
var rootCmd = &cobra.Command{
	Use:   "examcal",
	Short: "Exam schedule spreadsheet to calendar converter",
	Long: `examcal reads an exam schedule spreadsheet, finds the exams of an
administrative class and exports them as an ICS calendar, either over HTTP
or from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", configPath, err)
		}
		cfg = c
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.AddCommand(serveCmd, searchCmd, generateCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newExtractor(c *config.Config) (*sheet.Extractor, error) {
	start, err := c.SemesterStart()
	if err != nil {
		return nil, err
	}
	return &sheet.Extractor{Parser: examtime.Parser{SemesterStart: start}}, nil
}

func newRepository(c *config.Config) *sheet.Repository {
	return sheet.NewRepository(c.Spreadsheet.Path, sheet.ReadOptions{HeaderRow: c.Spreadsheet.HeaderRow})
}
