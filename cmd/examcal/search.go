package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"examcal/internal/model"
	"examcal/internal/sheet"
)

var (
	searchClass  string
	searchInput  string
	searchStrict bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Print the exams of a class as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := findExams(searchClass, searchInput, searchStrict || cfg.Spreadsheet.Strict)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchClass, "class", "", "administrative class id or student id")
	searchCmd.Flags().StringVar(&searchInput, "input", "", "spreadsheet to read instead of the configured one")
	searchCmd.Flags().BoolVar(&searchStrict, "strict", false, "match the class column only")
	_ = searchCmd.MarkFlagRequired("class")
}

// findExams validates the id, then reads either input or the configured
// spreadsheet.
func findExams(rawID, input string, strict bool) ([]model.ExamRecord, error) {
	classID, err := sheet.NormalizeClassID(rawID)
	if err != nil {
		return nil, err
	}
	ex, err := newExtractor(cfg)
	if err != nil {
		return nil, err
	}
	filter := sheet.Filter{ClassID: classID, Strict: strict}

	var records []model.ExamRecord
	if input != "" {
		table, err := sheet.ReadFile(input, sheet.ReadOptions{HeaderRow: cfg.Spreadsheet.HeaderRow})
		if err != nil {
			return nil, err
		}
		records = ex.Search(table, filter)
	} else {
		_, records, err = newRepository(cfg).Search(ex, filter)
		if err != nil {
			return nil, err
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no exams found for class %s", classID)
	}
	return records, nil
}
