package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"examcal/internal/ics"
	appLog "examcal/internal/log"
	"examcal/internal/model"
)

var (
	genClass          string
	genInput          string
	genOutput         string
	genAlarm          time.Duration
	genIOS            bool
	genSkipIncomplete bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write the exams of a class to an ICS file",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := findExams(genClass, genInput, cfg.Spreadsheet.Strict)
		if err != nil {
			return err
		}
		if genSkipIncomplete {
			records = scheduledOnly(records)
			if len(records) == 0 {
				return fmt.Errorf("no exam of class %s has a complete date and time", genClass)
			}
		}

		lead := genAlarm
		if !cmd.Flags().Changed("alarm") {
			lead = cfg.BatchAlarmLead()
		}
		events, err := ics.Builder{AlarmLead: lead, Category: cfg.Calendar.Category}.BuildAll(records)
		if err != nil {
			return err
		}

		profile := ics.ProfileDefault
		if genIOS {
			profile = ics.ProfileIOS
		}
		enc := &ics.Encoder{
			ProductID:    cfg.Calendar.ProductID,
			IOSProductID: cfg.Calendar.IOSProductID,
			UIDDomain:    cfg.Calendar.UIDDomain,
		}
		doc, err := enc.Encode(events, profile)
		if err != nil {
			return err
		}

		if genOutput == "-" {
			_, err = cmd.OutOrStdout().Write(doc.Body)
			return err
		}
		if err := os.WriteFile(genOutput, doc.Body, 0o644); err != nil {
			return err
		}
		appLog.Info("calendar written", "path", genOutput, "events", doc.Events, "bytes", doc.ContentLength(), "profile", profile)
		return nil
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genClass, "class", "", "administrative class id or student id")
	f.StringVar(&genInput, "input", "", "spreadsheet to read instead of the configured one")
	f.StringVar(&genOutput, "output", "exams.ics", `output file, "-" for stdout`)
	f.DurationVar(&genAlarm, "alarm", ics.BatchAlarmLead, "reminder lead time")
	f.BoolVar(&genIOS, "ios", false, "encode for the iOS calendar")
	f.BoolVar(&genSkipIncomplete, "skip-incomplete", false, "drop exams without a full date and time instead of failing")
	_ = generateCmd.MarkFlagRequired("class")
}

func scheduledOnly(records []model.ExamRecord) []model.ExamRecord {
	out := records[:0]
	for _, r := range records {
		if r.HasSchedule() {
			out = append(out, r)
			continue
		}
		appLog.Warn("skipping exam without schedule", "course", r.CourseName)
	}
	return out
}
