package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/tutorbot/internal/excel"
	"github.com/example/tutorbot/internal/lessons"
	"github.com/example/tutorbot/pkg/models"
)

var (
	importOutput    string
	importSheet     string
	importPerLesson int
	importLevel     string
	importStartRow  int
)

func newImportLessonsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-lessons <file.xlsx|file.csv>",
		Short: "Build a lesson catalog from a vocabulary sheet",
		Long: "Reads words from an Excel or CSV sheet (word, translation, example, category, level) " +
			"and writes a TOML lesson catalog usable with LESSON_CATALOG.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := models.ParseLevel(importLevel)
			if err != nil {
				return err
			}
			cfg := excel.DefaultImportConfig()
			cfg.FilePath = args[0]
			cfg.SheetName = importSheet
			cfg.ExercisesPerLesson = importPerLesson
			cfg.DefaultLevel = level
			cfg.StartRow = importStartRow

			result, err := excel.ImportLessons(cfg)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if importOutput != "-" {
				if dir := filepath.Dir(importOutput); dir != "." {
					if err := os.MkdirAll(dir, 0755); err != nil {
						return err
					}
				}
				f, err := os.Create(importOutput)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			if err := lessons.Encode(out, result.Lessons); err != nil {
				return fmt.Errorf("failed to write catalog: %w", err)
			}

			report := cmd.ErrOrStderr()
			fmt.Fprintf(report, "Processed %d rows: %d words, %d skipped, %d lessons\n",
				result.TotalProcessed, result.Words, result.Skipped, len(result.Lessons))
			for _, e := range result.Errors {
				fmt.Fprintf(report, "  %s\n", e)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&importOutput, "output", "o", "lessons.toml", "catalog file to write, - for stdout")
	cmd.Flags().StringVar(&importSheet, "sheet", "Sheet1", "worksheet to read from Excel files")
	cmd.Flags().IntVar(&importPerLesson, "per-lesson", 5, "exercises per lesson")
	cmd.Flags().StringVar(&importLevel, "level", "basic", "level for rows without one")
	cmd.Flags().IntVar(&importStartRow, "start-row", 2, "first data row (1-based)")
	return cmd
}
