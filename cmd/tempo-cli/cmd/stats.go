package cmd

import (
	"github.com/spf13/cobra"

	"tempo/internal/core"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize time per category",
	Long: `Summarize the sections in a range, or in a month with --month.

Examples:
  tempo-cli stats --month 2024-02
  tempo-cli stats --from 2024-02-01 --to 2024-02-29 --category 5f0c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			from, to int64
			cat      *string
			err      error
		)
		if month, _ := cmd.Flags().GetString("month"); month != "" {
			year, m, perr := parseMonth(month)
			if perr != nil {
				return perr
			}
			from, to = core.MonthRange(year, m, loc)
			if c, _ := cmd.Flags().GetString("category"); c != "" {
				cat = &c
			}
		} else if from, to, cat, err = rangeFlags(cmd); err != nil {
			return err
		}

		st, err := svc.GetStats(cmd.Context(), ownerID, from, to, cat)
		if err != nil {
			return err
		}
		return printStats(cmd.OutOrStdout(), st)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	addRangeFlags(statsCmd)
	statsCmd.Flags().String("month", "", "calendar month YYYY-MM, instead of --from/--to")
}
