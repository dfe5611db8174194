package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tempo/internal/core"
)

var sectionCmd = &cobra.Command{
	Use:     "section",
	Aliases: []string{"sec"},
	Short:   "Manage time sections",
}

var sectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sections starting within a time range",
	Long: `List sections whose start time lies in [--from, --to].

Examples:
  tempo-cli section list --from 2024-02-01 --to "2024-02-07 23:59"
  tempo-cli section list --from 2024-02-01 --to 2024-03-01 --category 5f0c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, cat, err := rangeFlags(cmd)
		if err != nil {
			return err
		}
		secs, err := svc.ListSectionsByRange(cmd.Context(), ownerID, from, to, cat)
		if err != nil {
			return err
		}
		return printSections(cmd.OutOrStdout(), secs, loc)
	},
}

var sectionMonthCmd = &cobra.Command{
	Use:   "month <YYYY-MM>",
	Short: "List the sections of a calendar month",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, month, err := parseMonth(args[0])
		if err != nil {
			return err
		}
		secs, err := svc.ListSectionsByMonth(cmd.Context(), ownerID, year, month)
		if err != nil {
			return err
		}
		return printSections(cmd.OutOrStdout(), secs, loc)
	},
}

var sectionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Record a time section",
	Long: `Record a time section in an owned category.

Examples:
  tempo-cli section create --category 5f0c... --start "2024-02-01 09:00" --end "2024-02-01 12:30" --title standup`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		categoryID, _ := f.GetString("category")
		startStr, _ := f.GetString("start")
		endStr, _ := f.GetString("end")
		if categoryID == "" || startStr == "" || endStr == "" {
			return errors.New("--category, --start and --end are required")
		}
		start, err := parseTime(startStr, loc)
		if err != nil {
			return err
		}
		end, err := parseTime(endStr, loc)
		if err != nil {
			return err
		}

		n := core.NewSection{
			OwnerID:    ownerID,
			CategoryID: categoryID,
			StartTime:  start,
			EndTime:    end,
		}
		if f.Changed("title") {
			title, _ := f.GetString("title")
			n.Title = &title
		}
		id, err := svc.CreateSection(cmd.Context(), n)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var sectionUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a section; only the flags given are changed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ownSection(cmd, args[0]); err != nil {
			return err
		}

		f := cmd.Flags()
		var patch core.SectionPatch
		if f.Changed("category") {
			id, _ := f.GetString("category")
			if err := ownCategory(cmd, id); err != nil {
				return fmt.Errorf("%w: %v", core.ErrInvalidCategory, err)
			}
			patch.CategoryID = &id
		}
		if f.Changed("title") {
			title, _ := f.GetString("title")
			patch.Title = &title
		}
		for _, name := range []string{"start", "end"} {
			if !f.Changed(name) {
				continue
			}
			raw, _ := f.GetString(name)
			ms, err := parseTime(raw, loc)
			if err != nil {
				return err
			}
			if name == "start" {
				patch.StartTime = &ms
			} else {
				patch.EndTime = &ms
			}
		}
		return svc.UpdateSection(cmd.Context(), args[0], patch)
	},
}

var sectionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a section",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ownSection(cmd, args[0]); err != nil {
			return err
		}
		return svc.DeleteSection(cmd.Context(), args[0])
	},
}

func ownSection(cmd *cobra.Command, id string) error {
	s, err := svc.GetSection(cmd.Context(), id)
	if err != nil {
		return err
	}
	if s.OwnerID != ownerID {
		return fmt.Errorf("section %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// rangeFlags reads --from, --to and the optional --category.
func rangeFlags(cmd *cobra.Command) (from, to int64, categoryID *string, err error) {
	f := cmd.Flags()
	fromStr, _ := f.GetString("from")
	toStr, _ := f.GetString("to")
	if fromStr == "" || toStr == "" {
		return 0, 0, nil, errors.New("--from and --to are required")
	}
	if from, err = parseTime(fromStr, loc); err != nil {
		return 0, 0, nil, err
	}
	if to, err = parseTime(toStr, loc); err != nil {
		return 0, 0, nil, err
	}
	if c, _ := f.GetString("category"); strings.TrimSpace(c) != "" {
		categoryID = &c
	}
	return from, to, categoryID, nil
}

func addRangeFlags(c *cobra.Command) {
	c.Flags().String("from", "", "range start (inclusive)")
	c.Flags().String("to", "", "range end (inclusive)")
	c.Flags().String("category", "", "only this category")
}

func init() {
	rootCmd.AddCommand(sectionCmd)
	sectionCmd.AddCommand(sectionListCmd, sectionMonthCmd, sectionCreateCmd, sectionUpdateCmd, sectionDeleteCmd)

	addRangeFlags(sectionListCmd)
	for _, c := range []*cobra.Command{sectionCreateCmd, sectionUpdateCmd} {
		c.Flags().String("category", "", "category id")
		c.Flags().String("start", "", "start time")
		c.Flags().String("end", "", "end time")
		c.Flags().String("title", "", "optional title")
	}
}
