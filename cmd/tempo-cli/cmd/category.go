package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tempo/internal/core"
)

var (
	categoryColor   string
	categoryCascade bool
)

var categoryCmd = &cobra.Command{
	Use:     "category",
	Aliases: []string{"cat"},
	Short:   "Manage categories",
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the owner's categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		cats, err := svc.ListCategories(cmd.Context(), ownerID)
		if err != nil {
			return err
		}
		return printCategories(cmd.OutOrStdout(), cats)
	},
}

var categoryCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := svc.CreateCategory(cmd.Context(), ownerID, args[0], categoryColor)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var categoryUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Rename or recolor a category",
	Long: `Rename or recolor a category. Only the flags given are changed.

Examples:
  tempo-cli category update 5f0c... --name "Deep work"
  tempo-cli category update 5f0c... --color "#ff8800"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ownCategory(cmd, args[0]); err != nil {
			return err
		}
		var patch core.CategoryPatch
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			patch.Name = &name
		}
		if cmd.Flags().Changed("color") {
			patch.Color = &categoryColor
		}
		if patch.IsEmpty() {
			return errors.New("nothing to update (use --name or --color)")
		}
		return svc.UpdateCategory(cmd.Context(), args[0], patch)
	},
}

var categoryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a category",
	Long: `Delete a category. Its sections are kept with a dangling category
unless --cascade is given, which deletes them too.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ownCategory(cmd, args[0]); err != nil {
			return err
		}
		return svc.DeleteCategory(cmd.Context(), args[0], categoryCascade)
	},
}

func ownCategory(cmd *cobra.Command, id string) error {
	c, err := svc.GetCategory(cmd.Context(), id)
	if err != nil {
		return err
	}
	if c.OwnerID != ownerID {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(categoryCmd)
	categoryCmd.AddCommand(categoryListCmd, categoryCreateCmd, categoryUpdateCmd, categoryDeleteCmd)

	categoryCreateCmd.Flags().StringVar(&categoryColor, "color", "", "display color, usually #RRGGBB")
	categoryUpdateCmd.Flags().String("name", "", "new name")
	categoryUpdateCmd.Flags().StringVar(&categoryColor, "color", "", "new color")
	categoryDeleteCmd.Flags().BoolVar(&categoryCascade, "cascade", false, "also delete the category's sections")
}
