package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var categoriesJSON bool

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories with your note counts",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cats, err := newClient().ListCategories(context.Background())
		if err != nil {
			fatal("Error listing categories", err)
		}
		if categoriesJSON {
			printJSON(cats)
			return
		}
		for _, c := range cats {
			fmt.Printf("%d\t%s %s\t%d\n", c.ID, swatch(c.ColorHex), c.Name, c.NoteCount)
		}
	},
}

// swatch renders a colored dot; lipgloss drops the color when stdout is not a terminal.
func swatch(hex string) string {
	if hex == "" {
		return "●"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render("●")
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
	categoriesCmd.Flags().BoolVar(&categoriesJSON, "json", false, "Output in JSON format")
}
