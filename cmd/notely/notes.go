package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/aretw0/notely/pkg/core"
)

var (
	notesJSON     bool
	notesCategory int64
	showRaw       bool
	createTitle   string
	createContent string
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Work with notes on the server",
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your notes, most recently updated first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		notes, err := newClient().ListNotes(context.Background(), notesCategory)
		if err != nil {
			fatal("Error listing notes", err)
		}
		if notesJSON {
			printJSON(notes)
			return
		}
		for _, n := range notes {
			category := ""
			if n.CategoryDetail != nil {
				category = swatch(n.CategoryDetail.ColorHex) + " " + n.CategoryDetail.Name
			}
			fmt.Printf("%d\t%s\t%s\t%s\n", n.ID, n.UpdatedAt.Local().Format("Jan 2 15:04"), n.Title, category)
		}
	},
}

var notesShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a note",
	Long:  `Show a note rendered as markdown. Use --raw for the stored text or --json for the record.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		n, err := newClient().GetNote(context.Background(), parseID(args[0]))
		if err != nil {
			fatal("Error reading note", err)
		}
		switch {
		case notesJSON:
			printJSON(n)
		case showRaw:
			fmt.Print(n.Content)
		default:
			out, err := renderNote(n)
			if err != nil {
				fatal("Error rendering note", err)
			}
			fmt.Print(out)
		}
	},
}

var notesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a note",
	Long:  `Create a note. Without --content the body is read from stdin.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		content := createContent
		if !cmd.Flags().Changed("content") {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fatal("Failed to read content", err)
			}
			content = string(data)
		}
		n, err := newClient().CreateNote(context.Background(), core.NoteInput{
			Title:      createTitle,
			Content:    content,
			CategoryID: notesCategory,
		})
		if err != nil {
			fatal("Error creating note", describe(err))
		}
		if notesJSON {
			printJSON(n)
			return
		}
		fmt.Printf("Created note %d\n", n.ID)
	},
}

var notesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseID(args[0])
		if err := newClient().DeleteNote(context.Background(), id); err != nil {
			fatal("Error deleting note", err)
		}
		fmt.Printf("Deleted note %d\n", id)
	},
}

func renderNote(n core.Note) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return "", err
	}
	return r.Render("# " + n.Title + "\n\n" + n.Content)
}

func init() {
	rootCmd.AddCommand(notesCmd)
	notesCmd.AddCommand(notesListCmd, notesShowCmd, notesCreateCmd, notesDeleteCmd)
	notesCmd.PersistentFlags().BoolVar(&notesJSON, "json", false, "Output in JSON format")

	notesListCmd.Flags().Int64Var(&notesCategory, "category", 0, "Only notes in this category")
	notesShowCmd.Flags().BoolVar(&showRaw, "raw", false, "Print the stored markdown")

	notesCreateCmd.Flags().StringVar(&createTitle, "title", "", "Note title")
	notesCreateCmd.Flags().StringVar(&createContent, "content", "", "Note body")
	notesCreateCmd.Flags().Int64Var(&notesCategory, "category", 0, "Category id")
	_ = notesCreateCmd.MarkFlagRequired("title")
	_ = notesCreateCmd.MarkFlagRequired("category")
}
