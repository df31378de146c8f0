package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/notely"
	"github.com/aretw0/notely/pkg/core"
)

var seedReason = notely.FormatChangeReason("chore", "seed", "ensure default categories and demo user", "")

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default categories and the demo user",
	Long: `Ensure the default categories and the demo account exist in the
configured storage. Running it again is harmless; it resets the demo password.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc, err := openService(ctx, cfg.Server, notely.WithAutoInit(true))
		if err != nil {
			fatal("Failed to open storage", err)
		}
		defer notely.Release(svc.Repository())

		res, err := svc.Seed(notely.WithChangeReason(ctx, seedReason))
		if err != nil {
			fatal("Failed to seed", err)
		}
		for _, c := range res.Categories {
			fmt.Printf("category %d %s\n", c.ID, c.Name)
		}
		fmt.Printf("user %s (password %q)\n", res.User.Username, core.DemoPassword)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
