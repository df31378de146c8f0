package core

import (
	"context"
	"fmt"
)

// SeedCategory describes a category created by Seed.
type SeedCategory struct {
	Name     string
	ColorHex string
	Slug     string
}

// DefaultCategories are the categories every fresh install starts with.
var DefaultCategories = []SeedCategory{
	{Name: "Random Thoughts", ColorHex: "#FFB08F", Slug: "random-thoughts"},
	{Name: "School", ColorHex: "#FFD966", Slug: "school"},
	{Name: "Personal", ColorHex: "#7DD3C0", Slug: "personal"},
}

// Demo account created by Seed. Running Seed again resets its password.
const (
	DemoUsername = "demo"
	DemoPassword = "demo"
	DemoEmail    = "demo@example.com"
)

// SeedResult reports what Seed ensured.
type SeedResult struct {
	Categories []Category
	User       User
}

// Seed ensures the default categories and the demo user exist. It is idempotent.
func (s *Service) Seed(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	for _, sc := range DefaultCategories {
		c, err := s.EnsureCategory(ctx, sc.Name, sc.ColorHex, sc.Slug)
		if err != nil {
			return res, fmt.Errorf("failed to seed category %q: %w", sc.Name, err)
		}
		res.Categories = append(res.Categories, c)
	}

	u, err := s.EnsureUser(ctx, DemoUsername, DemoPassword, DemoEmail)
	if err != nil {
		return res, fmt.Errorf("failed to seed demo user: %w", err)
	}
	res.User = u

	s.logger.Info("seed complete", "categories", len(res.Categories), "user", u.Username)
	return res, nil
}
