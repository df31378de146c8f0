package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/notely"
	"github.com/aretw0/notely/pkg/client"
	"github.com/aretw0/notely/pkg/core"
)

// openService opens the configured storage directly, bypassing the API.
func openService(ctx context.Context, sc notely.ServerConfig, opts ...notely.Option) (*core.Service, error) {
	base := []notely.Option{
		notely.WithAdapter(sc.Adapter),
		notely.WithReadOnly(sc.ReadOnly),
		notely.WithLogger(slog.Default()),
	}
	if sc.Gitless {
		base = append(base, notely.WithVersioning(false))
	}
	return notely.New(ctx, sc.URI(), append(base, opts...)...)
}

func tokenPath() (string, error) {
	if cfg.Client.TokenPath != "" {
		return cfg.Client.TokenPath, nil
	}
	return client.DefaultTokenPath()
}

// newClient returns an API client carrying the saved session, if any.
func newClient() *client.Client {
	opts := []client.Option{client.WithLogger(slog.Default())}
	path, err := tokenPath()
	if err != nil {
		fatal("Failed to locate session file", err)
	}
	token, err := client.LoadToken(path)
	if err != nil {
		fatal("Failed to read session file", err)
	}
	if token != "" {
		opts = append(opts, client.WithToken(token))
	}
	return client.New(cfg.Client.BaseURL, opts...)
}

// saveSession persists the client's current token, removing it when empty.
func saveSession(c *client.Client) {
	path, err := tokenPath()
	if err != nil {
		fatal("Failed to locate session file", err)
	}
	if err := client.SaveToken(path, c.Token()); err != nil {
		fatal("Failed to write session file", err)
	}
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fatal("Error encoding JSON", err)
	}
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		fatal("Invalid id", fmt.Errorf("%q is not a positive integer", s))
	}
	return id
}

// readSecret returns flagValue or, when empty, the first line of r.
func readSecret(flagValue string, r io.Reader) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("no password given")
	}
	return line, nil
}

// describe turns API errors into a one-line message.
func describe(err error) error {
	if apiErr := client.AsAPIError(err); apiErr != nil && len(apiErr.Fields) > 0 {
		parts := make([]string, 0, len(apiErr.Fields))
		for field, msg := range apiErr.Fields {
			parts = append(parts, field+": "+msg)
		}
		sort.Strings(parts)
		return fmt.Errorf("%w (%s)", err, strings.Join(parts, "; "))
	}
	return err
}
