// Package notely is the composition root of a small note-taking system.
//
// Notes belong to a user and a category and live in a pluggable store: a
// directory of Markdown files with YAML frontmatter (optionally versioned
// with git) or PostgreSQL. On top of the domain service sit a REST API, a
// Go client and a terminal editor that saves while you type.
//
// Packages:
//
//   - pkg/core: entities, validation and the Service.
//   - pkg/adapters/fs, pkg/adapters/postgres: storage.
//   - pkg/debounce: the trailing-edge debouncer behind auto-save.
//   - pkg/editor: the editor session (pending saves, note identity).
//   - pkg/api, pkg/client: the HTTP surface and its client.
//   - pkg/tui: the terminal UI.
//
// Usage:
//
//	svc, err := notely.New(ctx, "./vault",
//		notely.WithAutoInit(true),
//		notely.WithLogger(logger),
//	)
//
//	note, err := svc.CreateNote(ctx, userID, core.NoteInput{Title: "Hello", CategoryID: 1})
package notely
