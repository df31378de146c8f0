// Package tui is the terminal front end: a category sidebar, the note list
// with a Markdown preview, and an editor that saves through an
// editor.Session while you type.
package tui
