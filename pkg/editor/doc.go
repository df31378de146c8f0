// Package editor implements the auto-save editing session for a single note.
//
// A Session owns a form (title, content, category), a debounced writer and an
// IdentityTracker. Blurring a field schedules a save; once the delay passes the
// session creates the note on the first successful save and updates it on
// every save after that. Done saves immediately and closes. Close drops any
// pending save unless the session was built WithFlushOnClose.
//
//	s := editor.NewSession(store, editor.WithLogger(logger))
//	_ = s.Open(ctx, nil)
//	s.SetTitle("Groceries")
//	s.OnFieldBlur()     // create fires after 500ms
//	_ = s.OnDone(ctx)   // immediate save, then close
package editor
