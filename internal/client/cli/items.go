package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"listvault/internal/common"
)

// List prints the visible records, numbered for use with done/rename/rm.
func (a *App) List(ctx context.Context) error {
	items := a.engine.Items()
	if len(items) == 0 {
		fmt.Println("Nothing here yet. Try: add <title>")
		return nil
	}

	for i, rec := range items {
		mark := " "
		if rec.Completed {
			mark = "x"
		}
		fmt.Printf("%3d [%s] %s\n", i+1, mark, rec.Title)
	}
	if n := a.engine.PendingCount(); n > 0 {
		fmt.Printf("(%d change(s) not yet synced)\n", n)
	}
	if err := a.engine.LastError(); err != nil {
		fmt.Println("Last sync error:", err.Error())
	}
	return nil
}

// Add creates a new entry.
func (a *App) Add(ctx context.Context, title string) error {
	rec, err := a.engine.Add(ctx, title)
	if err != nil {
		return err
	}
	fmt.Printf("Added %q\n", rec.Title)
	return nil
}

// Toggle flips an entry's completed mark.
func (a *App) Toggle(ctx context.Context, ref string) error {
	key, err := a.resolveKey(ref)
	if err != nil {
		return err
	}
	return a.engine.Toggle(ctx, key)
}

// Rename changes an entry's title.
func (a *App) Rename(ctx context.Context, ref, title string) error {
	key, err := a.resolveKey(ref)
	if err != nil {
		return err
	}
	return a.engine.Rename(ctx, key, title)
}

// Delete removes an entry.
func (a *App) Delete(ctx context.Context, ref string) error {
	key, err := a.resolveKey(ref)
	if err != nil {
		return err
	}
	return a.engine.Delete(ctx, key)
}

// Sync pushes queued changes and reconciles with the remote state.
func (a *App) Sync(ctx context.Context) error {
	processed, err := a.engine.Drain(ctx)
	if err != nil {
		return err
	}
	if err := a.engine.Refresh(ctx); err != nil {
		return err
	}
	fmt.Printf("Synced: %d change(s) pushed, %d pending\n", processed, a.engine.PendingCount())
	return nil
}

// Status prints the session and connectivity summary.
func (a *App) Status(ctx context.Context) error {
	fmt.Println("Session:", a.session.State().String())
	if user := a.session.User(); user.Email != "" {
		fmt.Println("User:   ", user.Email)
	}
	if a.monitor.Online() {
		fmt.Println("Network: online")
	} else {
		fmt.Println("Network: offline")
	}
	fmt.Println("Pending:", a.engine.PendingCount())
	if err := a.engine.LastError(); err != nil {
		fmt.Println("Error:  ", err.Error())
	}
	return nil
}

// resolveKey maps a user-supplied reference to a record key. A number picks
// the entry by its position in the last listing; anything else is matched as
// a key prefix.
func (a *App) resolveKey(ref string) (string, error) {
	items := a.engine.Items()

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(items) {
			return "", fmt.Errorf("no entry %d: %w", n, common.ErrNotFound)
		}
		return items[n-1].Key, nil
	}

	for _, rec := range items {
		if strings.HasPrefix(rec.Key, ref) {
			return rec.Key, nil
		}
	}
	return "", fmt.Errorf("no entry matching %q: %w", ref, common.ErrNotFound)
}
