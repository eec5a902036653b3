package cli

import (
	"context"
	"fmt"
	"os"

	"listvault/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a name, email, and password and creates an account.
// A successful registration leaves the session authenticated with the key
// armed, so the list is usable right away.
func (a *App) Register(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter name", os.Stdout)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.session.Register(ctx, name, email, string(password)); err != nil {
		return err
	}

	fmt.Println("Success!")
	a.engine.HandleReconnect(ctx)
	return nil
}

// Login prompts for credentials, authenticates, and triggers a drain and
// reconciliation so the list reflects the remote state.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.session.Login(ctx, email, string(password)); err != nil {
		return err
	}

	fmt.Println("Logged in.")
	a.engine.HandleReconnect(ctx)
	return nil
}

// Unlock re-derives the encryption key for a restored session. The password
// is validated locally against the stored verifier; no network is involved.
func (a *App) Unlock(ctx context.Context) error {
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ok, err := a.session.RearmWithPassword(ctx, string(password))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Wrong password.")
		return nil
	}

	fmt.Println("Unlocked.")
	a.engine.HandleReconnect(ctx)
	return nil
}

// Logout clears the session and all local data.
func (a *App) Logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}
