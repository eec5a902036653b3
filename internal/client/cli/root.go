package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with
// a stub.
var printlnFn = fmt.Println

// commands is the surface the REPL dispatches to. The real App satisfies it;
// tests can provide a lightweight stub.
type commands interface {
	loggedIn() bool
	keyArmed() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Unlock(ctx context.Context) error
	List(ctx context.Context) error
	Add(ctx context.Context, title string) error
	Toggle(ctx context.Context, ref string) error
	Rename(ctx context.Context, ref, title string) error
	Delete(ctx context.Context, ref string) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	Logout(ctx context.Context) error
}

// Root runs the interactive shell until EOF or an exit command.
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to listvault (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}

func (a *App) getStatus() string {
	parts := []string{}
	if user := a.session.User(); user.Email != "" {
		parts = append(parts, user.Email)
	}
	if a.loggedIn() && !a.keyArmed() {
		parts = append(parts, "locked")
	}
	if a.monitor.Online() {
		parts = append(parts, "online")
	} else {
		parts = append(parts, "offline")
	}
	if n := a.engine.PendingCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d pending", n))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// runREPL reads lines, parses the first token as the command, and dispatches
// to a. The loop exits on scanner EOF or an exit command. Handler errors are
// printed and the loop continues.
func runREPL(ctx context.Context, a commands, statusFn func() string, scanner *bufio.Scanner) {
	for {
		fmt.Printf("lv %s> ", statusFn())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			switch {
			case a.keyArmed():
				printlnFn("Available commands: (l)ist, add <title>, done <n>, rename <n> <title>, rm <n>, sync, status, logout, exit")
			case a.loggedIn():
				printlnFn("Available commands: unlock, status, logout, exit")
			default:
				printlnFn("Available commands: register, login, status, exit")
			}

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "unlock":
			err = a.Unlock(ctx)

		case "l", "list":
			err = a.List(ctx)

		case "add":
			if len(args) == 0 {
				printlnFn("Usage: add <title>")
				continue
			}
			err = a.Add(ctx, strings.Join(args, " "))

		case "done":
			if len(args) != 1 {
				printlnFn("Usage: done <n>")
				continue
			}
			err = a.Toggle(ctx, args[0])

		case "rename":
			if len(args) < 2 {
				printlnFn("Usage: rename <n> <title>")
				continue
			}
			err = a.Rename(ctx, args[0], strings.Join(args[1:], " "))

		case "rm", "delete":
			if len(args) != 1 {
				printlnFn("Usage: rm <n>")
				continue
			}
			err = a.Delete(ctx, args[0])

		case "sync":
			err = a.Sync(ctx)

		case "status":
			err = a.Status(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
