package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/joho/godotenv"

	"github.com/go-authgate/catalog-admin/api"
	"github.com/go-authgate/catalog-admin/tui"
)

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg, args, err := loadConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if isPlainHTTP(cfg.ServerURL) {
		fmt.Fprintln(
			os.Stderr,
			"⚠️  WARNING: Using HTTP instead of HTTPS. Tokens will be transmitted in plaintext!",
		)
		fmt.Fprintln(os.Stderr)
	}

	transport, err := newTransport()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if isTTY() {
		// Run TUI program on stderr so stdout pipes are not corrupted
		m := tui.NewModel()
		// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
		// capability queries (?2026/?2027). Ctrl+C is handled by signal.NotifyContext.
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		d := tui.NewProgramDisplayer(p)
		d.Banner()
		// log lines would tear the TUI frame
		runErr := run(ctx, cfg, args, transport, d, io.Discard)
		p.Quit() // let BubbleTea drain terminal query responses before exiting
		wg.Wait()
		if runErr != nil {
			stop()
			os.Exit(1)
		}
	} else {
		d := tui.NewPlainDisplayer(os.Stderr)
		d.Banner()
		if err := run(ctx, cfg, args, transport, d, os.Stderr); err != nil {
			stop()
			os.Exit(1)
		}
	}
}

// run builds the app and executes one command. Failures are reported
// through d before they are returned.
func run(
	ctx context.Context,
	cfg *config,
	args []string,
	transport api.Transport,
	d tui.Displayer,
	logOutput io.Writer,
) error {
	log, err := newLogger(logOutput, cfg.LogLevel)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(cfg, transport, d, log)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer a.close()

	if err := a.dispatch(ctx, args); err != nil {
		log.Debugw("command failed", "command", args[0], "error", err)
		d.Fatal(describe(err))
		return err
	}
	return nil
}
