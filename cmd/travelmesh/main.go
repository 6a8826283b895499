// Command travelmesh runs the travel planning assistant as an interactive
// chat, as an HTTP server, or exports a stored trip.
//
// Usage:
//
//	travelmesh [-config travel.yaml] chat [-session id]
//	travelmesh [-config travel.yaml] serve [-addr :8080]
//	travelmesh [-config travel.yaml] export -session id [-format markdown|yaml] [-out file]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"

	"github.com/hupe1980/travelmesh/config"
	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/server"
	"github.com/hupe1980/travelmesh/travel"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		ancli.PrintErr(fmt.Sprintf("travelmesh: %v\n", err))
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	global := flag.NewFlagSet("travelmesh", flag.ContinueOnError)
	configPath := global.String("config", "", "optional YAML configuration file")
	if err := global.Parse(args); err != nil {
		return err
	}

	cmd, rest := "chat", global.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "chat":
		return chat(ctx, cfg, rest, stdin, stdout)
	case "serve":
		return serve(ctx, cfg, rest)
	case "export":
		return export(ctx, cfg, rest, stdout)
	default:
		return fmt.Errorf("unknown command %q (use chat, serve or export)", cmd)
	}
}

func chat(ctx context.Context, cfg *config.Config, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	sessionID := fs.String("session", "", "session to continue (a new one by default)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := travel.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if *sessionID == "" {
		if *sessionID, err = app.NewSession(); err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "Sesión %s. Escribe 'salir' para terminar.\n", *sessionID)

	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			return scanner.Err()
		}

		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
			continue
		case "salir", "exit", "quit":
			return nil
		}

		if err := turn(ctx, app, *sessionID, text, stdout); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			ancli.PrintErr(fmt.Sprintf("%v\n", err))
		}
	}
}

// turn sends one message and prints the run as it happens.
func turn(ctx context.Context, app *travel.App, sessionID, text string, stdout io.Writer) error {
	_, events, errs, err := app.Runner.Run(ctx, sessionID, core.NewTextContent(core.RoleUser, text))
	if err != nil {
		return err
	}

	streaming := false
	for ev := range events {
		switch {
		case ev.IsPartial():
			if !streaming {
				fmt.Fprintf(stdout, "[%s] ", ev.Author)
				streaming = true
			}
			fmt.Fprint(stdout, ev.Text())
		case ev.ErrorCode != nil:
			// reported through errs
		default:
			for _, fc := range ev.GetFunctionCalls() {
				fmt.Fprintf(stdout, "  · %s llama a %s\n", ev.Author, fc.Name)
			}
			if t := ev.Text(); t != "" {
				if streaming {
					fmt.Fprintln(stdout)
					streaming = false
				} else {
					fmt.Fprintf(stdout, "[%s] %s\n", ev.Author, t)
				}
			}
		}
	}

	return <-errs
}

func serve(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", cfg.HTTPAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := travel.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return server.New(app).ListenAndServe(ctx, *addr)
}

func export(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	sessionID := fs.String("session", "", "session to export (required)")
	format := fs.String("format", travel.FormatMarkdown, "markdown or yaml")
	out := fs.String("out", "", "output file (stdout by default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sessionID == "" {
		return errors.New("export: -session is required")
	}

	app, err := travel.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	_, data, err := app.Export(*sessionID, *format)
	if err != nil {
		return err
	}

	if *out == "" {
		_, err = stdout.Write(data)
		return err
	}

	return os.WriteFile(*out, data, 0o644)
}
