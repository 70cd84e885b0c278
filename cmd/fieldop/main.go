package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/fieldop/internal/cli"
)

// main is the entrypoint for the fieldop command.
func main() {
	// Commands build their own loggers; this one covers anything before that.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(context.Background(), os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Error())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}

func run(ctx context.Context, args []string) error {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}
