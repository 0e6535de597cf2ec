package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/docuflow/content-migrator/internal/cmd/migrate"
	"github.com/docuflow/content-migrator/internal/cmd/run"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "content-migrator",
		Usage: "Migrate legacy attachments and notes to content documents",
		Commands: []*cli.Command{
			run.Command(),
			migrate.Command(),
		},
	}
	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
