package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"betledger/cmd"
	"betledger/database"

	log "github.com/sirupsen/logrus"
)

const usage = "usage: betledger [migrate up|down [steps]|status]"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.WithError(err).Fatal("betledger exited with error")
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return cmd.Run(ctx)
	}
	if args[0] != "migrate" {
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
	return migrate(args[1:])
}

func migrate(args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(args) > 1 {
			steps = args[1]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command %q\n%s", args[0], usage)
	}
}
