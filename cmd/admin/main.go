// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"codeberg.org/oliverandrich/bankgate/internal/auth"
	"codeberg.org/oliverandrich/bankgate/internal/config"
	"codeberg.org/oliverandrich/bankgate/internal/database"
	"codeberg.org/oliverandrich/bankgate/internal/models"
	"codeberg.org/oliverandrich/bankgate/internal/repository"
	"codeberg.org/oliverandrich/bankgate/internal/services/access"
	"github.com/urfave/cli/v3"
)

// cliOperator is the audit identity for operations run from this tool.
var cliOperator = &auth.User{ID: "cli", Role: "admin"}

func main() {
	cmd := &cli.Command{
		Name:  "bankgate-admin",
		Usage: "Administrative operations for the banking data access service",
		Flags: config.Flags(),
		Commands: []*cli.Command{
			{
				Name:      "create-user",
				Usage:     "Create a user record",
				ArgsUsage: "<email>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "phone-prefix", Usage: "Phone country prefix, e.g. +49"},
					&cli.StringFlag{Name: "phone-number", Usage: "Phone number without prefix"},
					&cli.StringFlag{Name: "role", Value: "member", Usage: "User role"},
				},
				Action: createUser,
			},
			{
				Name:      "set-access-code",
				Usage:     "Set a permanent access code for a user",
				ArgsUsage: "<user-id> <code>",
				Action:    setAccessCode,
			},
			{
				Name:      "audit",
				Usage:     "Show recent audit entries for a user",
				ArgsUsage: "<user-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Number of entries to show"},
				},
				Action: showAudit,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func openRepo(cmd *cli.Command) (*repository.Repository, error) {
	cfg := config.NewFromCLI(cmd)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return repository.New(db), nil
}

func createUser(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: create-user <email>")
	}

	repo, err := openRepo(cmd)
	if err != nil {
		return err
	}
	defer repo.DB().Close()

	user := &models.User{
		Email:       cmd.Args().Get(0),
		PhonePrefix: cmd.String("phone-prefix"),
		PhoneNumber: cmd.String("phone-number"),
		Role:        cmd.String("role"),
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return err
	}

	fmt.Printf("created user %s\n", user.ID)
	return nil
}

func setAccessCode(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: set-access-code <user-id> <code>")
	}

	repo, err := openRepo(cmd)
	if err != nil {
		return err
	}
	defer repo.DB().Close()

	cfg := config.NewFromCLI(cmd)
	service := access.New(access.Config{
		Repo:       repo,
		AdminRoles: cfg.Access.AdminRoles,
	})

	ctx = auth.SetUser(ctx, cliOperator)
	if err := service.SetPermanentAccessCode(ctx, cmd.Args().Get(0), cmd.Args().Get(1)); err != nil {
		return err
	}

	fmt.Println("permanent access code set")
	return nil
}

func showAudit(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: audit <user-id>")
	}

	repo, err := openRepo(cmd)
	if err != nil {
		return err
	}
	defer repo.DB().Close()

	entries, err := repo.ListAuditEntries(ctx, cmd.Args().Get(0), int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	for _, entry := range entries {
		outcome := "denied"
		if entry.Success {
			outcome = "ok"
		}
		fmt.Printf("%s  %-25s %-15s %-6s by=%s src=%s\n",
			entry.CreatedAt.Format("2006-01-02 15:04:05"),
			entry.Action, entry.Method, outcome, entry.PerformedBy, entry.SourceAddress)
	}
	return nil
}
