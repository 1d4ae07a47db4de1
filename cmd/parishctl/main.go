// parishctl performs administrative tasks directly against the
// database: creating users, resetting passwords and managing group
// membership. It is meant to be run on the host next to parishd.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/openparish/backend/pkg/auth"
	"github.com/openparish/backend/pkg/config"
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/storage"
)

var logger = logrus.New()

func main() {
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	db, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	ctx := context.Background()
	if err := db.CreateSchema(ctx); err != nil {
		logger.Fatalf("Failed to create schema: %v", err)
	}

	switch os.Args[1] {
	case "create-user":
		err = createUser(ctx, db, os.Args[2:])
	case "set-password":
		err = setPassword(ctx, db, os.Args[2:])
	case "add-member":
		err = addMember(ctx, db, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: parishctl <command> [flags]

Commands:
  create-user   Create a user account
  set-password  Reset a user's password and revoke their sessions
  add-member    Add a user to a group
`)
}

func createUser(ctx context.Context, db *storage.DB, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	username := fs.String("username", "", "Login name (required)")
	realName := fs.String("real-name", "", "Real name")
	displayName := fs.String("display-name", "", "Publicly shown name")
	position := fs.String("position", "", "Position within the parish")
	role := fs.String("role", "NONE", "Role: NONE, EDITOR or ADMINISTRATOR")
	password := fs.String("password", "", "Initial password (required)")
	fs.Parse(args)

	if *username == "" || *password == "" {
		return fmt.Errorf("create-user: --username and --password are required")
	}
	parsedRole, err := model.ParseRole(*role)
	if err != nil {
		return fmt.Errorf("create-user: %w", err)
	}
	if *displayName == "" {
		*displayName = *username
	}
	hash, err := auth.HashPassword(*password)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, db.Rebind(
		`INSERT INTO users (username, real_name, display_name, position, role, password_hash)
		VALUES (?, ?, ?, ?, ?, ?)`),
		*username, *realName, *displayName, *position, parsedRole.String(), hash,
	)
	if err != nil {
		return fmt.Errorf("create-user: %w", err)
	}
	logger.WithFields(logrus.Fields{"username": *username, "role": parsedRole.String()}).Info("user created")
	return nil
}

func setPassword(ctx context.Context, db *storage.DB, args []string) error {
	fs := flag.NewFlagSet("set-password", flag.ExitOnError)
	username := fs.String("username", "", "Login name (required)")
	password := fs.String("password", "", "New password (required)")
	fs.Parse(args)

	if *username == "" || *password == "" {
		return fmt.Errorf("set-password: --username and --password are required")
	}
	hash, err := auth.HashPassword(*password)
	if err != nil {
		return err
	}

	// Clearing the token logs the user out on every device.
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE users SET password_hash = ?, auth_token = NULL WHERE username = ?`),
		hash, *username,
	)
	if err != nil {
		return fmt.Errorf("set-password: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("set-password: no user named %q", *username)
	}
	logger.WithField("username", *username).Info("password updated, sessions revoked")
	return nil
}

func addMember(ctx context.Context, db *storage.DB, args []string) error {
	fs := flag.NewFlagSet("add-member", flag.ExitOnError)
	username := fs.String("username", "", "Login name (required)")
	groupID := fs.Int64("group", 0, "Group ID (required)")
	fs.Parse(args)

	if *username == "" || *groupID == 0 {
		return fmt.Errorf("add-member: --username and --group are required")
	}

	var userID int64
	err := db.QueryRowContext(ctx, db.Rebind(`SELECT id FROM users WHERE username = ?`), *username).Scan(&userID)
	if err != nil {
		return fmt.Errorf("add-member: no user named %q", *username)
	}

	_, err = db.ExecContext(ctx, db.Rebind(
		`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`),
		*groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("add-member: %w", err)
	}
	logger.WithFields(logrus.Fields{"username": *username, "group": *groupID}).Info("member added")
	return nil
}
