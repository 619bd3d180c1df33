package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nebari-dev/docshelf/internal/auth"
	"github.com/nebari-dev/docshelf/internal/config"
	"github.com/nebari-dev/docshelf/internal/db"
	"github.com/nebari-dev/docshelf/internal/logger"
	"github.com/nebari-dev/docshelf/internal/models"
	"github.com/nebari-dev/docshelf/internal/server"
	"github.com/nebari-dev/docshelf/internal/service"
	"github.com/nebari-dev/docshelf/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	adminEmail    string
	adminUsername string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long: `Create an administrator account in the configured database.

The password is read from the terminal when --password is omitted.`,
	Args: cobra.NoArgs,
	RunE: runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Administrator email (default: <username>@docshelf.local)")
	createAdminCmd.Flags().StringVarP(&adminUsername, "username", "u", "", "Administrator username")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Administrator password (prompted when omitted)")
	_ = createAdminCmd.MarkFlagRequired("username")
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	appCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(appCfg.Log.Format, "warn")

	password := adminPassword
	if password == "" {
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

	email := adminEmail
	if email == "" {
		email = adminUsername + "@docshelf.local"
	}

	database, err := server.OpenDatabase(appCfg)
	if err != nil {
		return err
	}
	defer db.Close(database)

	hasher := auth.NewBcryptHasher(appCfg.Auth.BcryptCost)
	users := service.NewUserService(store.NewUserStore(database), store.NewDocumentStore(database), hasher, nil)

	user, err := users.Create(context.Background(), 0, service.CreateUserInput{
		Email:    email,
		Username: adminUsername,
		Password: password,
		Role:     string(models.RoleAdmin),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created administrator %s (id %d, %s)\n", user.Username, user.ID, user.Email)
	return nil
}

// promptPassword reads a password without echo when stdin is a terminal,
// or a single line otherwise.
func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Print("Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	fmt.Print("Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
