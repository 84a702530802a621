// Command nowastemate-admin is the administration surface of NoWasteMate:
// approving members, inspecting donations and reading contact messages.
//
// It talks to the same database as the server, using the same
// configuration sources (defaults, --config file, .env, environment).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sakif/nowastemate/internal/auth"
	"github.com/sakif/nowastemate/internal/config"
	"github.com/sakif/nowastemate/internal/mailer"
	sqliteRepo "github.com/sakif/nowastemate/internal/repository/sqlite"
	"github.com/sakif/nowastemate/internal/server"
	"github.com/sakif/nowastemate/internal/service"
)

var Version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "warning: could not read .env:", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "nowastemate-admin",
		Short:         "Administer a NoWasteMate installation",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")

	opener := func() (*app, error) { return openApp(configPath) }

	rootCmd.AddCommand(profilesCmd(opener))
	rootCmd.AddCommand(donationsCmd(opener))
	rootCmd.AddCommand(contactCmd(opener))
	rootCmd.AddCommand(accountsCmd(opener))

	return rootCmd
}

// app holds what the subcommands share. close must be called; it drains
// the mail queue before closing the database.
type app struct {
	cfg       *config.Config
	db        *sqliteRepo.DB
	mail      *mailer.Dispatcher
	accounts  *service.AccountService
	donations *service.DonationService
	contact   *service.ContactService
}

func openApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.DBPath, err)
	}

	m, err := server.NewMailer(cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	mail := mailer.NewDispatcher(m, mailer.DispatcherConfig{
		Workers:   1,
		QueueSize: cfg.MailQueueSize,
	}, logger)
	mail.Start()

	gate := auth.NewGate(db)
	return &app{
		cfg:       cfg,
		db:        db,
		mail:      mail,
		accounts:  service.NewAccountService(db, auth.NewPasswordService(), gate, mail, logger),
		donations: service.NewDonationService(db, mail, logger),
		contact:   service.NewContactService(db, logger),
	}, nil
}

func (a *app) close() {
	a.mail.Stop()
	a.db.Close()
}
