package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/quarryworks/formledger/internal/config"
	"github.com/quarryworks/formledger/internal/database"
	"github.com/quarryworks/formledger/internal/journal"
	"github.com/quarryworks/formledger/internal/logging"
	"github.com/quarryworks/formledger/internal/store"
	"github.com/quarryworks/formledger/internal/tokens"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "formledger-admin",
		Short: "Operator tooling for the formledger record store",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newTokenCommand(), newHistoryCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error, silent)")
	cmd.PersistentFlags().String("bearer-signing-secret", "", "Bearer signing secret (overrides env)")
	cmd.PersistentFlags().Int("bearer-ttl-minutes", defaults.GetInt("bearer.ttl_minutes"), "Bearer token TTL in minutes")

	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "bearer.signing_secret", "bearer-signing-secret")
	bindFlag(cmd, "bearer.ttl_minutes", "bearer-ttl-minutes")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

type environment struct {
	config  config.AppConfig
	logger  *zap.Logger
	store   store.Store
	cleanup func()
}

func newEnvironment() (*environment, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	documentStore, err := store.NewGormStore(store.GormStoreConfig{Database: db, Logger: logger})
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &environment{
		config: appConfig,
		logger: logger,
		store:  documentStore,
		cleanup: func() {
			logger.Sync() //nolint:errcheck
			sqlDB.Close()
		},
	}, nil
}

func newTokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue, verify, and expire scoped signing tokens",
	}

	var scope, email string
	var ttlHours int

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a new token",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment()
			if err != nil {
				return err
			}
			defer env.cleanup()

			registry, err := tokens.NewRegistry(tokens.RegistryConfig{Store: env.store, Logger: env.logger})
			if err != nil {
				return err
			}
			token, err := registry.Issue(cmd.Context(), scope, time.Duration(ttlHours)*time.Hour, email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issueCmd.Flags().StringVar(&scope, "scope", "", "Token scope (e.g. api_key, forgot_password)")
	issueCmd.Flags().StringVar(&email, "email", "", "Email bound to the token")
	issueCmd.Flags().IntVar(&ttlHours, "ttl-hours", 0, "Hours until expiration (0 = never)")

	var verifyScope string
	verifyCmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Check a token against an expected scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment()
			if err != nil {
				return err
			}
			defer env.cleanup()

			registry, err := tokens.NewRegistry(tokens.RegistryConfig{Store: env.store, Logger: env.logger})
			if err != nil {
				return err
			}
			valid, err := registry.Verify(cmd.Context(), args[0], verifyScope)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), valid)
			if !valid {
				return errors.New("token is not valid for the requested scope")
			}
			return nil
		},
	}
	verifyCmd.Flags().StringVar(&verifyScope, "scope", "", "Expected scope")

	expireCmd := &cobra.Command{
		Use:   "expire <token>",
		Short: "Deactivate a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment()
			if err != nil {
				return err
			}
			defer env.cleanup()

			registry, err := tokens.NewRegistry(tokens.RegistryConfig{Store: env.store, Logger: env.logger})
			if err != nil {
				return err
			}
			return registry.Expire(cmd.Context(), args[0])
		},
	}

	bearerCmd := &cobra.Command{
		Use:   "bearer <token>",
		Short: "Exchange a verified api_key token for a short-lived bearer JWT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment()
			if err != nil {
				return err
			}
			defer env.cleanup()

			if env.config.BearerSigningSecret == "" {
				return errors.New("bearer.signing_secret is required")
			}

			registry, err := tokens.NewRegistry(tokens.RegistryConfig{Store: env.store, Logger: env.logger})
			if err != nil {
				return err
			}
			return mintBearer(cmd.Context(), cmd, registry, env, args[0])
		},
	}

	tokenCmd.AddCommand(issueCmd, verifyCmd, expireCmd, bearerCmd)
	return tokenCmd
}

func mintBearer(ctx context.Context, cmd *cobra.Command, registry *tokens.Registry, env *environment, token string) error {
	valid, err := registry.Verify(ctx, token, tokens.ScopeAPIKey)
	if err != nil {
		return err
	}
	if !valid {
		return errors.New("token is not valid for the api_key scope")
	}
	record, found, err := registry.Lookup(ctx, token)
	if err != nil {
		return err
	}
	if !found {
		return errors.New("token is not valid for the api_key scope")
	}

	minter := tokens.NewBearerMinter(tokens.BearerMinterConfig{
		SigningSecret: []byte(env.config.BearerSigningSecret),
		Issuer:        "formledger-admin",
		Audience:      "formledger-api",
		TokenTTL:      env.config.BearerTTL,
	})
	bearer, expiresIn, err := minter.Mint(ctx, record.Email)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\nexpires_in=%d\n", bearer, expiresIn)
	return nil
}

func newHistoryCommand() *cobra.Command {
	var owner string
	historyCmd := &cobra.Command{
		Use:   "history <form> <document-id>",
		Short: "Replay a document's journal and print every version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment()
			if err != nil {
				return err
			}
			defer env.cleanup()

			reconstructor, err := journal.NewReconstructor(journal.ReconstructorConfig{
				Store:  env.store,
				Logger: env.logger,
			})
			if err != nil {
				return err
			}

			var history journal.History
			var found bool
			if owner != "" {
				history, found, err = reconstructor.HistoryForOwner(cmd.Context(), args[0], args[1], owner)
			} else {
				history, found, err = reconstructor.History(cmd.Context(), args[0], args[1])
			}
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(cmd.OutOrStdout(), "document not found")
				return nil
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			for _, snapshot := range history.Snapshots {
				if err := encoder.Encode(map[string]any{
					"timestamp": snapshot.Timestamp,
					"changed":   snapshot.Changed,
					"fields":    snapshot.Fields,
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	historyCmd.Flags().StringVar(&owner, "owner", "", "Restrict to documents owned by this reporter")
	return historyCmd
}
