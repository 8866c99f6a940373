package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tcr-arena/internal/persistence"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the demo accounts, or one account given by flags",
	RunE:  runSeed,
}

var seedAccount persistence.SeedAccount

func init() {
	seedCmd.Flags().StringVar(&seedAccount.Username, "username", "", "create this account instead of the demo ones")
	seedCmd.Flags().StringVar(&seedAccount.Password, "password", "", "password for --username")
	seedCmd.Flags().IntVar(&seedAccount.Trophies, "trophies", 0, "starting trophies for --username")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := persistence.NewStore(cfg.StorageDir)
	if err != nil {
		return err
	}

	accounts := persistence.DefaultSeedAccounts
	if seedAccount.Username != "" {
		if seedAccount.Password == "" {
			return fmt.Errorf("--password is required with --username")
		}
		accounts = []persistence.SeedAccount{seedAccount}
	}

	created, err := persistence.Seed(store, accounts)
	if err != nil {
		return err
	}
	if len(created) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "All accounts already exist.")
		return nil
	}
	for _, name := range created {
		fmt.Fprintf(cmd.OutOrStdout(), "Created account %s in %s\n", name, cfg.StorageDir)
	}
	return nil
}
