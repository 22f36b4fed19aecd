// This program performs administrative tasks for a ledger stored on disk.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/iprotocol/blockchain/app/tooling/admin/commands"
	"github.com/iprotocol/blockchain/foundation/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("admin", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	var dbPath string

	rootCmd := &cobra.Command{
		Use:           "admin",
		Short:         "Administrative tasks for a ledger stored on disk",
		Version:       build,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db-path", "d", "zblock/blocks", "Path to the directory holding the blocks.")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate every block in the chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Infow("admin", "command", "validate", "dbpath", dbPath)
			return commands.Validate(cmd.OutOrStdout(), dbPath)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "show <height>",
		Short: "Show the block at the height",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			height, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parsing height: %w", err)
			}
			return commands.Show(cmd.OutOrStdout(), dbPath, height)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Summarize every block in the chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.Status(cmd.OutOrStdout(), dbPath)
		},
	})

	return rootCmd.Execute()
}
