package cmd

import (
	"fmt"
	"os"

	"github.com/DazeHolic/lvdb/cmd/admin"
	"github.com/DazeHolic/lvdb/cmd/hash"
	"github.com/DazeHolic/lvdb/cmd/kv"
	"github.com/DazeHolic/lvdb/cmd/queue"
	"github.com/DazeHolic/lvdb/cmd/serve"
	"github.com/DazeHolic/lvdb/cmd/util"
	"github.com/DazeHolic/lvdb/cmd/zset"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "lvdb",
		Short: "multi-model store with binlog replication",
		Long: fmt.Sprintf(`lvdb (v%s)

Strings, hashes, sorted sets and queues on top of an ordered key-value engine.
Every write is recorded in a binlog and replicated to follower nodes.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of lvdb",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lvdb v%s\n", Version)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(hash.HashCommands)
	RootCmd.AddCommand(zset.SortedSetCommands)
	RootCmd.AddCommand(queue.QueueCommands)
	RootCmd.AddCommand(admin.AdminCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (binary, json, gob)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix, http)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
