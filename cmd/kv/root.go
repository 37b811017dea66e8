package kv

import (
	"github.com/DazeHolic/lvdb/cmd/util"
	"github.com/DazeHolic/lvdb/lib/store"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform string key operations",
		PersistentPreRunE: setupKVClient,
	}
)

func init() {
	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(setNXCmd)
	KeyValueCommands.AddCommand(getSetCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(incrCmd)
	KeyValueCommands.AddCommand(setBitCmd)
	KeyValueCommands.AddCommand(getBitCmd)
	KeyValueCommands.AddCommand(scanCmd)
	KeyValueCommands.AddCommand(rscanCmd)
	KeyValueCommands.AddCommand(perfTestCmd)

	scanCmd.Flags().Int("limit", 100, util.WrapString("Maximum number of keys to return"))
	rscanCmd.Flags().Int("limit", 100, util.WrapString("Maximum number of keys to return"))
}

// setupKVClient initializes the RPC store client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	s, err := util.NewRPCStore(cmd)
	if err != nil {
		return err
	}
	rpcStore = s
	return nil
}
