package admin

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/DazeHolic/lvdb/cmd/util"
	"github.com/DazeHolic/lvdb/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcStore *client.RPCStore

	// AdminCommands represents the administration command group
	AdminCommands = &cobra.Command{
		Use:   "admin",
		Short: "Meta keys, database info and binlog inspection",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, err := util.NewRPCStore(cmd)
			rpcStore = s
			return err
		},
	}

	metaGetCmd = &cobra.Command{
		Use:   "meta-get [key]",
		Short: "Reads a meta key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintValue(rpcStore.MetaGet(args[0]))
		},
	}
	metaSetCmd = &cobra.Command{
		Use:   "meta-set [key] [value]",
		Short: "Writes a meta key, e.g. to move a replication cursor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintCount(rpcStore.MetaSet(args[0], []byte(args[1])))
		},
	}
	metaDelCmd = &cobra.Command{
		Use:   "meta-del [key]",
		Short: "Deletes a meta key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintCount(rpcStore.MetaDel(args[0]))
		},
	}
	metaListCmd = &cobra.Command{
		Use:   "meta-list",
		Short: "Lists all meta keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintNames(rpcStore.MetaList())
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the database of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetDBInfo()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	binlogStatsCmd = &cobra.Command{
		Use:   "binlog",
		Short: "Prints the binlog state of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := rpcStore.BinlogStats()
			if err != nil {
				return err
			}
			fmt.Print(stats.Text)
			return nil
		},
	}
	binlogFindCmd = &cobra.Command{
		Use:   "binlog-find [seq]",
		Short: "Prints the first binlog record with a seq >= the given one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("seq must be a number: %w", err)
			}
			rec, found, err := rpcStore.BinlogFind(seq)
			if err != nil {
				return err
			}
			if !found {
				fmt.Println("(not found)")
				return nil
			}
			fmt.Println(rec.Describe())
			return nil
		},
	}
)

func init() {
	util.SetupRPCClientFlags(AdminCommands)

	AdminCommands.AddCommand(metaGetCmd, metaSetCmd, metaDelCmd, metaListCmd, infoCmd, binlogStatsCmd, binlogFindCmd)
}
