package hash

import (
	"fmt"
	"strconv"

	"github.com/DazeHolic/lvdb/cmd/util"
	"github.com/DazeHolic/lvdb/lib/store"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// HashCommands represents the hash command group
	HashCommands = &cobra.Command{
		Use:   "hash",
		Short: "Perform hash operations",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, err := util.NewRPCStore(cmd)
			rpcStore = s
			return err
		},
	}

	hsetCmd = &cobra.Command{
		Use:   "set [name] [field] [value]",
		Short: "Sets a field of a hash (prints 1 if the field is new)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintCount(rpcStore.HSet(args[0], args[1], []byte(args[2]), util.GetLogType()))
		},
	}
	hgetCmd = &cobra.Command{
		Use:   "get [name] [field]",
		Short: "Reads a field of a hash",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintValue(rpcStore.HGet(args[0], args[1]))
		},
	}
	hdelCmd = &cobra.Command{
		Use:   "del [name] [field]",
		Short: "Deletes a field of a hash",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintCount(rpcStore.HDel(args[0], args[1], util.GetLogType()))
		},
	}
	hincrCmd = &cobra.Command{
		Use:   "incr [name] [field] [by]",
		Short: "Adds a number to the integer stored in a field",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			by, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("by must be a number: %w", err)
			}
			return util.PrintCount(rpcStore.HIncr(args[0], args[1], by, util.GetLogType()))
		},
	}
	hsizeCmd = &cobra.Command{
		Use:   "size [name]",
		Short: "Prints the number of fields of a hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintCount(rpcStore.HSize(args[0]))
		},
	}
	hclearCmd = &cobra.Command{
		Use:   "clear [name]",
		Short: "Deletes all fields of a hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintCount(rpcStore.HClear(args[0], util.GetLogType()))
		},
	}
	hscanCmd = &cobra.Command{
		Use:   "scan [name] [start] [end]",
		Short: "Lists the fields of a hash after start up to end",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			reverse, _ := cmd.Flags().GetBool("reverse")
			scan := rpcStore.HScan
			if reverse {
				scan = rpcStore.HRScan
			}
			entries, err := scan(args[0], args[1], args[2], limit)
			return util.PrintEntries(entries, false, err)
		},
	}
	hlistCmd = &cobra.Command{
		Use:   "list [start] [end]",
		Short: "Lists the names of hashes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			reverse, _ := cmd.Flags().GetBool("reverse")
			if reverse {
				return util.PrintNames(rpcStore.HRList(args[0], args[1], limit))
			}
			return util.PrintNames(rpcStore.HList(args[0], args[1], limit))
		},
	}
)

func init() {
	util.SetupRPCClientFlags(HashCommands)

	for _, c := range []*cobra.Command{hscanCmd, hlistCmd} {
		c.Flags().Int("limit", 100, util.WrapString("Maximum number of results"))
		c.Flags().Bool("reverse", false, util.WrapString("Iterate in descending order"))
	}

	HashCommands.AddCommand(hsetCmd, hgetCmd, hdelCmd, hincrCmd, hsizeCmd, hclearCmd, hscanCmd, hlistCmd)
}
