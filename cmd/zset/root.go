package zset

import (
	"fmt"
	"strconv"

	"github.com/DazeHolic/lvdb/cmd/util"
	"github.com/DazeHolic/lvdb/lib/store"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// SortedSetCommands represents the sorted set command group
	SortedSetCommands = &cobra.Command{
		Use:   "zset",
		Short: "Perform sorted set operations",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, err := util.NewRPCStore(cmd)
			rpcStore = s
			return err
		},
	}

	zsetCmd = &cobra.Command{
		Use:   "set [name] [member] [score]",
		Short: "Sets the score of a member (prints 1 if the member is new)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := parseInt("score", args[2])
			if err != nil {
				return err
			}
			return util.PrintCount(rpcStore.ZSet(args[0], args[1], score, util.GetLogType()))
		},
	}
	zgetCmd = &cobra.Command{
		Use:   "get [name] [member]",
		Short: "Prints the score of a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, found, err := rpcStore.ZGet(args[0], args[1])
			return printFound(score, found, err)
		},
	}
	zdelCmd = &cobra.Command{
		Use:   "del [name] [member]",
		Short: "Removes a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintCount(rpcStore.ZDel(args[0], args[1], util.GetLogType()))
		},
	}
	zincrCmd = &cobra.Command{
		Use:   "incr [name] [member] [by]",
		Short: "Adds a number to the score of a member",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			by, err := parseInt("by", args[2])
			if err != nil {
				return err
			}
			return util.PrintCount(rpcStore.ZIncr(args[0], args[1], by, util.GetLogType()))
		},
	}
	zsizeCmd = &cobra.Command{
		Use:   "size [name]",
		Short: "Prints the number of members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintCount(rpcStore.ZSize(args[0]))
		},
	}
	zrankCmd = &cobra.Command{
		Use:   "rank [name] [member]",
		Short: "Prints the 0-based position of a member by score",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reverse, _ := cmd.Flags().GetBool("reverse")
			rank := rpcStore.ZRank
			if reverse {
				rank = rpcStore.ZRRank
			}
			pos, found, err := rank(args[0], args[1])
			return printFound(pos, found, err)
		},
	}
	zrangeCmd = &cobra.Command{
		Use:   "range [name] [offset] [limit]",
		Short: "Lists members by position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("offset must be a number: %w", err)
			}
			limit, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("limit must be a number: %w", err)
			}
			reverse, _ := cmd.Flags().GetBool("reverse")
			zrange := rpcStore.ZRange
			if reverse {
				zrange = rpcStore.ZRRange
			}
			entries, err := zrange(args[0], offset, limit)
			return util.PrintEntries(entries, true, err)
		},
	}
	zscanCmd = &cobra.Command{
		Use:   "scan [name] [score-start] [score-end]",
		Short: "Lists members with a score between start and end",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseInt("score-start", args[1])
			if err != nil {
				return err
			}
			end, err := parseInt("score-end", args[2])
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			after, _ := cmd.Flags().GetString("after")
			reverse, _ := cmd.Flags().GetBool("reverse")
			scan := rpcStore.ZScan
			if reverse {
				scan = rpcStore.ZRScan
			}
			entries, err := scan(args[0], after, start, end, limit)
			return util.PrintEntries(entries, true, err)
		},
	}
	zlistCmd = &cobra.Command{
		Use:   "list [start] [end]",
		Short: "Lists the names of sorted sets",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			reverse, _ := cmd.Flags().GetBool("reverse")
			if reverse {
				return util.PrintNames(rpcStore.ZRList(args[0], args[1], limit))
			}
			return util.PrintNames(rpcStore.ZList(args[0], args[1], limit))
		},
	}
)

func init() {
	util.SetupRPCClientFlags(SortedSetCommands)

	for _, c := range []*cobra.Command{zrankCmd, zrangeCmd, zscanCmd, zlistCmd} {
		c.Flags().Bool("reverse", false, util.WrapString("Use descending score order"))
	}
	zscanCmd.Flags().Int("limit", 100, util.WrapString("Maximum number of results"))
	zscanCmd.Flags().String("after", "", util.WrapString("Resume after this member (its score is score-start)"))
	zlistCmd.Flags().Int("limit", 100, util.WrapString("Maximum number of results"))

	SortedSetCommands.AddCommand(zsetCmd, zgetCmd, zdelCmd, zincrCmd, zsizeCmd, zrankCmd, zrangeCmd, zscanCmd, zlistCmd)
}

func parseInt(name, s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}
	return v, nil
}

func printFound(v int64, found bool, err error) error {
	if err != nil {
		return err
	}
	if !found {
		fmt.Println("(not found)")
		return nil
	}
	fmt.Println(v)
	return nil
}
