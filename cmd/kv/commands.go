package kv

import (
	"fmt"
	"strconv"

	"github.com/DazeHolic/lvdb/cmd/util"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintCount(rpcStore.Set(args[0], []byte(args[1]), util.GetLogType()))
		},
	}
	setNXCmd = &cobra.Command{
		Use:   "setnx [key] [value]",
		Short: "Sets the value for a key if the key does not exist (prints 0 if it exists)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintCount(rpcStore.SetNX(args[0], []byte(args[1]), util.GetLogType()))
		},
	}
	getSetCmd = &cobra.Command{
		Use:   "getset [key] [value]",
		Short: "Sets the value for a key and prints the previous value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintValue(rpcStore.GetSet(args[0], []byte(args[1]), util.GetLogType()))
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintValue(rpcStore.Get(args[0]))
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintCount(rpcStore.Del(args[0], util.GetLogType()))
		},
	}
	incrCmd = &cobra.Command{
		Use:   "incr [key] [by]",
		Short: "Adds a number to the integer stored under a key and prints the result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			by := int64(1)
			if len(args) == 2 {
				var err error
				if by, err = strconv.ParseInt(args[1], 10, 64); err != nil {
					return fmt.Errorf("by must be a number: %w", err)
				}
			}
			return util.PrintCount(rpcStore.Incr(args[0], by, util.GetLogType()))
		},
	}
	setBitCmd = &cobra.Command{
		Use:   "setbit [key] [offset] [0|1]",
		Short: "Sets or clears one bit of a value and prints the previous bit",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("offset must be a number: %w", err)
			}
			return util.PrintCount(rpcStore.SetBit(args[0], offset, args[2] == "1", util.GetLogType()))
		},
	}
	getBitCmd = &cobra.Command{
		Use:   "getbit [key] [offset]",
		Short: "Prints one bit of a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("offset must be a number: %w", err)
			}
			return util.PrintCount(rpcStore.GetBit(args[0], offset))
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan [start] [end]",
		Short: "Lists keys after start up to end (inclusive) in ascending order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			entries, err := rpcStore.Scan(args[0], args[1], limit)
			return util.PrintEntries(entries, false, err)
		},
	}
	rscanCmd = &cobra.Command{
		Use:   "rscan [start] [end]",
		Short: "Lists keys before start down to end (inclusive) in descending order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			entries, err := rpcStore.RScan(args[0], args[1], limit)
			return util.PrintEntries(entries, false, err)
		},
	}
)
