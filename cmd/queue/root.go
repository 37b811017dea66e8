package queue

import (
	"fmt"
	"strconv"

	"github.com/DazeHolic/lvdb/cmd/util"
	"github.com/DazeHolic/lvdb/lib/store"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// QueueCommands represents the queue command group
	QueueCommands = &cobra.Command{
		Use:   "queue",
		Short: "Perform queue operations",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, err := util.NewRPCStore(cmd)
			rpcStore = s
			return err
		},
	}

	pushCmd = &cobra.Command{
		Use:   "push [name] [item]...",
		Short: "Appends items to a queue and prints the new size",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			front, _ := cmd.Flags().GetBool("front")
			push := rpcStore.QPushBack
			if front {
				push = rpcStore.QPushFront
			}
			var size int64
			for _, item := range args[1:] {
				n, err := push(args[0], []byte(item), util.GetLogType())
				if err != nil {
					return err
				}
				size = n
			}
			fmt.Println(size)
			return nil
		},
	}
	popCmd = &cobra.Command{
		Use:   "pop [name]",
		Short: "Removes and prints the first item of a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			back, _ := cmd.Flags().GetBool("back")
			if back {
				return util.PrintValue(rpcStore.QPopBack(args[0], util.GetLogType()))
			}
			return util.PrintValue(rpcStore.QPopFront(args[0], util.GetLogType()))
		},
	}
	frontCmd = &cobra.Command{
		Use:   "front [name]",
		Short: "Prints the first item of a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintValue(rpcStore.QFront(args[0]))
		},
	}
	backCmd = &cobra.Command{
		Use:   "back [name]",
		Short: "Prints the last item of a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintValue(rpcStore.QBack(args[0]))
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "size [name]",
		Short: "Prints the number of items of a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.PrintCount(rpcStore.QSize(args[0]))
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [name] [index]",
		Short: "Prints the item at an index, negative indexes count from the back",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("index must be a number: %w", err)
			}
			return util.PrintValue(rpcStore.QGet(args[0], index))
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [name] [index] [item]",
		Short: "Overwrites the item at an index",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("index must be a number: %w", err)
			}
			return util.PrintCount(rpcStore.QSet(args[0], index, []byte(args[2]), util.GetLogType()))
		},
	}
	sliceCmd = &cobra.Command{
		Use:   "slice [name] [begin] [end]",
		Short: "Prints the items between two indexes (inclusive)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			begin, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("begin must be a number: %w", err)
			}
			end, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("end must be a number: %w", err)
			}
			items, err := rpcStore.QSlice(args[0], begin, end)
			if err != nil {
				return err
			}
			for _, item := range items {
				fmt.Println(string(item))
			}
			fmt.Printf("(%d items)\n", len(items))
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list [start] [end]",
		Short: "Lists the names of queues",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			reverse, _ := cmd.Flags().GetBool("reverse")
			if reverse {
				return util.PrintNames(rpcStore.QRList(args[0], args[1], limit))
			}
			return util.PrintNames(rpcStore.QList(args[0], args[1], limit))
		},
	}
	fixCmd = &cobra.Command{
		Use:   "fix [name]",
		Short: "Rebuilds the front, back and size bookkeeping of a queue from its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.QFix(args[0]); err != nil {
				return err
			}
			fmt.Println("queue fixed")
			return nil
		},
	}
)

func init() {
	util.SetupRPCClientFlags(QueueCommands)

	pushCmd.Flags().Bool("front", false, util.WrapString("Prepend instead of append"))
	popCmd.Flags().Bool("back", false, util.WrapString("Pop the last instead of the first item"))
	listCmd.Flags().Int("limit", 100, util.WrapString("Maximum number of results"))
	listCmd.Flags().Bool("reverse", false, util.WrapString("Iterate in descending order"))

	QueueCommands.AddCommand(pushCmd, popCmd, frontCmd, backCmd, sizeCmd, getCmd, setCmd, sliceCmd, listCmd, fixCmd)
}
