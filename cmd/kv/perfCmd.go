package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DazeHolic/lvdb/cmd/util"
	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for lvdb servers",
		Long:    "Runs parallel benchmarks against the server. The tests are set, set-large, get, incr, del, hset, zset, queue and mixed.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfTest is one benchmark. prepare runs once per key before the timer starts.
type perfTest struct {
	name    string
	prepare func(key string) error
	op      func(key string, i int) error
}

func perfTests() []perfTest {
	const t = binlog.TypeSync
	value := []byte("test")
	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	setKey := func(key string) error {
		_, err := rpcStore.Set(key, value, t)
		return err
	}

	return []perfTest{
		{name: "set", op: func(key string, _ int) error {
			_, err := rpcStore.Set(key, value, t)
			return err
		}},
		{name: "set-large", op: func(key string, _ int) error {
			_, err := rpcStore.Set(key, largeValue, t)
			return err
		}},
		{name: "get", prepare: setKey, op: func(key string, _ int) error {
			_, _, err := rpcStore.Get(key)
			return err
		}},
		{name: "incr", op: func(key string, _ int) error {
			_, err := rpcStore.Incr(key, 1, t)
			return err
		}},
		{name: "del", prepare: setKey, op: func(key string, _ int) error {
			_, err := rpcStore.Del(key, t)
			return err
		}},
		{name: "hset", op: func(key string, i int) error {
			_, err := rpcStore.HSet(perfKeyPrefix+"-hash", key, value, t)
			return err
		}},
		{name: "zset", op: func(key string, i int) error {
			_, err := rpcStore.ZSet(perfKeyPrefix+"-zset", key, int64(i), t)
			return err
		}},
		{name: "queue", op: func(key string, i int) error {
			var err error
			if i%2 == 0 {
				_, err = rpcStore.QPushBack(key, value, t)
			} else {
				_, _, err = rpcStore.QPopFront(key, t)
			}
			return err
		}},
		{name: "mixed", prepare: setKey, op: func(key string, i int) error {
			var err error
			switch i % 4 {
			case 0:
				_, err = rpcStore.Set(key, value, t)
			case 1:
				_, _, err = rpcStore.Get(key)
			case 2:
				_, err = rpcStore.Del(key, t)
			case 3:
				_, err = rpcStore.Incr(key, 1, t)
			}
			return err
		}},
	}
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for lvdb servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	for _, test := range perfTests() {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(test.name) {
				return
			}

			// prepare keys
			getKey, iter := getKeys(test.name)
			if test.prepare != nil {
				iter(func(k string) {
					if err := test.prepare(k); err != nil {
						log.Printf("(%s) - error preparing key: %v\n", test.name, err)
					}
				})
			}

			// cleanup
			b.Cleanup(func() { cleanup(test.name, iter) })

			b.SetParallelism(perfNumThreads)

			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					if err := test.op(getKey(counter), counter); err != nil {
						log.Printf("(%s) - error: %v\n", test.name, err)
					}
					counter++
				}
			})
		})

		results[test.name] = result
		printResult(test.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// cleanup removes everything a test wrote
func cleanup(test string, iter func(func(string))) {
	const t = binlog.TypeSync
	var err error
	switch test {
	case "hset":
		_, err = rpcStore.HClear(perfKeyPrefix+"-hash", t)
	case "zset":
		iter(func(k string) {
			if _, zerr := rpcStore.ZDel(perfKeyPrefix+"-zset", k, t); zerr != nil {
				err = zerr
			}
		})
	case "queue":
		iter(func(k string) {
			for {
				_, found, qerr := rpcStore.QPopFront(k, t)
				if qerr != nil {
					err = qerr
				}
				if !found || qerr != nil {
					return
				}
			}
		})
	default:
		iter(func(k string) {
			if _, derr := rpcStore.Del(k, t); derr != nil {
				err = derr
			}
		})
	}
	if err != nil {
		log.Printf("(%s) - error during cleanup: %v\n", test, err)
	}
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
