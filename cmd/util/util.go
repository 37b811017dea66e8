package util

import (
	"fmt"
	"strings"

	"github.com/DazeHolic/lvdb/lib/binlog"
	"github.com/DazeHolic/lvdb/lib/store"
	"github.com/DazeHolic/lvdb/rpc/client"
	"github.com/DazeHolic/lvdb/rpc/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. LVDB_TIMEOUT)
	EnvPrefix = "lvdb"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and binds environment variables with the LVDB_ prefix
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "shard"
	cmd.PersistentFlags().Int(key, 1, WrapString("ID of the shard to connect to"))

	key = "mirror"
	cmd.PersistentFlags().Bool(key, false, WrapString("Tag writes as MIRROR instead of SYNC, mirrored writes are neither logged nor replicated"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the lvdb server. For transports that support load balancing, multiple endpoints can be specified as a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint - for transports that support this feature"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry the request"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the write buffer for the transport (in KB, ignored for http)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the read buffer for the transport (in KB, ignored for http)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY for the transport (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval for the transport (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time for the transport (in seconds, only for tcp)"))
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	conf := &common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		Transport: common.ClientTransportConfig{
			RetryCount:             viper.GetInt("transport-retries"),
			Endpoints:              strings.Split(viper.GetString("transport-endpoints"), ","),
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
	}

	return conf
}

// GetShardID retrieves the configured shard ID
func GetShardID() uint64 {
	return uint64(viper.GetInt("shard"))
}

// GetLogType returns the binlog type for writes issued by the cli
func GetLogType() binlog.Type {
	if viper.GetBool("mirror") {
		return binlog.TypeMirror
	}
	return binlog.TypeSync
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// NewRPCStore binds the flags of cmd and connects a client to the configured shard
func NewRPCStore(cmd *cobra.Command) (*client.RPCStore, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}

	s, err := client.NewSerializer(viper.GetString("serializer"))
	if err != nil {
		return nil, err
	}
	t, err := client.NewTransport(viper.GetString("transport"))
	if err != nil {
		return nil, err
	}

	return client.NewRPCStore(GetShardID(), *GetClientConfig(), t, s)
}

// --------------------------------------------------------------------------
// Output
// --------------------------------------------------------------------------

// PrintCount prints the result of a counting operation
func PrintCount(n int64, err error) error {
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

// PrintValue prints a value or (not found)
func PrintValue(value []byte, found bool, err error) error {
	if err != nil {
		return err
	}
	if !found {
		fmt.Println("(not found)")
		return nil
	}
	fmt.Println(string(value))
	return nil
}

// PrintEntries prints one "key value" line per entry, withScore prints the score instead of the value
func PrintEntries(entries []store.Entry, withScore bool, err error) error {
	if err != nil {
		return err
	}
	for _, e := range entries {
		if withScore {
			fmt.Printf("%s\t%d\n", e.Key, e.Score)
		} else {
			fmt.Printf("%s\t%s\n", e.Key, e.Value)
		}
	}
	fmt.Printf("(%d entries)\n", len(entries))
	return nil
}

// PrintNames prints one name per line
func PrintNames(names []string, err error) error {
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	fmt.Printf("(%d names)\n", len(names))
	return nil
}
