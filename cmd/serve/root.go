package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	cmdUtil "github.com/DazeHolic/lvdb/cmd/util"
	"github.com/DazeHolic/lvdb/lib/store"
	"github.com/DazeHolic/lvdb/rpc/client"
	"github.com/DazeHolic/lvdb/rpc/common"
	"github.com/DazeHolic/lvdb/rpc/server"
	"github.com/DazeHolic/lvdb/rpc/transport"
	"github.com/DazeHolic/lvdb/rpc/transport/http"
	"github.com/DazeHolic/lvdb/rpc/transport/tcp"
	"github.com/DazeHolic/lvdb/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the lvdb server",
		Long:    `Start the lvdb server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is LVDB_<flag> (e.g. LVDB_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "1=default", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID=DATABASE where DATABASE names the data directory of the shard and its section in the config file"))

	key = "config"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional YAML file with the store options (section 'lvdb', per database overrides in 'lvdb.<database>')"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("Base directory of the shards if no config file is given"))

	key = "engine"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Overrides the storage engine of all shards (pebble, maple)"))

	key = "binlog-capacity"
	ServeCmd.PersistentFlags().Uint64(key, 0, cmdUtil.WrapString("Overrides the number of binlog records kept per shard"))

	key = "no-binlog"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Disables the binlog (and with it replication) on all shards"))

	key = "peers"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of followers. Format: ID=TRANSPORT://ENDPOINT[#PEER_SHARD] (e.g. 1=tcp://10.0.0.2:8080#1). A shard may have several peers"))

	key = "node-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Name of this node, generated and stored in the first shard if empty"))

	key = "replication-interval"
	ServeCmd.PersistentFlags().Int(key, 1000, cmdUtil.WrapString("Pause between two replication passes in milliseconds"))

	key = "admin-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Listen address of the admin HTTP api with health, metrics and binlog status (e.g. 127.0.0.1:9090), disabled if empty"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/lvdb.sock, ...)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 32, cmdUtil.WrapString("Requests processed concurrently per connection (tcp, unix)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("Size of the read buffers in KB (tcp, unix)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	shards, err := parseShards(viper.GetString("shards"))
	if err != nil {
		return err
	}
	if err := parsePeers(viper.GetString("peers"), shards); err != nil {
		return err
	}

	serveCmdConfig.Shards = shards
	serveCmdConfig.NodeID = viper.GetString("node-id")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.AdminEndpoint = viper.GetString("admin-endpoint")
	serveCmdConfig.ReplicationIntervalMs = viper.GetInt("replication-interval")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		BufferSize:     viper.GetInt("buffer-size") * 1024,
	}

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// parseShards parses "ID=DATABASE,..." and loads the store options of every shard
func parseShards(value string) ([]common.ServerShard, error) {
	var shards []common.ServerShard
	seen := make(map[uint64]bool)

	for _, shardConfig := range strings.Split(value, ",") {
		parts := strings.Split(shardConfig, "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid shard format: %s (expected ID=DATABASE)", shardConfig)
		}

		// Parse shard ID
		shardID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard ID %s: %v", parts[0], err)
		}
		if seen[shardID] {
			return nil, fmt.Errorf("shard %d is configured twice", shardID)
		}
		seen[shardID] = true

		database := strings.TrimSpace(parts[1])
		if database == "" {
			return nil, fmt.Errorf("missing database name for shard %d", shardID)
		}
		opts, err := loadOptions(database)
		if err != nil {
			return nil, err
		}

		shards = append(shards, common.ServerShard{
			ShardID: shardID,
			Options: opts,
		})
	}
	return shards, nil
}

// loadOptions returns the store options of one database, command line overrides applied
func loadOptions(database string) (store.Options, error) {
	var opts store.Options
	if path := viper.GetString("config"); path != "" {
		var err error
		if opts, err = store.LoadOptions(path, database); err != nil {
			return store.Options{}, err
		}
	} else {
		opts = store.DefaultOptions()
		opts.Dir = filepath.Join(viper.GetString("data-dir"), database)
	}

	if engine := viper.GetString("engine"); engine != "" {
		opts.Engine = engine
	}
	if capacity := viper.GetUint64("binlog-capacity"); capacity > 0 {
		opts.Replication.Capacity = capacity
	}
	if viper.GetBool("no-binlog") {
		opts.Replication.Binlog = false
	}
	return opts, nil
}

// parsePeers parses "ID=TRANSPORT://ENDPOINT[#PEER_SHARD],..." and attaches the peers to their shards
func parsePeers(value string, shards []common.ServerShard) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	for _, peerConfig := range strings.Split(value, ",") {
		id, target, ok := strings.Cut(strings.TrimSpace(peerConfig), "=")
		if !ok {
			return fmt.Errorf("invalid peer format: %s (expected ID=TRANSPORT://ENDPOINT[#PEER_SHARD])", peerConfig)
		}
		shardID, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid shard ID %s: %v", id, err)
		}

		peer := common.ReplicationPeer{Transport: "tcp", ShardID: shardID}
		if t, rest, found := strings.Cut(target, "://"); found {
			peer.Transport, target = t, rest
		}
		if endpoint, peerShard, found := strings.Cut(target, "#"); found {
			target = endpoint
			if peer.ShardID, err = strconv.ParseUint(peerShard, 10, 64); err != nil {
				return fmt.Errorf("invalid peer shard ID %s: %v", peerShard, err)
			}
		}
		if target == "" {
			return fmt.Errorf("missing endpoint in peer %s", peerConfig)
		}
		peer.Endpoint = target

		idx := -1
		for i := range shards {
			if shards[i].ShardID == shardID {
				idx = i
			}
		}
		if idx < 0 {
			return fmt.Errorf("peer %s refers to unknown shard %d", peerConfig, shardID)
		}
		shards[idx].Peers = append(shards[idx].Peers, peer)
	}
	return nil
}

// run starts the lvdb server and closes it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := client.NewSerializer(viper.GetString("serializer"))
	if err != nil {
		return err
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
	case "tcp":
		t = tcp.NewTCPServerTransport(serveCmdConfig.Transport.BufferSize)
	case "unix":
		t = unix.NewUnixServerTransport(serveCmdConfig.Transport.BufferSize)
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		if err := serv.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
		}
	}()

	err = serv.Serve()
	stop()
	if closeErr := serv.Close(); err == nil {
		err = closeErr
	}
	return err
}
