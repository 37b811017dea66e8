/*
Package replication moves the data of a store to followers.

Two drivers read a Source (the local store) and hand records to a Processor:

  - Sync tails the binlog. For every new SYNC record it re-reads the current value
    of the record key and calls Processor.Apply. Its cursor is persisted as a meta key
    after each acknowledged record, so a restarted driver continues where it stopped.
  - Copy walks the live keyspace once and synthesizes COPY records, which is how a
    follower that has never seen the binlog is bootstrapped.

A Replicator combines both for one peer: copy first if needed, then periodic sync passes.

Processors:

  - NullProcessor discards everything.
  - LocalApply replays records on a store.IStore with binlog.TypeMirror.
  - client.NewRPCSyncProcessor (package rpc/client) forwards records to a remote shard.

Usage Example:

	follower := replication.NewLocalApply(followerStore)
	r := replication.NewReplicator("follower-1", leaderStore, follower, time.Second)
	r.Start()
	defer r.Stop()
*/
package replication
