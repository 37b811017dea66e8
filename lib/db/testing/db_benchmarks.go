package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/DazeHolic/lvdb/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory())
	})

	b.Run("SetLargeValue", func(b *testing.B) {
		benchmarkSetLargeValue(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Batch", func(b *testing.B) {
		benchmarkBatch(b, factory())
	})

	b.Run("ScanForward", func(b *testing.B) {
		benchmarkScan(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func fill(b *testing.B, database db.KVDB, n int) {
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%08d", i))
		if err := database.Set(key, key); err != nil {
			b.Fatalf("fill failed: %v", err)
		}
	}
}

// Benchmark for Set operation
func benchmarkSet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	var counter atomic.Uint64
	value := []byte("benchmark-value")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			key := []byte(fmt.Sprintf("key-%d", counter.Add(1)))
			_ = database.Set(key, value)
		}
	})
}

// Benchmark for Set with 64 KB values
func benchmarkSetLargeValue(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	value := bytes.Repeat([]byte("x"), 64*1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = database.Set([]byte(fmt.Sprintf("large-%d", i%1000)), value)
	}
}

// Benchmark for random point reads
func benchmarkGet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureGet)

	const numKeys = 10_000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rng := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			_, _, _ = database.Get([]byte(fmt.Sprintf("key-%08d", rng.Intn(numKeys))))
		}
	})
}

// Benchmark for batches of two writes (one data key and one log key)
func benchmarkBatch(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureBatch)

	value := []byte("benchmark-value")
	batch := db.NewBatch()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		batch.Reset()
		batch.Set([]byte(fmt.Sprintf("data-%d", i)), value)
		batch.Set([]byte(fmt.Sprintf("log-%016d", i)), value)
		if err := database.Write(batch); err != nil {
			b.Fatalf("Write failed: %v", err)
		}
	}
}

// Benchmark for a forward scan of 100 entries from a random position
func benchmarkScan(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureIterate)

	const numKeys = 10_000
	fill(b, database, numKeys)
	rng := rand.New(rand.NewSource(42))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		it := database.NewIterator()
		n := 0
		for ok := it.SeekGE([]byte(fmt.Sprintf("key-%08d", rng.Intn(numKeys)))); ok && n < 100; ok = it.Next() {
			n++
		}
		_ = it.Close()
	}
}

// Benchmark for Save and Load of 10k entries
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory()
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSave|db.FeatureLoad)
	fill(b, database, 10_000)

	var snapshot bytes.Buffer
	if err := database.Save(&snapshot); err != nil {
		b.Fatalf("Save failed: %v", err)
	}

	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			_ = database.Save(&buf)
		}
	})

	b.Run("Load", func(b *testing.B) {
		target := factory()
		defer target.Close()
		for i := 0; i < b.N; i++ {
			_ = target.Load(bytes.NewReader(snapshot.Bytes()))
		}
	})
}
