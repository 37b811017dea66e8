package testing

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DazeHolic/lvdb/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Batch", func(t *testing.T) {
			testBatch(t, factory())
		})

		t.Run("IterateOrder", func(t *testing.T) {
			testIterateOrder(t, factory())
		})

		t.Run("Seek", func(t *testing.T) {
			testSeek(t, factory())
		})

		t.Run("IteratorSnapshot", func(t *testing.T) {
			testIteratorSnapshot(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func mustSet(t testing.TB, database db.KVDB, key, value string) {
	if err := database.Set([]byte(key), []byte(value)); err != nil {
		t.Fatalf("Set(%q) failed: %v", key, err)
	}
}

func collectKeys(t testing.TB, database db.KVDB) []string {
	it := database.NewIterator()
	defer it.Close()

	var keys []string
	for ok := it.First(); ok; ok = it.Next() {
		keys = append(keys, string(it.Key()))
	}
	if err := it.Error(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	return keys
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := []byte("test-key")
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	if err := database.Set(testKey, testValue1); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}

	result, exists, err := database.Get(testKey)
	if err != nil || !exists {
		t.Errorf("Expected key %s to exist after Set (err=%v)", testKey, err)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	_ = database.Set(testKey, testValue2)
	result, _, _ = database.Get(testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists, err = database.Get([]byte("nonexistent-key"))
	if err != nil || exists {
		t.Errorf("Expected nonexistent key to return exists=false without error, got %t/%v", exists, err)
	}

	retrievedValue, _, _ := database.Get(testKey)
	retrievedValue[0] = 'X'

	originalValue, _, _ := database.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	input := []byte("mutable")
	_ = database.Set([]byte("mutable-key"), input)
	input[0] = 'X'
	stored, _, _ := database.Get([]byte("mutable-key"))
	if !bytes.Equal(stored, []byte("mutable")) {
		t.Errorf("Set should copy the value, got %s", stored)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	mustSet(t, database, "delete-key", "value")

	if err := database.Delete([]byte("delete-key")); err != nil {
		t.Fatalf("Unexpected error during Delete: %v", err)
	}
	if _, exists, _ := database.Get([]byte("delete-key")); exists {
		t.Errorf("Key should not exist after Delete")
	}

	if err := database.Delete([]byte("never-existed")); err != nil {
		t.Errorf("Deleting a missing key should not fail: %v", err)
	}

	mustSet(t, database, "delete-key", "again")
	value, exists, _ := database.Get([]byte("delete-key"))
	if !exists || string(value) != "again" {
		t.Errorf("Expected key to be recreated after Delete, got %s", value)
	}
}

func testBatch(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureBatch|db.FeatureGet)

	mustSet(t, database, "b", "old")
	mustSet(t, database, "c", "to-delete")

	batch := db.NewBatch()
	batch.Set([]byte("a"), []byte("1"))
	batch.Set([]byte("b"), []byte("2"))
	batch.Delete([]byte("c"))
	batch.Set([]byte("d"), []byte("first"))
	batch.Set([]byte("d"), []byte("last"))

	if batch.Len() != 5 {
		t.Errorf("Expected 5 staged operations, got %d", batch.Len())
	}

	if err := database.Write(batch); err != nil {
		t.Fatalf("Unexpected error during Write: %v", err)
	}

	tests := []struct {
		key    string
		value  string
		exists bool
	}{
		{"a", "1", true},
		{"b", "2", true},
		{"c", "", false},
		{"d", "last", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			value, exists, err := database.Get([]byte(tt.key))
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if exists != tt.exists || string(value) != tt.value {
				t.Errorf("Expected %q (exists=%t), got %q (exists=%t)", tt.value, tt.exists, value, exists)
			}
		})
	}

	batch.Reset()
	if batch.Len() != 0 || batch.Size() != 0 {
		t.Errorf("Reset should clear the batch")
	}
	if err := database.Write(batch); err != nil {
		t.Errorf("Writing an empty batch should succeed: %v", err)
	}
}

func testIterateOrder(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureIterate)

	input := []string{"k\x01", "a", "k", "\x00", "z\xff", "k\x00\x01", "B"}
	for _, k := range input {
		mustSet(t, database, k, "v-"+k)
	}

	expected := append([]string(nil), input...)
	sort.Strings(expected)

	got := collectKeys(t, database)
	if fmt.Sprint(got) != fmt.Sprint(expected) {
		t.Errorf("Expected forward order %q, got %q", expected, got)
	}

	it := database.NewIterator()
	defer it.Close()

	var backwards []string
	for ok := it.Last(); ok; ok = it.Prev() {
		backwards = append(backwards, string(it.Key()))
		if string(it.Value()) != "v-"+string(it.Key()) {
			t.Errorf("Value mismatch for key %q: %q", it.Key(), it.Value())
		}
	}
	for i, j := 0, len(backwards)-1; i < j; i, j = i+1, j-1 {
		backwards[i], backwards[j] = backwards[j], backwards[i]
	}
	if fmt.Sprint(backwards) != fmt.Sprint(expected) {
		t.Errorf("Expected backward order to mirror forward order, got %q", backwards)
	}
}

func testSeek(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureIterate)

	for _, k := range []string{"b", "d", "f"} {
		mustSet(t, database, k, k)
	}

	it := database.NewIterator()
	defer it.Close()

	tests := []struct {
		name  string
		seek  func([]byte) bool
		key   string
		found bool
		at    string
	}{
		{"GE exact", it.SeekGE, "d", true, "d"},
		{"GE between", it.SeekGE, "c", true, "d"},
		{"GE before all", it.SeekGE, "a", true, "b"},
		{"GE after all", it.SeekGE, "g", false, ""},
		{"LT exact", it.SeekLT, "d", true, "b"},
		{"LT between", it.SeekLT, "e", true, "d"},
		{"LT after all", it.SeekLT, "z", true, "f"},
		{"LT before all", it.SeekLT, "b", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := tt.seek([]byte(tt.key))
			if found != tt.found || found != it.Valid() {
				t.Fatalf("Expected found=%t, got %t (valid=%t)", tt.found, found, it.Valid())
			}
			if found && string(it.Key()) != tt.at {
				t.Errorf("Expected iterator at %q, got %q", tt.at, it.Key())
			}
		})
	}

	// stepping after a seek
	it.SeekGE([]byte("c"))
	if !it.Next() || string(it.Key()) != "f" {
		t.Errorf("Expected Next after SeekGE(c) to be at f, got %q", it.Key())
	}
	if !it.Prev() || string(it.Key()) != "d" {
		t.Errorf("Expected Prev to return to d, got %q", it.Key())
	}
	if it.Next(); it.Next() {
		t.Errorf("Expected iterator to be exhausted after f")
	}
}

func testIteratorSnapshot(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDelete|db.FeatureIterate)

	mustSet(t, database, "a", "1")
	mustSet(t, database, "b", "2")

	it := database.NewIterator()
	defer it.Close()

	mustSet(t, database, "c", "3")
	_ = database.Delete([]byte("a"))

	var keys []string
	for ok := it.First(); ok; ok = it.Next() {
		keys = append(keys, string(it.Key()))
	}
	if fmt.Sprint(keys) != "[a b]" {
		t.Errorf("Expected iterator to see the state at its creation [a b], got %v", keys)
	}

	if got := collectKeys(t, database); fmt.Sprint(got) != "[b c]" {
		t.Errorf("Expected a new iterator to see [b c], got %v", got)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureSave|db.FeatureLoad)

	numEntries := 1000
	for i := 0; i < numEntries; i++ {
		mustSet(t, database, fmt.Sprintf("save-load-test-key-%04d", i), fmt.Sprintf("save-load-test-value-%d", i))
	}

	// stale content of the target must be replaced
	mustSet(t, database2, "stale-key", "stale")

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}
	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%04d", i)
		expected := fmt.Sprintf("save-load-test-value-%d", i)

		actual, exists, err := database2.Get([]byte(key))
		if err != nil || !exists {
			t.Errorf("Key %s not found after Load (err=%v)", key, err)
			continue
		}
		if string(actual) != expected {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expected, actual)
		}
	}

	if _, exists, _ := database2.Get([]byte("stale-key")); exists {
		t.Errorf("Load should replace the previous content")
	}

	if err := database2.Load(bytes.NewReader([]byte("not a snapshot"))); err == nil {
		t.Errorf("Expected an error when loading garbage")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	t.Run("EmptyValue", func(t *testing.T) {
		if err := database.Set([]byte("empty-value"), []byte{}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		value, exists, _ := database.Get([]byte("empty-value"))
		if !exists || len(value) != 0 {
			t.Errorf("Expected empty value to be stored, got %q (exists=%t)", value, exists)
		}
	})

	t.Run("BinaryKey", func(t *testing.T) {
		key := []byte{0x00, 0xff, 0x01, 0x00}
		if err := database.Set(key, []byte("binary")); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		value, exists, _ := database.Get(key)
		if !exists || string(value) != "binary" {
			t.Errorf("Expected binary key to round trip, got %q", value)
		}
		if _, exists, _ := database.Get(key[:3]); exists {
			t.Errorf("A prefix of a key must not match")
		}
	})

	t.Run("LargeValue", func(t *testing.T) {
		large := bytes.Repeat([]byte("x"), 1<<20)
		if err := database.Set([]byte("large"), large); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		value, _, _ := database.Get([]byte("large"))
		if !bytes.Equal(value, large) {
			t.Errorf("Large value mismatch (len %d)", len(value))
		}
	})

	t.Run("Info", func(t *testing.T) {
		info := database.GetInfo()
		if info.DbType == "" {
			t.Errorf("Expected DbType to be set")
		}
		for _, f := range info.SupportedFeatures {
			if !database.SupportsFeature(f) {
				t.Errorf("Feature %s reported by GetInfo but not by SupportsFeature", f)
			}
		}
	})
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete|db.FeatureBatch)

	numWorkers := 8
	keysPerWorker := 500

	var wg sync.WaitGroup
	var errorCount int32
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()

			for i := 0; i < keysPerWorker; i++ {
				key := []byte(fmt.Sprintf("w%d-key-%04d", workerId, i))

				var err error
				switch i % 10 {
				case 9:
					err = database.Delete([]byte(fmt.Sprintf("w%d-key-%04d", workerId, i-1)))
				case 8:
					batch := db.NewBatch()
					batch.Set(key, key)
					batch.Set(append(key, '+'), key)
					err = database.Write(batch)
				default:
					err = database.Set(key, key)
				}
				if err != nil {
					atomic.AddInt32(&errorCount, 1)
				}

				if _, _, err := database.Get(key); err != nil {
					atomic.AddInt32(&errorCount, 1)
				}
			}
		}(w)
	}

	wg.Wait()

	if atomic.LoadInt32(&errorCount) > 0 {
		t.Fatalf("Test had %d errors during parallel operations", errorCount)
	}

	// every worker wrote keys 0..7 of each ten, plus the "+" twin of key 8 (key 8 itself was deleted by step 9)
	expected := numWorkers * (keysPerWorker / 10) * 9
	if got := len(collectKeys(t, database)); got != expected {
		t.Errorf("Expected %d keys after concurrent usage, got %d", expected, got)
	}
}
