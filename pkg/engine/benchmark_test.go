package engine

import (
	"fmt"
	"testing"

	"coredb/pkg/config"
)

// BenchmarkEngineInsertThenSelect drives the full stack -- disk manager,
// buffer pool, catalog, B+ tree -- through N sequential inserts followed
// by N point lookups, reporting ops/sec the way the reference project's
// own insert/select benchmark did against its db package.
func BenchmarkEngineInsertThenSelect(b *testing.B) {
	dir := b.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.PoolSize = 256

	e, err := Open(cfg)
	if err != nil {
		b.Fatal(err)
	}
	defer e.Close()

	if err := e.CreateTable("bench", ""); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := int64(i)
		if _, err := e.Put("bench", key, []byte(fmt.Sprintf("value-%d", i)), nil); err != nil {
			b.Fatal(err)
		}
	}
	for i := 0; i < b.N; i++ {
		if _, found, err := e.Get("bench", int64(i), nil); err != nil {
			b.Fatal(err)
		} else if !found {
			b.Fatalf("key %d missing after insert", i)
		}
	}
}
