// Package xtreebench compares xtree's commit throughput against the
// other raw blob-store backends the teacher benchmarked its own MDBX
// binding against: bbolt, mdbx-go, and gorocksdb. None of these stores
// understand the X-tree's geometry — each simply persists the same
// point set as length-prefixed blobs keyed by point id, so the
// comparison is purely about page-store write throughput, not query
// capability.
package xtreebench

import (
	"encoding/binary"
	"math/rand"
	"path/filepath"
	"testing"

	mdbxgo "github.com/erigontech/mdbx-go/mdbx"
	"github.com/tecbot/gorocksdb"
	bolt "go.etcd.io/bbolt"

	"github.com/xtreedb/xtree"
)

// randomPoints2D generates n uniformly distributed 2D points, grounded
// on the teacher's own populate*Cached helpers (benchmarks/bench_cache.go)
// which generate deterministic pseudo-random keys for a fixed-size
// cached benchmark database.
func randomPoints2D(n int, seed int64) []xtree.Point {
	r := rand.New(rand.NewSource(seed))
	pts := make([]xtree.Point, n)
	for i := range pts {
		pts[i] = xtree.Point{ID: uint64(i), Coords: []float64{r.Float64() * 1000, r.Float64() * 1000}}
	}
	return pts
}

func encodePointBlob(p xtree.Point) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(int64(p.Coords[0]*1e6)))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(int64(p.Coords[1]*1e6)))
	return buf
}

func BenchmarkXTreeInsertAndCommit(b *testing.B) {
	pts := randomPoints2D(b.N, 1)
	dir := b.TempDir()
	tr, err := xtree.Create(filepath.Join(dir, "bench.xtree"), xtree.DefaultConfig(2))
	if err != nil {
		b.Fatalf("Create: %v", err)
	}
	defer tr.Close()

	b.ResetTimer()
	for _, p := range pts {
		if err := tr.Insert(p); err != nil {
			b.Fatalf("Insert: %v", err)
		}
	}
	if err := tr.Commit(); err != nil {
		b.Fatalf("Commit: %v", err)
	}
}

func BenchmarkBoltPut(b *testing.B) {
	pts := randomPoints2D(b.N, 2)
	dir := b.TempDir()
	db, err := bolt.Open(filepath.Join(dir, "bench.bolt"), 0644, nil)
	if err != nil {
		b.Fatalf("bolt.Open: %v", err)
	}
	defer db.Close()

	const bucketName = "points"
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		b.Fatalf("CreateBucket: %v", err)
	}

	b.ResetTimer()
	if err := db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		for _, p := range pts {
			key := make([]byte, 8)
			binary.LittleEndian.PutUint64(key, p.ID)
			if err := bucket.Put(key, encodePointBlob(p)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		b.Fatalf("Update: %v", err)
	}
}

func BenchmarkMdbxPut(b *testing.B) {
	pts := randomPoints2D(b.N, 3)
	dir := b.TempDir()

	env, err := mdbxgo.NewEnv(mdbxgo.Label("xtreebench"))
	if err != nil {
		b.Fatalf("NewEnv: %v", err)
	}
	defer env.Close()
	if err := env.SetGeometry(-1, -1, 1<<30, -1, -1, 4096); err != nil {
		b.Fatalf("SetGeometry: %v", err)
	}
	if err := env.Open(filepath.Join(dir, "bench.mdbx"), mdbxgo.NoSubdir, 0644); err != nil {
		b.Fatalf("Open: %v", err)
	}

	txn, err := env.BeginTxn(nil, 0)
	if err != nil {
		b.Fatalf("BeginTxn: %v", err)
	}
	dbi, err := txn.OpenDBI("points", mdbxgo.Create, nil, nil)
	if err != nil {
		b.Fatalf("OpenDBI: %v", err)
	}
	if err := txn.Commit(); err != nil {
		b.Fatalf("Commit(open): %v", err)
	}

	b.ResetTimer()
	wtxn, err := env.BeginTxn(nil, 0)
	if err != nil {
		b.Fatalf("BeginTxn: %v", err)
	}
	for _, p := range pts {
		key := make([]byte, 8)
		binary.LittleEndian.PutUint64(key, p.ID)
		if err := wtxn.Put(dbi, key, encodePointBlob(p), mdbxgo.Upsert); err != nil {
			b.Fatalf("Put: %v", err)
		}
	}
	if err := wtxn.Commit(); err != nil {
		b.Fatalf("Commit: %v", err)
	}
}

func BenchmarkRocksPut(b *testing.B) {
	pts := randomPoints2D(b.N, 4)
	dir := b.TempDir()

	opts := gorocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	db, err := gorocksdb.OpenDb(opts, filepath.Join(dir, "bench.rocks"))
	if err != nil {
		b.Fatalf("OpenDb: %v", err)
	}
	defer db.Close()

	wo := gorocksdb.NewDefaultWriteOptions()
	defer wo.Destroy()

	b.ResetTimer()
	batch := gorocksdb.NewWriteBatch()
	defer batch.Destroy()
	for _, p := range pts {
		key := make([]byte, 8)
		binary.LittleEndian.PutUint64(key, p.ID)
		batch.Put(key, encodePointBlob(p))
	}
	if err := db.Write(wo, batch); err != nil {
		b.Fatalf("Write: %v", err)
	}
}
