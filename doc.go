// Package xtree is a pure Go implementation of the X-tree, a disk-resident
// dynamic spatial index for high-dimensional point data (Berchtold, Keim,
// Kriegel, VLDB'96).
//
// The index maintains a hierarchy of minimum bounding rectangles (MBRs)
// over a growing set of d-dimensional points. It generalizes the R*-tree
// in two ways: it tracks the historical sequence of split axes used along
// the path to every directory entry, and it replaces an ordinary split
// with a variable-size "supernode" whenever no split with acceptable
// sibling overlap can be found.
//
// Key features:
//   - Paged on-disk layout: fixed-size pages plus an appended variable-size
//     supernode trailer, written at commit time.
//   - R*-tree style choose-subtree and forced reinsertion.
//   - The X-split algorithm: topological split candidate enumeration
//     constrained by split history, with a minimum-overlap fallback and a
//     supernode escape hatch.
//   - Single-writer concurrency model; readers may be serialized behind a
//     mutex but concurrent mutation is not supported.
//
// Basic usage:
//
//	cfg := xtree.DefaultConfig(2) // 2-dimensional points
//	tree, err := xtree.Create("/path/to/index.xtr", cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tree.Close()
//
//	err = tree.Insert(xtree.Point{Coords: []float64{1, 2}, ID: 42})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = tree.Commit()
//
// Tree has no bulk-load or delete operation: points are added one at a
// time with Insert and are never removed.
package xtree
