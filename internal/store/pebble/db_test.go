package pebblestore

import (
	"errors"
	"fmt"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Options{DataDir: t.TempDir(), NoSync: true})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSetGetDelete(t *testing.T) {
	db := openTestDB(t)
	if err := db.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil || string(got) != "v" {
		t.Fatalf("get: %v %q", err, got)
	}
	ok, err := db.Has([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("has: %v %v", ok, err)
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestScanPrefixOrdered(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("ntf/9/%02d", i)
		if err := db.Set([]byte(key), []byte{byte(i)}); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	// Outside the prefix, must not appear.
	_ = db.Set([]byte("ntf/7/00"), []byte("x"))

	var asc []byte
	if err := db.ScanPrefix([]byte("ntf/9/"), func(k, v []byte) bool {
		asc = append(asc, v[0])
		return true
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(asc) != 5 || asc[0] != 0 || asc[4] != 4 {
		t.Fatalf("ascending scan wrong: %v", asc)
	}

	var desc []byte
	if err := db.ScanPrefixReverse([]byte("ntf/9/"), func(k, v []byte) bool {
		desc = append(desc, v[0])
		return len(desc) < 3
	}); err != nil {
		t.Fatalf("reverse scan: %v", err)
	}
	if len(desc) != 3 || desc[0] != 4 || desc[2] != 2 {
		t.Fatalf("descending scan wrong: %v", desc)
	}
}

func TestCountPrefix(t *testing.T) {
	db := openTestDB(t)
	_ = db.Set([]byte("a/1"), []byte("unread"))
	_ = db.Set([]byte("a/2"), []byte("read"))
	_ = db.Set([]byte("a/3"), []byte("unread"))
	_ = db.Set([]byte("b/1"), []byte("unread"))

	n, err := db.CountPrefix([]byte("a/"), nil)
	if err != nil || n != 3 {
		t.Fatalf("count all: %d %v", n, err)
	}
	n, err = db.CountPrefix([]byte("a/"), func(k, v []byte) bool {
		return string(v) == "unread"
	})
	if err != nil || n != 2 {
		t.Fatalf("count filtered: %d %v", n, err)
	}
}
