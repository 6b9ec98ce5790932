package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/hammersbald/pkg/hammersbald"
)

var (
	mode = flag.String("mode", "import", "Migration mode: 'import' (bbolt -> hammersbald) or 'rewrite' (hammersbald -> hammersbald, compacting)")

	legacyDB = flag.String("legacy-db", "", "[import] path to the legacy bbolt database file")
	bucket   = flag.String("bucket", "", "[import] bbolt bucket holding the keyed records to import")

	srcDir = flag.String("src", "", "[rewrite] source hammersbald database directory")
	dstDir = flag.String("dst", "", "destination hammersbald database directory (created fresh)")

	keysFile = flag.String("keys-file", "", "[rewrite] newline-separated list of keys to carry over; hammersbald never enumerates keys itself, so the caller must supply the live set")

	dryRun     = flag.Bool("dry-run", false, "Show what would be migrated without writing the destination database")
	backupPath = flag.String("backup", "", "[import] path to back up legacy-db before opening it (default: <legacy-db>.backup)")
)

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("hammersbald migration tool")
	log.Println("==========================")

	switch *mode {
	case "import":
		if err := runImport(); err != nil {
			log.Fatalf("import failed: %v", err)
		}
	case "rewrite":
		if err := runRewrite(); err != nil {
			log.Fatalf("rewrite failed: %v", err)
		}
	default:
		log.Fatalf("unknown -mode %q: want 'import' or 'rewrite'", *mode)
	}
}

// runImport reads every key/value pair out of a single bbolt bucket and
// PutKeyed's it into a fresh hammersbald database, committing a batch
// every 1000 records and once more at the end.
func runImport() error {
	if *legacyDB == "" || *bucket == "" || *dstDir == "" {
		return fmt.Errorf("-legacy-db, -bucket, and -dst are required in import mode")
	}

	if _, err := os.Stat(*legacyDB); os.IsNotExist(err) {
		return fmt.Errorf("legacy database not found at %s", *legacyDB)
	}

	log.Printf("legacy db:  %s", *legacyDB)
	log.Printf("bucket:     %s", *bucket)
	log.Printf("dest dir:   %s", *dstDir)
	log.Printf("dry run:    %v", *dryRun)

	if !*dryRun {
		backupFile := *backupPath
		if backupFile == "" {
			backupFile = *legacyDB + ".backup"
		}
		log.Printf("backing up legacy db to %s", backupFile)
		if err := copyFile(*legacyDB, backupFile); err != nil {
			return fmt.Errorf("backup legacy db: %w", err)
		}
		log.Println("backup created")
	}

	legacy, err := bolt.Open(*legacyDB, 0600, nil)
	if err != nil {
		return fmt.Errorf("open legacy db: %w", err)
	}
	defer legacy.Close()

	var pairs [][2][]byte
	err = legacy.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(*bucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", *bucket)
		}
		return b.ForEach(func(k, v []byte) error {
			key := append([]byte(nil), k...)
			val := append([]byte(nil), v...)
			pairs = append(pairs, [2][]byte{key, val})
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Printf("found %d records to import", len(pairs))
	if *dryRun {
		log.Println("dry run: no destination database written")
		return nil
	}
	if len(pairs) == 0 {
		log.Println("nothing to import")
		return nil
	}

	dst, err := hammersbald.Create(*dstDir, hammersbald.CreateOptions{})
	if err != nil {
		return fmt.Errorf("create destination db: %w", err)
	}
	defer dst.Shutdown()

	for i, kv := range pairs {
		if _, err := dst.PutKeyed(kv[0], kv[1]); err != nil {
			return fmt.Errorf("put-keyed record %d (key %q): %w", i, kv[0], err)
		}
		if (i+1)%1000 == 0 {
			if err := dst.Batch(); err != nil {
				return fmt.Errorf("checkpoint batch at record %d: %w", i, err)
			}
			log.Printf("  imported %d/%d...", i+1, len(pairs))
		}
	}
	if err := dst.Batch(); err != nil {
		return fmt.Errorf("final batch: %w", err)
	}

	log.Printf("imported %d records into %s", len(pairs), *dstDir)
	return nil
}

// runRewrite copies the live values reachable under a caller-supplied
// key list from a source database into a freshly created destination
// database. Every key ends up as exactly one index entry in the new
// table, compacting away whatever superseded values accumulated in the
// source's chains over time.
func runRewrite() error {
	if *srcDir == "" || *dstDir == "" || *keysFile == "" {
		return fmt.Errorf("-src, -dst, and -keys-file are required in rewrite mode")
	}

	keys, err := readKeysFile(*keysFile)
	if err != nil {
		return fmt.Errorf("read keys file: %w", err)
	}
	log.Printf("src dir:    %s", *srcDir)
	log.Printf("dest dir:   %s", *dstDir)
	log.Printf("keys:       %d", len(keys))
	log.Printf("dry run:    %v", *dryRun)

	src, err := hammersbald.Open(*srcDir, hammersbald.CreateOptions{})
	if err != nil {
		return fmt.Errorf("open source db: %w", err)
	}
	defer src.Shutdown()

	var pairs [][2][]byte
	var missing int
	for _, key := range keys {
		value, found, err := src.GetKeyed(key)
		if err != nil {
			return fmt.Errorf("get-keyed %q: %w", key, err)
		}
		if !found {
			missing++
			continue
		}
		pairs = append(pairs, [2][]byte{key, value})
	}
	log.Printf("resolved %d/%d keys (%d missing, already compacted out)", len(pairs), len(keys), missing)

	if *dryRun {
		log.Println("dry run: no destination database written")
		return nil
	}

	dst, err := hammersbald.Create(*dstDir, hammersbald.CreateOptions{})
	if err != nil {
		return fmt.Errorf("create destination db: %w", err)
	}
	defer dst.Shutdown()

	for i, kv := range pairs {
		if _, err := dst.PutKeyed(kv[0], kv[1]); err != nil {
			return fmt.Errorf("put-keyed %q: %w", kv[0], err)
		}
		if (i+1)%1000 == 0 {
			if err := dst.Batch(); err != nil {
				return fmt.Errorf("checkpoint batch at record %d: %w", i, err)
			}
		}
	}
	if err := dst.Batch(); err != nil {
		return fmt.Errorf("final batch: %w", err)
	}

	log.Printf("rewrote %d keys into %s, one index entry per key", len(pairs), *dstDir)
	return nil
}

func readKeysFile(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var keys [][]byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		keys = append(keys, []byte(line))
	}
	return keys, scanner.Err()
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0600)
}
