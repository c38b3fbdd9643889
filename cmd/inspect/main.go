package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
)

// inspect dumps raw store keys for debugging. Run it against a stopped
// server's data directory.
func main() {
	var (
		path   string
		prefix string
		values bool
	)
	flag.StringVar(&path, "path", "", "data directory to open")
	flag.StringVar(&prefix, "prefix", "thread:", "key prefix to dump (thread:, ident:)")
	flag.BoolVar(&values, "values", false, "print values as well as keys")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "--path required")
		os.Exit(2)
	}

	db, err := pebble.Open(path, &pebble.Options{ReadOnly: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer db.Close()

	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "iterator: %v\n", err)
		os.Exit(1)
	}
	defer iter.Close()

	pfx := []byte(prefix)
	count := 0
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		if values {
			fmt.Printf("%s\t%s\n", iter.Key(), iter.Value())
		} else {
			fmt.Println(string(iter.Key()))
		}
		count++
	}
	if err := iter.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "iterate: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", count)
}
