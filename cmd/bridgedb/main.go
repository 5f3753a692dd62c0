package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tomyedwab/bridgedb/bridge"
)

// bridgedb is a small driver for the bridge surface: it opens a database,
// runs the SQL given on the command line through the same flat operations a
// foreign caller would use, and prints the interchange payloads.
func main() {
	dbName := flag.String("db", ":memory:", "database path")
	key := flag.String("key", "", "encryption key (optional)")
	params := flag.String("params", "", "JSON parameter array for the statement")
	stream := flag.Bool("stream", false, "stream the statement instead of materializing it")
	batchSize := flag.Int("batch", 100, "rows per fetch when streaming")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: bridgedb [flags] SQL [SQL ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	var conn uint64
	if *key != "" {
		conn = bridge.OpenEncrypted(*dbName, *key)
	} else {
		conn = bridge.Open(*dbName)
	}
	if conn == 0 {
		log.Fatalf("open failed: %s", bridge.LastError())
	}
	defer bridge.Close(conn)

	for _, sql := range flag.Args() {
		if *stream {
			runStream(conn, sql, int32(*batchSize))
			continue
		}
		runStatement(conn, sql, *params)
	}
}

func runStatement(conn uint64, sql, params string) {
	var payload []byte
	if params != "" {
		payload = bridge.ExecuteWithParams(conn, sql, params)
	} else {
		payload = bridge.Execute(conn, sql)
	}
	if payload == nil {
		log.Fatalf("execute failed: %s", bridge.LastError())
	}
	fmt.Println(string(payload))
	bridge.FreeText(payload)
}

func runStream(conn uint64, sql string, batchSize int32) {
	stream := bridge.PrepareStream(conn, sql)
	if stream == 0 {
		log.Fatalf("prepare stream failed: %s", bridge.LastError())
	}
	defer bridge.StreamClose(stream)

	for {
		payload := bridge.FetchNext(stream, batchSize)
		if payload == nil {
			log.Fatalf("fetch failed: %s", bridge.LastError())
		}
		batch := string(payload)
		bridge.FreeText(payload)
		if batch == "[]" {
			return
		}
		fmt.Println(batch)
	}
}
