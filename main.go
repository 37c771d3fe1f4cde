// Command coredb is a small interactive REPL over the storage core: no
// SQL, no network listener. It exercises the B+ tree and lock manager
// directly through a handful of commands, timing each one -- the same
// "small REPL reading from stdin, printing results, timing each command"
// texture as the reference project's client loop, minus the SQL parser
// and the TCP transport.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"coredb/pkg/config"
	"coredb/pkg/engine"
	"coredb/pkg/logging"
	"coredb/pkg/txn"
)

func main() {
	configPath := flag.String("config", "", "path to coredb.ini")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logging.SetLevel(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	e, err := engine.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open engine: %v\n", err)
		os.Exit(1)
	}
	defer e.Close()

	fmt.Println("coredb storage-core REPL -- type 'help' for commands, 'quit' to exit")
	runREPL(e, cfg.Prompt, os.Stdin, os.Stdout)
}

func runREPL(e *engine.Engine, prompt string, in *os.File, out *os.File) {
	var active *txn.Transaction
	scanner := bufio.NewScanner(in)

	fmt.Fprint(out, prompt)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(out, prompt)
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit":
			return
		}

		start := time.Now()
		result, execErr := execute(e, &active, line)
		elapsed := time.Since(start)

		if execErr != nil {
			fmt.Fprintf(out, "error: %v (%.4f sec)\n", execErr, elapsed.Seconds())
		} else {
			if result != "" {
				fmt.Fprintln(out, result)
			}
			fmt.Fprintf(out, "(%.4f sec)\n", elapsed.Seconds())
		}
		fmt.Fprint(out, prompt)
	}
}

func execute(e *engine.Engine, active **txn.Transaction, line string) (string, error) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "help":
		return helpText, nil

	case "createtable":
		if len(args) < 1 {
			return "", fmt.Errorf("usage: createtable <name> [schema...]")
		}
		schema := strings.Join(args[1:], " ")
		if err := e.CreateTable(args[0], schema); err != nil {
			return "", err
		}
		return "table created", nil

	case "tables":
		return strings.Join(e.ListTables(), "\n"), nil

	case "begin":
		if *active != nil {
			return "", fmt.Errorf("a transaction is already active (id %d)", (*active).ID())
		}
		*active = e.Begin()
		return fmt.Sprintf("started txn %d", (*active).ID()), nil

	case "commit":
		if *active == nil {
			return "", fmt.Errorf("no active transaction")
		}
		e.Commit(*active)
		id := (*active).ID()
		*active = nil
		return fmt.Sprintf("committed txn %d", id), nil

	case "abort":
		if *active == nil {
			return "", fmt.Errorf("no active transaction")
		}
		e.Abort(*active)
		id := (*active).ID()
		*active = nil
		return fmt.Sprintf("aborted txn %d", id), nil

	case "put":
		if len(args) < 3 {
			return "", fmt.Errorf("usage: put <table> <key> <value>")
		}
		key, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid key: %w", err)
		}
		ok, err := e.Put(args[0], key, []byte(strings.Join(args[2:], " ")), *active)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("put failed: duplicate key or transaction aborted")
		}
		return "ok", nil

	case "get":
		if len(args) < 2 {
			return "", fmt.Errorf("usage: get <table> <key>")
		}
		key, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid key: %w", err)
		}
		val, found, err := e.Get(args[0], key, *active)
		if err != nil {
			return "", err
		}
		if !found {
			return "(not found)", nil
		}
		return string(val), nil

	case "del":
		if len(args) < 2 {
			return "", fmt.Errorf("usage: del <table> <key>")
		}
		key, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid key: %w", err)
		}
		ok, err := e.Delete(args[0], key, *active)
		if err != nil {
			return "", err
		}
		if !ok {
			return "(not found)", nil
		}
		return "ok", nil

	case "scan":
		if len(args) < 1 {
			return "", fmt.Errorf("usage: scan <table>")
		}
		rows, err := e.ScanAll(args[0])
		if err != nil {
			return "", err
		}
		return strings.Join(rows, "\n"), nil

	default:
		return "", fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
}

const helpText = `commands:
  createtable <name> [schema...]   register a new table
  tables                           list registered tables
  put <table> <key> <value>        insert a key/value pair
  get <table> <key>                look up a key
  del <table> <key>                delete a key
  scan <table>                     list all rows in key order
  begin                            start a transaction for subsequent commands
  commit                           commit the active transaction
  abort                            abort the active transaction
  quit / exit                      leave the REPL`
