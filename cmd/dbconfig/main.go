// Command dbconfig operates one node's database-configuration table: list,
// create, rename and drop databases, and archive or restore snapshots of the
// replicated state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/TatyanaKovaleva/rethinkdb/internal/archive"
	"github.com/TatyanaKovaleva/rethinkdb/internal/blob"
	"github.com/TatyanaKovaleva/rethinkdb/internal/cluster"
	"github.com/TatyanaKovaleva/rethinkdb/internal/dbconfig"
	"github.com/TatyanaKovaleva/rethinkdb/internal/infra/persistence"
	"github.com/TatyanaKovaleva/rethinkdb/internal/observability"
	"github.com/TatyanaKovaleva/rethinkdb/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dbconfig", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		list       bool
		createName string
		renameSpec string
		dropID     string
		doArchive  bool
		doRestore  bool
	)
	fs.BoolVar(&list, "list", false, "print every database as a JSON row")
	fs.StringVar(&createName, "create", "", "create a database with the given name")
	fs.StringVar(&renameSpec, "rename", "", "rename a database, formatted id=newname")
	fs.StringVar(&dropID, "drop", "", "drop the database with the given id")
	fs.BoolVar(&doArchive, "archive", false, "export a snapshot of the state to the archive store")
	fs.BoolVar(&doRestore, "restore", false, "merge the latest archived snapshot into the state")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := run(stdout, list, createName, renameSpec, dropID, doArchive, doRestore); err != nil {
		fmt.Fprintf(stderr, "dbconfig: %v\n", err)
		return 1
	}
	return 0
}

func run(stdout io.Writer, list bool, createName, renameSpec, dropID string, doArchive, doRestore bool) error {
	ctx := context.Background()
	rec := observability.NewExpvarRecorder("")
	store, err := persistence.Open(rec)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	backend := dbconfig.NewBackend(store, cluster.NewRegistry(), rec)
	defer backend.Close()

	switch {
	case createName != "":
		id := domain.NewDatabaseID()
		row := dbconfig.Row{"id": id.String(), "name": createName}
		if err := backend.WriteRow(ctx, id.String(), true, row); err != nil {
			return err
		}
		fmt.Fprintln(stdout, id.String())
	case renameSpec != "":
		id, name, ok := strings.Cut(renameSpec, "=")
		if !ok {
			return fmt.Errorf("-rename wants id=newname, got %q", renameSpec)
		}
		row := dbconfig.Row{"id": id, "name": name}
		if err := backend.WriteRow(ctx, id, false, row); err != nil {
			return err
		}
	case dropID != "":
		if err := backend.WriteRow(ctx, dropID, false, nil); err != nil {
			return err
		}
	case doArchive:
		objs, err := blob.Open(ctx)
		if err != nil {
			return fmt.Errorf("open archive store: %w", err)
		}
		info, err := archive.NewExporter(store, objs).Export(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, info.Key)
	case doRestore:
		objs, err := blob.Open(ctx)
		if err != nil {
			return fmt.Errorf("open archive store: %w", err)
		}
		if err := archive.NewExporter(store, objs).Restore(ctx); err != nil {
			return err
		}
	case list:
	default:
		list = true
	}

	if list {
		enc := json.NewEncoder(stdout)
		for _, row := range backend.ListRows(ctx) {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
	}
	return nil
}
