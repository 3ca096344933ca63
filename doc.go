// Package tablens provides the data engine behind a terminal table viewer
// for large CSV, TSV, JSON Lines, and LTSV files, with XLSX and Parquet
// converted on open.
//
// tablens never loads a file into memory. It memory-maps the input and
// builds everything else on top of cheap random access: the schema, the
// row index, and the filters. A multi-gigabyte file opens in the time it
// takes to sample a couple hundred records.
//
// # Features
//
//   - Memory-mapped random access with zero-copy line reads
//   - Two-phase schema inference: a synchronous sample for the first
//     render, then background refinement over the rest of the file
//   - Checkpointed row index for near-constant seeks to any row number
//   - Row index sidecar cache that survives restarts and detects
//     stale sources
//   - Allocation-free row filtering for scroll-time evaluation
//   - Append-only action stack (rename, delete, cast, filter) replayed
//     against the live schema
//   - Automatic handling of compressed files (gzip, bzip2, xz,
//     zstandard, lz4)
//
// # Basic Usage
//
// Open a file and render from the published schema:
//
//	session, err := tablens.Open("data.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	schema := session.Schema()
//	for _, col := range schema.Columns() {
//	    fmt.Println(col.Name, col.Type)
//	}
//
// The schema returned by Schema is an immutable snapshot. Background
// refinement republishes new snapshots as it reads the rest of the file;
// call Schema again to observe them, or WaitRefine to wait for the final
// one.
//
// # Random Access
//
// Row addressing needs the row index, built once on demand:
//
//	if err := session.BuildIndex(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	rows, err := session.ReadRows(500_000, 40)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// ReadRows returns rows projected onto the schema's column order at the
// source file's full width. Presentation changes (renames, deletes,
// filters) live in the action stack and never change what ReadRows
// returns.
//
// # Actions
//
// Viewer edits append to a per-session action stack and replay left to
// right against the current schema:
//
//	if err := session.PushAction(model.NewRenameAction("name", "customer")); err != nil {
//	    log.Fatal(err)
//	}
//	if err := session.PushAction(model.NewFilterAction("customer", model.OperatorContains, "smith")); err != nil {
//	    log.Fatal(err)
//	}
//	specs, err := session.FilterSpecs()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, row := range rows {
//	    if model.MatchRow(specs, row) {
//	        // render row
//	    }
//	}
//
// An action that does not validate (an unknown column, a relational
// operator on a text column) is rejected at push time and the stack stays
// unchanged.
//
// # Formats
//
// Format detection follows the file extension, including compression
// suffixes: "orders.csv.gz" is gzip-compressed CSV. Compressed inputs
// decompress into a temporary spill file once, since compressed streams
// have no byte-addressable rows. XLSX and Parquet inputs convert their
// first sheet or row groups to CSV the same way. The spill file is
// removed on Close.
package tablens
