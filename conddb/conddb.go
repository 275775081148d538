// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb holds types to describe the condition and configuration
// database for the SWO trace boards.
package conddb // import "github.com/go-lpc/swo/conddb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to easily retrieve the trace
// configuration of the boards of a test bench.
type DB struct {
	db   *sql.DB
	name string // name of the trace-bench database
}

// Open opens a connection to the trace-bench database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// LastBoardID returns the identifier of the board most recently
// registered on the bench.
func (db *DB) LastBoardID(ctx context.Context) (uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var board uint32
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT identifier FROM boards ORDER BY datetime DESC LIMIT 1",
	)
	if err != nil {
		return board, fmt.Errorf("conddb: could not query board-id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&board)
		if err != nil {
			return board, fmt.Errorf("conddb: could not get board-id value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return board, fmt.Errorf("conddb: could not scan db for board-id: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return board, fmt.Errorf("conddb: context error while retrieving board-id: %w", err)
	}

	return board, nil
}

// TraceConfig returns the most recent trace configuration recorded for
// the given board.
func (db *DB) TraceConfig(ctx context.Context, board uint32) (TraceConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var cfg TraceConfig
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT board, clock_hz, swo_baud, channels FROM traceconfigs
WHERE board=?
ORDER BY datetime DESC LIMIT 1
`,
		board,
	)
	if err != nil {
		return cfg, fmt.Errorf("conddb: could not run trace cfg query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&cfg.Board, &cfg.ClockHz, &cfg.SWOBaud, &cfg.Channels)
		if err != nil {
			return cfg, fmt.Errorf("conddb: could not scan trace cfg: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return cfg, fmt.Errorf("conddb: could not scan db for trace cfg: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return cfg, fmt.Errorf("conddb: context error while retrieving trace cfg: %w", err)
	}

	return cfg, nil
}
