// Package engine runs ad-hoc SQL over a parsed perf log using an
// in-memory DuckDB database.
//
// Two tables are loaded:
//
//	ticks(seq, tick, wait, proc, cur, sweep)
//	sweeps(seq, tick)
//
// seq is the 0-based arrival position and sweep the index of the
// reconstructed sweep group the tick belongs to.
package engine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"runtime"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/logflow/perfkit/internal/model"
	perrors "github.com/logflow/perfkit/pkg/errors"
	"github.com/logflow/perfkit/pkg/sweep"
)

var schema = []string{
	"CREATE TABLE ticks (seq BIGINT, tick BIGINT, wait BIGINT, proc BIGINT, cur BIGINT, sweep BIGINT)",
	"CREATE TABLE sweeps (seq BIGINT, tick BIGINT)",
}

// Engine executes SQL queries using DuckDB.
type Engine struct {
	connector driver.Connector
	db        *sql.DB
	threads   int
}

// NewEngine creates an empty in-memory database with the perf schema.
func NewEngine(ctx context.Context) (*Engine, error) {
	connector, err := duckdb.NewConnector("", nil)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.CodeQueryFailed, "failed to initialize DuckDB")
	}

	e := &Engine{
		connector: connector,
		db:        sql.OpenDB(connector),
		threads:   runtime.NumCPU(),
	}

	if _, err := e.db.ExecContext(ctx, fmt.Sprintf("SET threads=%d", e.threads)); err != nil {
		e.Close()
		return nil, perrors.Wrap(err, perrors.CodeQueryFailed, "configure DuckDB")
	}
	for _, stmt := range schema {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			e.Close()
			return nil, perrors.Wrap(err, perrors.CodeQueryFailed, "create tables")
		}
	}
	return e, nil
}

// Close closes the engine.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Load appends a parsed stream. Sweep indices come from pred.
func (e *Engine) Load(ctx context.Context, stream model.Stream, pred sweep.BoundaryPredicate) error {
	conn, err := e.connector.Connect(ctx)
	if err != nil {
		return perrors.Wrap(err, perrors.CodeQueryFailed, "open DuckDB connection")
	}
	defer conn.Close()

	var seq int64
	rows := make([][]driver.Value, 0, len(stream.Ticks))
	for _, g := range sweep.Reconstruct(stream.Ticks, pred) {
		for _, ev := range g.Events {
			rows = append(rows, []driver.Value{seq, ev.Tick, ev.Wait, ev.Proc, ev.Cur, int64(g.Index)})
			seq++
		}
	}
	if err := appendRows(conn, "ticks", rows); err != nil {
		return err
	}

	rows = rows[:0]
	for i, ev := range stream.Sweeps {
		rows = append(rows, []driver.Value{int64(i), ev.Tick})
	}
	return appendRows(conn, "sweeps", rows)
}

// appendRows writes rows through an Appender. Empty tables are left
// untouched since flushing an empty appender faults.
func appendRows(conn driver.Conn, table string, rows [][]driver.Value) error {
	if len(rows) == 0 {
		return nil
	}
	appender, err := duckdb.NewAppenderFromConn(conn, "", table)
	if err != nil {
		return perrors.Wrap(err, perrors.CodeQueryFailed, "create appender").WithContext("table", table)
	}
	for _, row := range rows {
		if err := appender.AppendRow(row...); err != nil {
			appender.Close()
			return perrors.Wrap(err, perrors.CodeQueryFailed, "append row").WithContext("table", table)
		}
	}
	if err := appender.Flush(); err != nil {
		appender.Close()
		return perrors.Wrap(err, perrors.CodeQueryFailed, "flush appender").WithContext("table", table)
	}
	if err := appender.Close(); err != nil {
		return perrors.Wrap(err, perrors.CodeQueryFailed, "close appender").WithContext("table", table)
	}
	return nil
}

// Result is a fully read query result.
type Result struct {
	Columns  []string        `json:"columns"`
	Rows     [][]interface{} `json:"rows"`
	Duration time.Duration   `json:"duration_ns"`

	// Truncated is set when the row limit cut the result short.
	Truncated bool `json:"truncated"`
}

// Query executes a SQL query and reads up to limit rows; limit <= 0
// reads everything.
func (e *Engine) Query(ctx context.Context, query string, limit int) (*Result, error) {
	start := time.Now()

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.CodeQueryFailed, "query failed").WithContext("sql", query)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, perrors.Wrap(err, perrors.CodeQueryFailed, "failed to get columns")
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		if limit > 0 && len(result.Rows) == limit {
			result.Truncated = true
			break
		}
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, perrors.Wrap(err, perrors.CodeQueryFailed, "scan row")
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, perrors.Wrap(err, perrors.CodeQueryFailed, "read rows")
	}

	result.Duration = time.Since(start)
	return result, nil
}
