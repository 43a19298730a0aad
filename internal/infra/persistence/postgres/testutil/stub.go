// Package testutil provides a stub database emulating the documents table for
// postgres store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Row is one stored document as the stub holds it.
type Row struct {
	Collection string
	ID         string
	Fields     []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StubConn records statements and emulates the documents table.
type StubConn struct {
	Execs      []string
	Rows       []*Row
	FailExec   bool
	FailQuery  bool
	FailBegin  bool
	RowsErr    error
	FailCommit bool
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailExec {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

func (c *StubConn) find(collection, id string) (int, *Row) {
	for i, r := range c.Rows {
		if r.Collection == collection && r.ID == id {
			return i, r
		}
	}
	return -1, nil
}

func str(v driver.Value) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}

func bytesOf(v driver.Value) []byte {
	switch b := v.(type) {
	case []byte:
		return append([]byte(nil), b...)
	case string:
		return []byte(b)
	default:
		return nil
	}
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "CREATE TABLE"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(upper, "INSERT INTO DOCUMENTS"):
		if len(args) != 5 {
			return nil, fmt.Errorf("insert expects 5 args, got %d", len(args))
		}
		created, _ := args[3].Value.(time.Time)
		updated, _ := args[4].Value.(time.Time)
		c.Rows = append(c.Rows, &Row{
			Collection: str(args[0].Value),
			ID:         str(args[1].Value),
			Fields:     bytesOf(args[2].Value),
			CreatedAt:  created,
			UpdatedAt:  updated,
		})
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(upper, "UPDATE DOCUMENTS"):
		_, row := c.find(str(args[0].Value), str(args[1].Value))
		if row == nil {
			return driver.RowsAffected(0), nil
		}
		merged, err := mergeStripNulls(row.Fields, bytesOf(args[2].Value))
		if err != nil {
			return nil, err
		}
		row.Fields = merged
		row.UpdatedAt, _ = args[3].Value.(time.Time)
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(upper, "DELETE FROM DOCUMENTS"):
		i, row := c.find(str(args[0].Value), str(args[1].Value))
		if row == nil {
			return driver.RowsAffected(0), nil
		}
		c.Rows = append(c.Rows[:i], c.Rows[i+1:]...)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("unsupported statement: %s", query)
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c.FailQuery {
		return nil, fmt.Errorf("query fail")
	}
	lower := strings.ToLower(query)
	if !strings.HasPrefix(lower, "select id, fields, created_at, updated_at from documents") {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	collection := str(args[0].Value)
	var matched []*Row
	if strings.Contains(lower, "and id = $2") {
		if _, row := c.find(collection, str(args[1].Value)); row != nil {
			matched = append(matched, row)
		}
	} else {
		for _, row := range c.Rows {
			if row.Collection != collection {
				continue
			}
			ok := true
			for _, probe := range args[1:] {
				if !contains(row.Fields, bytesOf(probe.Value)) {
					ok = false
					break
				}
			}
			if ok {
				matched = append(matched, row)
			}
		}
		sort.SliceStable(matched, func(i, j int) bool {
			if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].CreatedAt.After(matched[j].CreatedAt)
			}
			return matched[i].ID > matched[j].ID
		})
		if idx := strings.Index(lower, " limit "); idx >= 0 {
			n, err := strconv.Atoi(strings.TrimSpace(lower[idx+len(" limit "):]))
			if err == nil && n < len(matched) {
				matched = matched[:n]
			}
		}
	}
	values := make([][]driver.Value, 0, len(matched))
	for _, row := range matched {
		values = append(values, []driver.Value{row.ID, append([]byte(nil), row.Fields...), row.CreatedAt, row.UpdatedAt})
	}
	return &stubRows{
		cols: []string{"id", "fields", "created_at", "updated_at"},
		rows: values,
		err:  c.RowsErr,
	}, nil
}

func mergeStripNulls(current, patch []byte) ([]byte, error) {
	base := map[string]any{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &base); err != nil {
			return nil, err
		}
	}
	var delta map[string]any
	if err := json.Unmarshal(patch, &delta); err != nil {
		return nil, err
	}
	for k, v := range delta {
		if v == nil {
			delete(base, k)
			continue
		}
		base[k] = v
	}
	return json.Marshal(base)
}

// contains emulates top-level jsonb containment for scalar probes.
func contains(fields, probe []byte) bool {
	var doc, want map[string]any
	if json.Unmarshal(fields, &doc) != nil || json.Unmarshal(probe, &want) != nil {
		return false
	}
	for k, v := range want {
		if fmt.Sprint(doc[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	return nil
}
func (t *stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
