// Package testutil provides a stub database/sql driver understanding the
// handful of statement shapes the postgres store issues.
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
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var stubSeq uint64

// StubConn records statements and keeps rows per table in memory.
type StubConn struct {
	mu     sync.Mutex
	Execs  []string
	Tables map[string][]map[string]any
	// Provisioned lists the tables that exist. A nil map means every table
	// exists; otherwise statements on other tables fail with SQLSTATE 42P01.
	Provisioned map[string]bool
	// Err, when set, is returned by every statement.
	Err      error
	FailPing bool
	RowsErr  error
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("stubpg%d_%d", time.Now().UnixNano(), atomic.AddUint64(&stubSeq, 1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Rows returns a copy of the rows stored for table.
func (c *StubConn) Rows(table string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.Tables[table]))
	for _, row := range c.Tables[table] {
		cpy := make(map[string]any, len(row))
		for k, v := range row {
			cpy[k] = v
		}
		out = append(out, cpy)
	}
	return out
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
func (c *StubConn) Begin() (driver.Tx, error) { return stubTx{}, nil }

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.Err != nil {
		return nil, c.Err
	}
	verb := strings.ToUpper(strings.Fields(query)[0])
	switch verb {
	case "CREATE":
		return driver.RowsAffected(0), nil
	case "INSERT":
		table, cols, err := parseInsert(query)
		if err != nil {
			return nil, err
		}
		if err := c.checkTable(table); err != nil {
			return nil, err
		}
		if len(cols) != len(args) {
			return nil, fmt.Errorf("column/arg mismatch for %s", table)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = args[i].Value
		}
		c.Tables[table] = append(c.Tables[table], row)
		return driver.RowsAffected(1), nil
	case "UPDATE":
		return c.update(query, args)
	case "DELETE":
		table, where, err := parseDelete(query)
		if err != nil {
			return nil, err
		}
		if err := c.checkTable(table); err != nil {
			return nil, err
		}
		var kept []map[string]any
		var n int64
		for _, row := range c.Tables[table] {
			if matches(row, where, args) {
				n++
				continue
			}
			kept = append(kept, row)
		}
		c.Tables[table] = kept
		return driver.RowsAffected(n), nil
	}
	return nil, fmt.Errorf("unsupported statement: %s", query)
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	table, cols, where, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	if err := c.checkTable(table); err != nil {
		return nil, err
	}
	var selected []map[string]any
	for _, row := range c.Tables[table] {
		if matches(row, where, args) {
			selected = append(selected, row)
		}
	}
	if strings.Contains(strings.ToUpper(query), "ORDER BY CREATED_AT DESC") {
		sort.SliceStable(selected, func(i, j int) bool {
			ti, _ := selected[i]["created_at"].(time.Time)
			tj, _ := selected[j]["created_at"].(time.Time)
			return ti.After(tj)
		})
	}
	values := make([][]driver.Value, 0, len(selected))
	for _, row := range selected {
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		values = append(values, vals)
	}
	return &stubRows{cols: cols, rows: values, err: c.RowsErr}, nil
}

func (c *StubConn) checkTable(table string) error {
	if c.Provisioned == nil || c.Provisioned[table] {
		return nil
	}
	return &pgconn.PgError{
		Severity: "ERROR",
		Code:     "42P01",
		Message:  fmt.Sprintf("relation %q does not exist", table),
	}
}

// update handles "UPDATE t SET col = expr, ... WHERE ...". An expression of
// the form "col || $n::jsonb" merges the JSON object argument into the column.
func (c *StubConn) update(query string, args []driver.NamedValue) (driver.Result, error) {
	table, sets, where, err := parseUpdate(query)
	if err != nil {
		return nil, err
	}
	if err := c.checkTable(table); err != nil {
		return nil, err
	}
	var n int64
	for _, row := range c.Tables[table] {
		if !matches(row, where, args) {
			continue
		}
		n++
		for _, set := range sets {
			value := args[set.arg].Value
			if !set.merge {
				row[set.col] = value
				continue
			}
			merged, err := mergeJSON(row[set.col], value)
			if err != nil {
				return nil, err
			}
			row[set.col] = merged
		}
	}
	return driver.RowsAffected(n), nil
}

func mergeJSON(base, patch any) (string, error) {
	doc := map[string]json.RawMessage{}
	if s := asString(base); s != "" {
		if err := json.Unmarshal([]byte(s), &doc); err != nil {
			return "", err
		}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(asString(patch)), &fields); err != nil {
		return "", err
	}
	for k, v := range fields {
		doc[k] = v
	}
	b, err := json.Marshal(doc)
	return string(b), err
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

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

// predicate is "col = $n" with n converted to a zero-based argument index.
type predicate struct {
	col string
	arg int
}

type assignment struct {
	col   string
	arg   int
	merge bool
}

func matches(row map[string]any, where []predicate, args []driver.NamedValue) bool {
	for _, p := range where {
		if p.arg >= len(args) || row[p.col] != args[p.arg].Value {
			return false
		}
	}
	return true
}

func parseInsert(query string) (string, []string, error) {
	up := strings.ToUpper(query)
	intoIdx := strings.Index(up, "INTO ")
	if intoIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	rest := strings.TrimSpace(query[intoIdx+len("INTO "):])
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx == -1 || closeIdx <= open {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	table := strings.ToLower(strings.TrimSpace(rest[:open]))
	return table, splitColumns(rest[open+1 : closeIdx]), nil
}

func parseDelete(query string) (string, []predicate, error) {
	lower := strings.ToLower(strings.TrimSpace(query))
	if !strings.HasPrefix(lower, "delete from ") {
		return "", nil, fmt.Errorf("cannot parse delete: %s", query)
	}
	rest := lower[len("delete from "):]
	whereIdx := strings.Index(rest, " where ")
	if whereIdx == -1 {
		return strings.TrimSpace(rest), nil, nil
	}
	where, err := parseWhere(rest[whereIdx+len(" where "):])
	return strings.TrimSpace(rest[:whereIdx]), where, err
}

func parseSelect(query string) (string, []string, []predicate, error) {
	lower := strings.ToLower(strings.TrimSpace(query))
	if !strings.HasPrefix(lower, "select ") {
		return "", nil, nil, fmt.Errorf("cannot parse select: %s", query)
	}
	fromIdx := strings.Index(lower, " from ")
	if fromIdx == -1 {
		return "", nil, nil, fmt.Errorf("cannot parse select: %s", query)
	}
	cols := splitColumns(lower[len("select "):fromIdx])
	rest := lower[fromIdx+len(" from "):]
	if orderIdx := strings.Index(rest, " order by "); orderIdx != -1 {
		rest = rest[:orderIdx]
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil, nil, fmt.Errorf("cannot parse select: %s", query)
	}
	table := fields[0]
	var where []predicate
	if whereIdx := strings.Index(rest, " where "); whereIdx != -1 {
		var err error
		if where, err = parseWhere(rest[whereIdx+len(" where "):]); err != nil {
			return "", nil, nil, err
		}
	}
	return table, cols, where, nil
}

func parseUpdate(query string) (string, []assignment, []predicate, error) {
	lower := strings.ToLower(strings.TrimSpace(query))
	if !strings.HasPrefix(lower, "update ") {
		return "", nil, nil, fmt.Errorf("cannot parse update: %s", query)
	}
	rest := lower[len("update "):]
	setIdx := strings.Index(rest, " set ")
	whereIdx := strings.Index(rest, " where ")
	if setIdx == -1 || whereIdx == -1 || whereIdx < setIdx {
		return "", nil, nil, fmt.Errorf("cannot parse update: %s", query)
	}
	table := strings.TrimSpace(rest[:setIdx])
	var sets []assignment
	for _, clause := range strings.Split(rest[setIdx+len(" set "):whereIdx], ",") {
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			return "", nil, nil, fmt.Errorf("cannot parse assignment %q", clause)
		}
		expr := strings.TrimSpace(parts[1])
		merge := strings.Contains(expr, "||")
		if merge {
			expr = strings.TrimSpace(expr[strings.Index(expr, "||")+2:])
		}
		idx, err := placeholder(expr)
		if err != nil {
			return "", nil, nil, err
		}
		sets = append(sets, assignment{col: strings.TrimSpace(parts[0]), arg: idx, merge: merge})
	}
	where, err := parseWhere(rest[whereIdx+len(" where "):])
	return table, sets, where, err
}

func parseWhere(raw string) ([]predicate, error) {
	var out []predicate
	for _, cond := range strings.Split(raw, " and ") {
		parts := strings.SplitN(cond, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("cannot parse predicate %q", cond)
		}
		idx, err := placeholder(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, err
		}
		out = append(out, predicate{col: strings.TrimSpace(parts[0]), arg: idx})
	}
	return out, nil
}

// placeholder converts "$3" or "$3::jsonb" to the argument index 2.
func placeholder(expr string) (int, error) {
	if i := strings.Index(expr, "::"); i != -1 {
		expr = expr[:i]
	}
	if !strings.HasPrefix(expr, "$") {
		return 0, fmt.Errorf("expected placeholder, got %q", expr)
	}
	n, err := strconv.Atoi(expr[1:])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid placeholder %q", expr)
	}
	return n - 1, nil
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
