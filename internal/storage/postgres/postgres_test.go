package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"eventboard/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	db, _ := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	s, err := New(context.Background(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	storagetest.Run(t, s)
}

func TestNewEnsuresTable(t *testing.T) {
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := New(context.Background(), "postgres://ignored"); err != nil {
		t.Fatalf("New: %v", err)
	}
	var sawDDL bool
	for _, stmt := range conn.state.execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS KV") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected kv DDL, got %v", conn.state.execs)
	}
}

func TestNewPropagatesOpenError(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("boom") })
	defer restore()

	if _, err := New(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestPutRollsBackOnFailure(t *testing.T) {
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	s, err := New(context.Background(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	conn.state.failInsert = true
	if err := s.Put(context.Background(), "posts", []byte(`[]`)); err == nil {
		t.Fatalf("expected Put error")
	}
	if conn.state.rollbacks == 0 {
		t.Fatalf("expected rollback after failed upsert")
	}
}

// stub database/sql driver understanding the handful of statements the store issues.

type stubState struct {
	mu         sync.Mutex
	rows       map[string][]byte
	execs      []string
	rollbacks  int
	failInsert bool
}

type stubConnector struct{ conn *stubConn }

func (c stubConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c stubConnector) Driver() driver.Driver                        { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return nil, errors.New("use connector") }

type stubConn struct{ state *stubState }

func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{state: &stubState{rows: map[string][]byte{}}}
	return sql.OpenDB(stubConnector{conn: conn}), conn
}

func (c *stubConn) Prepare(query string) (driver.Stmt, error) {
	return &stubStmt{conn: c, query: query}, nil
}
func (c *stubConn) Close() error              { return nil }
func (c *stubConn) Begin() (driver.Tx, error) { return stubTx{conn: c}, nil }

type stubTx struct{ conn *stubConn }

func (stubTx) Commit() error { return nil }
func (t stubTx) Rollback() error {
	t.conn.state.mu.Lock()
	t.conn.state.rollbacks++
	t.conn.state.mu.Unlock()
	return nil
}

type stubStmt struct {
	conn  *stubConn
	query string
}

func (s *stubStmt) Close() error  { return nil }
func (s *stubStmt) NumInput() int { return -1 }

func (s *stubStmt) Exec(args []driver.Value) (driver.Result, error) {
	st := s.conn.state
	st.mu.Lock()
	defer st.mu.Unlock()
	st.execs = append(st.execs, s.query)
	if strings.HasPrefix(strings.TrimSpace(s.query), "INSERT") {
		if st.failInsert {
			return nil, errors.New("insert failed")
		}
		key, _ := args[0].(string)
		value, _ := args[1].([]byte)
		st.rows[key] = append([]byte(nil), value...)
	}
	return driver.RowsAffected(1), nil
}

func (s *stubStmt) Query(args []driver.Value) (driver.Rows, error) {
	st := s.conn.state
	st.mu.Lock()
	defer st.mu.Unlock()
	key, _ := args[0].(string)
	value, ok := st.rows[key]
	if !ok {
		return &stubRows{}, nil
	}
	return &stubRows{values: [][]byte{value}}, nil
}

type stubRows struct {
	values [][]byte
	pos    int
}

func (r *stubRows) Columns() []string { return []string{"value"} }
func (r *stubRows) Close() error      { return nil }
func (r *stubRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.values) {
		return io.EOF
	}
	dest[0] = r.values[r.pos]
	r.pos++
	return nil
}
