package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyConnector serves connections whose first fails Execs error out.
type flakyConnector struct {
	mu    sync.Mutex
	fails int
	execs int
}

func (c *flakyConnector) Connect(context.Context) (driver.Conn, error) { return &flakyConn{c: c}, nil }
func (c *flakyConnector) Driver() driver.Driver                        { return flakyDriver{c: c} }

func (c *flakyConnector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.execs
}

type flakyDriver struct{ c *flakyConnector }

func (d flakyDriver) Open(string) (driver.Conn, error) { return &flakyConn{c: d.c}, nil }

type flakyConn struct{ c *flakyConnector }

func (c *flakyConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *flakyConn) Close() error                        { return nil }
func (c *flakyConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }

func (c *flakyConn) ExecContext(ctx context.Context, _ string, _ []driver.NamedValue) (driver.Result, error) {
	c.c.mu.Lock()
	defer c.c.mu.Unlock()
	c.c.execs++
	if c.c.execs <= c.c.fails {
		return nil, context.Canceled
	}
	return driver.RowsAffected(0), nil
}

func TestPostgresStore_SchemaRetriesAfterFailure(t *testing.T) {
	conn := &flakyConnector{fails: 1}
	db := sql.OpenDB(conn)
	s := NewPostgresStoreFromDB(db)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	err := s.ensureSchema(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, s.ensureSchema(ctx), "a failed first attempt is not sticky")
	require.NoError(t, s.ensureSchema(ctx))
	assert.Equal(t, 2, conn.count(), "the schema runs once it succeeded")
}
