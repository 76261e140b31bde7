package db

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type Base struct {
	ID        int       `db:"id"`
	CreatedAt time.Time `db:"created_at"`
}

type Thing struct {
	Base
	Name    string  `db:"name"`
	Note    *string `db:"note"`
	Skipped int     `db:"-"`
	hidden  int
}

func TestColumnNames(t *testing.T) {
	assert.Equal(t, []string{"id", "created_at", "name", "note"}, ColumnNames(reflect.TypeOf(Thing{})))
	assert.Equal(t, []string{"id", "created_at", "name", "note"}, ColumnNames(reflect.TypeOf(&Thing{})))
	assert.Panics(t, func() { ColumnNames(reflect.TypeOf(3)) })
}

func TestCompileQuery(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		assert.Equal(t, "SELECT COUNT(*) FROM thing", compileQuery[Thing]("SELECT COUNT(*) FROM thing"))
	})
	t.Run("columns", func(t *testing.T) {
		assert.Equal(t,
			"SELECT id, created_at, name, note FROM thing WHERE id = $1",
			compileQuery[Thing]("SELECT $columns FROM thing WHERE id = $1"),
		)
	})
	t.Run("prefixed columns", func(t *testing.T) {
		assert.Equal(t,
			"SELECT t.id, t.created_at, t.name, t.note FROM thing AS t",
			compileQuery[Thing]("SELECT $columns{t} FROM thing AS t"),
		)
	})
	t.Run("columns into a scalar", func(t *testing.T) {
		assert.Panics(t, func() { compileQuery[int]("SELECT $columns FROM thing") })
	})
}

type fakePinger struct {
	failures int
	calls    int
}

func (p *fakePinger) Ping(ctx context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitForConnection(t *testing.T) {
	t.Run("eventually available", func(t *testing.T) {
		p := &fakePinger{failures: 2}
		err := WaitForConnection(context.Background(), p, time.Minute)
		assert.NoError(t, err)
		assert.Equal(t, 3, p.calls)
	})
	t.Run("gives up", func(t *testing.T) {
		p := &fakePinger{failures: 1000}
		err := WaitForConnection(context.Background(), p, 100*time.Millisecond)
		assert.Error(t, err)
		assert.Equal(t, 1, p.calls)
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &fakePinger{failures: 1000}
		err := WaitForConnection(ctx, p, time.Minute)
		assert.Error(t, err)
	})
}
