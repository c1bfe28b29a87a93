//go:build !duckdb

package duckdb

import (
	"context"
	"errors"

	"github.com/sadopc/dbcrawl/internal/adapter"
)

var errDisabled = errors.New("DuckDB support not compiled in. Rebuild with -tags duckdb")

func init() {
	adapter.Register(&disabledAdapter{})
}

// disabledAdapter keeps duckdb in the adapter list of builds without cgo
// support so that users learn how to enable it.
type disabledAdapter struct{}

func (d *disabledAdapter) Name() string     { return "duckdb" }
func (d *disabledAdapter) DefaultPort() int { return 0 }

func (d *disabledAdapter) Connect(_ context.Context, _ string) (adapter.Connection, error) {
	return nil, errDisabled
}
