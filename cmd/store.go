package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/carloslaurellineves/websearch-agent/internal/store"
)

// initStore opens the run history configured by HISTORY_DB. A disabled
// history yields store.Nop.
func initStore(ctx context.Context) (store.Store, error) {
	path := cfg.HistoryPath()
	if path == "" {
		return store.Nop{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrapf(err, "create history dir for %s", path)
	}

	st, err := store.NewSQLite(path)
	if err != nil {
		return nil, eris.Wrap(err, "open history store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate history store")
	}
	return st, nil
}
