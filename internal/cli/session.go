package cli

import (
	"context"

	"github.com/roach88/vaultrev/internal/config"
	"github.com/roach88/vaultrev/internal/engine"
	"github.com/roach88/vaultrev/internal/store"
)

// openStore opens the backend described by db.
func openStore(ctx context.Context, db config.Database, what string) (*store.Store, error) {
	if !db.Configured() {
		return nil, NewExitError(ExitCommandError, "no "+what+" configured: pass --db or set database.path / database.dsn")
	}
	st, err := store.OpenConfig(ctx, db)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open "+what, err)
	}
	return st, nil
}

// openEngine opens the configured local database and builds an engine
// over it. The returned close func releases the store.
func (o *RootOptions) openEngine(ctx context.Context) (*engine.Engine, func(), error) {
	st, err := openStore(ctx, o.Config.Database, "database")
	if err != nil {
		return nil, nil, err
	}
	return o.newEngine(st), func() { st.Close() }, nil
}

func (o *RootOptions) newEngine(st *store.Store) *engine.Engine {
	return engine.New(st,
		engine.WithLogger(o.Logger),
		engine.WithStrictResolve(o.Config.Resolve.Strict),
	)
}
