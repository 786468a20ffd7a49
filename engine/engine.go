// Package engine wires together the schema context, persistence store, lock
// manager, data manager, and notification processor into the single handle
// the Request Processor and its adapters operate against, mirroring how the
// teacher's server.go assembled one serverShard per store/adapter pair.
package engine

import (
	"github.com/sysrepo-go/sysrepod/datastore"
	"github.com/sysrepo-go/sysrepod/lockmgr"
	"github.com/sysrepo-go/sysrepod/notify"
	"github.com/sysrepo-go/sysrepod/persist"
	"github.com/sysrepo-go/sysrepod/schema"
	"github.com/sysrepo-go/sysrepod/srerr"
)

// Engine is the top-level handle shared by every connection and session.
type Engine struct {
	Schema   *schema.Context
	Store    *persist.Store
	Locks    *lockmgr.Manager
	Data     *datastore.Manager
	Notify   *notify.Processor
	Durable  *notify.DurableIndex
}

// Config describes the modules to install at startup.
type Config struct {
	DataDir string
	Modules []*schema.Module
}

// New builds an Engine, installs every configured module into the schema
// context, and loads its persisted running-tree content (spec.md's
// load-from-startup-at-boot rule).
func New(cfg Config, dispatcher notify.Dispatcher) (*Engine, *srerr.Error) {
	schemaCtx := schema.NewContext()
	store := persist.NewStore(cfg.DataDir)
	locks := lockmgr.NewManager()
	data := datastore.NewManager(schemaCtx, store, locks)
	notifier := notify.NewProcessor(dispatcher)
	durable := notify.NewDurableIndex()

	for _, mod := range cfg.Modules {
		schemaCtx.Install(mod)
	}
	for _, mod := range cfg.Modules {
		if err := data.LoadModule(mod.Name); err != nil {
			return nil, err
		}
	}
	if err := durable.RestoreInto(notifier); err != nil {
		return nil, err
	}

	return &Engine{
		Schema:  schemaCtx,
		Store:   store,
		Locks:   locks,
		Data:    data,
		Notify:  notifier,
		Durable: durable,
	}, nil
}
