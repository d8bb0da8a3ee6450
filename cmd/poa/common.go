package main

import (
	"context"
	"database/sql"

	"github.com/markstefanovic/poa/internal/appconfig"
	"github.com/markstefanovic/poa/internal/auditlog"
	"github.com/markstefanovic/poa/internal/dbconfig"
	"github.com/markstefanovic/poa/internal/driverconn"
	postgresdst "github.com/markstefanovic/poa/internal/dstds/postgres"
	"github.com/markstefanovic/poa/internal/schemacache"
)

// session bundles everything a subcommand needs once the config file is
// loaded and both connections are open: the source connection/config,
// the destination connection, and the two poa-schema-backed services
// every operation touches (schema cache, audit log).
type session struct {
	cfg    appconfig.File
	srcCfg dbconfig.Config
	srcDB  *sql.DB
	dstCfg dbconfig.Config
	dstDB  *sql.DB
	cache  *schemacache.Cache
	audit  *auditlog.Log
}

func (s *session) Close() {
	if s.srcDB != nil {
		_ = s.srcDB.Close()
	}
	if s.dstDB != nil {
		_ = s.dstDB.Close()
	}
}

// openSession loads the config file, resolves the named source and
// destination entries, opens both connections, and bootstraps the
// destination's poa audit/cache schema.
func openSession(ctx context.Context, srcDbName, dstDbName string) (*session, error) {
	path, err := requireConfigPath()
	if err != nil {
		return nil, err
	}

	cfgFile, err := appconfig.Load(path)
	if err != nil {
		return nil, err
	}

	lookup := appconfig.EnvCredentialLookup{}

	srcCfg, err := appconfig.Resolve(cfgFile, srcDbName, lookup)
	if err != nil {
		return nil, err
	}
	dstCfg, err := appconfig.Resolve(cfgFile, dstDbName, lookup)
	if err != nil {
		return nil, err
	}

	srcDB, err := driverconn.Open(ctx, srcCfg)
	if err != nil {
		return nil, err
	}

	dstDB, err := driverconn.OpenDestination(ctx, dstCfg)
	if err != nil {
		_ = srcDB.Close()
		return nil, err
	}

	if err := postgresdst.Bootstrap(ctx, dstDB); err != nil {
		_ = srcDB.Close()
		_ = dstDB.Close()
		return nil, err
	}

	return &session{
		cfg:    cfgFile,
		srcCfg: srcCfg,
		srcDB:  srcDB,
		dstCfg: dstCfg,
		dstDB:  dstDB,
		cache:  schemacache.New(dstDB),
		audit:  auditlog.New(dstDB),
	}, nil
}

func effectiveBatchSize(cfg appconfig.File, flagValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return cfg.BatchSize
}
