package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/finopslab/costlens/internal/config"
	"github.com/finopslab/costlens/internal/connection"
	"github.com/finopslab/costlens/internal/costanalysis"
	"github.com/finopslab/costlens/internal/migration"
	"github.com/finopslab/costlens/internal/observability"
	"github.com/finopslab/costlens/internal/refresh"
	"github.com/finopslab/costlens/internal/reservation"
	"github.com/finopslab/costlens/internal/server"
	"github.com/finopslab/costlens/internal/storage"
	"github.com/finopslab/costlens/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,

		// Functional domains
		connection.Module,
		storage.Module,
		costanalysis.Module,
		reservation.Module,
		refresh.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
