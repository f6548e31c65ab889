// Package loom is a relational-database access toolkit: a database-agnostic
// query builder that compiles structured expressions into dialect-specific
// SQL plus bound parameter vectors, paired with an active-record model layer
// that projects rows into domain objects, tracks dirtiness, manages
// relationships with eager loading, and enforces lifecycle hooks.
//
// # Supported Dialects
//
//   - MySQL / MariaDB
//   - PostgreSQL
//   - SQLite
//   - MSSQL
//
// # Sub-packages
//
//   - dialect: dialect constants and driver contracts
//   - query: expression AST, dialect grammars and the fluent Builder
//   - connection: named-connection registry, transactions and raw statements
//   - model: metadata, instances, relationships and the eager loader
//   - collection: ordered generic collections
//   - migration: blueprint DSL, DDL platforms and the migration ledger
//
// # Usage
//
// Register connection details once at startup:
//
//	connection.SetConnectionDetails(connection.Details{
//	    Default: "mysql",
//	    Connections: map[string]connection.Config{
//	        "mysql": {Driver: dialect.MySQL, Host: "127.0.0.1", Database: "app", User: "root"},
//	    },
//	})
//
// Build and run queries:
//
//	rows, err := query.NewBuilder(query.MySQLGrammar()).
//	    On(connection.Default().Executor("mysql")).
//	    Table("users").
//	    Where("active", 1).
//	    Get(ctx)
//
// Define models and let the active-record layer hydrate, track and persist:
//
//	users := model.MustDefine(model.Definition{Name: "User"})
//	u, err := users.Find(ctx, 1)
//
// The root package holds the error taxonomy shared by every sub-package.
package loom
