// Package gateway provides the public API for embedding the API gateway.
// This is the stable API for external consumers.
package gateway

import (
	"github.com/tjfontaine/polyglot-llm-gateway/internal/runtime"
)

// Gateway is the main entry point for running the gateway.
// See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// New creates a new Gateway with the given options.
// Example:
//
//	gw, err := gateway.New(
//	    gateway.WithConfig(),
//	    gateway.WithSQLiteStore("./data/gateway.db"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithConfig      = runtime.WithConfig
	WithConfigValue = runtime.WithConfigValue

	// Cache backend
	WithRedisCache    = runtime.WithRedisCache
	WithCacheProvider = runtime.WithCacheProvider

	// Route/tenant store
	WithSQLiteStore  = runtime.WithSQLiteStore
	WithStoreProvider = runtime.WithStoreProvider

	// Advanced options
	WithLogger = runtime.WithLogger
)
