// Package nosqlapi is a vendor-neutral client API for NOSQL drivers across
// the key-value, document, wide-column and graph paradigms.
//
// The contract lives in the sub-packages: pkg/types holds the core roles,
// the error taxonomy and Response; pkg/odm holds the value model; pkg/kvdb,
// pkg/docdb, pkg/columndb and pkg/graphdb refine the roles per paradigm.
// This package is the top-level namespace. It re-exports the core types and
// errors and provides the adapters drivers and callers share: the API alias
// registry, Manager, GlobalSession, CursorResponse, ApplyVendor and Respond.
package nosqlapi

import (
	"github.com/mesh-intelligence/nosqlapi/pkg/columndb"
	"github.com/mesh-intelligence/nosqlapi/pkg/docdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/graphdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/kvdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// APILevel is the contract version implemented by this module.
const APILevel = "1.0"

// Core roles.
type (
	Connection = types.Connection
	Connector  = types.Connector
	Session    = types.Session
	Selector   = types.Selector
	Batch      = types.Batch
	Executor   = types.Executor
	Result     = types.Result
	Row        = types.Row
	Params     = types.Params
	Config     = types.Config
	Error      = types.Error
	Kind       = types.Kind
)

// Response is the generic result envelope.
type Response[T any] = types.Response[T]

// Paradigm roles.
type (
	KVConnection = kvdb.Connection
	KVSession    = kvdb.Session
	KVSelector   = kvdb.Selector
	KVBatch      = kvdb.Batch

	DocConnection = docdb.Connection
	DocSession    = docdb.Session
	DocSelector   = docdb.Selector
	DocBatch      = docdb.Batch

	ColumnConnection = columndb.Connection
	ColumnSession    = columndb.Session
	ColumnSelector   = columndb.Selector
	ColumnBatch      = columndb.Batch

	GraphConnection = graphdb.Connection
	GraphSession    = graphdb.Session
	GraphSelector   = graphdb.Selector
	GraphBatch      = graphdb.Batch
)

// Error taxonomy.
var (
	ErrNoSQL             = types.ErrNoSQL
	ErrUnknown           = types.ErrUnknown
	ErrConnect           = types.ErrConnect
	ErrClose             = types.ErrClose
	ErrDatabase          = types.ErrDatabase
	ErrDatabaseCreation  = types.ErrDatabaseCreation
	ErrDatabaseDeletion  = types.ErrDatabaseDeletion
	ErrSession           = types.ErrSession
	ErrSessionInserting  = types.ErrSessionInserting
	ErrSessionUpdating   = types.ErrSessionUpdating
	ErrSessionDeleting   = types.ErrSessionDeleting
	ErrSessionClosing    = types.ErrSessionClosing
	ErrSessionFinding    = types.ErrSessionFinding
	ErrSessionACL        = types.ErrSessionACL
	ErrSelector          = types.ErrSelector
	ErrSelectorAttribute = types.ErrSelectorAttribute
)

// ApplyVendor sets the product label shown by String methods of the core
// types. An empty name restores the default.
func ApplyVendor(name string) { types.SetVendor(name) }

// Respond returns a successful Response carrying data.
func Respond[T any](data T) *types.Response[T] { return types.NewResponse(data) }
