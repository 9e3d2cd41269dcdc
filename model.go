/*
 * Copyright 2022 RapidLoop, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hyperterse

import (
	"fmt"
	"strconv"
	"strings"
)

//------------------------------------------------------------------------------
// core

// Connector identifies the kind of backend an Adapter connects to.
type Connector string

const (
	ConnectorPostgres Connector = "postgres"
	ConnectorMySQL    Connector = "mysql"
	ConnectorRedis    Connector = "redis"
	ConnectorMongoDB  Connector = "mongodb"
)

// Primitive is the declared type of a Query input.
type Primitive string

const (
	PrimitiveString   Primitive = "string"
	PrimitiveInt      Primitive = "int"
	PrimitiveFloat    Primitive = "float"
	PrimitiveBoolean  Primitive = "boolean"
	PrimitiveUUID     Primitive = "uuid"
	PrimitiveDatetime Primitive = "datetime"
)

// Model is the root configuration document: a named collection of
// Adapters and Queries, plus optional server and export settings. A Model
// is immutable once validated; the gateway holds a shared reference to it
// and replaces that reference atomically on hot reload.
type Model struct {
	// SchemaVersion, if present, must be a semver string compatible with
	// this build's SchemaVersion. Optional.
	SchemaVersion string `json:"schemaVersion,omitempty" yaml:"schemaVersion,omitempty"`

	// Name identifies this model/API. Required.
	Name string `json:"name" yaml:"name"`

	// Adapters declares the backends this model's queries may use, keyed
	// by adapter name in the source document but held here as a slice
	// sorted by name (the parser sorts; document order is not kept).
	Adapters []Adapter `json:"adapters,omitempty" yaml:"adapters,omitempty"`

	// Queries declares the named query templates this model exposes.
	Queries []Query `json:"queries,omitempty" yaml:"queries,omitempty"`

	// Server holds optional server-level settings (port, log level, pool
	// defaults).
	Server *ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`

	// Export holds optional documentation/export settings. The runtime
	// parses and preserves them but does not act on them.
	Export *ExportConfig `json:"export,omitempty" yaml:"export,omitempty"`
}

// FindAdapter returns the adapter with the given name, or nil.
func (m *Model) FindAdapter(name string) *Adapter {
	for i := range m.Adapters {
		if m.Adapters[i].Name == name {
			return &m.Adapters[i]
		}
	}
	return nil
}

// FindQuery returns the query with the given name, or nil.
func (m *Model) FindQuery(name string) *Query {
	for i := range m.Queries {
		if m.Queries[i].Name == name {
			return &m.Queries[i]
		}
	}
	return nil
}

// Port returns the configured server port, defaulting to 8080.
func (m *Model) Port() uint16 {
	if m.Server != nil && m.Server.Port != "" {
		if p, err := strconv.ParseUint(m.Server.Port, 10, 16); err == nil {
			return uint16(p)
		}
	}
	return 8080
}

// LogLevel returns the configured log level. It returns 1 (info) when
// the model has no server section; a server section without a log level
// yields 0.
func (m *Model) LogLevel() uint8 {
	if m.Server != nil {
		return m.Server.LogLevel
	}
	return 1
}

// ApplyPortOverride returns a copy of m whose effective port is p,
// regardless of whether m.Server was set. Used by the CLI -p/--port flag
// and preserved across hot reloads, per the command-line override rule.
func (m Model) ApplyPortOverride(p uint16) *Model {
	cp := m
	server := ServerConfig{}
	if m.Server != nil {
		server = *m.Server
	}
	server.Port = strconv.FormatUint(uint64(p), 10)
	cp.Server = &server
	return &cp
}

// Validate checks the model against every invariant in this package's
// documentation and returns a list of errors and warnings. An empty
// return value, or one containing only warnings, means the model is fit
// to run.
func (m *Model) Validate() []ValidationResult {
	return m.validate()
}

// ValidationResult holds one entry of the results of Model.Validate.
type ValidationResult struct {
	// Warn is true if the message is a warning, else it is an error.
	Warn bool

	// Message is the actual textual message describing the error or warning.
	Message string
}

// IsValid calls Validate and folds the errors (not warnings) into a
// single error, or nil if there are none.
func (m *Model) IsValid() error {
	var a []string
	for _, r := range m.Validate() {
		if !r.Warn {
			a = append(a, r.Message)
		}
	}
	if len(a) > 0 {
		return fmt.Errorf("%d error(s): %s", len(a), strings.Join(a, "; "))
	}
	return nil
}

//------------------------------------------------------------------------------
// adapter

// Adapter is a named declaration of a backend connector and its
// connection URL.
type Adapter struct {
	// Name is the adapter's identifier; referenced by Query.Adapter.
	Name string `json:"name" yaml:"name"`

	// Connector selects the backend kind: postgres, mysql, redis or mongodb.
	Connector Connector `json:"connector" yaml:"connector"`

	// URL is the connection string/DSN for this adapter. May contain
	// `{{ env.NAME }}` placeholders, resolved at parse time.
	URL string `json:"url" yaml:"url"`

	// Options, if present, is appended to URL as `k=v` pairs joined by
	// `&`, using `?` or `&` as the separator depending on whether URL
	// already contains a `?`.
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
}

// ConnectionString returns the adapter's URL with Options merged in.
func (a *Adapter) ConnectionString() string {
	if len(a.Options) == 0 {
		return a.URL
	}
	sep := "?"
	if strings.Contains(a.URL, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(a.URL)
	for k, v := range a.Options {
		b.WriteString(sep)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		sep = "&"
	}
	return b.String()
}

//------------------------------------------------------------------------------
// query

// Query is a named declaration mapping a statement template to an
// adapter and a set of typed inputs.
type Query struct {
	// Name identifies this query; used as the `/query/{name}` path and as
	// the MCP tool name.
	Name string `json:"name" yaml:"name"`

	// Adapter is the name of the Adapter this query executes against.
	Adapter string `json:"adapter" yaml:"adapter"`

	// Statement is opaque backend text: SQL for postgres/mysql, a
	// whitespace-separated command line for redis, or a JSON document for
	// mongodb. Parameterized with `{{ inputs.X }}` and `{{ env.X }}`.
	Statement string `json:"statement" yaml:"statement"`

	// Description is a human-readable summary, surfaced in /docs,
	// /llms.txt and MCP tools/list.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Inputs declares the typed parameters this query accepts.
	Inputs []Input `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// FindInput returns the named input, or nil.
func (q *Query) FindInput(name string) *Input {
	for i := range q.Inputs {
		if q.Inputs[i].Name == name {
			return &q.Inputs[i]
		}
	}
	return nil
}

// HasPlaceholders reports whether Statement contains any `{{ ... }}` token.
func (q *Query) HasPlaceholders() bool {
	return strings.Contains(q.Statement, "{{") && strings.Contains(q.Statement, "}}")
}

// Input is a typed parameter definition for a Query.
type Input struct {
	// Name identifies the input; referenced in the statement as
	// `{{ inputs.Name }}`.
	Name string `json:"name" yaml:"name"`

	// Type is the declared primitive type.
	Type Primitive `json:"type" yaml:"type"`

	// Required indicates the caller must supply a value. Defaults to true;
	// an input is optional only when explicitly marked so (see
	// Query.Inputs decoding in parse.go).
	Required bool `json:"required" yaml:"required"`

	// Default is the value substituted when an optional input is omitted.
	// Required when Required is false.
	Default any `json:"default,omitempty" yaml:"default,omitempty"`

	// Description is a human-readable summary of the input.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

//------------------------------------------------------------------------------
// server & export config

// ServerConfig holds optional server-level settings.
type ServerConfig struct {
	// Port, if set, must be convertible to a uint16. Defaults to 8080.
	Port string `json:"port,omitempty" yaml:"port,omitempty"`

	// LogLevel is 0 (error) through 3 (debug). Left unset it is 0; see
	// Model.LogLevel.
	LogLevel uint8 `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	// Pool holds the connection pool settings shared by every
	// postgres/mysql adapter; there is no per-adapter override.
	Pool *PoolConfig `json:"pool,omitempty" yaml:"pool,omitempty"`

	// HealthCheckInterval sets the interval (e.g. "30s") of the periodic
	// connectorManager.healthCheckAll sweep, which always runs; when empty
	// or unparseable, 30s is used. See jobs.go.
	HealthCheckInterval string `json:"healthCheckInterval,omitempty" yaml:"healthCheckInterval,omitempty"`
}

// PoolConfig configures a backend connection pool.
type PoolConfig struct {
	MaxConnections    uint32 `json:"maxConnections,omitempty" yaml:"maxConnections,omitempty"`
	MinConnections    uint32 `json:"minConnections,omitempty" yaml:"minConnections,omitempty"`
	AcquireTimeoutSec uint32 `json:"acquireTimeoutSecs,omitempty" yaml:"acquireTimeoutSecs,omitempty"`
	IdleTimeoutSec    uint32 `json:"idleTimeoutSecs,omitempty" yaml:"idleTimeoutSecs,omitempty"`
	MaxLifetimeSec    uint32 `json:"maxLifetimeSecs,omitempty" yaml:"maxLifetimeSecs,omitempty"`
}

// DefaultPoolConfig returns the spec's default pool settings.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConnections:    10,
		MinConnections:    1,
		AcquireTimeoutSec: 30,
		IdleTimeoutSec:    600,
		MaxLifetimeSec:    1800,
	}
}

// WithDefaults fills zero fields of p with DefaultPoolConfig's values.
func (p PoolConfig) WithDefaults() PoolConfig {
	d := DefaultPoolConfig()
	if p.MaxConnections == 0 {
		p.MaxConnections = d.MaxConnections
	}
	if p.MinConnections == 0 {
		p.MinConnections = d.MinConnections
	}
	if p.AcquireTimeoutSec == 0 {
		p.AcquireTimeoutSec = d.AcquireTimeoutSec
	}
	if p.IdleTimeoutSec == 0 {
		p.IdleTimeoutSec = d.IdleTimeoutSec
	}
	if p.MaxLifetimeSec == 0 {
		p.MaxLifetimeSec = d.MaxLifetimeSec
	}
	return p
}

// ExportConfig holds optional documentation/export settings, parsed and
// preserved but not acted on by the runtime.
type ExportConfig struct {
	BaseURL   string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	OutputDir string `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`
}
