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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const (
	readTimeout     = time.Minute
	writeTimeout    = 5 * time.Minute
	idleTimeout     = 2 * time.Minute
	requestTimeout  = 30 * time.Second // §4.7 request timeout
	defaultDebounce = 500 * time.Millisecond
)

// RuntimeInterface supplies caller-owned dependencies to a Gateway: the
// logger, and (when running with -d/--dev) hot-reload settings. Modeled
// on the teacher's RuntimeInterface extensibility struct.
type RuntimeInterface struct {
	Logger *zerolog.Logger

	// DevMode enables the hot-reload controller (§4.9).
	DevMode bool

	// DebounceWindow overrides the default 500ms reload debounce window.
	DebounceWindow time.Duration

	// PortOverride, if non-zero, is applied to every (re)load via
	// Model.ApplyPortOverride, per §6's exit-code/override rule.
	PortOverride uint16
}

// Gateway is the runtime: it parses and validates a configuration file,
// connects the declared adapters, and serves the HTTP and MCP surfaces
// described by §4.7/§4.8. Hot reload (§4.9) atomically swaps the model,
// connector manager, and executor references; in-flight requests keep
// using the reference they captured on entry.
type Gateway struct {
	rti  *RuntimeInterface
	path string // config file path, for hot reload
	srv  *http.Server
	c    *cron.Cron

	logger zerolog.Logger

	model      atomic.Pointer[Model]
	connectors atomic.Pointer[connectorManager]
	executor   atomic.Pointer[queryExecutor]

	sessions *sessionStore

	reload *reloadController
}

// NewGateway validates model and constructs a Gateway ready to Start. The
// returned Gateway does not yet own any connectors; Start connects them.
func NewGateway(path string, model *Model, rti *RuntimeInterface) (*Gateway, error) {
	if model == nil {
		return nil, errors.New("invalid model: is nil")
	}
	if err := model.IsValid(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}

	g := &Gateway{rti: rti, path: path}
	if rti != nil && rti.Logger != nil {
		g.logger = *rti.Logger
	} else {
		g.logger = zerolog.Nop()
	}

	effective := model
	if rti != nil && rti.PortOverride != 0 {
		effective = model.ApplyPortOverride(rti.PortOverride)
	}
	g.model.Store(effective)
	g.sessions = newSessionStore()
	g.c = newCron(g.logger)

	return g, nil
}

// Start connects the configured adapters, starts the periodic
// health-check job and, in dev mode, the hot-reload watcher, and begins
// serving HTTP.
func (g *Gateway) Start() error {
	ctx := context.Background()
	model := g.model.Load()

	mgr := newConnectorManager()
	if err := mgr.initialize(ctx, model.Adapters, poolConfigOf(model)); err != nil {
		g.logger.Error().Err(err).Msg("failed to initialize connectors")
		return err
	}
	g.connectors.Store(mgr)
	g.executor.Store(newQueryExecutor(model, mgr))

	g.setupHealthCheckJob(model)
	g.c.Start()

	if g.rti != nil && g.rti.DevMode && g.path != "" {
		debounce := defaultDebounce
		if g.rti.DebounceWindow > 0 {
			debounce = g.rti.DebounceWindow
		}
		rc, err := newReloadController(g, g.path, debounce)
		if err != nil {
			g.logger.Warn().Err(err).Msg("hot reload disabled: failed to start file watcher")
		} else {
			g.reload = rc
			rc.start()
		}
	}

	r := chi.NewRouter()
	g.setupRouter(r)

	port := model.Port()
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	g.srv = &http.Server{
		Handler:      r,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	go g.srv.Serve(ln)
	g.logger.Info().Int("port", int(port)).Msg("gateway started")
	return nil
}

// Stop drains in-flight requests (up to timeout), then closes all
// connectors. Connector close errors are logged, not fatal.
func (g *Gateway) Stop(timeout time.Duration) error {
	if g.reload != nil {
		g.reload.stop()
	}
	g.c.Stop()

	if g.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := g.srv.Shutdown(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("error shutting down http server")
		}
	}

	if mgr := g.connectors.Load(); mgr != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := mgr.closeAll(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("error closing connectors")
		}
	}
	return nil
}

func poolConfigOf(m *Model) *PoolConfig {
	if m.Server != nil {
		return m.Server.Pool
	}
	return nil
}

func (g *Gateway) setupRouter(r chi.Router) {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	r.Use(c.Handler)
	r.Use(middleware.Timeout(requestTimeout))

	r.Post("/query/{name}", g.handleQuery)
	r.Get("/docs", g.handleDocs)
	r.Get("/llms.txt", g.handleLLMsTxt)
	r.Get("/health", g.handleHealth)

	r.Post("/mcp", g.handleMCPPost)
	r.Get("/mcp", g.handleMCPSSE)
	r.Delete("/mcp", g.handleMCPDelete)
}

//------------------------------------------------------------------------------
// /query/{name}

type queryRequest struct {
	Inputs map[string]any `json:"inputs"`
}

type queryResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Results []Row  `json:"results"`
}

func (g *Gateway) handleQuery(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req queryRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			writeJSON(w, http.StatusBadRequest, queryResponse{Success: false, Error: "invalid request body", Results: []Row{}})
			return
		}
	}

	executor := g.executor.Load()
	results, err := executor.execute(r.Context(), name, req.Inputs)
	if err != nil {
		he := asError(err)
		g.logger.Error().Str("query", name).Err(err).Msg("query failed")
		writeJSON(w, he.StatusCode(), queryResponse{Success: false, Error: he.Sanitized(), Results: []Row{}})
		return
	}

	if results == nil {
		results = []Row{}
	}
	writeJSON(w, http.StatusOK, queryResponse{Success: true, Results: results})
}

//------------------------------------------------------------------------------
// /docs, /llms.txt, /health

func (g *Gateway) handleDocs(w http.ResponseWriter, r *http.Request) {
	model := g.model.Load()
	writeJSON(w, http.StatusOK, generateOpenAPISpec(model))
}

func (g *Gateway) handleLLMsTxt(w http.ResponseWriter, r *http.Request) {
	model := g.model.Load()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%s\n\n", model.Name)
	for i := range model.Queries {
		q := &model.Queries[i]
		desc := q.Description
		if desc == "" {
			desc = q.Name
		}
		fmt.Fprintf(w, "POST /query/%s - %s\n", q.Name, desc)
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// asError normalizes any error returned by the executor into *Error,
// treating an unrecognized error as an internal server error.
func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindServer, Message: "Internal server error"}
}

//------------------------------------------------------------------------------
// OpenAPI / tool schema generation, shared by /docs and MCP tools/list

type jsonSchemaProp struct {
	Type        string `json:"type"`
	Format      string `json:"format,omitempty"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// primitiveJSONSchema maps a primitive to its {type, format?} pair, per
// §4.7/§4.8's shared primitive mapping.
func primitiveJSONSchema(t Primitive) (typ string, format string) {
	switch t {
	case PrimitiveInt:
		return "integer", "int64"
	case PrimitiveFloat:
		return "number", "double"
	case PrimitiveUUID:
		return "string", "uuid"
	case PrimitiveDatetime:
		return "string", "date-time"
	case PrimitiveBoolean:
		return "boolean", ""
	default:
		return "string", ""
	}
}

func inputSchemaFor(q *Query) (properties map[string]jsonSchemaProp, required []string) {
	properties = make(map[string]jsonSchemaProp, len(q.Inputs))
	for i := range q.Inputs {
		in := &q.Inputs[i]
		typ, format := primitiveJSONSchema(in.Type)
		properties[in.Name] = jsonSchemaProp{
			Type:        typ,
			Format:      format,
			Description: in.Description,
			Default:     in.Default,
		}
		if in.Required {
			required = append(required, in.Name)
		}
	}
	return
}

func generateOpenAPISpec(m *Model) map[string]any {
	paths := make(map[string]any, len(m.Queries))
	for i := range m.Queries {
		q := &m.Queries[i]
		properties, required := inputSchemaFor(q)
		summary := q.Description
		if summary == "" {
			summary = q.Name
		}
		paths[fmt.Sprintf("/query/%s", q.Name)] = map[string]any{
			"post": map[string]any{
				"summary":     summary,
				"operationId": strings.ReplaceAll(q.Name, "-", "_"),
				"tags":        []string{"queries"},
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"inputs": map[string]any{
										"type":       "object",
										"properties": properties,
										"required":   required,
									},
								},
							},
						},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{"description": "Successful response"},
					"400": map[string]any{"description": "Bad request - validation error"},
					"404": map[string]any{"description": "Query not found"},
					"500": map[string]any{"description": "Internal server error"},
				},
			},
		}
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       m.Name,
			"version":     "1.0.0",
			"description": fmt.Sprintf("API generated by hyperterse for %s", m.Name),
		},
		"servers": []map[string]any{
			{"url": fmt.Sprintf("http://localhost:%d", m.Port()), "description": "Local server"},
		},
		"paths": paths,
	}
}
