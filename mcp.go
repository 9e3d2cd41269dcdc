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
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MCP (Model Context Protocol) transport: JSON-RPC 2.0 over POST /mcp,
// with an optional GET /mcp SSE stream for server-initiated messages and
// DELETE /mcp for session teardown, per §4.8. Grounded on the reference
// handler's method dispatch and on the teacher's streams.go broadcast/
// fan-out idiom (bounded lossy queue, SSE keep-alive ticker, flush after
// every event).
const (
	mcpSessionIDHeader       = "Mcp-Session-Id"
	mcpLatestProtocolVersion = "2025-11-25"
)

const (
	jsonrpcParseError     = -32700
	jsonrpcInvalidRequest = -32600
	jsonrpcMethodNotFound = -32601
	jsonrpcInvalidParams  = -32602
	jsonrpcInternalError  = -32603
)

type jsonrpcMessage struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

type mcpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type mcpResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *mcpError       `json:"error,omitempty"`
}

// normalizeID substitutes a JSON null for an absent id, since JSON-RPC
// error responses must carry an id field even when the request's id
// could not be determined.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

func mcpSuccess(id json.RawMessage, result any) mcpResponse {
	return mcpResponse{Jsonrpc: "2.0", ID: normalizeID(id), Result: result}
}

func mcpErrorResponse(id json.RawMessage, code int, message string) mcpResponse {
	return mcpResponse{Jsonrpc: "2.0", ID: normalizeID(id), Error: &mcpError{Code: code, Message: message}}
}

//------------------------------------------------------------------------------
// session store

// mcpSessionQueueCapacity bounds the number of pending server-initiated
// messages per session, per §4.8.
const mcpSessionQueueCapacity = 128

type mcpSession struct {
	id      string
	queue   chan []byte
	seq     uint64
	closed  bool
	closeMu sync.Mutex
}

func newMCPSession() *mcpSession {
	return &mcpSession{
		id:    uuid.NewString(),
		queue: make(chan []byte, mcpSessionQueueCapacity),
	}
}

// nextEventSeq returns the next monotonic SSE event id for this session.
func (s *mcpSession) nextEventSeq() uint64 {
	return atomic.AddUint64(&s.seq, 1)
}

// send enqueues a message for this session's SSE stream. It never blocks:
// if the queue is full, the session is closed rather than stalling the
// caller (a slow consumer loses the stream, not the server).
func (s *mcpSession) send(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			// queue already closed by a concurrent full-queue close
		}
	}()
	select {
	case s.queue <- payload:
	default:
		s.closeQueue()
	}
}

func (s *mcpSession) closeQueue() {
	s.closeMu.Lock()
	if !s.closed {
		close(s.queue)
		s.closed = true
	}
	s.closeMu.Unlock()
}

// sessionStore is the in-memory MCP session registry.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*mcpSession
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*mcpSession)}
}

func (s *sessionStore) create() *mcpSession {
	sess := newMCPSession()
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess
}

func (s *sessionStore) get(id string) *mcpSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

func (s *sessionStore) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

//------------------------------------------------------------------------------
// POST /mcp - JSON-RPC dispatch

func (g *Gateway) handleMCPPost(w http.ResponseWriter, r *http.Request) {
	var msg jsonrpcMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, mcpErrorResponse(nil, jsonrpcParseError, "Parse error"))
		return
	}

	if msg.Jsonrpc != "2.0" {
		writeJSON(w, http.StatusBadRequest, mcpErrorResponse(msg.ID, jsonrpcInvalidRequest, "Invalid JSON-RPC version"))
		return
	}

	// A message with no method but a result/error is a response from the
	// client to a server-initiated request; just acknowledge it.
	if msg.Method == "" && (len(msg.Result) > 0 || len(msg.Error) > 0) {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if msg.Method == "" {
		writeJSON(w, http.StatusBadRequest, mcpErrorResponse(msg.ID, jsonrpcInvalidRequest, "Invalid JSON-RPC message"))
		return
	}

	// A notification (no id) is accepted without a response body.
	if len(msg.ID) == 0 {
		g.logger.Info().Str("method", msg.Method).Msg("mcp notification")
		w.WriteHeader(http.StatusAccepted)
		return
	}

	switch msg.Method {
	case "initialize":
		g.handleMCPInitialize(w, msg.ID)
	case "ping":
		writeJSON(w, http.StatusOK, mcpSuccess(msg.ID, map[string]any{}))
	case "tools/list":
		g.handleMCPToolsList(w, msg.ID)
	case "tools/call":
		g.handleMCPToolsCall(w, r, msg.ID, msg.Params)
	default:
		writeJSON(w, http.StatusOK, mcpErrorResponse(msg.ID, jsonrpcMethodNotFound, "Method not found: "+msg.Method))
	}
}

func (g *Gateway) handleMCPInitialize(w http.ResponseWriter, id json.RawMessage) {
	sess := g.sessions.create()
	result := map[string]any{
		"protocolVersion": mcpLatestProtocolVersion,
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo":      map[string]any{"name": "hyperterse", "version": "1.0.0"},
	}
	w.Header().Set(mcpSessionIDHeader, sess.id)
	writeJSON(w, http.StatusOK, mcpSuccess(id, result))
}

func (g *Gateway) handleMCPToolsList(w http.ResponseWriter, id json.RawMessage) {
	model := g.model.Load()
	tools := make([]map[string]any, 0, len(model.Queries))
	for i := range model.Queries {
		q := &model.Queries[i]
		properties, required := inputSchemaFor(q)
		tools = append(tools, map[string]any{
			"name":        q.Name,
			"description": q.Description,
			"inputSchema": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		})
	}
	writeJSON(w, http.StatusOK, mcpSuccess(id, map[string]any{"tools": tools}))
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (g *Gateway) handleMCPToolsCall(w http.ResponseWriter, r *http.Request, id json.RawMessage, rawParams json.RawMessage) {
	var params toolCallParams
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &params); err != nil {
			writeJSON(w, http.StatusOK, mcpErrorResponse(id, jsonrpcInvalidParams, "Invalid params"))
			return
		}
	}
	if params.Name == "" {
		writeJSON(w, http.StatusOK, mcpErrorResponse(id, jsonrpcInvalidParams, "Missing tool name"))
		return
	}

	executor := g.executor.Load()
	results, err := executor.execute(r.Context(), params.Name, params.Arguments)
	if err != nil {
		he := asError(err)
		text := fmt.Sprintf("Error: %s", he.Sanitized())
		writeJSON(w, http.StatusOK, mcpSuccess(id, map[string]any{
			"content": []map[string]any{{"type": "text", "text": text}},
			"isError": true,
		}))
		return
	}

	encoded, _ := json.MarshalIndent(results, "", "  ")
	writeJSON(w, http.StatusOK, mcpSuccess(id, map[string]any{
		"content": []map[string]any{{"type": "text", "text": string(encoded)}},
	}))
}

//------------------------------------------------------------------------------
// GET /mcp - SSE stream, DELETE /mcp - session teardown

const (
	mcpSSEKeepAliveInterval = time.Minute
)

func (g *Gateway) handleMCPSSE(w http.ResponseWriter, r *http.Request) {
	sess := g.sessions.get(r.Header.Get(mcpSessionIDHeader))
	if sess == nil {
		if r.Header.Get(mcpSessionIDHeader) != "" {
			http.Error(w, `{"error":"Unknown MCP session"}`, http.StatusNotFound)
			return
		}
		sess = g.sessions.create()
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	// prime the client with an event id and empty data field
	fmt.Fprintf(w, "id: %d\ndata: \n\n", sess.nextEventSeq())
	flush()

	ticker := time.NewTicker(mcpSSEKeepAliveInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case payload, ok := <-sess.queue:
			if !ok {
				return
			}
			id := sess.nextEventSeq()
			for _, line := range strings.Split(string(payload), "\n") {
				fmt.Fprintf(w, "data: %s\n", line)
			}
			fmt.Fprintf(w, "id: %d\n\n", id)
			flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flush()

		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handleMCPDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(mcpSessionIDHeader)
	if id == "" {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No session to terminate"})
		return
	}
	if g.sessions.remove(id) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Session terminated"})
	} else {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown MCP session"})
	}
}
