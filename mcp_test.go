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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMCPInitializeReturnsSessionHeader(t *testing.T) {
	r := require.New(t)
	g := testGateway(t, handlerModel(), &fakeConnector{})

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()
	router(g).ServeHTTP(w, req)

	r.Equal(http.StatusOK, w.Code)
	r.NotEmpty(w.Header().Get(mcpSessionIDHeader))

	var resp mcpResponse
	r.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	r.Equal("2.0", resp.Jsonrpc)
	r.Nil(resp.Error)
}

func TestMCPPingRoundTrips(t *testing.T) {
	r := require.New(t)
	g := testGateway(t, handlerModel(), &fakeConnector{})

	body := `{"jsonrpc":"2.0","id":"abc","method":"ping"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()
	router(g).ServeHTTP(w, req)

	r.Equal(http.StatusOK, w.Code)
	var resp mcpResponse
	r.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	r.Equal(json.RawMessage(`"abc"`), resp.ID)
}

func TestMCPToolsListExposesQueries(t *testing.T) {
	r := require.New(t)
	g := testGateway(t, handlerModel(), &fakeConnector{})

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()
	router(g).ServeHTTP(w, req)

	r.Equal(http.StatusOK, w.Code)
	var resp struct {
		Result struct {
			Tools []map[string]any `json:"tools"`
		} `json:"result"`
	}
	r.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	r.Len(resp.Result.Tools, 2)
	r.Equal("get-order", resp.Result.Tools[0]["name"])
}

func TestMCPToolsCallSuccess(t *testing.T) {
	r := require.New(t)
	g := testGateway(t, handlerModel(), &fakeConnector{rows: []Row{{"id": 1}}})

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get-order","arguments":{"id":1}}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()
	router(g).ServeHTTP(w, req)

	r.Equal(http.StatusOK, w.Code)
	var resp struct {
		Result struct {
			Content []map[string]any `json:"content"`
			IsError bool              `json:"isError"`
		} `json:"result"`
	}
	r.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	r.False(resp.Result.IsError)
	r.Contains(resp.Result.Content[0]["text"], "\"id\": 1")
}

func TestMCPToolsCallErrorSetsIsError(t *testing.T) {
	r := require.New(t)
	g := testGateway(t, handlerModel(), &fakeConnector{})

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nope","arguments":{}}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()
	router(g).ServeHTTP(w, req)

	r.Equal(http.StatusOK, w.Code)
	var resp struct {
		Result struct {
			Content []map[string]any `json:"content"`
			IsError bool              `json:"isError"`
		} `json:"result"`
	}
	r.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	r.True(resp.Result.IsError)
}

func TestMCPUnknownMethodReturnsMethodNotFound(t *testing.T) {
	r := require.New(t)
	g := testGateway(t, handlerModel(), &fakeConnector{})

	body := `{"jsonrpc":"2.0","id":1,"method":"does/not/exist"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()
	router(g).ServeHTTP(w, req)

	var resp mcpResponse
	r.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	r.NotNil(resp.Error)
	r.Equal(jsonrpcMethodNotFound, resp.Error.Code)
}

func TestMCPNotificationReturnsAcceptedNoBody(t *testing.T) {
	r := require.New(t)
	g := testGateway(t, handlerModel(), &fakeConnector{})

	body := `{"jsonrpc":"2.0","method":"notifications/initialized"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()
	router(g).ServeHTTP(w, req)

	r.Equal(http.StatusAccepted, w.Code)
	r.Empty(w.Body.String())
}

func TestMCPInvalidJSONRPCVersionRejected(t *testing.T) {
	r := require.New(t)
	g := testGateway(t, handlerModel(), &fakeConnector{})

	body := `{"jsonrpc":"1.0","id":1,"method":"ping"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()
	router(g).ServeHTTP(w, req)

	r.Equal(http.StatusBadRequest, w.Code)
}

func TestMCPParseErrorCarriesNullID(t *testing.T) {
	r := require.New(t)
	g := testGateway(t, handlerModel(), &fakeConnector{})

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	router(g).ServeHTTP(w, req)

	r.Equal(http.StatusBadRequest, w.Code)
	r.JSONEq(`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`, w.Body.String())
}

func TestMCPDeleteUnknownSession(t *testing.T) {
	r := require.New(t)
	g := testGateway(t, handlerModel(), &fakeConnector{})

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set(mcpSessionIDHeader, "does-not-exist")
	w := httptest.NewRecorder()
	router(g).ServeHTTP(w, req)

	r.Equal(http.StatusNotFound, w.Code)
}

func TestMCPDeleteKnownSession(t *testing.T) {
	r := require.New(t)
	g := testGateway(t, handlerModel(), &fakeConnector{})
	sess := g.sessions.create()

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set(mcpSessionIDHeader, sess.id)
	w := httptest.NewRecorder()
	router(g).ServeHTTP(w, req)

	r.Equal(http.StatusOK, w.Code)
	r.Nil(g.sessions.get(sess.id))
}

func TestSessionStoreCreateGetRemove(t *testing.T) {
	r := require.New(t)
	s := newSessionStore()
	sess := s.create()
	r.NotNil(s.get(sess.id))
	r.True(s.remove(sess.id))
	r.False(s.remove(sess.id))
	r.Nil(s.get(sess.id))
}

func TestMCPSessionSendClosesQueueWhenFull(t *testing.T) {
	r := require.New(t)
	sess := newMCPSession()
	for i := 0; i < mcpSessionQueueCapacity; i++ {
		sess.send([]byte("x"))
	}
	// one more send finds the queue full and closes it instead of blocking.
	sess.send([]byte("overflow"))
	// the buffered messages stay readable, then the closed queue ends the loop.
	_, ok := <-sess.queue
	n := 0
	for ok {
		n++
		_, ok = <-sess.queue
	}
	r.Equal(mcpSessionQueueCapacity, n)
}

func TestNormalizeID(t *testing.T) {
	r := require.New(t)
	r.Equal(json.RawMessage("null"), normalizeID(nil))
	r.Equal(json.RawMessage(`5`), normalizeID(json.RawMessage(`5`)))
}
