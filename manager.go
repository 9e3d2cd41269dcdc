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
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// healthCheckParallelism bounds concurrent health checks in healthCheckAll,
// per §4.5.
const healthCheckParallelism = 16

// connectorManager owns the name-to-connector mapping shared by concurrent
// request handlers. Reads take a shared lock; the map is replaced wholesale
// only under an exclusive lock, during (re)initialization.
type connectorManager struct {
	mu         sync.RWMutex
	connectors map[string]connector
}

func newConnectorManager() *connectorManager {
	return &connectorManager{connectors: make(map[string]connector)}
}

// initialize constructs one connector per adapter concurrently. A single
// failure fails the whole call; unlike the reference implementation this
// discards partial successes rather than committing them — built results
// are accumulated locally and only swapped in under the exclusive lock
// once every adapter has connected successfully (see DESIGN.md).
func (m *connectorManager) initialize(ctx context.Context, adapters []Adapter, pool *PoolConfig) error {
	built := make([]connector, len(adapters))

	g, gctx := errgroup.WithContext(ctx)
	for i := range adapters {
		i := i
		g.Go(func() error {
			c, err := newConnector(gctx, &adapters[i], pool)
			if err != nil {
				return fmt.Errorf("adapter %q: %w", adapters[i].Name, err)
			}
			built[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	next := make(map[string]connector, len(adapters))
	for i := range adapters {
		next[adapters[i].Name] = built[i]
	}

	m.mu.Lock()
	m.connectors = next
	m.mu.Unlock()
	return nil
}

// get returns the named connector, or AdapterNotFound.
func (m *connectorManager) get(name string) (connector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.connectors[name]
	if !ok {
		return nil, errAdapterNotFound(name)
	}
	return c, nil
}

// has reports whether name is a registered connector.
func (m *connectorManager) has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.connectors[name]
	return ok
}

// names returns the registered connector names.
func (m *connectorManager) names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.connectors))
	for name := range m.connectors {
		out = append(out, name)
	}
	return out
}

// healthCheckAll snapshots the connector set under a shared lock, releases
// it, then runs health checks concurrently with bounded parallelism so
// that no single slow backend serializes the others.
func (m *connectorManager) healthCheckAll(ctx context.Context) map[string]error {
	m.mu.RLock()
	snapshot := make(map[string]connector, len(m.connectors))
	for name, c := range m.connectors {
		snapshot[name] = c
	}
	m.mu.RUnlock()

	results := make(map[string]error, len(snapshot))
	var resultsMu sync.Mutex

	sem := make(chan struct{}, healthCheckParallelism)
	var wg sync.WaitGroup
	for name, c := range snapshot {
		name, c := name, c
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			err := c.healthCheck(ctx)
			resultsMu.Lock()
			results[name] = err
			resultsMu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// closeAll invokes close on every connector, aggregating errors into a
// single report. Never panics on a backend failing to close.
func (m *connectorManager) closeAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []string
	for name, c := range m.connectors {
		if err := c.close(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if len(errs) > 0 {
		return errConnector("errors closing connectors: " + strings.Join(errs, ", "))
	}
	return nil
}
