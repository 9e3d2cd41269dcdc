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
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetupHealthCheckJobUsesConfiguredInterval(t *testing.T) {
	r := require.New(t)
	g, err := NewGateway("", handlerModel(), nil)
	r.NoError(err)

	model := handlerModel()
	model.Server = &ServerConfig{HealthCheckInterval: "1m"}
	g.setupHealthCheckJob(model)
	r.Len(g.c.Entries(), 1)
	r.Equal(cron.Every(time.Minute), g.c.Entries()[0].Schedule)
}

func TestSetupHealthCheckJobFallsBackOnInvalidInterval(t *testing.T) {
	r := require.New(t)
	g, err := NewGateway("", handlerModel(), nil)
	r.NoError(err)

	model := handlerModel()
	model.Server = &ServerConfig{HealthCheckInterval: "not-a-duration"}
	g.setupHealthCheckJob(model)
	r.Len(g.c.Entries(), 1)
	r.Equal(cron.Every(defaultHealthCheckInterval), g.c.Entries()[0].Schedule)
}

func TestRunHealthCheckJobNoConnectors(t *testing.T) {
	r := require.New(t)
	g, err := NewGateway("", handlerModel(), nil)
	r.NoError(err)
	r.NotPanics(func() { g.runHealthCheckJob() })
}

func TestRunHealthCheckJobReportsFailures(t *testing.T) {
	r := require.New(t)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	g, err := NewGateway("", handlerModel(), &RuntimeInterface{Logger: &logger})
	r.NoError(err)

	mgr := newConnectorManager()
	mgr.connectors["db"] = &fakeHealthConnector{err: errDatabase("unreachable")}
	g.connectors.Store(mgr)

	r.NotPanics(func() { g.runHealthCheckJob() })
	r.Contains(buf.String(), "adapter health check failed")
	r.Contains(buf.String(), `"adapter":"db"`)
}

type fakeHealthConnector struct {
	err error
}

func (f *fakeHealthConnector) execute(ctx context.Context, statement string, params map[string]any) ([]Row, error) {
	return nil, nil
}
func (f *fakeHealthConnector) close(ctx context.Context) error       { return nil }
func (f *fakeHealthConnector) healthCheck(ctx context.Context) error { return f.err }
func (f *fakeHealthConnector) kind() Connector                       { return ConnectorPostgres }
