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
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

//------------------------------------------------------------------------------
// cron

func newCron(logger zerolog.Logger) *cron.Cron {
	l := loggerForCron{logger}
	return cron.New(cron.WithLogger(&l))
}

type loggerForCron struct {
	logger zerolog.Logger
}

func (l *loggerForCron) Info(msg string, keysAndValues ...interface{}) {
	// too verbose
}

func (l *loggerForCron) Error(err error, msg string, keysAndValues ...interface{}) {
	e := l.logger.Error().Err(err).Bool("crond", true)
	for i := 0; i < len(keysAndValues)/2; i += 2 {
		e = e.Str(fmt.Sprintf("%v", keysAndValues[i]), fmt.Sprintf("%v", keysAndValues[i+1]))
	}
	e.Msg(msg)
}

//------------------------------------------------------------------------------
// periodic health check

const defaultHealthCheckInterval = 30 * time.Second

// setupHealthCheckJob schedules a single periodic job that runs
// healthCheckAll across every connector and logs any failures. The
// interval comes from Server.HealthCheckInterval (a Go duration string,
// e.g. "30s"), defaulting to defaultHealthCheckInterval when unset or
// unparseable.
func (g *Gateway) setupHealthCheckJob(model *Model) {
	interval := defaultHealthCheckInterval
	if model.Server != nil && model.Server.HealthCheckInterval != "" {
		if d, err := time.ParseDuration(model.Server.HealthCheckInterval); err == nil && d > 0 {
			interval = d
		} else {
			g.logger.Warn().Str("healthCheckInterval", model.Server.HealthCheckInterval).
				Msg("invalid health check interval, using default")
		}
	}

	spec := fmt.Sprintf("@every %s", interval)
	if _, err := g.c.AddFunc(spec, g.runHealthCheckJob); err != nil {
		g.logger.Error().Err(err).Msg("failed to schedule health check job")
	}
}

func (g *Gateway) runHealthCheckJob() {
	mgr := g.connectors.Load()
	if mgr == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	results := mgr.healthCheckAll(ctx)
	for name, err := range results {
		if err != nil {
			g.logger.Warn().Str("adapter", name).Err(err).Msg("adapter health check failed")
		}
	}
}
