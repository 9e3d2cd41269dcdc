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

import "context"

// Row is one result row: a mapping from column/field name to a JSON value.
type Row map[string]any

// connector is the uniform interface every backend implements, per §4.4.
// execute is called after template substitution; params is passed
// through for future use but is not consumed by the current
// dialect-textual escaping path.
type connector interface {
	execute(ctx context.Context, statement string, params map[string]any) ([]Row, error)
	close(ctx context.Context) error
	healthCheck(ctx context.Context) error
	kind() Connector
}

// newConnector constructs the connector for a.Connector, connecting with
// pool defaults from pool (nil means DefaultPoolConfig).
func newConnector(ctx context.Context, a *Adapter, pool *PoolConfig) (connector, error) {
	cfg := DefaultPoolConfig()
	if pool != nil {
		cfg = pool.WithDefaults()
	}
	switch a.Connector {
	case ConnectorPostgres:
		return newPostgresConnector(ctx, a.ConnectionString(), cfg)
	case ConnectorMySQL:
		return newMySQLConnector(ctx, a.ConnectionString(), cfg)
	case ConnectorRedis:
		return newRedisConnector(ctx, a.ConnectionString())
	case ConnectorMongoDB:
		return newMongoConnector(ctx, a.ConnectionString())
	default:
		return nil, errConnector("unknown connector type: " + string(a.Connector))
	}
}
