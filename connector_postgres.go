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
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4/pgxpool"
)

// postgresConnector is the Connector implementation for adapters declared
// with connector: postgres. Pool construction follows the teacher's
// ds2cfg/dsconnect pattern (pgxpool.Config built from PoolConfig); row
// conversion follows original_source/connectors/postgres.rs's type-name
// dispatch.
type postgresConnector struct {
	pool *pgxpool.Pool
}

func newPostgresConnector(ctx context.Context, url string, pool PoolConfig) (*postgresConnector, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, errDatabase("invalid postgres url: " + err.Error())
	}
	if pool.MaxConnections > 0 && pool.MaxConnections <= math.MaxInt32 {
		cfg.MaxConns = int32(pool.MaxConnections)
	}
	if pool.MinConnections > 0 && pool.MinConnections <= math.MaxInt32 {
		cfg.MinConns = int32(pool.MinConnections)
	}
	if pool.IdleTimeoutSec > 0 {
		cfg.MaxConnIdleTime = time.Duration(pool.IdleTimeoutSec) * time.Second
	}
	if pool.MaxLifetimeSec > 0 {
		cfg.MaxConnLifetime = time.Duration(pool.MaxLifetimeSec) * time.Second
	}

	connectCtx := ctx
	if pool.AcquireTimeoutSec > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, time.Duration(pool.AcquireTimeoutSec)*time.Second)
		defer cancel()
	}

	p, err := pgxpool.ConnectConfig(connectCtx, cfg)
	if err != nil {
		return nil, errDatabase("postgres connection failed: " + err.Error())
	}
	return &postgresConnector{pool: p}, nil
}

func (c *postgresConnector) execute(ctx context.Context, statement string, _ map[string]any) ([]Row, error) {
	rows, err := c.pool.Query(ctx, statement)
	if err != nil {
		return nil, errDatabase("postgres query failed: " + err.Error())
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, errDatabase("postgres row decode failed: " + err.Error())
		}
		row := make(Row, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = pgValueToJSON(vals[i], f.DataTypeOID)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errDatabase("postgres query failed: " + err.Error())
	}
	return out, nil
}

// pgValueToJSON converts a value decoded by pgx's default type mapping
// into a JSON-compatible value, per §4.4's column type mapping.
// NaN/Inf floats become null rather than invalid JSON. pgx decodes both
// DATE and TIMESTAMP(TZ) columns to time.Time, so oid is consulted to
// format DATE as a plain "2006-01-02" string rather than RFC-3339.
func pgValueToJSON(v any, oid uint32) any {
	switch t := v.(type) {
	case nil:
		return nil
	case float32:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case time.Time:
		if oid == pgtype.DateOID {
			return t.Format("2006-01-02")
		}
		return t.UTC().Format(time.RFC3339)
	case [16]byte:
		return uuid.UUID(t).String()
	default:
		return v
	}
}

func (c *postgresConnector) close(_ context.Context) error {
	c.pool.Close()
	return nil
}

func (c *postgresConnector) healthCheck(ctx context.Context) error {
	var one int
	row := c.pool.QueryRow(ctx, "SELECT 1")
	if err := row.Scan(&one); err != nil {
		return errDatabase("postgres health check failed: " + err.Error())
	}
	return nil
}

func (c *postgresConnector) kind() Connector {
	return ConnectorPostgres
}
