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
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// mysqlConnector is the Connector implementation for adapters declared
// with connector: mysql, grounded on
// original_source/connectors/mysql.rs's row_to_map type dispatch.
type mysqlConnector struct {
	db *sql.DB
}

func newMySQLConnector(ctx context.Context, dsn string, pool PoolConfig) (*mysqlConnector, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errDatabase("invalid mysql dsn: " + err.Error())
	}
	db.SetMaxOpenConns(int(pool.MaxConnections))
	db.SetMaxIdleConns(int(pool.MinConnections))
	if pool.MaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(pool.MaxLifetimeSec) * time.Second)
	}
	if pool.IdleTimeoutSec > 0 {
		db.SetConnMaxIdleTime(time.Duration(pool.IdleTimeoutSec) * time.Second)
	}

	pingCtx := ctx
	if pool.AcquireTimeoutSec > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, time.Duration(pool.AcquireTimeoutSec)*time.Second)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errDatabase("mysql connection failed: " + err.Error())
	}
	return &mysqlConnector{db: db}, nil
}

func (c *mysqlConnector) execute(ctx context.Context, statement string, _ map[string]any) ([]Row, error) {
	rows, err := c.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, errDatabase("mysql query failed: " + err.Error())
	}
	defer rows.Close()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, errDatabase("mysql column introspection failed: " + err.Error())
	}

	var out []Row
	scan := make([]any, len(cols))
	for i := range scan {
		scan[i] = new(sql.RawBytes)
	}
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, errDatabase("mysql row decode failed: " + err.Error())
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			raw := scan[i].(*sql.RawBytes)
			row[col.Name()] = mysqlValueToJSON(col, *raw)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errDatabase("mysql query failed: " + err.Error())
	}
	return out, nil
}

// mysqlValueToJSON converts a raw MySQL column value to a JSON-compatible
// value based on its declared database type name, per §4.4 and
// original_source/connectors/mysql.rs's get_column_value.
func mysqlValueToJSON(col *sql.ColumnType, raw sql.RawBytes) any {
	if raw == nil {
		return nil
	}
	s := string(raw)
	switch col.DatabaseTypeName() {
	// go-sql-driver/mysql's DatabaseTypeName does not carry display width,
	// so a TINYINT(1) boolean column cannot be distinguished from a plain
	// TINYINT here; both surface as a number, matching every other
	// integer width.
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "BIGINT":
		var i int64
		if _, err := fmt.Sscan(s, &i); err == nil {
			return i
		}
		return nil
	case "FLOAT", "DOUBLE", "DECIMAL":
		var f float64
		if _, err := fmt.Sscan(s, &f); err == nil {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil
			}
			return f
		}
		return nil
	case "JSON":
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
		return nil
	case "DATETIME", "TIMESTAMP":
		if formatted, ok := parseMySQLTimestamp(s); ok {
			return formatted
		}
		return s
	default: // VARCHAR, TEXT, DATE, etc: best-effort string
		return s
	}
}

// parseMySQLTimestamp reformats a MySQL DATETIME/TIMESTAMP wire value
// (e.g. "2024-01-02 03:04:05" or "2024-01-02 03:04:05.123456") as
// RFC-3339, per §4.4's "timestamp types" rule.
func parseMySQLTimestamp(s string) (string, bool) {
	for _, layout := range []string{"2006-01-02 15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339), true
		}
	}
	return "", false
}

func (c *mysqlConnector) close(_ context.Context) error {
	return c.db.Close()
}

func (c *mysqlConnector) healthCheck(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return errDatabase("mysql health check failed: " + err.Error())
	}
	return nil
}

func (c *mysqlConnector) kind() Connector {
	return ConnectorMySQL
}
