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
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoConnector is the Connector implementation for adapters declared
// with connector: mongodb, grounded on
// original_source/connectors/mongodb.rs (RunCommand passthrough).
type mongoConnector struct {
	client    *mongo.Client
	defaultDB string
}

func newMongoConnector(ctx context.Context, url string) (*mongoConnector, error) {
	opts := options.Client().ApplyURI(url).SetMinPoolSize(1).SetMaxPoolSize(10)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errMongoDB("mongodb client creation failed: " + err.Error())
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errMongoDB("mongodb connection failed: " + err.Error())
	}
	return &mongoConnector{client: client, defaultDB: dbNameFromURI(url)}, nil
}

// dbNameFromURI extracts the default database name from a mongodb:// URI's
// path component (e.g. "mongodb://host/mydb" -> "mydb"), mirroring the
// driver's own default_database() behavior.
func dbNameFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

func (c *mongoConnector) database(name string) (*mongo.Database, error) {
	if name == "" {
		name = c.defaultDB
	}
	if name == "" {
		return nil, errMongoDB("no database specified and no default database in connection string")
	}
	return c.client.Database(name), nil
}

func (c *mongoConnector) execute(ctx context.Context, statement string, _ map[string]any) ([]Row, error) {
	var doc bson.M
	if err := json.Unmarshal([]byte(statement), &doc); err != nil {
		return nil, errMongoDB("invalid mongodb statement JSON: " + err.Error())
	}

	dbName, _ := doc["database"].(string)
	delete(doc, "database")

	db, err := c.database(dbName)
	if err != nil {
		return nil, err
	}

	var result bson.M
	if err := db.RunCommand(ctx, doc).Decode(&result); err != nil {
		return nil, errMongoDB("run_command failed: " + err.Error())
	}

	return mongoResultToRows(result), nil
}

// mongoResultToRows flattens a run_command reply into rows: if it
// contains cursor.firstBatch, each batch document is a row; otherwise
// the whole reply is a single row. Per §4.4.
func mongoResultToRows(result bson.M) []Row {
	if cursor, ok := result["cursor"].(bson.M); ok {
		if batch, ok := cursor["firstBatch"].(bson.A); ok {
			rows := make([]Row, 0, len(batch))
			for _, el := range batch {
				if d, ok := el.(bson.M); ok {
					rows = append(rows, documentToRow(d))
				}
			}
			return rows
		}
	}
	return []Row{documentToRow(result)}
}

func documentToRow(doc bson.M) Row {
	row := make(Row, len(doc))
	for k, v := range doc {
		row[k] = bsonToJSON(v)
	}
	return row
}

// bsonToJSON converts a decoded BSON value into a JSON-compatible value:
// ObjectId→hex string, DateTime→RFC-3339, Decimal128→string,
// Document→object, Array→array, per §4.4.
func bsonToJSON(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339)
	case primitive.Decimal128:
		return t.String()
	case bson.M:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = bsonToJSON(el)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, el := range t {
			out[el.Key] = bsonToJSON(el.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = bsonToJSON(el)
		}
		return out
	default:
		return v
	}
}

func (c *mongoConnector) close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

func (c *mongoConnector) healthCheck(ctx context.Context) error {
	err := c.client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
	if err != nil {
		return errMongoDB("mongodb health check failed: " + err.Error())
	}
	return nil
}

func (c *mongoConnector) kind() Connector {
	return ConnectorMongoDB
}
