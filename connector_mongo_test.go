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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDBNameFromURI(t *testing.T) {
	r := require.New(t)
	r.Equal("mydb", dbNameFromURI("mongodb://host:27017/mydb"))
	r.Equal("", dbNameFromURI("mongodb://host:27017/"))
	r.Equal("", dbNameFromURI("mongodb://host:27017"))
}

func TestBsonToJSON(t *testing.T) {
	r := require.New(t)

	oid := primitive.NewObjectID()
	r.Equal(oid.Hex(), bsonToJSON(oid))

	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	r.Equal("2024-05-06T07:08:09Z", bsonToJSON(primitive.NewDateTimeFromTime(ts)))

	doc := bson.M{"a": int32(1), "b": bson.A{int32(1), int32(2)}}
	out := bsonToJSON(doc).(map[string]any)
	r.EqualValues(1, out["a"])
	r.Equal([]any{int32(1), int32(2)}, out["b"])
}

func TestMongoResultToRowsFlattensCursor(t *testing.T) {
	r := require.New(t)

	result := bson.M{
		"cursor": bson.M{
			"firstBatch": bson.A{
				bson.M{"_id": int32(1)},
				bson.M{"_id": int32(2)},
			},
		},
	}
	rows := mongoResultToRows(result)
	r.Len(rows, 2)
	r.EqualValues(1, rows[0]["_id"])
}

func TestMongoResultToRowsSingleDocument(t *testing.T) {
	r := require.New(t)
	result := bson.M{"ok": float64(1)}
	rows := mongoResultToRows(result)
	r.Len(rows, 1)
	r.EqualValues(1, rows[0]["ok"])
}
