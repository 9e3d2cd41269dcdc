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
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/stretchr/testify/require"
)

func TestPgValueToJSON(t *testing.T) {
	r := require.New(t)

	r.Nil(pgValueToJSON(nil, 0))
	r.Nil(pgValueToJSON(math.NaN(), 0))
	r.Nil(pgValueToJSON(math.Inf(1), 0))
	r.Nil(pgValueToJSON(float32(math.Inf(-1)), 0))
	r.InDelta(3.5, pgValueToJSON(3.5, 0), 0.0001)

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r.Equal("2024-01-02T03:04:05Z", pgValueToJSON(now, pgtype.TimestamptzOID))
	r.Equal("2024-01-02T03:04:05Z", pgValueToJSON(now, pgtype.TimestampOID))

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	r.Equal("2024-01-02", pgValueToJSON(day, pgtype.DateOID))

	id := uuid.New()
	r.Equal(id.String(), pgValueToJSON([16]byte(id), 0))

	r.Equal("plain", pgValueToJSON("plain", 0))
}
