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
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubstituteEnv(t *testing.T) {
	r := require.New(t)
	s := newSubstitutor()

	os.Setenv("HYPERTERSE_TEST_VAR", "hello")
	defer os.Unsetenv("HYPERTERSE_TEST_VAR")

	out, err := s.substituteEnv("value is {{ env.HYPERTERSE_TEST_VAR }}")
	r.NoError(err)
	r.Equal("value is hello", out)

	_, err = s.substituteEnv("{{ env.HYPERTERSE_TEST_MISSING }}")
	r.Error(err)
	var e *Error
	r.ErrorAs(err, &e)
	r.Equal(KindEnvVarNotFound, e.Kind)
}

func TestSubstituteInputsSQL(t *testing.T) {
	r := require.New(t)
	s := newSubstitutor()

	out, err := s.substituteInputs(
		"SELECT * FROM t WHERE name = {{ inputs.name }} AND active = {{ inputs.active }}",
		map[string]any{"name": "o'brien", "active": true},
		ConnectorPostgres,
	)
	r.NoError(err)
	r.Equal(`SELECT * FROM t WHERE name = 'o''brien' AND active = TRUE`, out)
}

func TestSubstituteInputsSQLArray(t *testing.T) {
	r := require.New(t)
	s := newSubstitutor()

	out, err := s.substituteInputs(
		"SELECT * FROM t WHERE id IN {{ inputs.ids }}",
		map[string]any{"ids": []any{1.0, 2.0, 3.0}},
		ConnectorMySQL,
	)
	r.NoError(err)
	r.Equal("SELECT * FROM t WHERE id IN (1, 2, 3)", out)
}

func TestSubstituteInputsRedisQuoting(t *testing.T) {
	r := require.New(t)
	s := newSubstitutor()

	out, err := s.substituteInputs("SET key {{ inputs.value }}",
		map[string]any{"value": "has space"}, ConnectorRedis)
	r.NoError(err)
	r.Equal(`SET key "has space"`, out)

	out, err = s.substituteInputs("SET key {{ inputs.value }}",
		map[string]any{"value": "nospace"}, ConnectorRedis)
	r.NoError(err)
	r.Equal("SET key nospace", out)
}

func TestSubstituteInputsMongoQuotedPlaceholder(t *testing.T) {
	r := require.New(t)
	s := newSubstitutor()

	out, err := s.substituteInputs(`{"status": "{{ inputs.status }}"}`,
		map[string]any{"status": "active"}, ConnectorMongoDB)
	r.NoError(err)
	r.Equal(`{"status": "active"}`, out)
}

func TestSubstituteInputsMissing(t *testing.T) {
	r := require.New(t)
	s := newSubstitutor()

	_, err := s.substituteInputs("SELECT {{ inputs.missing }}", map[string]any{}, ConnectorPostgres)
	r.Error(err)
	var e *Error
	r.ErrorAs(err, &e)
	r.Equal(KindMissingInput, e.Kind)
}

func TestFormatJSONNumber(t *testing.T) {
	r := require.New(t)
	r.Equal("42", formatJSONNumber(42.0))
	r.Equal("3.5", formatJSONNumber(3.5))
}
