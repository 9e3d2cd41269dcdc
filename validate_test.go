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

	"github.com/stretchr/testify/require"
)

func validModel() *Model {
	return &Model{
		Name: "my-api",
		Adapters: []Adapter{
			{Name: "db", Connector: ConnectorPostgres, URL: "postgres://localhost/db"},
		},
		Queries: []Query{
			{
				Name:      "get-user",
				Adapter:   "db",
				Statement: "SELECT * FROM users WHERE id = {{ inputs.id }}",
				Inputs:    []Input{{Name: "id", Type: PrimitiveInt, Required: true}},
			},
		},
	}
}

func TestValidateAcceptsValidModel(t *testing.T) {
	r := require.New(t)
	m := validModel()
	results := m.validate()
	for _, res := range results {
		r.True(res.Warn, "unexpected error: %s", res.Message)
	}
}

func TestValidateDuplicateAdapterName(t *testing.T) {
	r := require.New(t)
	m := validModel()
	m.Adapters = append(m.Adapters, Adapter{Name: "db", Connector: ConnectorRedis, URL: "redis://localhost"})

	var errs int
	for _, res := range m.validate() {
		if !res.Warn {
			errs++
		}
	}
	r.Greater(errs, 0)
}

func TestValidateUnknownConnector(t *testing.T) {
	r := require.New(t)
	m := validModel()
	m.Adapters[0].Connector = "oracle"

	found := false
	for _, res := range m.validate() {
		if !res.Warn {
			found = true
		}
	}
	r.True(found)
}

func TestValidateQueryReferencesUnknownAdapter(t *testing.T) {
	r := require.New(t)
	m := validModel()
	m.Queries[0].Adapter = "missing"

	found := false
	for _, res := range m.validate() {
		if !res.Warn {
			found = true
		}
	}
	r.True(found)
}

func TestValidateUndeclaredPlaceholder(t *testing.T) {
	r := require.New(t)
	m := validModel()
	m.Queries[0].Statement = "SELECT * FROM users WHERE id = {{ inputs.other }}"

	found := false
	for _, res := range m.validate() {
		if !res.Warn {
			found = true
		}
	}
	r.True(found)
}

func TestValidateOptionalInputRequiresDefault(t *testing.T) {
	r := require.New(t)
	m := validModel()
	m.Queries[0].Inputs = append(m.Queries[0].Inputs, Input{Name: "limit", Type: PrimitiveInt, Required: false})

	found := false
	for _, res := range m.validate() {
		if !res.Warn {
			found = true
		}
	}
	r.True(found)
}

func TestValidateSchemaVersionMismatchWarns(t *testing.T) {
	r := require.New(t)
	m := validModel()
	m.SchemaVersion = "2.0.0"

	var warns int
	for _, res := range m.validate() {
		r.True(res.Warn, "unexpected error: %s", res.Message)
		warns++
	}
	r.Greater(warns, 0)
}

func TestValidateInvalidSchemaVersion(t *testing.T) {
	r := require.New(t)
	m := validModel()
	m.SchemaVersion = "not-a-semver"

	found := false
	for _, res := range m.validate() {
		if !res.Warn {
			found = true
		}
	}
	r.True(found)
}

func TestPlaceholderInputNames(t *testing.T) {
	r := require.New(t)
	names := placeholderInputNames("{{ inputs.a }} and {{ inputs.b }} and {{ inputs.a }}")
	r.Equal([]string{"a", "b"}, names)
}
