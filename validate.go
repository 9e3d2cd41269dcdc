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
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/mod/semver"
)

var (
	// rxName matches identifiers: lowercase, kebab/snake-case.
	rxName = regexp.MustCompile(`^[a-z][a-z0-9]*([-_][a-z0-9]+)*$`)
)

func addError(r *[]ValidationResult, format string, a ...any) {
	*r = append(*r, ValidationResult{Warn: false, Message: fmt.Sprintf(format, a...)})
}

func addWarn(r *[]ValidationResult, format string, a ...any) {
	*r = append(*r, ValidationResult{Warn: true, Message: fmt.Sprintf(format, a...)})
}

func (m *Model) validate() (r []ValidationResult) {
	if m.Name == "" {
		addError(&r, "model: 'name' is required")
	}

	if m.SchemaVersion != "" {
		v := m.SchemaVersion
		if v[0] != 'v' {
			v = "v" + v
		}
		if !semver.IsValid(v) {
			addError(&r, "model: schemaVersion %q is not a valid semver", m.SchemaVersion)
		} else if semver.Compare(semver.MajorMinor(v), semver.MajorMinor("v"+SchemaVersion)) != 0 {
			addWarn(&r, "model: schemaVersion %q does not match supported schema %s", m.SchemaVersion, SchemaVersion)
		}
	}

	adapterNames := make(map[string]int)
	for i := range m.Adapters {
		a := &m.Adapters[i]
		if a.Name == "" {
			addError(&r, "adapters[%d]: 'name' is required", i)
			continue
		}
		if !rxName.MatchString(a.Name) {
			addError(&r, "adapter %q: name must match %s", a.Name, rxName.String())
		}
		adapterNames[a.Name]++
		if adapterNames[a.Name] == 2 {
			addError(&r, "adapter %q: duplicate name", a.Name)
		}
		switch a.Connector {
		case ConnectorPostgres, ConnectorMySQL, ConnectorRedis, ConnectorMongoDB:
		default:
			addError(&r, "adapter %q: unknown connector %q", a.Name, a.Connector)
		}
		if a.URL == "" {
			addError(&r, "adapter %q: 'url' (or 'connection_string') is required", a.Name)
		}
	}

	queryNames := make(map[string]int)
	for i := range m.Queries {
		q := &m.Queries[i]
		if q.Name == "" {
			addError(&r, "queries[%d]: 'name' is required", i)
			continue
		}
		if !rxName.MatchString(q.Name) {
			addError(&r, "query %q: name must match %s", q.Name, rxName.String())
		}
		queryNames[q.Name]++
		if queryNames[q.Name] == 2 {
			addError(&r, "query %q: duplicate name", q.Name)
		}
		if q.Adapter == "" {
			addError(&r, "query %q: 'adapter' (or 'use') is required", q.Name)
		} else if m.FindAdapter(q.Adapter) == nil {
			addError(&r, "query %q: adapter %q not found", q.Name, q.Adapter)
		}
		if q.Statement == "" {
			addError(&r, "query %q: 'statement' is required", q.Name)
		}

		inputNames := make(map[string]int)
		for j := range q.Inputs {
			in := &q.Inputs[j]
			if in.Name == "" {
				addError(&r, "query %q: inputs[%d]: 'name' is required", q.Name, j)
				continue
			}
			inputNames[in.Name]++
			if inputNames[in.Name] == 2 {
				addError(&r, "query %q: input %q: duplicate name", q.Name, in.Name)
			}
			switch in.Type {
			case PrimitiveString, PrimitiveInt, PrimitiveFloat, PrimitiveBoolean, PrimitiveUUID, PrimitiveDatetime:
			default:
				addError(&r, "query %q: input %q: unknown type %q", q.Name, in.Name, in.Type)
				continue
			}
			if !in.Required {
				if in.Default == nil {
					addError(&r, "query %q: input %q: optional inputs must have a 'default'", q.Name, in.Name)
				} else if !isSuitable(in.Type, in.Default) {
					addError(&r, "query %q: input %q: default does not match type %s", q.Name, in.Name, in.Type)
				}
			}
		}

		for _, name := range placeholderInputNames(q.Statement) {
			if q.FindInput(name) == nil {
				addError(&r, "query %q: statement references undeclared input %q", q.Name, name)
			}
		}
	}

	if m.Server != nil && m.Server.Port != "" {
		if p, err := strconv.ParseUint(m.Server.Port, 10, 16); err != nil || p == 0 {
			addError(&r, "server: 'port' %q is not a valid port number", m.Server.Port)
		}
	}
	if m.Server != nil && m.Server.LogLevel > 3 {
		addError(&r, "server: 'logLevel' must be 0-3, got %d", m.Server.LogLevel)
	}

	return r
}

// placeholderInputNames returns the distinct input names referenced by
// {{ inputs.X }} tokens in statement.
func placeholderInputNames(statement string) []string {
	matches := rxInputPlaceholder.FindAllStringSubmatch(statement, -1)
	seen := make(map[string]bool, len(matches))
	var names []string
	for _, m := range matches {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
