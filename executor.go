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

// queryExecutor orchestrates a single query call: lookup, input
// validation, template substitution, and dispatch to the connector
// manager, per §4.6. It holds no mutable state of its own — safety
// follows from the immutability of model once validated and from the
// connector manager's own synchronization.
type queryExecutor struct {
	model      *Model
	connectors *connectorManager
	validator  *inputValidator
	subst      *substitutor
}

func newQueryExecutor(model *Model, connectors *connectorManager) *queryExecutor {
	return &queryExecutor{
		model:      model,
		connectors: connectors,
		validator:  newInputValidator(),
		subst:      newSubstitutor(),
	}
}

// execute looks up queryName, validates inputs, substitutes the
// statement for the query's adapter kind, and dispatches to the
// connector. Errors propagate verbatim; sanitization happens at the
// HTTP/MCP boundary.
func (e *queryExecutor) execute(ctx context.Context, queryName string, inputs map[string]any) ([]Row, error) {
	query := e.model.FindQuery(queryName)
	if query == nil {
		return nil, errQueryNotFound(queryName)
	}

	validated, err := e.validator.validate(query, inputs)
	if err != nil {
		return nil, err
	}

	adapter := e.model.FindAdapter(query.Adapter)
	if adapter == nil {
		return nil, errAdapterNotFound(query.Adapter)
	}

	conn, err := e.connectors.get(query.Adapter)
	if err != nil {
		return nil, err
	}

	statement, err := e.subst.substitute(query.Statement, validated, adapter.Connector)
	if err != nil {
		return nil, err
	}

	return conn.execute(ctx, statement, validated)
}

// queryNames returns the names of every query in the model.
func (e *queryExecutor) queryNames() []string {
	out := make([]string, len(e.model.Queries))
	for i := range e.model.Queries {
		out[i] = e.model.Queries[i].Name
	}
	return out
}
