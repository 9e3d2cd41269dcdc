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

// Package hyperterse provides the configuration model for a declarative
// query gateway (the [Model] structure and its children), and the runtime
// that exposes the configured queries as JSON HTTP endpoints and as MCP
// (Model Context Protocol) JSON-RPC tools over a server-sent-event
// transport ([Gateway]).
//
// A [Model] is parsed from a single YAML or JSON document with [ParseFile]
// or [Parse], checked with [Model.Validate] or [Model.IsValid], then
// handed to [NewGateway] along with a
// [RuntimeInterface] supplying the logger and any other caller-owned
// dependencies. The code in `cmd/hyperterse` is a worked example of
// loading a config file, validating it, and starting the gateway.
package hyperterse

// SchemaVersion is the configuration schema version implemented by this
// build. A document's optional top-level schemaVersion field is checked
// against it; see [Model.Validate].
const SchemaVersion = "1.0.0"
