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

import "fmt"

// Kind is the taxonomy of errors this package returns, per the error
// handling design: client-correctable errors retain identifying detail,
// backend/internal errors are sanitized before crossing the HTTP/MCP
// boundary.
type Kind int

const (
	KindConfig Kind = iota
	KindValidation
	KindEnvVarNotFound
	KindQueryNotFound
	KindAdapterNotFound
	KindMissingInput
	KindInvalidInputType
	KindTemplate
	KindDatabase
	KindRedis
	KindMongoDB
	KindConnector
	KindServer
)

// Error is the error type returned by parsing, query execution and the
// connectors. It carries enough structure to compute an HTTP status code
// and a message safe to return to an untrusted caller.
type Error struct {
	Kind    Kind
	Message string // already safe to show a caller, for client-class kinds
	raw     string // unsanitized detail, for Database/Redis/MongoDB/Connector/Server/Template
}

func (e *Error) Error() string {
	if e.raw != "" {
		return e.raw
	}
	return e.Message
}

// StatusCode maps the error's Kind to an HTTP status code, per the error
// taxonomy table.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindQueryNotFound, KindAdapterNotFound:
		return 404
	case KindMissingInput, KindInvalidInputType:
		return 400
	default:
		return 500
	}
}

// Sanitized returns the message safe to surface to a caller: validation
// and not-found errors keep their identifying detail; everything else
// (backend failures, template/server errors) is replaced by a generic
// class-level string so that connection strings, credentials, and
// stack-trace-like detail never leak.
func (e *Error) Sanitized() string {
	switch e.Kind {
	case KindQueryNotFound, KindAdapterNotFound, KindMissingInput, KindInvalidInputType,
		KindConfig, KindValidation, KindEnvVarNotFound:
		return e.Message
	case KindDatabase:
		return "Database connection error"
	case KindRedis:
		return "Redis connection error"
	case KindMongoDB:
		return "MongoDB connection error"
	case KindConnector:
		return "Connector error"
	case KindTemplate:
		return "Template substitution error"
	default:
		return "Internal server error"
	}
}

func errConfig(format string, a ...any) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, a...)}
}

func errValidation(format string, a ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, a...)}
}

func errEnvVarNotFound(name string) *Error {
	return &Error{Kind: KindEnvVarNotFound, Message: fmt.Sprintf("environment variable %q not found", name)}
}

func errQueryNotFound(name string) *Error {
	return &Error{Kind: KindQueryNotFound, Message: fmt.Sprintf("query %q not found", name)}
}

func errAdapterNotFound(name string) *Error {
	return &Error{Kind: KindAdapterNotFound, Message: fmt.Sprintf("adapter %q not found", name)}
}

func errMissingInput(name string) *Error {
	return &Error{Kind: KindMissingInput, Message: fmt.Sprintf("missing required input %q", name)}
}

func errInvalidInputType(name string, expected Primitive) *Error {
	return &Error{Kind: KindInvalidInputType, Message: fmt.Sprintf("Invalid input type for '%s': expected %s", name, expected)}
}

func errTemplate(raw string) *Error {
	return &Error{Kind: KindTemplate, Message: "template substitution error", raw: raw}
}

func errDatabase(raw string) *Error {
	return &Error{Kind: KindDatabase, Message: "Database connection error", raw: raw}
}

func errRedis(raw string) *Error {
	return &Error{Kind: KindRedis, Message: "Redis connection error", raw: raw}
}

func errMongoDB(raw string) *Error {
	return &Error{Kind: KindMongoDB, Message: "MongoDB connection error", raw: raw}
}

func errConnector(raw string) *Error {
	return &Error{Kind: KindConnector, Message: "Connector error", raw: raw}
}

func errServer(raw string) *Error {
	return &Error{Kind: KindServer, Message: "Internal server error", raw: raw}
}
