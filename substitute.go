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
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	rxEnvPlaceholder   = regexp.MustCompile(`\{\{\s*env\.([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
	rxInputPlaceholder = regexp.MustCompile(`\{\{\s*inputs\.([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
	// rxQuotedInputPlaceholder matches a JSON-quoted input placeholder, e.g.
	// "{{ inputs.status }}", capturing the quotes so the whole quoted region
	// can be replaced by the value's own JSON serialization.
	rxQuotedInputPlaceholder = regexp.MustCompile(`"(\{\{\s*inputs\.([A-Za-z_][A-Za-z0-9_]*)\s*\}\})"`)
)

// substitutor performs the two-phase, per-backend-safe textual
// substitution described in §4.2: env placeholders first (fatal if
// unresolved at this point, since it runs at request time), then input
// placeholders, escaped according to the target connector's dialect.
type substitutor struct{}

func newSubstitutor() *substitutor {
	return &substitutor{}
}

// substitute resolves {{ env.NAME }} and {{ inputs.X }} placeholders in
// statement against the target connector's escaping rules.
func (s *substitutor) substitute(statement string, inputs map[string]any, connector Connector) (string, error) {
	result, err := s.substituteEnv(statement)
	if err != nil {
		return "", err
	}
	return s.substituteInputs(result, inputs, connector)
}

func (s *substitutor) substituteEnv(statement string) (string, error) {
	var outerErr error
	result := rxEnvPlaceholder.ReplaceAllStringFunc(statement, func(match string) string {
		if outerErr != nil {
			return match
		}
		name := rxEnvPlaceholder.FindStringSubmatch(match)[1]
		value, ok := os.LookupEnv(name)
		if !ok {
			outerErr = errEnvVarNotFound(name)
			return match
		}
		return value
	})
	if outerErr != nil {
		return "", outerErr
	}
	return result, nil
}

func (s *substitutor) substituteInputs(statement string, inputs map[string]any, connector Connector) (string, error) {
	result := statement
	if connector == ConnectorMongoDB {
		// Recognize the quoted form first so a string value isn't doubly
		// quoted by the generic substitution below.
		var quotedErr error
		result = rxQuotedInputPlaceholder.ReplaceAllStringFunc(result, func(match string) string {
			if quotedErr != nil {
				return match
			}
			sub := rxQuotedInputPlaceholder.FindStringSubmatch(match)
			name := sub[2]
			value, ok := inputs[name]
			if !ok {
				quotedErr = errMissingInput(name)
				return match
			}
			escaped, err := s.escapeMongoDB(value)
			if err != nil {
				quotedErr = err
				return match
			}
			return escaped
		})
		if quotedErr != nil {
			return "", quotedErr
		}
	}

	var err error
	result = rxInputPlaceholder.ReplaceAllStringFunc(result, func(match string) string {
		if err != nil {
			return match
		}
		name := rxInputPlaceholder.FindStringSubmatch(match)[1]
		value, ok := inputs[name]
		if !ok {
			err = errMissingInput(name)
			return match
		}
		var escaped string
		switch connector {
		case ConnectorPostgres, ConnectorMySQL:
			escaped, err = s.escapeSQL(value)
		case ConnectorRedis:
			escaped, err = s.escapeRedis(value)
		case ConnectorMongoDB:
			escaped, err = s.escapeMongoDB(value)
		default:
			err = errTemplate(fmt.Sprintf("unknown connector %q", connector))
		}
		if err != nil {
			return match
		}
		return escaped
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

// escapeSQL implements §4.2's SQL escaping rules for postgres and mysql.
func (s *substitutor) escapeSQL(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	case float64:
		return formatJSONNumber(v), nil
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
	case []any:
		parts := make([]string, len(v))
		for i, el := range v {
			p, err := s.escapeSQL(el)
			if err != nil {
				return "", err
			}
			parts[i] = p
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", errTemplate(fmt.Sprintf("JSON serialization failed: %v", err))
		}
		return "'" + strings.ReplaceAll(string(b), "'", "''") + "'", nil
	}
}

// escapeRedis implements §4.2's Redis escaping rules.
func (s *substitutor) escapeRedis(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case float64:
		return formatJSONNumber(v), nil
	case string:
		if strings.ContainsAny(v, " \"'") {
			escaped := strings.ReplaceAll(v, "\\", "\\\\")
			escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
			return "\"" + escaped + "\"", nil
		}
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", errTemplate(fmt.Sprintf("JSON serialization failed: %v", err))
		}
		return "\"" + strings.ReplaceAll(string(b), "\"", "\\\"") + "\"", nil
	}
}

// escapeMongoDB implements §4.2's MongoDB escaping rule: any value becomes
// its canonical JSON serialization.
func (s *substitutor) escapeMongoDB(value any) (string, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return "", errTemplate(fmt.Sprintf("JSON serialization failed: %v", err))
	}
	return string(b), nil
}

// formatJSONNumber renders a decoded JSON number the way encoding/json
// would re-encode it: integral float64s without a trailing ".0".
func formatJSONNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", f), "0"), ".")
}
