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
	"time"

	"github.com/google/uuid"
)

//------------------------------------------------------------------------------
// input validation

// inputValidator checks caller-supplied inputs against a Query's declared
// Input definitions and applies defaults for omitted optional inputs.
type inputValidator struct{}

func newInputValidator() *inputValidator {
	return &inputValidator{}
}

// validate checks inputs against q.Inputs, returning a new map with
// defaults applied for omitted optional inputs. Caller-supplied keys not
// declared on q are preserved as-is (harmless for substitution, since
// substitution only resolves declared placeholders).
func (v *inputValidator) validate(q *Query, inputs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(inputs))
	for k, val := range inputs {
		out[k] = val
	}
	for i := range q.Inputs {
		def := &q.Inputs[i]
		val, supplied := out[def.Name]
		if supplied {
			if !isSuitable(def.Type, val) {
				return nil, errInvalidInputType(def.Name, def.Type)
			}
			continue
		}
		if def.Required {
			return nil, errMissingInput(def.Name)
		}
		if def.Default != nil {
			out[def.Name] = def.Default
		}
	}
	return out, nil
}

// isSuitable reports whether v, as decoded from JSON, satisfies the
// declared primitive type, per §4.3.
func isSuitable(t Primitive, v any) bool {
	switch t {
	case PrimitiveString:
		_, ok := v.(string)
		return ok
	case PrimitiveInt:
		return checkInt(v)
	case PrimitiveFloat:
		_, ok := v.(float64)
		return ok
	case PrimitiveBoolean:
		_, ok := v.(bool)
		return ok
	case PrimitiveUUID:
		return checkUUID(v)
	case PrimitiveDatetime:
		return checkDatetime(v)
	default:
		return false
	}
}

// checkInt accepts any JSON number with no fractional part: encoding/json
// decodes all JSON numbers into Go's float64 (absent json.Number use), so
// an "int" input is a float64 whose value round-trips through int64.
func checkInt(v any) bool {
	f, ok := v.(float64)
	if !ok {
		return false
	}
	return f == float64(int64(f))
}

func checkUUID(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// checkDatetime accepts RFC 3339 or "YYYY-MM-DD HH:MM:SS", per §4.3.
func checkDatetime(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return true
	}
	_, err := time.Parse("2006-01-02 15:04:05", s)
	return err == nil
}
