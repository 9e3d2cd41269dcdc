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

func TestInputValidatorAppliesDefault(t *testing.T) {
	r := require.New(t)
	v := newInputValidator()
	q := &Query{Inputs: []Input{
		{Name: "limit", Type: PrimitiveInt, Required: false, Default: 10.0},
	}}

	out, err := v.validate(q, map[string]any{})
	r.NoError(err)
	r.EqualValues(10.0, out["limit"])
}

func TestInputValidatorMissingRequired(t *testing.T) {
	r := require.New(t)
	v := newInputValidator()
	q := &Query{Inputs: []Input{{Name: "id", Type: PrimitiveInt, Required: true}}}

	_, err := v.validate(q, map[string]any{})
	r.Error(err)
	var e *Error
	r.ErrorAs(err, &e)
	r.Equal(KindMissingInput, e.Kind)
}

func TestInputValidatorInvalidType(t *testing.T) {
	r := require.New(t)
	v := newInputValidator()
	q := &Query{Inputs: []Input{{Name: "id", Type: PrimitiveInt, Required: true}}}

	_, err := v.validate(q, map[string]any{"id": "not-a-number"})
	r.Error(err)
	var e *Error
	r.ErrorAs(err, &e)
	r.Equal(KindInvalidInputType, e.Kind)
}

func TestIsSuitable(t *testing.T) {
	r := require.New(t)
	r.True(isSuitable(PrimitiveString, "x"))
	r.False(isSuitable(PrimitiveString, 1.0))
	r.True(isSuitable(PrimitiveInt, 5.0))
	r.False(isSuitable(PrimitiveInt, 5.5))
	r.True(isSuitable(PrimitiveFloat, 5.5))
	r.True(isSuitable(PrimitiveBoolean, true))
	r.True(isSuitable(PrimitiveUUID, "550e8400-e29b-41d4-a716-446655440000"))
	r.False(isSuitable(PrimitiveUUID, "not-a-uuid"))
	r.True(isSuitable(PrimitiveDatetime, "2024-01-01T00:00:00Z"))
	r.True(isSuitable(PrimitiveDatetime, "2024-01-01 00:00:00"))
	r.False(isSuitable(PrimitiveDatetime, "not-a-date"))
}
