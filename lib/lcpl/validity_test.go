/*
 * Copyright (c) SAS Institute Inc.
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

package lcpl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hour := time.Hour
	past, future := now.Add(-hour), now.Add(hour)
	cases := []struct {
		name   string
		rights *Rights
		want   bool
	}{
		{"nil rights", nil, true},
		{"empty rights", &Rights{}, true},
		{"started", &Rights{Start: &past}, true},
		{"not started", &Rights{Start: &future}, false},
		{"not ended", &Rights{End: &future}, true},
		{"ended", &Rights{End: &past}, false},
		{"inside", &Rights{Start: &past, End: &future}, true},
		{"inverted", &Rights{Start: &future, End: &past}, false},
		{"start equals now", &Rights{Start: &now}, true},
		{"end equals now", &Rights{End: &now}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := tc.rights.Evaluate(now)
			assert.Equal(t, tc.want, v.InRange)
			assert.Equal(t, now, v.Now)
		})
	}
}

func TestEvaluateZones(t *testing.T) {
	// the same instant expressed in another zone must compare equal
	zone := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2025, 6, 1, 17, 0, 0, 0, zone)
	end := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	v := (&Rights{End: &end}).Evaluate(now)
	assert.False(t, v.InRange)
	assert.Equal(t, time.UTC, v.Now.Location())
}

func TestValidityString(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	v := (&Rights{Start: &start}).Evaluate(start)
	assert.Equal(t, "valid from 2025-01-01T00:00:00Z until (unbounded)", v.String())
}

func TestLicenseValidity(t *testing.T) {
	lic := &License{ID: "x"}
	assert.True(t, lic.Validity(time.Now()).InRange)
}
