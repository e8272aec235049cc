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
	"fmt"
	"time"
)

// Validity is the outcome of checking a license's rights window against a
// point in time.
type Validity struct {
	InRange bool
	Start   *time.Time
	End     *time.Time
	Now     time.Time
}

// Evaluate checks whether now falls inside the window. A window without a
// start or end is open on that side, and a nil window is always valid.
func (r *Rights) Evaluate(now time.Time) Validity {
	v := Validity{InRange: true, Now: now.UTC()}
	if r == nil {
		return v
	}
	v.Start, v.End = r.Start, r.End
	if r.Start != nil && r.Start.After(v.Now) {
		v.InRange = false
	}
	if r.End != nil && r.End.Before(v.Now) {
		v.InRange = false
	}
	return v
}

// Validity evaluates the license's rights window at now
func (l *License) Validity(now time.Time) Validity {
	return l.Rights.Evaluate(now)
}

func (v Validity) String() string {
	return fmt.Sprintf("valid from %s until %s", fmtBound(v.Start), fmtBound(v.End))
}

func fmtBound(t *time.Time) string {
	if t == nil {
		return "(unbounded)"
	}
	return t.Format(time.RFC3339)
}
