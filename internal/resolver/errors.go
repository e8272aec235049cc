// Copyright © SAS Institute Inc.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package resolver

import "fmt"

// State is a step of a resolution run. Runs only move forward.
type State int

const (
	StateStart State = iota
	StateParsed
	StateValidityChecked
	StateLinkSelected
	StateDownloaded
	StateVerified
	StatePatched
	StateDone
	StateAborted
)

var stateNames = [...]string{
	StateStart:           "start",
	StateParsed:          "parse",
	StateValidityChecked: "validity",
	StateLinkSelected:    "link-selection",
	StateDownloaded:      "download",
	StateVerified:        "verify",
	StatePatched:         "patch",
	StateDone:            "done",
	StateAborted:         "aborted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Kind classifies why a run stopped
type Kind int

const (
	// KindNotLicense means the input is not a license. Callers pass it
	// through silently.
	KindNotLicense Kind = iota + 1
	// KindMalformed is a license that can't be acted on, such as one with
	// no publication link.
	KindMalformed
	// KindPolicyRejected is a usable license that settings forbid using
	KindPolicyRejected
	KindNetwork
	KindIntegrity
	// KindArchiveWrite means no license-bearing container could be
	// produced. It is never overridable.
	KindArchiveWrite
)

var kindNames = map[Kind]string{
	KindNotLicense:     "not-license",
	KindMalformed:      "malformed-license",
	KindPolicyRejected: "policy-rejected",
	KindNetwork:        "network",
	KindIntegrity:      "integrity",
	KindArchiveWrite:   "archive-write",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by every aborted run. Stage is the state the run failed
// to reach.
type Error struct {
	Kind  Kind
	Stage State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failure at %s stage: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
