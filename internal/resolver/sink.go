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

import (
	"os"

	"github.com/google/uuid"
)

// SinkFactory creates the file a run downloads into. ext is the container's
// extension including the dot.
type SinkFactory func(ext string) (*os.File, error)

// TempSink returns a SinkFactory creating uniquely named files in dir, or the
// system temporary directory if dir is empty.
func TempSink(dir string) SinkFactory {
	return func(ext string) (*os.File, error) {
		return os.CreateTemp(dir, "lcpl-"+uuid.NewString()+"-*"+ext)
	}
}
