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

// Package patcher embeds a license into a downloaded publication container.
package patcher

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/sassoftware/lcplinput/lib/magic"
	"github.com/sassoftware/lcplinput/lib/zipslicer"
)

// LicensePath is where readers look for the license inside a container
const LicensePath = "META-INF/license.lcpl"

var ErrNotContainer = errors.New("downloaded file is not a ZIP container")

// Patch appends license as a new entry at LicensePath. Existing entries are
// not modified; only the central directory is rewritten.
func Patch(path string, license []byte, modTime time.Time, logger zerolog.Logger) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	fileType, err := magic.DetectFile(f)
	if err != nil {
		return err
	}
	if !fileType.IsZip() {
		return fmt.Errorf("%w: detected %s", ErrNotContainer, fileType)
	}
	st, err := f.Stat()
	if err != nil {
		return err
	}
	dir, err := zipslicer.Read(f, st.Size())
	if err != nil {
		return fmt.Errorf("reading container: %w", err)
	}
	if existing := dir.Find(LicensePath); existing != nil {
		logger.Warn().
			Uint64("size", existing.UncompressedSize).
			Msg("container already has a license entry, appending another")
	}
	entry, err := zipslicer.NewFile(LicensePath, license, modTime)
	if err != nil {
		return err
	}
	size, err := dir.AppendFile(f, entry)
	if err != nil {
		return fmt.Errorf("writing license entry: %w", err)
	}
	if err := f.Truncate(size); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	logger.Debug().
		Str("type", fileType.String()).
		Int("entries", len(dir.File)).
		Int64("size", size).
		Msg("license embedded in container")
	return f.Close()
}
