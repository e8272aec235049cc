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

package config

import (
	"os"
	"path/filepath"
)

// Browser user agents that license servers are known to accept, by GOOS
var DefaultUserAgents = map[string]string{
	"linux":   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/93.0.4577.82 Safari/537.36",
	"darwin":  "Mozilla/5.0 (Macintosh; Intel Mac OS X 11_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/93.0.4577.82 Safari/537.36",
	"windows": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/93.0.4577.82 Safari/537.36",
}

const fallbackUserAgentOS = "windows"

// DefaultUserAgent looks up the built-in user agent for the given platform.
// Platforms without an entry get the Windows one.
func DefaultUserAgent(goos string) string {
	if ua, ok := DefaultUserAgents[goos]; ok {
		return ua
	}
	return DefaultUserAgents[fallbackUserAgentOS]
}

func DefaultDir() string {
	profile := os.Getenv("USERPROFILE")
	if profile != "" {
		// windows
		return filepath.Join(profile, "lcplinput")
	}
	home := os.Getenv("HOME")
	if home != "" {
		return filepath.Join(home, ".config", "lcplinput")
	}
	return ""
}

func DefaultConfig() string {
	dir := DefaultDir()
	if dir != "" {
		dir = filepath.Join(dir, "lcplinput.yaml")
	}
	return dir
}
