/*
 * Copyright 2025 Carver Automation Corporation.
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

// Package version reports the entityradar build stamped in by the linker:
//
//	go build -ldflags "-X github.com/carverauto/entityradar/pkg/version.release=v1.2.0 -X github.com/carverauto/entityradar/pkg/version.build=abc123"
package version

//nolint:gochecknoglobals // linker-stamped
var (
	release = "dev"
	build   = ""
)

// Version is the release tag, "dev" for unstamped builds.
func Version() string {
	return release
}

// String is the release tag with the build id appended when one was stamped.
func String() string {
	if build == "" {
		return release
	}

	return release + "+" + build
}
