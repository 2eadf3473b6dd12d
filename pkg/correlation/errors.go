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

package correlation

import (
	"errors"
	"fmt"
)

var (
	// ErrLifecycleConflict is returned when start, stop or trigger is called
	// in a state that does not allow it.
	ErrLifecycleConflict = errors.New("correlation scheduler lifecycle conflict")
	// ErrBusy is returned by Trigger while a pass is running.
	ErrBusy               = errors.New("correlation pass already in progress")
	ErrNoStrategy         = errors.New("no correlation strategy configured")
	ErrInvalidInterval    = errors.New("correlation interval must be positive")
	ErrStrategyPanic      = errors.New("correlation strategy panicked")
	ErrUnsupportedResult  = errors.New("unsupported correlation result")
	errSchedulerNotActive = errors.New("scheduler loop is not running")
	errUnknownState       = errors.New("unknown scheduler state")
)

// StrategyError wraps a failure raised inside a correlation strategy. It
// aborts the current pass only.
type StrategyError struct {
	Strategy   string
	Candidates int
	Err        error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %q failed over %d candidates: %v", e.Strategy, e.Candidates, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}
