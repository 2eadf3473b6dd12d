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

package lifecycle

import (
	"context"
	"fmt"

	"github.com/carverauto/entityradar/pkg/logger"
)

// ServiceLogger builds the logger a binary hands to its service, tagged with
// component. The returned flush drains the OTLP log pipeline and belongs in a
// defer next to the service run.
func ServiceLogger(ctx context.Context, component string, cfg *logger.Config) (logger.Logger, func() error, error) {
	base, err := logger.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger.Wrap(base.WithComponent(component)), logger.Shutdown, nil
}
