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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/entityradar/pkg/logger"
)

var errTestDelivery = errors.New("delivery failed")

func TestRateLimitedNotifierDropsOverBudget(t *testing.T) {
	ctrl := gomock.NewController(t)

	next := NewMockNotifier(ctrl)
	next.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	n := NewRateLimitedNotifier(next, 2, logger.NewTestLogger())

	for i := 0; i < 3; i++ {
		require.NoError(t, n.Notify(context.Background(), &WarningResult{Title: "w"}))
	}

	assert.Equal(t, int64(1), n.Dropped())
}

func TestRateLimitedNotifierUnlimited(t *testing.T) {
	ctrl := gomock.NewController(t)

	next := NewMockNotifier(ctrl)
	next.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).Times(50)

	n := NewRateLimitedNotifier(next, 0, logger.NewTestLogger())

	for i := 0; i < 50; i++ {
		require.NoError(t, n.Notify(context.Background(), &WarningResult{Title: "w"}))
	}

	assert.Zero(t, n.Dropped())
}

func TestMultiNotifierJoinsErrors(t *testing.T) {
	ctrl := gomock.NewController(t)

	ok := NewMockNotifier(ctrl)
	failing := NewMockNotifier(ctrl)

	w := &WarningResult{Title: "w"}

	ok.EXPECT().Notify(gomock.Any(), w).Return(nil)
	failing.EXPECT().Notify(gomock.Any(), w).Return(errTestDelivery)

	err := MultiNotifier{failing, ok, NewLogNotifier(logger.NewTestLogger())}.Notify(context.Background(), w)
	require.ErrorIs(t, err, errTestDelivery)
}

func TestStrategyErrorUnwraps(t *testing.T) {
	err := &StrategyError{Strategy: "hostname", Candidates: 3, Err: errTestStrategy}

	assert.Equal(t, `strategy "hostname" failed over 3 candidates: strategy exploded`, err.Error())
	assert.ErrorIs(t, err, errTestStrategy)
}
