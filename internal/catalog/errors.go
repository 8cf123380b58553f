// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import "errors"

var (
	// ErrPushWithRevisionOverride is returned when --push is combined with
	// any global/tenant revision override: a catalog compiled from
	// unofficial sources must never be pushed.
	ErrPushWithRevisionOverride = errors.New("refusing to push a catalog compiled with a revision override")
)
