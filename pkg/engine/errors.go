// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"errors"
	"fmt"
)

// ErrUnknownButton is matched by every UnknownButtonError
var ErrUnknownButton = errors.New("unknown button")

// UnknownButtonError reports a press or release of a button the board
// does not have
type UnknownButtonError struct {
	Name string
}

func (e *UnknownButtonError) Error() string {
	return fmt.Sprintf("unknown button %q", e.Name)
}

func (e *UnknownButtonError) Is(target error) bool {
	return target == ErrUnknownButton
}
