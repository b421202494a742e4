// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver-specific errors.
package repository

import "errors"

// ErrEmailExists is returned when registration collides with an
// existing account. Handlers should translate this into an HTTP 409
// response.
var ErrEmailExists = errors.New("email already exists")

// ErrPositionTaken is returned when appending to a day bucket loses a
// race on the (day_key, position) primary key. The booking operation
// as a whole is retried by no one; the caller simply sees a conflict.
var ErrPositionTaken = errors.New("day bucket position already taken")
