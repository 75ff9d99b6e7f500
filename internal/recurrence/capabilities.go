package recurrence

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the current time. It is only consulted to resolve the
// default end-of-year horizon.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// IDSource supplies identifiers that never collide, including across
// goroutines.
type IDSource interface {
	NewID() string
}

// IDFunc adapts a function to IDSource.
type IDFunc func() string

func (f IDFunc) NewID() string { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// UUIDSource issues random (version 4) UUIDs.
var UUIDSource IDSource = IDFunc(func() string {
	return uuid.NewString()
})
