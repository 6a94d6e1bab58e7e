package format

import "time"

// Clock источник текущего времени
type Clock interface {
	Now() time.Time
}

// SystemClock использует time.Now
type SystemClock struct{}

// Now возвращает текущее время
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock всегда возвращает одно и то же время
type FixedClock time.Time

// Now возвращает зафиксированное время
func (c FixedClock) Now() time.Time { return time.Time(c) }
