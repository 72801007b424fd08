package repository

import "time"

// Clock abstracts time retrieval so timestamps and ids are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Options: общие настройки репозиториев.
type Options struct {
	// Latency: искусственная задержка каждой операции, имитирует сеть.
	Latency time.Duration
	// FlushDelay: сколько ждать перед записью, чтобы склеить серию изменений в одну.
	FlushDelay time.Duration
	Clock      Clock
}

func (o Options) clock() Clock {
	if o.Clock == nil {
		return RealClock{}
	}
	return o.Clock
}
