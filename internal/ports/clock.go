package ports

import "time"

// Clock abstrae time.Now para hacer los workers testeables con tiempo
// simulado.
type Clock interface {
	Now() time.Time
}

// SystemClock es el Clock de producción.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
