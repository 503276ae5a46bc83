// Package supervisor es el plano de control: un registro con clave
// (usuario, tipo de motor) que arranca, detiene y monitorea workers de
// motor, difundiendo cada transición de estado a quien esté escuchando
// (el boundary WebSocket). No existe en el original — allí server.py
// gestiona hilos directamente desde las rutas Flask — generalizado aquí
// al idiom de Go sobre el uso de context.Context/signal.NotifyContext en
// cmd/polybacker/main.go del proyecto: cancelación por context, un registro
// de goroutines protegido por mutex.
package supervisor

import (
	"context"
	"sync"
	"time"
)

// Kind identifica el tipo de motor.
type Kind string

const (
	KindCopy      Kind = "copy"
	KindArb       Kind = "arb"
	KindFund      Kind = "fund"
	KindPositions Kind = "positions"
)

// Key identifica un worker dentro del registro. UserAddress queda vacío
// para los motores globales (fund, positions).
type Key struct {
	UserAddress string
	Kind        Kind
}

// Status es el estado reportado de un worker.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// StatusEvent es una transición de estado, emitida a cada suscriptor.
type StatusEvent struct {
	Key    Key
	Status Status
	At     time.Time
}

type workerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// RunFunc es el cuerpo de un worker: debe devolver cuando ctx se cancela.
type RunFunc func(ctx context.Context)

// Supervisor es el registro de workers vivos.
type Supervisor struct {
	mu      sync.Mutex
	workers map[Key]*workerHandle

	subMu sync.Mutex
	subs  map[chan StatusEvent]struct{}

	clock func() time.Time
}

// New crea un Supervisor vacío.
func New() *Supervisor {
	return &Supervisor{
		workers: make(map[Key]*workerHandle),
		subs:    make(map[chan StatusEvent]struct{}),
		clock:   time.Now,
	}
}

// Start arranca un worker para key si no hay uno vivo ya (idempotente:
// devuelve false sin hacer nada si ya está corriendo). run se invoca en
// una goroutine con un context cancelable por Stop.
func (s *Supervisor) Start(parent context.Context, key Key, run RunFunc) bool {
	s.mu.Lock()
	if _, exists := s.workers[key]; exists {
		s.mu.Unlock()
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	handle := &workerHandle{cancel: cancel, done: make(chan struct{})}
	s.workers[key] = handle
	s.mu.Unlock()

	s.broadcast(StatusEvent{Key: key, Status: StatusRunning, At: s.clock()})

	go func() {
		defer close(handle.done)
		run(ctx)

		s.mu.Lock()
		// Sólo limpiar si nadie reemplazó el handle entretanto (Stop ya
		// pudo haberlo hecho).
		if current, ok := s.workers[key]; ok && current == handle {
			delete(s.workers, key)
		}
		s.mu.Unlock()

		s.broadcast(StatusEvent{Key: key, Status: StatusStopped, At: s.clock()})
	}()

	return true
}

// Stop señaliza la cancelación del worker de key y devuelve de
// inmediato — fire-and-forget, sin esperar a que el worker termine.
// El estado transiciona a "stopped" sólo cuando el worker efectivamente
// retorna (ver la goroutine de Start).
func (s *Supervisor) Stop(key Key) bool {
	s.mu.Lock()
	handle, exists := s.workers[key]
	s.mu.Unlock()
	if !exists {
		return false
	}
	handle.cancel()
	return true
}

// Status devuelve una foto de qué workers están corriendo.
func (s *Supervisor) Status() map[Key]Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Key]Status, len(s.workers))
	for key := range s.workers {
		out[key] = StatusRunning
	}
	return out
}

// IsRunning indica si hay un worker vivo para key.
func (s *Supervisor) IsRunning(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.workers[key]
	return ok
}

// Subscribe registra un nuevo oyente de StatusEvent. El canal devuelto
// tiene buffer acotado — con el buffer lleno, un suscriptor lento pierde
// los eventos nuevos en vez de bloquear al resto del sistema. cancel desuscribe y cierra el canal.
func (s *Supervisor) Subscribe() (events <-chan StatusEvent, cancel func()) {
	ch := make(chan StatusEvent, 32)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.subMu.Unlock()
	}
}

func (s *Supervisor) broadcast(ev StatusEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// Suscriptor lento: descartar en vez de bloquear el broadcast.
		}
	}
}

// StopAll cancela todos los workers vivos — usado en el shutdown del proceso.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	handles := make([]*workerHandle, 0, len(s.workers))
	for _, h := range s.workers {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	for _, h := range handles {
		<-h.done
	}
}
