// Package lock сериализует операции чтение-проверка-запись над одной записью.
// Memory подходит для одного процесса, Redis для нескольких реплик сервиса.
package lock

import (
	"context"
	"sync"
)

// Locker захватывает блокировку по ключу. Возвращённую функцию нужно вызвать ровно один раз.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type entry struct {
	ch   chan struct{}
	refs int
}

// Memory блокировки по ключу внутри процесса. Записи удаляются, когда их никто не держит.
type Memory struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// NewMemory создаёт пустой набор блокировок.
func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*entry)}
}

func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			m.release(key, e)
		})
	}, nil
}

func (m *Memory) release(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}
