package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

const (
	lockScopeSession = "session"
	lockScopeDevice  = "device"
)

// UserLocker serializes check-then-insert sequences for one user, such as the
// concurrent session cap and the device cap.
type UserLocker interface {
	Lock(ctx context.Context, scope string, userID uuid.UUID) (unlock func(), err error)
}

type NoopUserLocker struct{}

func NewNoopUserLocker() *NoopUserLocker { return &NoopUserLocker{} }

func (NoopUserLocker) Lock(context.Context, string, uuid.UUID) (func(), error) {
	return func() {}, nil
}

type keyedMutex struct {
	ch   chan struct{}
	refs int
}

// InMemoryUserLocker holds one lock per scope and user inside the process.
type InMemoryUserLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedMutex
}

func NewInMemoryUserLocker() *InMemoryUserLocker {
	return &InMemoryUserLocker{locks: make(map[string]*keyedMutex)}
}

func (l *InMemoryUserLocker) Lock(ctx context.Context, scope string, userID uuid.UUID) (func(), error) {
	key := scope + ":" + userID.String()
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &keyedMutex{ch: make(chan struct{}, 1)}
		l.locks[key] = m
	}
	m.refs++
	l.mu.Unlock()

	select {
	case m.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, m, false)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, m, true) })
	}, nil
}

func (l *InMemoryUserLocker) release(key string, m *keyedMutex, held bool) {
	if held {
		<-m.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(l.locks, key)
	}
}
