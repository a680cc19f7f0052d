package payment

import (
	"context"
	"sync"

	"github.com/GalaDe/payment-portal/internal/domain"
)

// KeyedLocker is an in-process domain.Locker. It serializes callers sharing a
// key and lets different keys proceed in parallel.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyLock)}
}

func (l *KeyedLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	kl := l.acquire(key)
	defer l.release(key, kl)

	select {
	case kl.sem <- struct{}{}:
	case <-ctx.Done():
		return lockWaitError(key, ctx.Err())
	}
	defer func() { <-kl.sem }()

	return fn(ctx)
}

func (l *KeyedLocker) acquire(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *KeyedLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// lockWaitError classifies a wait abandoned by ctx: a deadline is a timeout,
// a cancellation is transient.
func lockWaitError(key string, err error) error {
	kind, ok := domain.TransportKind(err)
	if !ok {
		kind = domain.KindTransient
	}
	return &domain.PaymentError{
		Kind:           kind,
		Reason:         "gave up waiting for customer lock",
		ProviderDetail: key,
		Err:            err,
	}
}
