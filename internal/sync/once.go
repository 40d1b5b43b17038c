package sync

import "sync"

// OnceValue is a wrapper around [sync.Once] that runs f only once and
// returns both a value (of type T) and an error. Every caller observes the
// single winning result, regardless of how many race the first call.
func OnceValue[T any](f func() (T, error)) func() (T, error) {
	once := &OnceErr[T]{}

	return func() (T, error) {
		return once.Do(f)
	}
}

type OnceErr[T any] struct {
	once sync.Once
	v    T
	err  error
}

func (o *OnceErr[T]) Do(f func() (T, error)) (T, error) {
	o.once.Do(func() {
		o.v, o.err = f()
	})
	return o.v, o.err
}
