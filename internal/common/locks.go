package common

import "sync"

// KeyedMutex — набор мьютексов, выбираемых по ключу (id профиля).
// Операции над разными ключами почти всегда идут параллельно,
// над одним ключом — строго по очереди.
type KeyedMutex struct {
	stripes []sync.Mutex
}

// NewKeyedMutex создаёт набор из n полос.
func NewKeyedMutex(n int) *KeyedMutex {
	if n <= 0 {
		n = 64
	}
	return &KeyedMutex{stripes: make([]sync.Mutex, n)}
}

// Lock захватывает полосу ключа и возвращает функцию освобождения.
//
//	unlock := locks.Lock(profileID)
//	defer unlock()
func (k *KeyedMutex) Lock(key int64) func() {
	idx := key % int64(len(k.stripes))
	if idx < 0 {
		idx = -idx
	}
	m := &k.stripes[idx]
	m.Lock()
	return m.Unlock
}
