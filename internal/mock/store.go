// Package mock provides a crdt.Store whose delivery and failures tests can
// steer.
package mock

import (
	"sync"

	"github.com/blockbind/blockbind.go/pkg/crdt"
	"github.com/blockbind/blockbind.go/pkg/models"
)

type heldBatch struct {
	fn    func(crdt.Batch)
	batch crdt.Batch
}

// Store wraps a crdt.Doc. It can fail the next transaction and hold back
// committed batches until Release is called, the way a store with
// asynchronous observers would deliver them.
type Store struct {
	*crdt.Doc

	mu   sync.Mutex
	fail error
	hold bool
	held []heldBatch
	txns int
}

func New(doc *crdt.Doc) *Store {
	return &Store{Doc: doc}
}

// FailNext makes the next Transact return err without running.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

// Hold queues batches instead of delivering them.
func (s *Store) Hold() {
	s.mu.Lock()
	s.hold = true
	s.mu.Unlock()
}

// Release delivers queued batches in commit order and stops holding.
func (s *Store) Release() {
	s.mu.Lock()
	queue := s.held
	s.held, s.hold = nil, false
	s.mu.Unlock()

	for _, h := range queue {
		h.fn(h.batch)
	}
}

// Held returns the number of batches waiting for Release.
func (s *Store) Held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.held)
}

// Transactions returns the number of transactions attempted.
func (s *Store) Transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txns
}

func (s *Store) Transact(origin models.Origin, fn func(crdt.Writer) error) error {
	s.mu.Lock()
	s.txns++
	err := s.fail
	s.fail = nil
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Doc.Transact(origin, fn)
}

func (s *Store) Observe(fn func(crdt.Batch)) func() {
	return s.Doc.Observe(func(b crdt.Batch) {
		s.mu.Lock()
		if s.hold {
			s.held = append(s.held, heldBatch{fn: fn, batch: b})
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		fn(b)
	})
}

var _ crdt.Store = (*Store)(nil)
