package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"consultor-integral/internal/store"
	"consultor-integral/internal/wizard"
)

// sessionRegistry keeps live wizard controllers in memory and mirrors their snapshots to the
// store so sessions survive a restart.
type sessionRegistry struct {
	db    *store.Database
	mu    sync.Mutex
	items map[string]*wizard.Controller
}

func newSessionRegistry(db *store.Database) *sessionRegistry {
	return &sessionRegistry{db: db, items: make(map[string]*wizard.Controller)}
}

// create starts a new session and persists its initial snapshot.
func (r *sessionRegistry) create() (string, *wizard.Controller, error) {
	id := uuid.NewString()
	ctrl := wizard.NewController()

	r.mu.Lock()
	r.items[id] = ctrl
	r.mu.Unlock()

	if err := r.persist(id, ctrl); err != nil {
		return "", nil, err
	}
	return id, ctrl, nil
}

// get returns the live controller, restoring it from the store when needed.
func (r *sessionRegistry) get(id string) (*wizard.Controller, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrSessionNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ctrl, ok := r.items[id]; ok {
		return ctrl, nil
	}

	state, err := r.db.GetSession(id)
	if err != nil {
		return nil, err
	}
	var snapshot wizard.Snapshot
	if err := json.Unmarshal([]byte(state.PayloadJSON), &snapshot); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	ctrl := wizard.Restore(snapshot)
	r.items[id] = ctrl
	logrus.WithFields(logrus.Fields{
		"session": id,
		"phase":   ctrl.Phase(),
	}).Info("restored wizard session")
	return ctrl, nil
}

// persist writes the controller snapshot to the store.
func (r *sessionRegistry) persist(id string, ctrl *wizard.Controller) error {
	snapshot := ctrl.Snapshot()
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return r.db.SaveSession(&store.SessionState{
		ID:          id,
		Phase:       string(snapshot.Phase),
		PayloadJSON: string(payload),
	})
}

// save persists without failing the request; a lost snapshot only costs a restart.
func (r *sessionRegistry) save(id string, ctrl *wizard.Controller) {
	if err := r.persist(id, ctrl); err != nil {
		logrus.WithError(err).WithField("session", id).Warn("persist wizard session")
	}
}

// remove forgets a session in memory and in the store.
func (r *sessionRegistry) remove(id string) error {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
	if err := r.db.DeleteSession(id); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		return err
	}
	return nil
}

// prune deletes stored sessions idle for longer than ttl and evicts them from memory.
func (r *sessionRegistry) prune(ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-ttl)

	r.mu.Lock()
	for id, ctrl := range r.items {
		if ctrl.Snapshot().UpdatedAt.Before(cutoff) {
			delete(r.items, id)
		}
	}
	r.mu.Unlock()

	return r.db.PruneSessions(cutoff)
}
