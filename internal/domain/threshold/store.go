package threshold

import "sync/atomic"

// Store holds the live Config. Writers replace the whole value, readers get a
// consistent snapshot without locking.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore creates a Store seeded with cfg. The initial value is validated.
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := new(Store)
	s.current.Store(&cfg)

	return s, nil
}

// Snapshot returns the current Config.
func (s *Store) Snapshot() Config {
	return *s.current.Load()
}

// Update validates cfg and publishes it.
func (s *Store) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.current.Store(&cfg)

	return nil
}

// SetSensitivity publishes a copy of the current Config with a new sensitivity.
// The compare-and-swap loop keeps a concurrent Update from being overwritten
// with stale motion bounds.
func (s *Store) SetSensitivity(sensitivity float64) error {
	for {
		old := s.current.Load()

		next := *old
		next.Sensitivity = sensitivity

		if err := next.Validate(); err != nil {
			return err
		}

		if s.current.CompareAndSwap(old, &next) {
			return nil
		}
	}
}
