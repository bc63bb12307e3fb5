package sqlite

// setBeforeCommit installs fn to run inside every write transaction just
// before commit. A non-nil error from fn rolls the transaction back.
func (s *Store) setBeforeCommit(fn func() error) {
	s.beforeCommit = fn
}
