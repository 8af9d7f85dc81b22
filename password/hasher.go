package password

// Hasher hashes new passwords and verifies stored hashes.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password string, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Scheme is a Hasher that can tell whether it produced a given hash.
type Scheme interface {
	Hasher
	Recognizes(encodedHash string) bool
}

// Migrating hashes with a primary scheme and verifies hashes from any of the
// configured schemes. Hashes not produced by the primary always need upgrade.
type Migrating struct {
	primary Scheme
	legacy  []Scheme
}

// NewMigrating returns a hasher that writes primary hashes and still accepts legacy ones.
func NewMigrating(primary Scheme, legacy ...Scheme) *Migrating {
	return &Migrating{primary: primary, legacy: legacy}
}

func (m *Migrating) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

func (m *Migrating) Verify(password string, encodedHash string) (bool, error) {
	s, err := m.schemeFor(encodedHash)
	if err != nil {
		return false, err
	}
	return s.Verify(password, encodedHash)
}

func (m *Migrating) NeedsUpgrade(encodedHash string) (bool, error) {
	if m.primary.Recognizes(encodedHash) {
		return m.primary.NeedsUpgrade(encodedHash)
	}
	if _, err := m.schemeFor(encodedHash); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Migrating) schemeFor(encodedHash string) (Scheme, error) {
	if m.primary.Recognizes(encodedHash) {
		return m.primary, nil
	}
	for _, s := range m.legacy {
		if s.Recognizes(encodedHash) {
			return s, nil
		}
	}
	return nil, ErrUnsupportedAlgorithm
}
