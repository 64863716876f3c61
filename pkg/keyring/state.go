package keyring

// KeyEntry pairs an opaque key handle with the mod-256 generation it was
// distributed under.
type KeyEntry struct {
	Handle     *KeyHandle
	Generation uint8
}

// State holds the live key generations for one cipher context: the current
// key and the immediately prior one, so frames encrypted just before a
// rotation still decrypt. At most two generations are live at any time.
//
// State has value semantics. Updates return a new State and never mutate the
// receiver, so in-flight readers always observe a consistent snapshot.
type State struct {
	Current           *KeyEntry
	Previous          *KeyEntry
	EncryptionEnabled bool
}

// WithKey installs a new current key, sliding the old current key into the
// previous slot. Whatever occupied the previous slot is retired; frames
// encrypted under it become unrecoverable.
func (s State) WithKey(handle *KeyHandle, generation uint8) State {
	return State{
		Current:           &KeyEntry{Handle: handle, Generation: generation},
		Previous:          s.Current,
		EncryptionEnabled: s.EncryptionEnabled,
	}
}

// WithEncryption toggles the encryption-enabled flag. The flag is orthogonal
// to key presence: encryption can be disabled while a key is loaded.
func (s State) WithEncryption(enabled bool) State {
	s.EncryptionEnabled = enabled
	return s
}

// Clear drops all key material and resets the flag. Used by cleanup.
func (s State) Clear() State {
	return State{}
}

// Lookup selects the key for an exact generation match, checking the current
// key first and then the previous one.
func (s State) Lookup(generation uint8) (*KeyHandle, bool) {
	if s.Current != nil && s.Current.Generation == generation {
		return s.Current.Handle, true
	}
	if s.Previous != nil && s.Previous.Generation == generation {
		return s.Previous.Handle, true
	}
	return nil, false
}

// LiveGenerations returns the generations of the live keys, current first.
func (s State) LiveGenerations() []uint8 {
	var gens []uint8
	if s.Current != nil {
		gens = append(gens, s.Current.Generation)
	}
	if s.Previous != nil {
		gens = append(gens, s.Previous.Generation)
	}
	return gens
}

// NearestDistance returns the minimal circular distance from generation to
// any live key generation. ok is false when no key is loaded.
func (s State) NearestDistance(generation uint8) (distance uint8, ok bool) {
	best := uint8(0)
	for i, g := range s.LiveGenerations() {
		d := GenerationDistance(generation, g)
		if i == 0 || d < best {
			best = d
		}
		ok = true
	}
	return best, ok
}

// GenerationDistance computes the minimal circular distance between two
// generations on the mod-256 ring, so 255 and 0 are one step apart.
func GenerationDistance(a, b uint8) uint8 {
	forward := a - b
	backward := b - a
	if forward < backward {
		return forward
	}
	return backward
}
