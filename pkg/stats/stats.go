// Package stats folds per-frame outcomes into a running snapshot of counters
// and average latencies for one cipher context.
package stats

// Statistics is a flat snapshot of per-context counters, running averages and
// last-observed key flags. All counters are monotone; only cleanup resets
// them. Folds have value semantics and never mutate the receiver.
type Statistics struct {
	TotalFrames       uint64 `json:"totalFrames"`
	EncryptedFrames   uint64 `json:"encryptedFrames"`
	DecryptedFrames   uint64 `json:"decryptedFrames"`
	PassthroughFrames uint64 `json:"passthroughFrames"`
	EncryptionErrors  uint64 `json:"encryptionErrors"`
	DecryptionErrors  uint64 `json:"decryptionErrors"`

	AverageEncryptionTimeMs float64 `json:"averageEncryptionTimeMs"`
	AverageDecryptionTimeMs float64 `json:"averageDecryptionTimeMs"`

	KeyGeneration     uint8 `json:"keyGeneration"`
	EncryptionEnabled bool  `json:"encryptionEnabled"`
}

// FoldEncrypted records one successfully encrypted frame and its latency.
func (s Statistics) FoldEncrypted(elapsedMs float64) Statistics {
	s.AverageEncryptionTimeMs = runningAverage(s.AverageEncryptionTimeMs, s.EncryptedFrames, elapsedMs)
	s.EncryptedFrames++
	s.TotalFrames++
	return s
}

// FoldDecrypted records one successfully decrypted frame and its latency.
func (s Statistics) FoldDecrypted(elapsedMs float64) Statistics {
	s.AverageDecryptionTimeMs = runningAverage(s.AverageDecryptionTimeMs, s.DecryptedFrames, elapsedMs)
	s.DecryptedFrames++
	s.TotalFrames++
	return s
}

// FoldPassthrough records a frame forwarded unchanged. Passthrough never
// contributes to the timing averages.
func (s Statistics) FoldPassthrough() Statistics {
	s.PassthroughFrames++
	s.TotalFrames++
	return s
}

// FoldEncryptionError records a frame dropped because encryption failed.
func (s Statistics) FoldEncryptionError() Statistics {
	s.EncryptionErrors++
	s.TotalFrames++
	return s
}

// FoldDecryptionError records a frame dropped because decryption failed.
func (s Statistics) FoldDecryptionError() Statistics {
	s.DecryptionErrors++
	s.TotalFrames++
	return s
}

// WithKeyGeneration records the last installed key generation.
func (s Statistics) WithKeyGeneration(generation uint8) Statistics {
	s.KeyGeneration = generation
	return s
}

// WithEncryptionEnabled records the last observed encryption flag.
func (s Statistics) WithEncryptionEnabled(enabled bool) Statistics {
	s.EncryptionEnabled = enabled
	return s
}

// runningAverage performs an incremental mean update, where n is the number
// of samples already folded into oldAvg.
func runningAverage(oldAvg float64, n uint64, sample float64) float64 {
	return (oldAvg*float64(n) + sample) / float64(n+1)
}
