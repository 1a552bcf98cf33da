package ports

import "go.trai.ch/mono/internal/core/domain"

// Fingerprinter defines the interface for computing cache keys.
//
//go:generate mockgen -source=fingerprinter.go -destination=mocks/mock_fingerprinter.go -package=mocks
type Fingerprinter interface {
	// ComputeFingerprint combines the task definition, the relevant
	// environment values, the content hashes of the resolved input files
	// and the fingerprints of direct upstream nodes into one fixed-length
	// digest. Inputs and upstream fingerprints are sorted internally, so
	// discovery order never affects the result.
	ComputeFingerprint(
		task *domain.TaskDefinition,
		env map[string]string,
		inputs []string,
		upstream []domain.Fingerprint,
	) (domain.Fingerprint, error)

	// HashFile returns the content hash of a single file.
	HashFile(path string) (string, error)
}
