package fs

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/mono/internal/core/domain"
	"go.trai.ch/mono/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Fingerprinter = (*Fingerprinter)(nil)

// Fingerprinter computes cache keys from file content, never mtimes, so
// fresh checkouts with altered timestamps still hit the cache.
type Fingerprinter struct {
	walker *Walker
}

// NewFingerprinter creates a new Fingerprinter.
func NewFingerprinter(walker *Walker) *Fingerprinter {
	return &Fingerprinter{walker: walker}
}

// HashFile computes the xxhash of a file's content, hex encoded.
func (f *Fingerprinter) HashFile(path string) (string, error) {
	h, err := f.hashFileContent(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h), nil
}

func (f *Fingerprinter) hashFileContent(path string) (uint64, error) {
	file, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", path)
	}
	defer file.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", path)
	}

	return hasher.Sum64(), nil
}

// ComputeFingerprint combines the sorted input file hashes, the command
// signature, the relevant environment values and the sorted upstream
// fingerprints into one digest. Every section is written in a canonical
// order, so the result is independent of discovery order.
func (f *Fingerprinter) ComputeFingerprint(
	task *domain.TaskDefinition,
	env map[string]string,
	inputs []string,
	upstream []domain.Fingerprint,
) (domain.Fingerprint, error) {
	hasher := xxhash.New()

	if err := f.hashInputs(inputs, hasher); err != nil {
		return "", err
	}
	hashCommand(task, hasher)
	hashEnvironment(env, hasher)
	hashUpstream(upstream, hasher)

	return domain.Fingerprint(fmt.Sprintf("%016x", hasher.Sum64())), nil
}

// hashInputs writes (path, content hash) pairs sorted by path. Paths
// resolving to directories are expanded through the walker.
func (f *Fingerprinter) hashInputs(inputs []string, hasher *xxhash.Digest) error {
	files, err := f.expandDirs(inputs)
	if err != nil {
		return err
	}

	for _, path := range files {
		h, err := f.hashFileContent(path)
		if err != nil {
			return err
		}
		_, _ = hasher.WriteString(path)
		_, _ = hasher.Write([]byte{0})
		if err := binary.Write(hasher, binary.LittleEndian, h); err != nil {
			return zerr.Wrap(err, domain.ErrFileHashFailed.Error())
		}
	}
	_, _ = hasher.Write([]byte{0})

	return nil
}

func (f *Fingerprinter) expandDirs(inputs []string) ([]string, error) {
	files := make([]string, 0, len(inputs))
	for _, path := range inputs {
		info, err := os.Stat(path)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrInputNotFound.Error()), "path", path)
		}
		if info.IsDir() {
			for file := range f.walker.WalkFiles(path, nil) {
				files = append(files, file)
			}
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return slices.Compact(files), nil
}

// hashCommand writes the task's command signature.
func hashCommand(task *domain.TaskDefinition, hasher *xxhash.Digest) {
	_, _ = hasher.WriteString(task.Name.String())
	_, _ = hasher.Write([]byte{0})
	for _, arg := range task.Command {
		_, _ = hasher.WriteString(arg)
		_, _ = hasher.Write([]byte{0})
	}
	_, _ = hasher.Write([]byte{0})
}

// hashEnvironment writes environment variables in sorted key order.
func hashEnvironment(env map[string]string, hasher *xxhash.Digest) {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		_, _ = hasher.WriteString(k)
		_, _ = hasher.Write([]byte{'='})
		_, _ = hasher.WriteString(env[k])
		_, _ = hasher.Write([]byte{0})
	}
	_, _ = hasher.Write([]byte{0})
}

// hashUpstream writes upstream fingerprints sorted, so sibling completion
// order never changes the digest.
func hashUpstream(upstream []domain.Fingerprint, hasher *xxhash.Digest) {
	sorted := make([]string, len(upstream))
	for i, fp := range upstream {
		sorted[i] = fp.String()
	}
	sort.Strings(sorted)

	for _, fp := range sorted {
		_, _ = hasher.WriteString(fp)
		_, _ = hasher.Write([]byte{0})
	}
	_, _ = hasher.Write([]byte{0})
}
