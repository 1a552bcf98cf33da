package domain

import "go.trai.ch/zerr"

var (
	// ErrMalformedWorkspace is returned when the workspace configuration cannot be interpreted.
	ErrMalformedWorkspace = zerr.New("malformed workspace")

	// ErrDuplicatePackageName is returned when two packages declare the same name.
	ErrDuplicatePackageName = zerr.New("duplicate package name")

	// ErrUnresolvedDependency is returned when a package depends on a name no package declares.
	ErrUnresolvedDependency = zerr.New("unresolved package dependency")

	// ErrMissingPackageName is returned when a package manifest has no name.
	ErrMissingPackageName = zerr.New("missing package name")

	// ErrInvalidPackageName is returned when a package name is invalid.
	ErrInvalidPackageName = zerr.New("package name can only contain alphanumeric characters, hyphens and underscores")

	// ErrCycleDetected is returned when the task graph contains a cycle.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrOutputConflict is returned when two task nodes declare overlapping output paths.
	ErrOutputConflict = zerr.New("output path declared by more than one task")

	// ErrDuplicateTaskNode is returned when a node with the same identity is added twice.
	ErrDuplicateTaskNode = zerr.New("task node already exists")

	// ErrTaskNotFound is returned when a requested task is declared by no package.
	ErrTaskNotFound = zerr.New("task not found")

	// ErrPackageNotFound is returned when a package filter names an unknown package.
	ErrPackageNotFound = zerr.New("package not found")

	// ErrNoTasksRequested is returned when the run command receives no task names.
	ErrNoTasksRequested = zerr.New("no tasks requested")

	// ErrReservedTaskName is returned when a task uses a reserved name.
	ErrReservedTaskName = zerr.New("task name is reserved")

	// ErrInvalidTaskName is returned when a task name contains invalid characters.
	ErrInvalidTaskName = zerr.New("invalid task name")

	// ErrConfigReadFailed is returned when a config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when a config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigNotFound is returned when no workspace file can be found.
	ErrConfigNotFound = zerr.New("could not find mono.work.yaml")

	// ErrInputNotFound is returned when a declared input matches no files.
	ErrInputNotFound = zerr.New("input not found")

	// ErrInputResolutionFailed is returned when input patterns cannot be resolved.
	ErrInputResolutionFailed = zerr.New("failed to resolve inputs")

	// ErrFingerprintFailed is returned when fingerprint computation fails.
	ErrFingerprintFailed = zerr.New("failed to compute fingerprint")

	// ErrOutputMissing is returned when a declared output is absent after execution.
	ErrOutputMissing = zerr.New("declared output missing after execution")

	// ErrFileOpenFailed is returned when a file cannot be opened.
	ErrFileOpenFailed = zerr.New("failed to open file")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrStoreCreateFailed is returned when the cache store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create cache store directory")

	// ErrStoreReadFailed is returned when a cache entry cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read cache entry")

	// ErrStoreWriteFailed is returned when a cache entry cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write cache entry")

	// ErrStoreDecodeFailed is returned when a cache entry cannot be decoded.
	ErrStoreDecodeFailed = zerr.New("failed to decode cache entry")

	// ErrBlobNotFound is returned when a manifest references a blob the store does not hold.
	ErrBlobNotFound = zerr.New("blob not found in cache store")

	// ErrMaterializeFailed is returned when cached outputs cannot be written back to the workspace.
	ErrMaterializeFailed = zerr.New("failed to materialize cached outputs")

	// ErrTaskExecutionFailed is returned when a task exits non-zero or times out.
	ErrTaskExecutionFailed = zerr.New("task execution failed")

	// ErrRunFailed is returned when at least one node of the run failed or was skipped.
	ErrRunFailed = zerr.New("run finished with failures")
)
