package credentials

import "fmt"

// Backend kinds accepted by OpenBackend
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// OpenBackend returns the backend named by kind, storing data at path
func OpenBackend(kind, path string) (Backend, error) {
	switch kind {
	case "", BackendFile:
		return NewFileBackend(path)
	case BackendSQLite:
		return NewSQLiteBackend(path)
	case BackendMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown credentials backend: %s", kind)
	}
}
