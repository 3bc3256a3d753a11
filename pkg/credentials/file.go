package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

const fileVersion = "1.0"

// fileSchema describes the credentials document written by FileBackend
const fileSchema = `{
	"type": "object",
	"required": ["version", "credentials"],
	"properties": {
		"version": {"type": "string"},
		"saved_at": {"type": "integer"},
		"credentials": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"properties": {
					"username": {"type": "string"},
					"secret": {"type": "string"},
					"api_key": {"type": "string"}
				},
				"additionalProperties": false
			}
		}
	}
}`

// fileData is the on-disk layout
type fileData struct {
	Version     string                `json:"version"`
	SavedAt     int64                 `json:"saved_at"`
	Credentials map[string]Credential `json:"credentials"`
}

// FileBackend persists credentials as a JSON document
type FileBackend struct {
	path   string
	mu     sync.Mutex
	schema *gojsonschema.Schema
}

// NewFileBackend creates a backend writing to path
func NewFileBackend(path string) (*FileBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("credentials file path is required")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(fileSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile credentials schema: %w", err)
	}
	return &FileBackend{path: path, schema: schema}, nil
}

// Load reads the document; a missing file yields an empty map
func (b *FileBackend) Load() (map[string]Credential, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return map[string]Credential{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	result, err := b.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("invalid credentials file: %s", strings.Join(msgs, "; "))
	}

	var doc fileData
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if doc.Credentials == nil {
		doc.Credentials = map[string]Credential{}
	}
	return doc.Credentials, nil
}

// Save writes the document atomically with owner-only permissions
func (b *FileBackend) Save(creds map[string]Credential) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc := fileData{
		Version:     fileVersion,
		SavedAt:     time.Now().Unix(),
		Credentials: creds,
	}
	if doc.Credentials == nil {
		doc.Credentials = map[string]Credential{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(b.path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	tempPath := b.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempPath, b.path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
