// Package rawstore persists verbatim API responses as timestamped, write-once JSON files.
package rawstore

import (
	"encoding/json"
	"errors"
	"time"
)

// TimestampLayout is the UTC suffix used in artifact file names.
const TimestampLayout = "20060102T150405Z"

var (
	ErrArtifactExists = errors.New("raw artifact already exists")
	ErrInvalidName    = errors.New("raw artifact name does not follow <prefix>_<geo>_<timestamp>.json")
)

// Artifact is one cached API response plus the metadata of the call that produced it.
type Artifact struct {
	Path        string          `json:"path"`
	Bucket      string          `json:"bucket"`
	Endpoint    string          `json:"endpoint"`
	Variables   []string        `json:"variables"`
	Geography   string          `json:"geography"`
	RetrievedAt time.Time       `json:"retrieved_at"`
	SHA256      string          `json:"sha256"`
	Payload     json.RawMessage `json:"-"`
}

// Name is the decoded form of an artifact file name.
type Name struct {
	Prefix      string
	GeoToken    string
	RetrievedAt time.Time
}
