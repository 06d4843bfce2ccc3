// Package identity derives content hashes and row identifiers for ingested
// transactions. Hashes are content derived and drive deduplication; ids are
// time ordered and unique per ingested row regardless of content.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// HashLength is the length of a hex encoded content hash.
const HashLength = sha256.Size * 2

// absent marks a missing cell so that it never collides with an empty string.
const absent = "\x00"

// Generator issues time-ordered unique identifiers.
type Generator struct {
	newID func() (uuid.UUID, error)
}

// NewGenerator returns a generator backed by UUIDv7.
func NewGenerator() *Generator {
	return &Generator{newID: uuid.NewV7}
}

// NewGeneratorWithSource wraps a custom identifier source, mainly for tests.
func NewGeneratorWithSource(source func() (uuid.UUID, error)) *Generator {
	if source == nil {
		source = uuid.NewV7
	}
	return &Generator{newID: source}
}

// NewID returns the next identifier. A failing source falls back to a random
// UUIDv4 so that ingestion never stalls on identity.
func (g *Generator) NewID() uuid.UUID {
	id, err := g.newID()
	if err != nil || id == uuid.Nil {
		return uuid.New()
	}
	return id
}

// Hash returns the SHA-256 fingerprint of an ordered tuple of raw cell values.
// Each value is length prefixed, so shifting characters between adjacent
// cells changes the fingerprint.
func Hash(values []any) string {
	h := sha256.New()
	for _, value := range values {
		text, ok := RawText(value)
		if !ok {
			text = absent
		}
		fmt.Fprintf(h, "%d:%s;", len(text), text)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RawText renders a raw cell value as text. The boolean is false when the
// value is absent.
func RawText(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case *int64:
		if v == nil {
			return "", false
		}
		return strconv.FormatInt(*v, 10), true
	case *float64:
		if v == nil {
			return "", false
		}
		return strconv.FormatFloat(*v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case time.Time:
		if v.IsZero() {
			return "", false
		}
		if v.Equal(v.Truncate(24 * time.Hour)) {
			return v.Format(time.DateOnly), true
		}
		return v.Format(time.RFC3339Nano), true
	case *time.Time:
		if v == nil {
			return "", false
		}
		return RawText(*v)
	case uuid.UUID:
		if v == uuid.Nil {
			return "", false
		}
		return v.String(), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}
