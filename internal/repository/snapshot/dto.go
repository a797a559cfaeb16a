package snapshot

import (
	"encoding/json"
	"time"

	"github.com/kailas-cloud/dictcache/internal/domain/schema/field"
)

type collectionDTO struct {
	Data        json.RawMessage `json:"data"`
	LastUpdated time.Time       `json:"last_updated"`
}

type schemaDTO struct {
	Fields      []field.Structure `json:"fields"`
	LastUpdated time.Time         `json:"last_updated"`
}
