package db

import (
	"time"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

// NewBoltDB opens the embedded per-device store. The open timeout keeps a
// second process holding the file lock from hanging startup forever.
func NewBoltDB(path string, log *zap.Logger) (*bolt.DB, error) {
	database, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}

	log.Info("bolt store opened", zap.String("path", path))
	return database, nil
}
