package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/boltdb/bolt"
	"github.com/zapchat/backend/internal/models"
)

var (
	bucketConnections = []byte("connections")
	bucketSettings    = []byte("settings")
	keyActive         = []byte("active")
)

// ConnectionRepo persists wallet connections in the embedded bolt store:
// one bucket keyed by connection string, plus the active-connection pointer
// in a settings bucket. Listing order is bolt's byte order over keys, which
// is what "first remaining" promotion means here.
type ConnectionRepo struct {
	db *bolt.DB
}

func NewConnectionRepo(db *bolt.DB) (*ConnectionRepo, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketConnections); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketSettings)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("init connection buckets: %w", err)
	}
	return &ConnectionRepo{db: db}, nil
}

func (r *ConnectionRepo) Put(conn models.WalletConnection) error {
	data, err := json.Marshal(conn)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConnections).Put([]byte(conn.ConnectionString), data)
	})
}

func (r *ConnectionRepo) Get(uri string) (*models.WalletConnection, error) {
	var conn *models.WalletConnection
	err := r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketConnections).Get([]byte(uri))
		if data == nil {
			return nil
		}
		var c models.WalletConnection
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		conn = &c
		return nil
	})
	return conn, err
}

func (r *ConnectionRepo) Delete(uri string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConnections).Delete([]byte(uri))
	})
}

func (r *ConnectionRepo) List() ([]models.WalletConnection, error) {
	var conns []models.WalletConnection
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConnections).ForEach(func(k, v []byte) error {
			var c models.WalletConnection
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("corrupt connection record %q: %w", string(k), err)
			}
			conns = append(conns, c)
			return nil
		})
	})
	return conns, err
}

// Active returns the active connection URI, or "" when none is set.
func (r *ConnectionRepo) Active() (string, error) {
	var uri string
	err := r.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketSettings).Get(keyActive); v != nil {
			uri = string(v)
		}
		return nil
	})
	return uri, err
}

func (r *ConnectionRepo) SetActive(uri string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		if uri == "" {
			return tx.Bucket(bucketSettings).Delete(keyActive)
		}
		return tx.Bucket(bucketSettings).Put(keyActive, []byte(uri))
	})
}
