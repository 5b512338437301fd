package cassandra

import (
	"context"
	"time"

	"github.com/gocql/gocql"

	"github.com/veilbase/sealstore/internal/vault"
)

// Archive implements the vault.Archive interface using Cassandra as the
// backend database. Writes are retried per the configured connection policy;
// published values are write-once so retried inserts are harmless.
type Archive struct {
	session  *gocql.Session
	keyspace string
	config   *vault.Config
}

// NewArchive creates a new Cassandra archive
func NewArchive(config *vault.Config) (*Archive, error) {
	cluster := gocql.NewCluster(config.Archive.CassandraHosts...)
	cluster.Keyspace = config.Archive.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.NumConns = 2

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	return &Archive{
		session:  session,
		keyspace: config.Archive.Keyspace,
		config:   config,
	}, nil
}

// Save persists the published form of a value
func (a *Archive) Save(ctx context.Context, key vault.Key, value []byte) error {
	var err error
	for i := 0; i < a.tries(); i++ {
		err = a.session.Query("INSERT INTO published (key, value, archived_at) VALUES (?, ?, ?)",
			int64(key), value, time.Now()).WithContext(ctx).Exec()
		if err == nil {
			return nil
		}
		time.Sleep(a.retryDelay())
	}
	return err
}

// Load retrieves a previously archived value
func (a *Archive) Load(ctx context.Context, key vault.Key) ([]byte, error) {
	var value []byte
	var err error
	for i := 0; i < a.tries(); i++ {
		err = a.session.Query("SELECT value FROM published WHERE key = ? LIMIT 1",
			int64(key)).WithContext(ctx).Scan(&value)
		if err == nil {
			return value, nil
		}
		if err == gocql.ErrNotFound {
			return nil, err
		}
		time.Sleep(a.retryDelay())
	}
	return nil, err
}

// Close closes the Cassandra session
func (a *Archive) Close() error {
	a.session.Close()
	return nil
}

func (a *Archive) tries() int {
	if a.config.Archive.MinTries > 0 {
		return a.config.Archive.MinTries
	}
	return 1
}

func (a *Archive) retryDelay() time.Duration {
	return time.Duration(a.config.Archive.RetryDelayMs) * time.Millisecond
}
