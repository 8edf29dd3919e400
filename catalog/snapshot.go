package catalog

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"
)

const channelTable = "channels"

var snapshotSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		channelTable: {
			Name: channelTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
			},
		},
	},
}

// Snapshot is an immutable, ordered view of the catalog built from a single
// upstream fetch.
type Snapshot struct {
	channels []Channel
	db       *memdb.MemDB
	LoadedAt time.Time
}

// NewSnapshot indexes channels in their given order. Channels repeating an
// earlier ID are returned as duplicates and left out.
func NewSnapshot(channels []Channel, loadedAt time.Time) (*Snapshot, []Channel, error) {
	db, err := memdb.NewMemDB(snapshotSchema)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating channel index: %w", err)
	}

	txn := db.Txn(true)
	defer txn.Abort()

	kept := make([]Channel, 0, len(channels))
	var duplicates []Channel
	for i := range channels {
		ch := channels[i]
		existing, err := txn.First(channelTable, "id", ch.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("error indexing channel %q: %w", ch.ID, err)
		}
		if existing != nil {
			duplicates = append(duplicates, ch)
			continue
		}
		if err := txn.Insert(channelTable, &ch); err != nil {
			return nil, nil, fmt.Errorf("error indexing channel %q: %w", ch.ID, err)
		}
		kept = append(kept, ch)
	}
	txn.Commit()

	return &Snapshot{channels: kept, db: db, LoadedAt: loadedAt}, duplicates, nil
}

// Get looks a channel up by its ID.
func (s *Snapshot) Get(id string) (Channel, bool) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(channelTable, "id", id)
	if err != nil || raw == nil {
		return Channel{}, false
	}
	return *raw.(*Channel), true
}

// Channels returns the channels in bundle order. The slice is a copy.
func (s *Snapshot) Channels() []Channel {
	out := make([]Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

func (s *Snapshot) Len() int {
	return len(s.channels)
}
