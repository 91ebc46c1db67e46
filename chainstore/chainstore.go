// Package chainstore is the durable, atomic key-value persistence layer for
// blocks, the height->hash index, and tip metadata. It is backed by bbolt
// (the teacher's embedded KV engine choice) and guarded by a directory lock
// so a second process cannot open the same store concurrently.
package chainstore

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	bolt "go.etcd.io/bbolt"

	"github.com/rubinchain/chaind/chainerr"
	"github.com/rubinchain/chaind/consensus"
)

var (
	bucketBlocks = []byte("blocks_by_hash")
	bucketHeight = []byte("height_index")
	bucketMeta   = []byte("meta")

	keyTipHash   = []byte("tip_hash")
	keyTipHeight = []byte("tip_height")
)

// Store is the persistent block store described in the chain engine design:
// block-indexed and height-indexed storage with a cached tip, all advanced
// atomically by PutBlock.
type Store struct {
	db   *bolt.DB
	lock *flock.Flock
}

// Open opens (creating if absent) the bbolt file at filepath.Join(dataDir,
// "chain.db"), taking an exclusive filesystem lock on a sibling lock file so
// a second process cannot open the same store concurrently.
func Open(dataDir string) (*Store, error) {
	lockPath := filepath.Join(dataDir, "chain.db.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, chainerr.New(chainerr.KindInitialization, "chainstore.open", err)
	}
	if !locked {
		return nil, chainerr.Newf(chainerr.KindInitialization, "chainstore.open", "data directory %s is locked by another process", dataDir)
	}

	dbPath := filepath.Join(dataDir, "chain.db")
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		_ = lock.Unlock()
		return nil, chainerr.New(chainerr.KindStorage, "chainstore.open", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketBlocks, bucketHeight, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, chainerr.New(chainerr.KindStorage, "chainstore.open", err)
	}

	return &Store{db: db, lock: lock}, nil
}

// Close releases the bbolt handle and the directory lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	closeErr := s.db.Close()
	unlockErr := s.lock.Unlock()
	if closeErr != nil {
		return chainerr.New(chainerr.KindStorage, "chainstore.close", closeErr)
	}
	if unlockErr != nil {
		return chainerr.New(chainerr.KindStorage, "chainstore.close", unlockErr)
	}
	return nil
}

// PutBlock atomically writes the block body, the height->hash index entry,
// and the advanced tip pointers in a single bbolt transaction, so that the
// tip never references a block whose body is not yet persisted.
func (s *Store) PutBlock(block consensus.Block) error {
	hash := block.Hash()
	height := block.Header.Height
	encoded := block.Encode()

	var heightKey [8]byte
	binary.BigEndian.PutUint64(heightKey[:], height)

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketBlocks).Put(hash[:], encoded); err != nil {
			return err
		}
		if err := tx.Bucket(bucketHeight).Put(heightKey[:], hash[:]); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keyTipHash, hash[:]); err != nil {
			return err
		}
		return meta.Put(keyTipHeight, heightKey[:])
	})
	if err != nil {
		return chainerr.New(chainerr.KindStorage, "chainstore.put_block", err)
	}
	return nil
}

// GetBlockByHash returns the stored block for hash, or ok=false if absent.
func (s *Store) GetBlockByHash(hash [32]byte) (consensus.Block, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get(hash[:])
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return consensus.Block{}, false, chainerr.New(chainerr.KindStorage, "chainstore.get_block_by_hash", err)
	}
	if raw == nil {
		return consensus.Block{}, false, nil
	}
	block, err := consensus.DecodeBlock(raw)
	if err != nil {
		return consensus.Block{}, false, chainerr.New(chainerr.KindStorage, "chainstore.get_block_by_hash", err)
	}
	return block, true, nil
}

// GetHashByHeight returns the canonical block hash at height, or ok=false if
// no block has been stored at that height.
func (s *Store) GetHashByHeight(height uint64) ([32]byte, bool, error) {
	var heightKey [8]byte
	binary.BigEndian.PutUint64(heightKey[:], height)

	var out [32]byte
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHeight).Get(heightKey[:])
		if v == nil {
			return nil
		}
		if len(v) != 32 {
			return fmt.Errorf("height index: malformed hash (len=%d)", len(v))
		}
		copy(out[:], v)
		found = true
		return nil
	})
	if err != nil {
		return out, false, chainerr.New(chainerr.KindStorage, "chainstore.get_hash_by_height", err)
	}
	return out, found, nil
}

// GetBlockByHeight composes GetHashByHeight and GetBlockByHash.
func (s *Store) GetBlockByHeight(height uint64) (consensus.Block, bool, error) {
	hash, ok, err := s.GetHashByHeight(height)
	if err != nil || !ok {
		return consensus.Block{}, ok, err
	}
	return s.GetBlockByHash(hash)
}

// GetTipHash returns the current tip's block hash, or ok=false if the chain
// is empty.
func (s *Store) GetTipHash() ([32]byte, bool, error) {
	var out [32]byte
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keyTipHash)
		if v == nil {
			return nil
		}
		if len(v) != 32 {
			return fmt.Errorf("meta: malformed tip_hash (len=%d)", len(v))
		}
		copy(out[:], v)
		found = true
		return nil
	})
	if err != nil {
		return out, false, chainerr.New(chainerr.KindStorage, "chainstore.get_tip_hash", err)
	}
	return out, found, nil
}

// GetTipHeight returns the current tip's height, or ok=false if the chain is
// empty.
func (s *Store) GetTipHeight() (uint64, bool, error) {
	var height uint64
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keyTipHeight)
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return fmt.Errorf("meta: malformed tip_height (len=%d)", len(v))
		}
		height = binary.BigEndian.Uint64(v)
		found = true
		return nil
	})
	if err != nil {
		return 0, false, chainerr.New(chainerr.KindStorage, "chainstore.get_tip_height", err)
	}
	return height, found, nil
}

// DifficultyAt and TimestampAt implement consensus.HeaderHistory by
// fetching the stored block at a given height and reading its header.
func (s *Store) DifficultyAt(height uint64) (uint32, bool) {
	block, ok, err := s.GetBlockByHeight(height)
	if err != nil || !ok {
		return 0, false
	}
	return block.Header.Difficulty, true
}

func (s *Store) TimestampAt(height uint64) (uint64, bool) {
	block, ok, err := s.GetBlockByHeight(height)
	if err != nil || !ok {
		return 0, false
	}
	return block.Header.Timestamp, true
}
