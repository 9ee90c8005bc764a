// Package store persists encrypted datasets, their capsules and the access
// grants issued for them in a LevelDB database.
//
// Each dataset keeps its original capsule, the current capsule that is
// replaced at every sale, the full capsule history for audit, and one grant
// per buyer holding the re-encryption key and the capsule transformed for
// that buyer. Capsule replacement is compare-and-swap under the store lock,
// so concurrent sales of one dataset serialize.
package store

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/prismdata/prism-go/pkg/prism"
	"github.com/prismdata/prism-go/pkg/prism/curve"
	"github.com/prismdata/prism-go/pkg/prism/keys"
	"github.com/prismdata/prism-go/pkg/prism/logging"
	"github.com/prismdata/prism-go/pkg/prism/pre"
)

var (
	// ErrNotFound indicates an unknown dataset or grant.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict indicates the current capsule changed since it was read.
	ErrConflict = errors.New("store: capsule changed concurrently")
	// ErrClosed indicates use of a closed store.
	ErrClosed = errors.New("store: closed")
)

const (
	sep byte = 0x00

	prefixDataset  = 'd'
	prefixCipher   = 'p'
	prefixOriginal = 'o'
	prefixCurrent  = 'c'
	prefixHistory  = 'h'
	prefixGrant    = 'g'

	datasetValueSize = curve.PointSize + 8 + 8
	grantValueSize   = curve.PointSize + 8 + pre.ReEncryptionKeySize + pre.CapsuleSize
)

// Dataset is a stored encrypted payload and its capsule state.
type Dataset struct {
	ID       uuid.UUID
	Owner    *curve.Point
	Original *pre.Capsule
	Current  *pre.Capsule
	Cipher   []byte
	Created  time.Time
	// Sales is the number of capsule replacements so far.
	Sales uint64
}

// Grant is the audit record of one sale.
type Grant struct {
	Dataset uuid.UUID
	Buyer   *curve.Point
	Key     *pre.ReEncryptionKey
	Capsule *pre.Capsule
	Issued  time.Time
}

// Store is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	db     *leveldb.DB
	logger logging.Logger
	now    func() time.Time

	writeOpts *opt.WriteOptions
}

// Open opens or creates a store at path.
func Open(path string, logger logging.Logger) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, prism.Errorf("store.Open", "open leveldb at %s: %w", path, err)
	}
	return newStore(db, logger, true), nil
}

// OpenMemory returns a store backed by memory only.
func OpenMemory(logger logging.Logger) (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, prism.Errorf("store.OpenMemory", "open leveldb: %w", err)
	}
	return newStore(db, logger, false), nil
}

func newStore(db *leveldb.DB, logger logging.Logger, sync bool) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{
		db:        db,
		logger:    logger.With("component", "store"),
		now:       time.Now,
		writeOpts: &opt.WriteOptions{Sync: sync},
	}
}

// Close releases the database. Further calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return prism.Wrap("store.Close", err)
}

// Create persists a freshly encrypted payload and returns its id. The
// capsule becomes both the original and the current capsule.
func (s *Store) Create(ctx context.Context, owner *curve.Point, capsule *pre.Capsule, cipher []byte) (uuid.UUID, error) {
	const op = "store.Create"
	if owner == nil || capsule == nil {
		return uuid.Nil, prism.Errorf(op, "%w: owner and capsule are required", prism.ErrInvalidParameter)
	}
	if capsule.IsReEncrypted() {
		return uuid.Nil, prism.Errorf(op, "%w", prism.ErrAlreadyReEncrypted)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return uuid.Nil, prism.Wrap(op, ErrClosed)
	}

	id := uuid.New()
	created := s.now().UTC()
	cb := capsule.Bytes()

	batch := new(leveldb.Batch)
	batch.Put(key(prefixDataset, id), encodeDataset(owner, created, 0))
	batch.Put(key(prefixCipher, id), cipher)
	batch.Put(key(prefixOriginal, id), cb)
	batch.Put(key(prefixCurrent, id), cb)
	batch.Put(historyKey(id, 0), cb)
	if err := s.db.Write(batch, s.writeOpts); err != nil {
		return uuid.Nil, prism.Errorf(op, "write dataset %s: %w", id, err)
	}
	s.logger.Debug(ctx, "dataset stored", "dataset", id.String(), "bytes", len(cipher))
	return id, nil
}

// Get loads a dataset.
func (s *Store) Get(id uuid.UUID) (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, prism.Wrap("store.Get", ErrClosed)
	}
	return s.get(id)
}

func (s *Store) get(id uuid.UUID) (*Dataset, error) {
	const op = "store.Get"
	meta, err := s.read(key(prefixDataset, id))
	if err != nil {
		return nil, prism.Errorf(op, "dataset %s: %w", id, err)
	}
	if len(meta) != datasetValueSize {
		return nil, prism.Errorf(op, "%w: dataset %s record", prism.ErrDeserialization, id)
	}
	owner, err := curve.PointFromBytes(meta[:curve.PointSize])
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	ds := &Dataset{
		ID:      id,
		Owner:   owner,
		Created: time.Unix(0, int64(binary.BigEndian.Uint64(meta[curve.PointSize:]))).UTC(),
		Sales:   binary.BigEndian.Uint64(meta[curve.PointSize+8:]),
	}
	if ds.Original, err = s.readCapsule(key(prefixOriginal, id)); err != nil {
		return nil, prism.Wrap(op, err)
	}
	if ds.Current, err = s.readCapsule(key(prefixCurrent, id)); err != nil {
		return nil, prism.Wrap(op, err)
	}
	if ds.Cipher, err = s.read(key(prefixCipher, id)); err != nil {
		return nil, prism.Wrap(op, err)
	}
	return ds, nil
}

// RecordSale atomically replaces the dataset's current capsule with the
// buyer's transformed capsule, appends it to the history and stores the
// grant. It fails with ErrConflict when the current capsule is no longer
// expected.
func (s *Store) RecordSale(ctx context.Context, id uuid.UUID, expected *pre.Capsule, buyer *curve.Point, rk *pre.ReEncryptionKey, capsule *pre.Capsule) error {
	const op = "store.RecordSale"
	if expected == nil || buyer == nil || rk == nil || capsule == nil {
		return prism.Errorf(op, "%w: missing argument", prism.ErrInvalidParameter)
	}
	if !rk.BoundTo(buyer) {
		return prism.Errorf(op, "%w: re-encryption key is bound to another buyer", prism.ErrInvalidParameter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return prism.Wrap(op, ErrClosed)
	}

	ds, err := s.get(id)
	if err != nil {
		return err
	}
	if !ds.Current.Equal(expected) {
		return prism.Errorf(op, "dataset %s: %w", id, ErrConflict)
	}

	seq := ds.Sales + 1
	issued := s.now().UTC()
	cb := capsule.Bytes()

	batch := new(leveldb.Batch)
	batch.Put(key(prefixDataset, id), encodeDataset(ds.Owner, ds.Created, seq))
	batch.Put(key(prefixCurrent, id), cb)
	batch.Put(historyKey(id, seq), cb)
	batch.Put(grantKey(id, buyer), encodeGrant(buyer, issued, rk, capsule))
	if err := s.db.Write(batch, s.writeOpts); err != nil {
		return prism.Errorf(op, "write sale for %s: %w", id, err)
	}
	s.logger.Info(ctx, "sale recorded",
		"dataset", id.String(),
		"sale", seq,
		logging.Fingerprint("buyer", keys.Fingerprint(buyer)),
		logging.Redacted("rekey"),
	)
	return nil
}

// History returns every capsule the dataset has carried, oldest first.
func (s *Store) History(id uuid.UUID) ([]*pre.Capsule, error) {
	const op = "store.History"
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, prism.Wrap(op, ErrClosed)
	}

	it := s.db.NewIterator(util.BytesPrefix(key(prefixHistory, id)), nil)
	defer it.Release()
	var out []*pre.Capsule
	for it.Next() {
		c, err := pre.CapsuleFromBytes(it.Value())
		if err != nil {
			return nil, prism.Wrap(op, err)
		}
		out = append(out, c)
	}
	if err := it.Error(); err != nil {
		return nil, prism.Wrap(op, err)
	}
	if len(out) == 0 {
		return nil, prism.Errorf(op, "dataset %s: %w", id, ErrNotFound)
	}
	return out, nil
}

// Grant returns the grant issued to buyer for a dataset.
func (s *Store) Grant(id uuid.UUID, buyer *curve.Point) (*Grant, error) {
	const op = "store.Grant"
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, prism.Wrap(op, ErrClosed)
	}
	v, err := s.read(grantKey(id, buyer))
	if err != nil {
		return nil, prism.Errorf(op, "dataset %s buyer %s: %w", id, keys.ShortFingerprint(buyer), err)
	}
	g, err := decodeGrant(id, v)
	if err != nil {
		return nil, prism.Wrap(op, err)
	}
	return g, nil
}

// Grants lists every grant issued for a dataset.
func (s *Store) Grants(id uuid.UUID) ([]*Grant, error) {
	const op = "store.Grants"
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, prism.Wrap(op, ErrClosed)
	}

	it := s.db.NewIterator(util.BytesPrefix(key(prefixGrant, id)), nil)
	defer it.Release()
	var out []*Grant
	for it.Next() {
		g, err := decodeGrant(id, it.Value())
		if err != nil {
			return nil, prism.Wrap(op, err)
		}
		out = append(out, g)
	}
	return out, prism.Wrap(op, it.Error())
}

// List returns the ids of all stored datasets.
func (s *Store) List() ([]uuid.UUID, error) {
	const op = "store.List"
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, prism.Wrap(op, ErrClosed)
	}

	it := s.db.NewIterator(util.BytesPrefix([]byte{prefixDataset, sep}), nil)
	defer it.Release()
	var ids []uuid.UUID
	for it.Next() {
		id, err := uuid.ParseBytes(it.Key()[2:])
		if err != nil {
			return nil, prism.Errorf(op, "%w: dataset key: %v", prism.ErrDeserialization, err)
		}
		ids = append(ids, id)
	}
	return ids, prism.Wrap(op, it.Error())
}

func (s *Store) read(k []byte) ([]byte, error) {
	v, err := s.db.Get(k, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *Store) readCapsule(k []byte) (*pre.Capsule, error) {
	v, err := s.read(k)
	if err != nil {
		return nil, err
	}
	return pre.CapsuleFromBytes(v)
}

func key(prefix byte, id uuid.UUID) []byte {
	k := make([]byte, 0, 2+36+1)
	k = append(k, prefix, sep)
	k = append(k, id.String()...)
	return k
}

func historyKey(id uuid.UUID, seq uint64) []byte {
	k := append(key(prefixHistory, id), sep)
	return binary.BigEndian.AppendUint64(k, seq)
}

func grantKey(id uuid.UUID, buyer *curve.Point) []byte {
	k := append(key(prefixGrant, id), sep)
	return append(k, keys.Fingerprint(buyer)...)
}

func encodeDataset(owner *curve.Point, created time.Time, sales uint64) []byte {
	out := make([]byte, 0, datasetValueSize)
	out = append(out, owner.Bytes()...)
	out = binary.BigEndian.AppendUint64(out, uint64(created.UnixNano()))
	return binary.BigEndian.AppendUint64(out, sales)
}

func encodeGrant(buyer *curve.Point, issued time.Time, rk *pre.ReEncryptionKey, capsule *pre.Capsule) []byte {
	out := make([]byte, 0, grantValueSize)
	out = append(out, buyer.Bytes()...)
	out = binary.BigEndian.AppendUint64(out, uint64(issued.UnixNano()))
	out = append(out, rk.Bytes()...)
	return append(out, capsule.Bytes()...)
}

func decodeGrant(id uuid.UUID, v []byte) (*Grant, error) {
	if len(v) != grantValueSize {
		return nil, prism.Errorf("decodeGrant", "%w: grant record has %d bytes", prism.ErrDeserialization, len(v))
	}
	buyer, err := curve.PointFromBytes(v[:curve.PointSize])
	if err != nil {
		return nil, err
	}
	off := curve.PointSize
	issued := time.Unix(0, int64(binary.BigEndian.Uint64(v[off:]))).UTC()
	off += 8
	rk, err := pre.ReEncryptionKeyFromBytes(v[off : off+pre.ReEncryptionKeySize])
	if err != nil {
		return nil, err
	}
	off += pre.ReEncryptionKeySize
	capsule, err := pre.CapsuleFromBytes(v[off:])
	if err != nil {
		return nil, err
	}
	return &Grant{Dataset: id, Buyer: buyer, Key: rk, Capsule: capsule, Issued: issued}, nil
}
