package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/prismdata/prism-go/pkg/prism"
	"github.com/prismdata/prism-go/pkg/prism/keys"
	"github.com/prismdata/prism-go/pkg/prism/logging"
	"github.com/prismdata/prism-go/pkg/prism/pre"
)

type fixture struct {
	store   *Store
	owner   *keys.KeyPair
	capsule *pre.Capsule
	key     []byte
	id      uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := OpenMemory(logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	owner, err := keys.Generate()
	require.NoError(t, err)
	capsule, key, err := pre.Encapsulate(owner.Public)
	require.NoError(t, err)

	id, err := s.Create(context.Background(), owner.Public, capsule, []byte("ciphertext"))
	require.NoError(t, err)
	return &fixture{store: s, owner: owner, capsule: capsule, key: key, id: id}
}

func (f *fixture) sell(t *testing.T, expected *pre.Capsule) (*keys.KeyPair, *pre.Capsule, error) {
	t.Helper()
	buyer, err := keys.Generate()
	require.NoError(t, err)
	rk, err := pre.GenerateReEncryptionKey(f.owner.Private, buyer.Public)
	require.NoError(t, err)
	transformed, err := pre.ReEncryptCapsule(f.capsule, rk)
	require.NoError(t, err)
	return buyer, transformed, f.store.RecordSale(context.Background(), f.id, expected, buyer.Public, rk, transformed)
}

func TestCreateGet(t *testing.T) {
	f := newFixture(t)

	ds, err := f.store.Get(f.id)
	require.NoError(t, err)
	assert.Equal(t, f.id, ds.ID)
	assert.True(t, ds.Owner.Equal(f.owner.Public))
	assert.True(t, ds.Original.Equal(f.capsule))
	assert.True(t, ds.Current.Equal(f.capsule))
	assert.Equal(t, []byte("ciphertext"), ds.Cipher)
	assert.Zero(t, ds.Sales)
	assert.WithinDuration(t, time.Now(), ds.Created, time.Minute)

	ids, err := f.store.List()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.id}, ids)
}

func TestGetUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Get(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.store.History(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.store.Grant(f.id, f.owner.Public)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRejectsTransformedCapsule(t *testing.T) {
	f := newFixture(t)
	buyer, err := keys.Generate()
	require.NoError(t, err)
	rk, err := pre.GenerateReEncryptionKey(f.owner.Private, buyer.Public)
	require.NoError(t, err)
	transformed, err := pre.ReEncryptCapsule(f.capsule, rk)
	require.NoError(t, err)

	_, err = f.store.Create(context.Background(), f.owner.Public, transformed, nil)
	assert.ErrorIs(t, err, prism.ErrAlreadyReEncrypted)
}

func TestRecordSale(t *testing.T) {
	f := newFixture(t)

	buyer1, c1, err := f.sell(t, f.capsule)
	require.NoError(t, err)
	buyer2, c2, err := f.sell(t, c1)
	require.NoError(t, err)

	ds, err := f.store.Get(f.id)
	require.NoError(t, err)
	assert.EqualValues(t, 2, ds.Sales)
	assert.True(t, ds.Current.Equal(c2))
	assert.True(t, ds.Original.Equal(f.capsule))

	history, err := f.store.History(f.id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].Equal(f.capsule))
	assert.True(t, history[1].Equal(c1))
	assert.True(t, history[2].Equal(c2))

	// Each buyer's grant still opens the dataset key after later sales.
	for _, b := range []*keys.KeyPair{buyer1, buyer2} {
		g, err := f.store.Grant(f.id, b.Public)
		require.NoError(t, err)
		assert.True(t, g.Buyer.Equal(b.Public))
		assert.True(t, g.Key.BoundTo(b.Public))
		key, err := pre.Decapsulate(g.Capsule, b.Private)
		require.NoError(t, err)
		assert.Equal(t, f.key, key)
	}

	grants, err := f.store.Grants(f.id)
	require.NoError(t, err)
	assert.Len(t, grants, 2)
}

func TestGrantSurvivesZeroizedKey(t *testing.T) {
	f := newFixture(t)
	buyer, err := keys.Generate()
	require.NoError(t, err)
	rk, err := pre.GenerateReEncryptionKey(f.owner.Private, buyer.Public)
	require.NoError(t, err)
	transformed, err := pre.ReEncryptCapsule(f.capsule, rk)
	require.NoError(t, err)
	require.NoError(t, f.store.RecordSale(context.Background(), f.id, f.capsule, buyer.Public, rk, transformed))

	// Callers clear their copy once the sale is persisted.
	rk.Zeroize()

	g, err := f.store.Grant(f.id, buyer.Public)
	require.NoError(t, err)
	again, err := pre.ReEncryptCapsule(f.capsule, g.Key)
	require.NoError(t, err)
	key, err := pre.Decapsulate(again, buyer.Private)
	require.NoError(t, err)
	assert.Equal(t, f.key, key)
}

func TestRecordSaleConflict(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.sell(t, f.capsule)
	require.NoError(t, err)

	_, _, err = f.sell(t, f.capsule)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRecordSaleConcurrent(t *testing.T) {
	f := newFixture(t)

	type sale struct {
		buyer       *keys.KeyPair
		rk          *pre.ReEncryptionKey
		transformed *pre.Capsule
	}
	sales := make([]sale, 8)
	for i := range sales {
		buyer, err := keys.Generate()
		require.NoError(t, err)
		rk, err := pre.GenerateReEncryptionKey(f.owner.Private, buyer.Public)
		require.NoError(t, err)
		transformed, err := pre.ReEncryptCapsule(f.capsule, rk)
		require.NoError(t, err)
		sales[i] = sale{buyer, rk, transformed}
	}

	var won, lost atomic.Int32
	var g errgroup.Group
	for _, sl := range sales {
		g.Go(func() error {
			err := f.store.RecordSale(context.Background(), f.id, f.capsule, sl.buyer.Public, sl.rk, sl.transformed)
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, ErrConflict):
				lost.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 1, won.Load())
	assert.EqualValues(t, 7, lost.Load())
}

func TestRecordSaleRejectsForeignKey(t *testing.T) {
	f := newFixture(t)
	buyer, err := keys.Generate()
	require.NoError(t, err)
	other, err := keys.Generate()
	require.NoError(t, err)
	rk, err := pre.GenerateReEncryptionKey(f.owner.Private, other.Public)
	require.NoError(t, err)
	transformed, err := pre.ReEncryptCapsule(f.capsule, rk)
	require.NoError(t, err)

	err = f.store.RecordSale(context.Background(), f.id, f.capsule, buyer.Public, rk, transformed)
	assert.ErrorIs(t, err, prism.ErrInvalidParameter)
}

func TestClosed(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Close())
	require.NoError(t, f.store.Close())

	_, err := f.store.Get(f.id)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.store.List()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.store.Create(context.Background(), f.owner.Public, f.capsule, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenFilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	s, err := Open(path, nil)
	require.NoError(t, err)

	owner, err := keys.Generate()
	require.NoError(t, err)
	capsule, _, err := pre.Encapsulate(owner.Public)
	require.NoError(t, err)
	id, err := s.Create(context.Background(), owner.Public, capsule, []byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	ds, err := s.Get(id)
	require.NoError(t, err)
	assert.True(t, ds.Current.Equal(capsule))
	assert.Equal(t, []byte{1, 2, 3}, ds.Cipher)
}
