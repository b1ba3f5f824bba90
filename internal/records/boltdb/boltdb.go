// Package boltdb stores records in a single BoltDB file.
//
// Layout: one top-level bucket per record type, one nested bucket per owner,
// keys are the owner bucket's big-endian sequence so cursor order is
// insertion order. Values are JSON documents decoded and validated on read.
package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"bizbalance/internal/core"
	"bizbalance/internal/records"
)

var (
	transactionsBucket = []byte("transactions")
	appointmentsBucket = []byte("appointments")
)

var _ records.Store = (*Store)(nil)

type Store struct {
	db *bolt.DB
}

type transactionRecord struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Category    string `json:"category"`
}

type appointmentRecord struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Open opens or creates the database file and its top-level buckets.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create bolt directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{transactionsBucket, appointmentsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, core.ErrMissingOwner
	}
	out := make([]core.Transaction, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := ownerBucket(tx, transactionsBucket, ownerID)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			t, err := decodeTransaction(v)
			if err != nil {
				return fmt.Errorf("decode transaction %x: %w", k, err)
			}
			out = append(out, t)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	records.SortTransactions(out)
	return out, nil
}

func (s *Store) ListAppointments(ctx context.Context, ownerID string) ([]core.Appointment, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, core.ErrMissingOwner
	}
	out := make([]core.Appointment, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := ownerBucket(tx, appointmentsBucket, ownerID)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			a, err := decodeAppointment(v)
			if err != nil {
				return fmt.Errorf("decode appointment %x: %w", k, err)
			}
			out = append(out, a)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	records.SortAppointments(out)
	return out, nil
}

func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	var stored core.Transaction
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		stored, err = putTransaction(tx, t)
		return err
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return stored, nil
}

func (s *Store) InsertAppointment(ctx context.Context, a core.Appointment) (core.Appointment, error) {
	if err := a.Validate(); err != nil {
		return core.Appointment{}, err
	}
	var stored core.Appointment
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		stored, err = putAppointment(tx, a)
		return err
	})
	if err != nil {
		return core.Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	return stored, nil
}

func (s *Store) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	var (
		found core.Transaction
		ok    bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := ownerBucket(tx, transactionsBucket, ownerID)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			t, err := decodeTransaction(v)
			if err != nil {
				return err
			}
			if t.ID == id {
				found, ok = t, true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, records.ErrNotFound)
	}
	return found, nil
}

func (s *Store) CountTransactions(ctx context.Context, ownerID string) (int, error) {
	return s.count(transactionsBucket, ownerID)
}

func (s *Store) CountAppointments(ctx context.Context, ownerID string) (int, error) {
	return s.count(appointmentsBucket, ownerID)
}

// count walks keys only; values are never decoded.
func (s *Store) count(name []byte, ownerID string) (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		b := ownerBucket(tx, name, ownerID)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return n, nil
}

// SeedBatch writes the whole batch inside one read-write transaction. Any
// error rolls back every put.
func (s *Store) SeedBatch(ctx context.Context, b records.Batch) (records.Batch, error) {
	if err := b.Validate(); err != nil {
		return records.Batch{}, fmt.Errorf("seed batch: %w", err)
	}
	var out records.Batch
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, t := range b.Transactions {
			stored, err := putTransaction(tx, t)
			if err != nil {
				return err
			}
			out.Transactions = append(out.Transactions, stored)
		}
		for _, a := range b.Appointments {
			stored, err := putAppointment(tx, a)
			if err != nil {
				return err
			}
			out.Appointments = append(out.Appointments, stored)
		}
		return nil
	})
	if err != nil {
		return records.Batch{}, fmt.Errorf("seed batch: %w", err)
	}
	return out, nil
}

func ownerBucket(tx *bolt.Tx, name []byte, ownerID string) *bolt.Bucket {
	root := tx.Bucket(name)
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(ownerID))
}

func nextKey(b *bolt.Bucket) ([]byte, error) {
	seq, err := b.NextSequence()
	if err != nil {
		return nil, err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key, nil
}

func putTransaction(tx *bolt.Tx, t core.Transaction) (core.Transaction, error) {
	b, err := tx.Bucket(transactionsBucket).CreateBucketIfNotExists([]byte(t.OwnerID))
	if err != nil {
		return core.Transaction{}, err
	}
	key, err := nextKey(b)
	if err != nil {
		return core.Transaction{}, err
	}
	t.ID = uuid.NewString()
	t.Date = records.NormalizeTime(t.Date)
	enc, err := json.Marshal(transactionRecord{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Kind:        string(t.Kind),
		Description: t.Description,
		Amount:      t.Amount.String(),
		Date:        t.Date.Format(time.RFC3339Nano),
		Category:    t.Category,
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return t, b.Put(key, enc)
}

func putAppointment(tx *bolt.Tx, a core.Appointment) (core.Appointment, error) {
	b, err := tx.Bucket(appointmentsBucket).CreateBucketIfNotExists([]byte(a.OwnerID))
	if err != nil {
		return core.Appointment{}, err
	}
	key, err := nextKey(b)
	if err != nil {
		return core.Appointment{}, err
	}
	a.ID = uuid.NewString()
	a.Date = records.NormalizeTime(a.Date)
	enc, err := json.Marshal(appointmentRecord{
		ID:        a.ID,
		OwnerID:   a.OwnerID,
		Title:     a.Title,
		Date:      a.Date.Format(time.RFC3339Nano),
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
	})
	if err != nil {
		return core.Appointment{}, err
	}
	return a, b.Put(key, enc)
}

func decodeTransaction(v []byte) (core.Transaction, error) {
	var rec transactionRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseMoney(rec.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", rec.Amount, err)
	}
	date, err := time.Parse(time.RFC3339Nano, rec.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("date %q: %w", rec.Date, err)
	}
	t := core.Transaction{
		ID:          rec.ID,
		OwnerID:     rec.OwnerID,
		Kind:        core.Kind(rec.Kind),
		Description: rec.Description,
		Amount:      amount,
		Date:        date.UTC(),
		Category:    rec.Category,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func decodeAppointment(v []byte) (core.Appointment, error) {
	var rec appointmentRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return core.Appointment{}, err
	}
	date, err := time.Parse(time.RFC3339Nano, rec.Date)
	if err != nil {
		return core.Appointment{}, fmt.Errorf("date %q: %w", rec.Date, err)
	}
	a := core.Appointment{
		ID:        rec.ID,
		OwnerID:   rec.OwnerID,
		Title:     rec.Title,
		Date:      date.UTC(),
		StartTime: rec.StartTime,
		EndTime:   rec.EndTime,
	}
	if err := a.Validate(); err != nil {
		return core.Appointment{}, err
	}
	return a, nil
}
