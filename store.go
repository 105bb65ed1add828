package b3cverify

import (
	"encoding/json"

	"github.com/everFinance/b3cverify/rawdb"
	"github.com/everFinance/b3cverify/schema"
)

type Store struct {
	KVDb rawdb.KeyValueDB
}

func NewBoltStore(boltDirPath string) (*Store, error) {
	Db, err := rawdb.NewBoltDB(boltDirPath)
	if err != nil {
		return nil, err
	}
	return &Store{
		KVDb: Db,
	}, nil
}

func (s *Store) Close() error {
	return s.KVDb.Close()
}

func (s *Store) SaveLockout(l schema.Lockout) error {
	val, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return s.KVDb.Put(schema.LockoutBucket, l.PaymentId, val)
}

func (s *Store) LoadLockout(paymentId string) (l schema.Lockout, err error) {
	val, err := s.KVDb.Get(schema.LockoutBucket, paymentId)
	if err != nil {
		return
	}
	err = json.Unmarshal(val, &l)
	return
}

func (s *Store) DelLockout(paymentId string) error {
	return s.KVDb.Delete(schema.LockoutBucket, paymentId)
}

func (s *Store) LoadAllLockouts() ([]schema.Lockout, error) {
	ids, err := s.KVDb.GetAllKey(schema.LockoutBucket)
	if err != nil {
		return nil, err
	}
	res := make([]schema.Lockout, 0, len(ids))
	for _, id := range ids {
		l, err := s.LoadLockout(id)
		if err != nil {
			log.Error("s.LoadLockout(id)", "err", err, "paymentId", id)
			continue
		}
		res = append(res, l)
	}
	return res, nil
}

func (s *Store) SavePending(p schema.Pending) error {
	val, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.KVDb.Put(schema.PendingBucket, p.PaymentId, val)
}

func (s *Store) DelPending(paymentId string) error {
	return s.KVDb.Delete(schema.PendingBucket, paymentId)
}

func (s *Store) LoadAllPending() ([]schema.Pending, error) {
	ids, err := s.KVDb.GetAllKey(schema.PendingBucket)
	if err != nil {
		return nil, err
	}
	res := make([]schema.Pending, 0, len(ids))
	for _, id := range ids {
		val, err := s.KVDb.Get(schema.PendingBucket, id)
		if err != nil {
			log.Error("s.KVDb.Get(schema.PendingBucket, id)", "err", err, "paymentId", id)
			continue
		}
		p := schema.Pending{}
		if err = json.Unmarshal(val, &p); err != nil {
			log.Error("json.Unmarshal(pending)", "err", err, "paymentId", id)
			continue
		}
		res = append(res, p)
	}
	return res, nil
}
