package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

// BadgerStore хранит документы сохранения в BadgerDB под ключами
// save:<profile>:<worldID>; значения сжаты zstd.
type BadgerStore struct {
	db      *badger.DB
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerStore открывает БД в dataPath/saves
func NewBadgerStore(dataPath string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Join(dataPath, "saves"))
	return openBadgerStore(opts)
}

// NewInMemoryBadgerStore открывает БД только в памяти (тесты, песочница)
func NewInMemoryBadgerStore() (*BadgerStore, error) {
	return openBadgerStore(badger.DefaultOptions("").WithInMemory(true))
}

func openBadgerStore(opts badger.Options) (*BadgerStore, error) {
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка создания zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("ошибка создания zstd decoder: %w", err)
	}

	return &BadgerStore{db: db, enc: enc, dec: dec, isReady: true}, nil
}

func badgerKey(profile, worldID string) []byte {
	return []byte("save:" + profile + ":" + worldID)
}

// Save сжимает и записывает документ
func (bs *BadgerStore) Save(ctx context.Context, profile, worldID string, doc *Document) error {
	if err := validateKey(profile, worldID); err != nil {
		return err
	}

	data, err := EncodeDocument(doc)
	if err != nil {
		return err
	}

	bs.mutex.RLock()
	defer bs.mutex.RUnlock()

	if !bs.isReady {
		return ErrClosed
	}

	compressed := bs.enc.EncodeAll(data, nil)
	err = bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(profile, worldID), compressed)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Load читает и распаковывает документ
func (bs *BadgerStore) Load(ctx context.Context, profile, worldID string) (*Document, error) {
	if err := validateKey(profile, worldID); err != nil {
		return nil, err
	}

	bs.mutex.RLock()
	defer bs.mutex.RUnlock()

	if !bs.isReady {
		return nil, ErrClosed
	}

	var compressed []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(profile, worldID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			compressed = append([]byte{}, val...)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s/%s: %w", profile, worldID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	data, err := bs.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w: %v", profile, worldID, ErrCorrupt, err)
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", profile, worldID, err)
	}
	return doc, nil
}

// Delete удаляет документ
func (bs *BadgerStore) Delete(ctx context.Context, profile, worldID string) error {
	if err := validateKey(profile, worldID); err != nil {
		return err
	}

	bs.mutex.RLock()
	defer bs.mutex.RUnlock()

	if !bs.isReady {
		return ErrClosed
	}

	return bs.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(profile, worldID))
	})
}

// List перечисляет миры профиля по префиксу ключа
func (bs *BadgerStore) List(ctx context.Context, profile string) ([]string, error) {
	if err := validateName("профиль", profile); err != nil {
		return nil, err
	}

	bs.mutex.RLock()
	defer bs.mutex.RUnlock()

	if !bs.isReady {
		return nil, ErrClosed
	}

	prefix := []byte("save:" + profile + ":")
	ids := []string{}
	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, string(prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(ids)
	return ids, nil
}

// Close закрывает БД
func (bs *BadgerStore) Close() error {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	if !bs.isReady {
		return nil
	}

	bs.isReady = false
	bs.enc.Close()
	bs.dec.Close()
	return bs.db.Close()
}
