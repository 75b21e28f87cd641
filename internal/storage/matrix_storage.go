package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/annel0/voxel-detach/internal/detached"
	"github.com/annel0/voxel-detach/internal/logging"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

const (
	snapshotPrefix = "snapshot:"
	metaPrefix     = "meta:"
)

// ErrSnapshotNotFound снимок с таким именем не сохранялся
var ErrSnapshotNotFound = errors.New("снимок не найден")

// SnapshotInfo метаданные сохранённого снимка группы
type SnapshotInfo struct {
	Name     string    `json:"name"`
	SavedAt  time.Time `json:"saved_at"`
	Matrices int       `json:"matrices"`
	Size     int       `json:"size"` // Байт после сжатия
}

// MatrixStorage хранит снимки матриц в BadgerDB, тела сжаты zstd
type MatrixStorage struct {
	db      *badger.DB
	dbPath  string
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	mutex   sync.RWMutex
	isReady bool
}

// NewMatrixStorage открывает хранилище в dataPath/matrices или в памяти
func NewMatrixStorage(dataPath string, inMemory bool) (*MatrixStorage, error) {
	dbPath := filepath.Join(dataPath, "matrices")
	opts := badger.DefaultOptions(dbPath)
	if inMemory {
		dbPath = ""
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &MatrixStorage{
		db:      db,
		dbPath:  dbPath,
		enc:     enc,
		dec:     dec,
		isReady: true,
	}, nil
}

// Close закрывает хранилище данных
func (ms *MatrixStorage) Close() error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	if !ms.isReady {
		return nil
	}

	ms.isReady = false
	ms.enc.Close()
	ms.dec.Close()
	return ms.db.Close()
}

// Save сохраняет набор снимков матриц под именем name, перезаписывая прежний
func (ms *MatrixStorage) Save(name string, snaps []detached.MatrixSnapshot) (SnapshotInfo, error) {
	if name == "" || strings.ContainsAny(name, ":") {
		return SnapshotInfo{}, fmt.Errorf("неверное имя снимка %q", name)
	}

	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	if !ms.isReady {
		return SnapshotInfo{}, fmt.Errorf("хранилище не готово")
	}

	raw, err := json.Marshal(snaps)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("ошибка сериализации снимка %s: %w", name, err)
	}
	body := ms.enc.EncodeAll(raw, nil)

	info := SnapshotInfo{
		Name:     name,
		SavedAt:  time.Now().UTC(),
		Matrices: len(snaps),
		Size:     len(body),
	}
	meta, err := json.Marshal(info)
	if err != nil {
		return SnapshotInfo{}, err
	}

	err = ms.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(snapshotPrefix+name), body); err != nil {
			return err
		}
		return txn.Set([]byte(metaPrefix+name), meta)
	})
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("ошибка записи снимка %s: %w", name, err)
	}

	logging.GetStorageLogger().Debug("💾 Снимок %s сохранён: %d матриц, %d→%d байт", name, len(snaps), len(raw), len(body))
	return info, nil
}

// Load читает снимки матриц
func (ms *MatrixStorage) Load(name string) ([]detached.MatrixSnapshot, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	if !ms.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var body []byte
	err := ms.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotPrefix + name))
		if err != nil {
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", name, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения снимка %s: %w", name, err)
	}

	raw, err := ms.dec.DecodeAll(body, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки снимка %s: %w", name, err)
	}

	var snaps []detached.MatrixSnapshot
	if err := json.Unmarshal(raw, &snaps); err != nil {
		return nil, fmt.Errorf("ошибка разбора снимка %s: %w", name, err)
	}
	return snaps, nil
}

// List перечисляет сохранённые снимки по имени
func (ms *MatrixStorage) List() ([]SnapshotInfo, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	if !ms.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var out []SnapshotInfo
	err := ms.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(metaPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var info SnapshotInfo
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &info)
			})
			if err != nil {
				return err
			}
			out = append(out, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка перечисления снимков: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete удаляет снимок
func (ms *MatrixStorage) Delete(name string) error {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	if !ms.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	return ms.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(metaPrefix + name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%s: %w", name, ErrSnapshotNotFound)
			}
			return err
		}
		if err := txn.Delete([]byte(snapshotPrefix + name)); err != nil {
			return err
		}
		return txn.Delete([]byte(metaPrefix + name))
	})
}

// SaveGroup сохраняет все живые матрицы группы
func (ms *MatrixStorage) SaveGroup(name string, g *detached.Group) (SnapshotInfo, error) {
	return ms.Save(name, g.SnapshotAll())
}

// RestoreGroup добавляет матрицы снимка в группу. Матрицы получают новые id.
// При ошибке уже добавленные матрицы остаются в группе, их id возвращаются.
func (ms *MatrixStorage) RestoreGroup(name string, g *detached.Group) ([]detached.MatrixID, error) {
	snaps, err := ms.Load(name)
	if err != nil {
		return nil, err
	}

	ids := make([]detached.MatrixID, 0, len(snaps))
	for _, s := range snaps {
		id, err := g.Restore(s)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	logging.GetStorageLogger().Info("📂 Снимок %s восстановлен: %d матриц", name, len(ids))
	return ids, nil
}
