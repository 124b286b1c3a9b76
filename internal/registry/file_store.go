package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// document 文件布局: {"<contractId>": {"<network>": {"address": ..., "deployer": ...}}}
type document map[string]map[string]Entry

// FileStore 基于 JSON 文件的登记存储
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore 创建文件存储，文件不存在时在首次写入时创建
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path 返回文件路径
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) load() (document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return document{}, nil
	}

	doc := document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", s.path, err)
	}
	return doc, nil
}

// save 写临时文件后 rename，保证读者不会看到半个文件
func (s *FileStore) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close registry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}

// Get 获取登记信息
func (s *FileStore) Get(ctx context.Context, key EntryKey) (Entry, error) {
	if err := key.Validate(); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return Entry{}, err
	}
	entry, ok := doc[key.ContractID][key.Network]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return entry, nil
}

// Set 写入登记信息
func (s *FileStore) Set(ctx context.Context, key EntryKey, entry Entry) error {
	if err := key.Validate(); err != nil {
		return err
	}
	entry, err := entry.normalize()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if doc[key.ContractID] == nil {
		doc[key.ContractID] = make(map[string]Entry)
	}
	doc[key.ContractID][key.Network] = entry
	return s.save(doc)
}

// List 列出登记信息
func (s *FileStore) List(ctx context.Context, network string) ([]Record, error) {
	s.mu.Lock()
	doc, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var records []Record
	for contractID, networks := range doc {
		for n, entry := range networks {
			if network != "" && n != network {
				continue
			}
			records = append(records, Record{Key: Key(contractID, n), Entry: entry})
		}
	}
	sortRecords(records)
	return records, nil
}

// Close 文件存储无需释放资源
func (s *FileStore) Close() error { return nil }

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Key.ContractID != records[j].Key.ContractID {
			return records[i].Key.ContractID < records[j].Key.ContractID
		}
		return records[i].Key.Network < records[j].Key.Network
	})
}
