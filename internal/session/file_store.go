package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coreagent/core/internal/schema"
)

// FileStore keeps one JSONL file per conversation under dir.
//
//	Line 1:  {"_type":"metadata","id":"…","created_at":"…"}
//	Line 2+: one wire message per line
//
// Appends open the file with O_APPEND, so a crash loses at most the message
// being written.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

type fileMeta struct {
	Type      string `json:"_type"`
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

const maxLineSize = 16 << 20

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Load(ctx context.Context, id string) (schema.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return schema.NewConversation(), nil
	}
	if err != nil {
		return schema.Conversation{}, fmt.Errorf("open session %s: %w", id, err)
	}
	defer f.Close()

	conv := schema.NewConversation()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 || (line == 1 && isMetaLine(raw)) {
			continue
		}
		msg, err := decodeMessage(raw)
		if err != nil {
			return schema.Conversation{}, fmt.Errorf("session %s line %d: %w", id, line, err)
		}
		conv.Append(msg)
	}
	if err := sc.Err(); err != nil {
		return schema.Conversation{}, fmt.Errorf("read session %s: %w", id, err)
	}
	return conv, nil
}

func (s *FileStore) Append(ctx context.Context, id string, msg schema.Message) error {
	data, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(id)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open session %s: %w", id, err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() == 0 {
		meta, _ := json.Marshal(fileMeta{Type: "metadata", ID: id, CreatedAt: time.Now().UTC().Format(time.RFC3339)})
		data = append(append(meta, '\n'), data...)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write session %s: %w", id, err)
	}
	return nil
}

// List returns every stored conversation, most recently updated first.
func (s *FileStore) List(ctx context.Context) ([]schema.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(s.dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	out := make([]schema.SessionInfo, 0, len(paths))
	for _, p := range paths {
		info, err := s.stat(p)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *FileStore) stat(path string) (schema.SessionInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return schema.SessionInfo{}, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return schema.SessionInfo{}, err
	}
	info := schema.SessionInfo{
		ID:        strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		UpdatedAt: fi.ModTime(),
	}

	r := bufio.NewReader(f)
	first, err := r.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return info, err
	}
	if isMetaLine(first) {
		var meta fileMeta
		if json.Unmarshal(first, &meta) == nil {
			if meta.ID != "" {
				info.ID = meta.ID
			}
			info.CreatedAt, _ = time.Parse(time.RFC3339, meta.CreatedAt)
		}
	} else if len(strings.TrimSpace(string(first))) > 0 {
		info.Messages++
	}
	for {
		line, err := r.ReadBytes('\n')
		if len(strings.TrimSpace(string(line))) > 0 {
			info.Messages++
		}
		if err != nil {
			break
		}
	}
	return info, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, fileStem(id)+".jsonl")
}

// fileStem is safeFilename(id), suffixed with a hash of the raw id whenever
// sanitising changed it, so "a/b" and "a_b" never share a file.
func fileStem(id string) string {
	name := safeFilename(id)
	if name == id {
		return name
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	return fmt.Sprintf("%s-%08x", name, h.Sum32())
}

func isMetaLine(b []byte) bool {
	var probe struct {
		Type string `json:"_type"`
	}
	return json.Unmarshal(b, &probe) == nil && probe.Type == "metadata"
}

// safeFilename replaces filesystem-unsafe characters with underscores.
func safeFilename(name string) string {
	const unsafe = `<>:"/\|?*`
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		if strings.ContainsRune(unsafe, r) || r < 0x20 {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 || b.String() == "." || b.String() == ".." {
		return "_"
	}
	return b.String()
}
