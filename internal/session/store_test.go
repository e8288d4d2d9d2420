package session

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/coreagent/core/internal/config"
	"github.com/coreagent/core/internal/schema"
)

func sampleExchange() []schema.Message {
	return []schema.Message{
		schema.NewUserMessage("list my files"),
		schema.NewAssistantMessage(nil, []schema.ToolCall{
			{ID: "call_1", Name: "list_directory", Arguments: map[string]any{"path": "."}},
		}, nil),
		schema.NewToolResult("call_1", "list_directory", "[F] notes.txt"),
		schema.NewAssistantText("You have one file: notes.txt."),
	}
}

// checkExchange asserts conv holds sampleExchange in order.
func checkExchange(t *testing.T, conv schema.Conversation) {
	t.Helper()
	if conv.Len() != 4 {
		t.Fatalf("len = %d, want 4", conv.Len())
	}
	if u, ok := conv.Messages[0].(schema.UserMessage); !ok || u.Content != "list my files" {
		t.Errorf("message 0 = %#v", conv.Messages[0])
	}
	am, ok := conv.Messages[1].(schema.AssistantMessage)
	if !ok || am.Content != nil || len(am.ToolCalls) != 1 {
		t.Fatalf("message 1 = %#v", conv.Messages[1])
	}
	if tc := am.ToolCalls[0]; tc.ID != "call_1" || tc.Name != "list_directory" || tc.Arguments["path"] != "." {
		t.Errorf("tool call = %#v", tc)
	}
	if tr, ok := conv.Messages[2].(schema.ToolResult); !ok || tr.ToolCallID != "call_1" || tr.Content != "[F] notes.txt" {
		t.Errorf("message 2 = %#v", conv.Messages[2])
	}
	if am, ok := conv.Messages[3].(schema.AssistantMessage); !ok || am.Text() != "You have one file: notes.txt." {
		t.Errorf("message 3 = %#v", conv.Messages[3])
	}
	if err := conv.CheckPairing(); err != nil {
		t.Errorf("pairing: %v", err)
	}
}

// ─── Wire format ───────────────────────────────────────────────────────────

func TestDecodeMessage_UnknownRole(t *testing.T) {
	if _, err := decodeMessage([]byte(`{"role":"robot","content":"x"}`)); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestDecodeMessage_ContentBlocks(t *testing.T) {
	msg, err := decodeMessage([]byte(`{"role":"user","content":[{"type":"text","text":"hi"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	blocks, ok := msg.(schema.UserMessage).Content.([]schema.ContentBlock)
	if !ok || len(blocks) != 1 || blocks[0].Text != "hi" {
		t.Errorf("content = %#v", msg.(schema.UserMessage).Content)
	}
}

func TestEncodeMessage_Timestamp(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 5, time.UTC)
	data, err := encodeMessage(schema.UserMessage{Content: "hi", CreatedAt: at})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"timestamp":"2026-03-01T12:00:00.000000005Z"`) {
		t.Errorf("encoded = %s", data)
	}
	msg, _ := decodeMessage(data)
	if got := msg.(schema.UserMessage).CreatedAt; !got.Equal(at) {
		t.Errorf("CreatedAt = %v", got)
	}
}

// ─── FileStore ─────────────────────────────────────────────────────────────

func TestFileStore_AppendLoad(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range sampleExchange() {
		if err := s.Append(ctx, "main_user", m); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	conv, err := s.Load(ctx, "main_user")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	checkExchange(t, conv)
}

func TestFileStore_LoadUnknown(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())
	conv, err := s.Load(context.Background(), "nobody")
	if err != nil || conv.Len() != 0 {
		t.Errorf("Load unknown = %d messages, err %v", conv.Len(), err)
	}
}

func TestFileStore_MetadataLine(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir)
	_ = s.Append(context.Background(), "a/b", schema.NewUserMessage("hi"))

	data, err := os.ReadFile(filepath.Join(dir, fileStem("a/b")+".jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !isMetaLine([]byte(lines[0])) {
		t.Fatalf("file = %q", data)
	}
}

func TestFileStore_List(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := NewFileStore(dir)
	_ = s.Append(ctx, "old", schema.NewUserMessage("1"))
	_ = s.Append(ctx, "new", schema.NewUserMessage("1"))
	_ = s.Append(ctx, "new", schema.NewAssistantText("2"))

	past := time.Now().Add(-time.Hour)
	_ = os.Chtimes(filepath.Join(dir, "old.jsonl"), past, past)

	infos, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 || infos[0].ID != "new" || infos[0].Messages != 2 || infos[1].Messages != 1 {
		t.Errorf("infos = %+v", infos)
	}
	if infos[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not read from metadata")
	}
}

func TestFileStore_SanitisedIDsStayDistinct(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := NewFileStore(dir)
	_ = s.Append(ctx, "a/b", schema.NewUserMessage("slash"))
	_ = s.Append(ctx, "a_b", schema.NewUserMessage("underscore"))

	for id, want := range map[string]string{"a/b": "slash", "a_b": "underscore"} {
		conv, err := s.Load(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if conv.Len() != 1 || schema.ContentText(conv.Messages[0].(schema.UserMessage).Content) != want {
			t.Errorf("Load(%q) = %+v, want one message %q", id, conv.Messages, want)
		}
	}

	infos, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("List = %+v, want 2 sessions", infos)
	}
}

func TestFileStem(t *testing.T) {
	if got := fileStem("main_user"); got != "main_user" {
		t.Errorf("clean id changed: %q", got)
	}
	if a, b := fileStem("a/b"), fileStem("a_b"); a == b {
		t.Errorf("fileStem collision: %q", a)
	}
	if got := fileStem("a/b"); !strings.HasPrefix(got, "a_b-") {
		t.Errorf("fileStem(a/b) = %q", got)
	}
}

func TestSafeFilename(t *testing.T) {
	cases := map[string]string{"abc": "abc", "a:b/c": "a_b_c", "": "_", "..": "_"}
	for in, want := range cases {
		if got := safeFilename(in); got != want {
			t.Errorf("safeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

// ─── RedisStore ────────────────────────────────────────────────────────────

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore_AppendLoad(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)
	for _, m := range sampleExchange() {
		if err := s.Append(ctx, "main_user", m); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	conv, err := s.Load(ctx, "main_user")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	checkExchange(t, conv)

	if !mr.Exists("test:session:main_user") {
		t.Error("list key missing")
	}
}

func TestRedisStore_List(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)
	_ = s.Append(ctx, "first", schema.NewUserMessage("1"))
	time.Sleep(2 * time.Millisecond)
	_ = s.Append(ctx, "second", schema.NewUserMessage("1"))
	_ = s.Append(ctx, "second", schema.NewAssistantText("2"))

	infos, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 || infos[0].ID != "second" || infos[0].Messages != 2 {
		t.Fatalf("infos = %+v", infos)
	}
	if infos[1].CreatedAt.IsZero() || infos[1].UpdatedAt.Before(infos[1].CreatedAt) {
		t.Errorf("times = %+v", infos[1])
	}
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := NewRedisStore(context.Background(), RedisOptions{Addr: addr}); err == nil {
		t.Fatal("expected connection error")
	}
}

// ─── MySQLStore ────────────────────────────────────────────────────────────

func newMySQLStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS conversation_messages").
		WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewMySQLStoreFromDB(context.Background(), db)
	if err != nil {
		t.Fatalf("NewMySQLStoreFromDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return s, mock
}

func TestMySQLStore_Append(t *testing.T) {
	s, mock := newMySQLStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO conversation_messages")).
		WithArgs("s1", "user", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.Append(context.Background(), "s1", schema.NewUserMessage("hi")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMySQLStore_Load(t *testing.T) {
	s, mock := newMySQLStore(t)
	rows := sqlmock.NewRows([]string{"payload"})
	for _, m := range sampleExchange() {
		data, _ := encodeMessage(m)
		rows.AddRow(string(data))
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM conversation_messages WHERE session_id = ?")).
		WithArgs("s1").
		WillReturnRows(rows)

	conv, err := s.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	checkExchange(t, conv)
}

func TestMySQLStore_List(t *testing.T) {
	s, mock := newMySQLStore(t)
	now := time.Now()
	mock.ExpectQuery("SELECT session_id, MIN\\(created_at\\)").
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "min", "max", "count"}).
			AddRow("s2", now.Add(-time.Minute).UnixNano(), now.UnixNano(), 3).
			AddRow("s1", now.Add(-time.Hour).UnixNano(), now.Add(-time.Hour).UnixNano(), 1))

	infos, err := s.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 || infos[0].ID != "s2" || infos[0].Messages != 3 {
		t.Errorf("infos = %+v", infos)
	}
}

// ─── Open ──────────────────────────────────────────────────────────────────

func TestOpen_Backends(t *testing.T) {
	ws := t.TempDir()
	store, err := Open(context.Background(), config.SessionConfig{Backend: "file"}, ws)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Errorf("file backend = %T", store)
	}

	mr := miniredis.RunT(t)
	store, err = Open(context.Background(), config.SessionConfig{
		Backend: "redis",
		Redis:   config.RedisConfig{Addr: mr.Addr()},
	}, ws)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, ok := store.(*RedisStore); !ok {
		t.Errorf("redis backend = %T", store)
	}

	if _, err := Open(context.Background(), config.SessionConfig{Backend: "etcd"}, ws); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := Open(context.Background(), config.SessionConfig{Backend: "mysql"}, ws); err == nil {
		t.Error("expected error for empty dsn")
	}
}
