package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/meetnav/pkg/memory"
	memorymock "github.com/MrWong99/meetnav/pkg/memory/mock"
)

const monday = `[09:00:01] Jon Smith: Good morning everyone.
[09:00:05] Maria: Morning. Budget first?
[09:00:09] John Smith: Yes, the budget is tight.
garbage line that is skipped
[09:00:15] Maria: Then we cut travel.
`

const tuesday = `[14:30:00] Maria: Travel BUDGET approved.
`

func writeTranscripts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := []struct {
		name, body string
		age        time.Duration
	}{
		{"zoom_20261012090000.txt", monday, 2 * time.Hour},
		{"zoom_20261013143000.txt", tuesday, time.Hour},
	}
	for _, f := range files {
		p := filepath.Join(dir, f.name)
		if err := os.WriteFile(p, []byte(f.body), 0o644); err != nil {
			t.Fatal(err)
		}
		mt := time.Now().Add(-f.age)
		if err := os.Chtimes(p, mt, mt); err != nil {
			t.Fatal(err)
		}
	}
	// Not a transcript.
	if err := os.WriteFile(filepath.Join(dir, "zoom_minutes.md"), []byte("# x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

// callTool connects an in-memory client to srv and calls a tool.
func callTool(t *testing.T, srv *Server, tool string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	st, ct := mcpsdk.NewInMemoryTransports()
	go func() { _ = srv.MCPServer().Run(ctx, st) }()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", tool, err)
	}
	return res
}

func text(res *mcpsdk.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decode[T any](t *testing.T, res *mcpsdk.CallToolResult) T {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool error: %s", text(res))
	}
	var out T
	if err := json.Unmarshal([]byte(text(res)), &out); err != nil {
		t.Fatalf("decode %s: %v", text(res), err)
	}
	return out
}

func TestListTranscripts(t *testing.T) {
	t.Parallel()
	srv := New(DirSource{Dir: writeTranscripts(t)}, "test")

	out := decode[listOutput](t, callTool(t, srv, "list_transcripts", map[string]any{}))
	if out.Count != 2 || len(out.Transcripts) != 2 {
		t.Fatalf("list = %+v", out)
	}
	if out.Transcripts[0].Name != "zoom_20261013143000" || out.Transcripts[1].Name != "zoom_20261012090000" {
		t.Errorf("order = %s, %s; want newest first", out.Transcripts[0].Name, out.Transcripts[1].Name)
	}
	if out.Transcripts[1].Entries != 4 {
		t.Errorf("entries = %d, want 4", out.Transcripts[1].Entries)
	}
}

func TestGetTranscript(t *testing.T) {
	t.Parallel()
	srv := New(DirSource{Dir: writeTranscripts(t)}, "test")

	t.Run("all lines", func(t *testing.T) {
		t.Parallel()
		out := decode[getOutput](t, callTool(t, srv, "get_transcript", map[string]any{"name": "zoom_20261012090000"}))
		if out.Count != 4 || out.Entries[3].Content != "Then we cut travel." {
			t.Errorf("get = %+v", out)
		}
	})

	t.Run("speaker variants", func(t *testing.T) {
		t.Parallel()
		out := decode[getOutput](t, callTool(t, srv, "get_transcript", map[string]any{
			"name":    "zoom_20261012090000",
			"speaker": "John Smith",
		}))
		if out.Count != 2 {
			t.Fatalf("speaker filter = %+v, want both spellings of John Smith", out)
		}
		for _, e := range out.Entries {
			if !strings.HasSuffix(e.Speaker, "Smith") {
				t.Errorf("unexpected speaker %q", e.Speaker)
			}
		}
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		res := callTool(t, srv, "get_transcript", map[string]any{"name": "zoom_19990101000000"})
		if !res.IsError || !strings.Contains(text(res), "not found") {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("path traversal", func(t *testing.T) {
		t.Parallel()
		res := callTool(t, srv, "get_transcript", map[string]any{"name": "../etc/passwd"})
		if !res.IsError {
			t.Error("path traversal accepted")
		}
	})

	t.Run("empty name", func(t *testing.T) {
		t.Parallel()
		res := callTool(t, srv, "get_transcript", map[string]any{"name": ""})
		if !res.IsError || text(res) != "name is required" {
			t.Errorf("result = %q", text(res))
		}
	})
}

func TestSearchTranscript(t *testing.T) {
	t.Parallel()
	srv := New(DirSource{Dir: writeTranscripts(t)}, "test")

	tests := []struct {
		name  string
		args  map[string]any
		count int
	}{
		{"case-insensitive across files", map[string]any{"query": "budget"}, 3},
		{"one transcript", map[string]any{"query": "budget", "name": "zoom_20261013143000"}, 1},
		{"limit", map[string]any{"query": "budget", "limit": 2}, 2},
		{"no match", map[string]any{"query": "kubernetes"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := decode[searchOutput](t, callTool(t, srv, "search_transcript", tt.args))
			if out.Count != tt.count || len(out.Matches) != tt.count {
				t.Errorf("search = %+v, want %d matches", out, tt.count)
			}
		})
	}

	res := callTool(t, srv, "search_transcript", map[string]any{"query": "  "})
	if !res.IsError {
		t.Error("blank query accepted")
	}
}

func TestStoreSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &memorymock.SessionStore{}
	if _, err := store.WriteEntries(ctx, "zoom_20261012090000", []memory.TranscriptEntry{
		{Timestamp: "09:00:05", Speaker: "Maria", Content: "Budget first?"},
		{Timestamp: "09:00:09", Speaker: "John Smith", Content: "The budget is tight."},
	}); err != nil {
		t.Fatal(err)
	}
	srv := New(StoreSource{Store: store}, "test")

	list := decode[listOutput](t, callTool(t, srv, "list_transcripts", map[string]any{}))
	if list.Count != 1 || list.Transcripts[0].Name != "zoom_20261012090000" || list.Transcripts[0].Entries != 2 {
		t.Errorf("list = %+v", list)
	}

	get := decode[getOutput](t, callTool(t, srv, "get_transcript", map[string]any{"name": "zoom_20261012090000", "speaker": "maria"}))
	if get.Count != 1 || get.Entries[0].Content != "Budget first?" {
		t.Errorf("get = %+v", get)
	}

	search := decode[searchOutput](t, callTool(t, srv, "search_transcript", map[string]any{"query": "BUDGET"}))
	if search.Count != 2 || search.Matches[0].Name != "zoom_20261012090000" {
		t.Errorf("search = %+v", search)
	}

	res := callTool(t, srv, "get_transcript", map[string]any{"name": "missing"})
	if !res.IsError {
		t.Error("missing session not reported")
	}
}

func TestStoreSource_Errors(t *testing.T) {
	t.Parallel()
	store := &memorymock.SessionStore{SessionsErr: errors.New("db down")}
	srv := New(StoreSource{Store: store}, "test")

	res := callTool(t, srv, "list_transcripts", map[string]any{})
	if !res.IsError || !strings.Contains(text(res), "db down") {
		t.Errorf("result = %q", text(res))
	}
}

func TestDirSource_Entries(t *testing.T) {
	t.Parallel()
	src := DirSource{Dir: writeTranscripts(t)}
	if _, err := src.Entries(context.Background(), "nope"); !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("Entries(nope) = %v, want ErrTranscriptNotFound", err)
	}
	for _, bad := range []string{"", ".hidden", "a/b"} {
		if _, err := src.Entries(context.Background(), bad); !errors.Is(err, ErrTranscriptNotFound) {
			t.Errorf("Entries(%q) = %v", bad, err)
		}
	}
}
