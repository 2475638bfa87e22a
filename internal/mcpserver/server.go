// Package mcpserver exposes saved meeting transcripts as MCP tools so that
// coding assistants and other MCP clients can list, read and search them.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/meetnav/internal/capture"
	"github.com/MrWong99/meetnav/internal/transcript/phonetic"
)

// DefaultSearchLimit caps search results when the client sets no limit.
const DefaultSearchLimit = 50

// Server serves transcript tools over MCP.
type Server struct {
	server  *mcpsdk.Server
	source  Source
	matcher *phonetic.Matcher
	log     *slog.Logger
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMatcher replaces the speaker matcher used by get_transcript.
func WithMatcher(m *phonetic.Matcher) Option {
	return func(s *Server) { s.matcher = m }
}

// New returns a server reading transcripts from source.
func New(source Source, version string, opts ...Option) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{
		source:  source,
		matcher: phonetic.New(),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.server = mcpsdk.NewServer(&mcpsdk.Implementation{Name: "meetnav", Version: version}, nil)
	s.registerTools()
	return s
}

// Run serves on stdin/stdout until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// MCPServer returns the underlying SDK server, e.g. to attach another
// transport.
func (s *Server) MCPServer() *mcpsdk.Server {
	return s.server
}

type entryOutput struct {
	Timestamp string `json:"timestamp"`
	Speaker   string `json:"speaker"`
	Content   string `json:"content"`
}

func toOutput(e capture.Entry) entryOutput {
	return entryOutput{Timestamp: e.Timestamp, Speaker: e.Speaker, Content: e.Content}
}

type listInput struct{}

type transcriptInfo struct {
	Name     string `json:"name"`
	Entries  int    `json:"entries"`
	Modified string `json:"modified"`
}

type listOutput struct {
	Transcripts []transcriptInfo `json:"transcripts"`
	Count       int              `json:"count"`
}

type getInput struct {
	Name    string `json:"name" jsonschema:"transcript name as returned by list_transcripts"`
	Speaker string `json:"speaker,omitempty" jsonschema:"only return lines spoken by this person; spelling variants are matched"`
}

type getOutput struct {
	Name    string        `json:"name"`
	Speaker string        `json:"speaker,omitempty"`
	Entries []entryOutput `json:"entries"`
	Count   int           `json:"count"`
}

type searchInput struct {
	Query string `json:"query" jsonschema:"text to look for, case-insensitive"`
	Name  string `json:"name,omitempty" jsonschema:"restrict the search to one transcript"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of matches, default 50"`
}

type searchMatch struct {
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
	Speaker   string `json:"speaker"`
	Content   string `json:"content"`
}

type searchOutput struct {
	Matches []searchMatch `json:"matches"`
	Count   int           `json:"count"`
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "list_transcripts",
		Description: "List saved meeting transcripts, most recent first, with their number of lines.",
	}, s.handleList)

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "get_transcript",
		Description: "Return the lines of one meeting transcript, optionally only those of one speaker.",
	}, s.handleGet)

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "search_transcript",
		Description: "Find transcript lines containing a phrase, across all meetings or within one.",
	}, s.handleSearch)
}

func (s *Server) handleList(ctx context.Context, _ *mcpsdk.CallToolRequest, _ listInput) (*mcpsdk.CallToolResult, listOutput, error) {
	infos, err := s.source.List(ctx)
	if err != nil {
		s.log.Warn("mcpserver: list transcripts", "error", err)
		return errorResult(fmt.Sprintf("listing transcripts: %s", err)), listOutput{}, nil
	}
	out := listOutput{Transcripts: make([]transcriptInfo, len(infos)), Count: len(infos)}
	for i, info := range infos {
		out.Transcripts[i] = transcriptInfo{
			Name:     info.Name,
			Entries:  info.Entries,
			Modified: info.Modified.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

func (s *Server) handleGet(ctx context.Context, _ *mcpsdk.CallToolRequest, in getInput) (*mcpsdk.CallToolResult, getOutput, error) {
	if strings.TrimSpace(in.Name) == "" {
		return errorResult("name is required"), getOutput{}, nil
	}
	entries, err := s.source.Entries(ctx, in.Name)
	if err != nil {
		return errorResult(fmt.Sprintf("reading transcript %s: %s", in.Name, err)), getOutput{}, nil
	}

	out := getOutput{Name: in.Name, Entries: []entryOutput{}}
	if in.Speaker != "" {
		out.Speaker = in.Speaker
		entries = s.bySpeaker(entries, in.Speaker)
	}
	for _, e := range entries {
		out.Entries = append(out.Entries, toOutput(e))
	}
	out.Count = len(out.Entries)
	return nil, out, nil
}

// bySpeaker keeps the entries whose speaker label matches speaker
// phonetically or by spelling similarity.
func (s *Server) bySpeaker(entries []capture.Entry, speaker string) []capture.Entry {
	want := []string{speaker}
	verdict := make(map[string]bool)
	var out []capture.Entry
	for _, e := range entries {
		ok, seen := verdict[e.Speaker]
		if !seen {
			_, _, ok = s.matcher.Match(e.Speaker, want)
			verdict[e.Speaker] = ok
		}
		if ok {
			out = append(out, e)
		}
	}
	return out
}

func (s *Server) handleSearch(ctx context.Context, _ *mcpsdk.CallToolRequest, in searchInput) (*mcpsdk.CallToolResult, searchOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return errorResult("query is required"), searchOutput{}, nil
	}
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	found, err := s.source.Search(ctx, in.Query, in.Name, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("searching transcripts: %s", err)), searchOutput{}, nil
	}
	out := searchOutput{Matches: make([]searchMatch, len(found)), Count: len(found)}
	for i, m := range found {
		out.Matches[i] = searchMatch{
			Name:      m.Name,
			Timestamp: m.Entry.Timestamp,
			Speaker:   m.Entry.Speaker,
			Content:   m.Entry.Content,
		}
	}
	return nil, out, nil
}

func errorResult(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
	}
}
