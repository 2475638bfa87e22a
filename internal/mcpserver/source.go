package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/meetnav/internal/capture"
	"github.com/MrWong99/meetnav/pkg/memory"
)

// ErrTranscriptNotFound is returned for an unknown transcript name.
var ErrTranscriptNotFound = errors.New("mcpserver: transcript not found")

// TranscriptInfo describes one stored transcript.
type TranscriptInfo struct {
	Name     string
	Entries  int
	Modified time.Time
}

// Match is one search hit.
type Match struct {
	Name  string
	Entry capture.Entry
}

// Source is where the tools read transcripts from.
type Source interface {
	// List returns the transcripts, most recently modified first.
	List(ctx context.Context) ([]TranscriptInfo, error)

	// Entries returns the named transcript in order.
	Entries(ctx context.Context, name string) ([]capture.Entry, error)

	// Search returns up to limit entries whose content contains query,
	// ignoring case. An empty name searches every transcript.
	Search(ctx context.Context, query, name string, limit int) ([]Match, error)
}

// DirSource reads transcript files written by the capture pipeline.
type DirSource struct {
	Dir string
}

var _ Source = DirSource{}

// List implements [Source].
func (d DirSource) List(context.Context) ([]TranscriptInfo, error) {
	paths, err := filepath.Glob(filepath.Join(d.Dir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("mcpserver: list %s: %w", d.Dir, err)
	}
	out := make([]TranscriptInfo, 0, len(paths))
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		entries, _, err := readFile(p)
		if err != nil {
			continue
		}
		out = append(out, TranscriptInfo{
			Name:     strings.TrimSuffix(filepath.Base(p), ".txt"),
			Entries:  len(entries),
			Modified: fi.ModTime(),
		})
	}
	slices.SortFunc(out, func(a, b TranscriptInfo) int { return b.Modified.Compare(a.Modified) })
	return out, nil
}

// Entries implements [Source].
func (d DirSource) Entries(_ context.Context, name string) ([]capture.Entry, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	entries, _, err := readFile(filepath.Join(d.Dir, name+".txt"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrTranscriptNotFound, name)
	}
	return entries, err
}

// Search implements [Source].
func (d DirSource) Search(ctx context.Context, query, name string, limit int) ([]Match, error) {
	var names []string
	if name != "" {
		names = []string{name}
	} else {
		infos, err := d.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, i := range infos {
			names = append(names, i.Name)
		}
	}

	q := strings.ToLower(query)
	matches := []Match{}
	for _, n := range names {
		entries, err := d.Entries(ctx, n)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !strings.Contains(strings.ToLower(e.Content), q) {
				continue
			}
			matches = append(matches, Match{Name: n, Entry: e})
			if limit > 0 && len(matches) >= limit {
				return matches, nil
			}
		}
	}
	return matches, nil
}

func readFile(path string) ([]capture.Entry, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return capture.ReadTranscript(f)
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: invalid name %q", ErrTranscriptNotFound, name)
	}
	return nil
}

// StoreSource reads transcripts mirrored to a [memory.SessionStore].
type StoreSource struct {
	Store memory.SessionStore
}

var _ Source = StoreSource{}

// List implements [Source].
func (s StoreSource) List(ctx context.Context) ([]TranscriptInfo, error) {
	sessions, err := s.Store.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TranscriptInfo, len(sessions))
	for i, si := range sessions {
		out[i] = TranscriptInfo{Name: si.ID, Entries: si.Entries, Modified: si.LastSeen}
	}
	return out, nil
}

// Entries implements [Source].
func (s StoreSource) Entries(ctx context.Context, name string) ([]capture.Entry, error) {
	stored, err := s.Store.Entries(ctx, name)
	if errors.Is(err, memory.ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrTranscriptNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	out := make([]capture.Entry, len(stored))
	for i, e := range stored {
		out[i] = capture.Entry{Timestamp: e.Timestamp, Speaker: e.Speaker, Content: e.Content}
	}
	return out, nil
}

// Search implements [Source].
func (s StoreSource) Search(ctx context.Context, query, name string, limit int) ([]Match, error) {
	opts := []memory.SearchOpt{memory.WithLimit(limit)}
	if name != "" {
		opts = append(opts, memory.InSession(name))
	}
	found, err := s.Store.Search(ctx, query, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]Match, len(found))
	for i, e := range found {
		out[i] = Match{
			Name:  e.SessionID,
			Entry: capture.Entry{Timestamp: e.Timestamp, Speaker: e.Speaker, Content: e.Content},
		}
	}
	return out, nil
}
