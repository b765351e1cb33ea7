package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when no stored run matches an id.
var ErrNotFound = errors.New("run not found")

// Format is an encoding of runs.
type Format string

const (
	MsgPack Format = "msgpack"
	JSON    Format = "json"
)

// ParseFormat parses a format name, or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "msgpack", "mp":
		return MsgPack, nil
	case "json":
		return JSON, nil
	}
	return "", fmt.Errorf("unknown artifact format %q", s)
}

// Encode writes r in format f.
func Encode(w io.Writer, r *Run, f Format) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case MsgPack:
		return msgpack.NewEncoder(w).Encode(r)
	}
	return fmt.Errorf("unknown artifact format %q", f)
}

// Decode reads a run in format f.
func Decode(rd io.Reader, f Format) (*Run, error) {
	r := new(Run)
	var err error
	switch f {
	case JSON:
		err = json.NewDecoder(rd).Decode(r)
	case MsgPack:
		err = msgpack.NewDecoder(rd).Decode(r)
	default:
		return nil, fmt.Errorf("unknown artifact format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot decode run: %w", err)
	}
	return r, nil
}

// Store keeps runs in a folder, one msgpack file per run named after its id.
type Store struct {
	dir string
	log zerolog.Logger
}

// Open returns the store in dir, creating the folder when needed.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create run store: %w", err)
	}
	return &Store{dir: dir, log: log.With().Str("component", "artifact").Logger()}, nil
}

func (s *Store) path(id string) string { return filepath.Join(s.dir, id+"."+string(MsgPack)) }

// Save writes r, replacing any run with the same id.
func (s *Store) Save(r *Run) error {
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", r.ID, err)
	}
	// write then rename, a reader never sees a partial run
	tmp, err := os.CreateTemp(s.dir, ".run-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := Encode(tmp, r, MsgPack); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot encode run %s: %w", r.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path(r.ID)); err != nil {
		return err
	}
	s.log.Debug().Str("id", r.ID).Msg("run saved")
	return nil
}

// Load reads the run with the given id. A unique prefix of an id is enough.
func (s *Store) Load(id string) (*Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		ids, err := s.IDs()
		if err != nil {
			return nil, err
		}
		var matches []string
		for _, candidate := range ids {
			if strings.HasPrefix(candidate, id) {
				matches = append(matches, candidate)
			}
		}
		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
		case 1:
			id = matches[0]
		default:
			return nil, fmt.Errorf("%q matches %d runs", id, len(matches))
		}
	}

	f, err := os.Open(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, MsgPack)
}

// IDs returns the ids of the stored runs in lexical order.
func (s *Store) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), "."+string(MsgPack))
		if !ok || e.IsDir() {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			s.log.Warn().Str("file", e.Name()).Msg("ignoring file with no run id")
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Latest returns the most recently created run.
func (s *Store) Latest() (*Run, error) {
	ids, err := s.IDs()
	if err != nil {
		return nil, err
	}
	var latest *Run
	for _, id := range ids {
		r, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		if latest == nil || r.Created.After(latest.Created) {
			latest = r
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("empty store: %w", ErrNotFound)
	}
	return latest, nil
}
