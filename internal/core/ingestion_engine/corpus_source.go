package ingestion_engine

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/markdave123-py/ragchat/internal/core"
)

// CorpusSource lists and reads the files of a startup corpus.
type CorpusSource interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
	String() string
}

// DirSource reads every supported file directly inside Dir.
type DirSource struct {
	Dir string
}

func (d DirSource) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := ParseFormat(e.Name()); err != nil {
			continue
		}
		names = append(names, filepath.Join(d.Dir, e.Name()))
	}
	sort.Strings(names)
	return names, nil
}

func (d DirSource) Read(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (d DirSource) String() string { return d.Dir }

// S3Source reads every supported object under Prefix.
type S3Source struct {
	Client core.ObjectClient
	Prefix string
}

func (s S3Source) List(ctx context.Context) ([]string, error) {
	keys, err := s.Client.ListKeys(ctx, s.Prefix)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, k := range keys {
		if _, err := ParseFormat(k); err != nil {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

func (s S3Source) Read(ctx context.Context, name string) ([]byte, error) {
	return s.Client.GetFile(ctx, name)
}

func (s S3Source) String() string { return fmt.Sprintf("s3 prefix %q", s.Prefix) }

// BaseName strips directories from a file path or object key; chunk ids use it as source.
func BaseName(name string) string {
	return path.Base(filepath.ToSlash(name))
}
