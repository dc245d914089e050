package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// MaildirSource reads messages dropped into a directory. Both a flat
// directory of .eml files and a maildir with new/ and cur/ are supported.
type MaildirSource struct {
	dir     string
	logger  *zap.Logger
	mu      sync.Mutex
	yielded map[string]struct{}
}

// NewMaildirSource creates a source reading from dir
func NewMaildirSource(dir string, logger *zap.Logger) (*MaildirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open maildir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("maildir path %s is not a directory", dir)
	}

	logger.Info("Watching maildir for new messages", zap.String("path", dir))
	return &MaildirSource{
		dir:     dir,
		logger:  logger,
		yielded: make(map[string]struct{}),
	}, nil
}

type messageFile struct {
	path    string
	modTime time.Time
}

// GetNewEmails implements ports.InboxSource. Files are returned oldest first.
func (s *MaildirSource) GetNewEmails(ctx context.Context, max int) ([]core.EmailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listMessages()
	if err != nil {
		return nil, err
	}

	var emails []core.EmailRecord
	for _, file := range files {
		if max > 0 && len(emails) >= max {
			break
		}
		if err := ctx.Err(); err != nil {
			return emails, err
		}
		if _, ok := s.yielded[file.path]; ok {
			continue
		}

		record, err := s.readFile(file.path)
		// unreadable files are not retried
		s.yielded[file.path] = struct{}{}
		if err != nil {
			s.logger.Warn("Skipping unreadable message", zap.String("path", file.path), zap.Error(err))
			continue
		}
		emails = append(emails, record)
	}

	return emails, nil
}

func (s *MaildirSource) readFile(path string) (core.EmailRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.EmailRecord{}, err
	}
	defer f.Close()
	return ReadMessage(f, filepath.Base(path))
}

func (s *MaildirSource) listMessages() ([]messageFile, error) {
	dirs := []string{s.dir}
	for _, sub := range []string{"new", "cur"} {
		if info, err := os.Stat(filepath.Join(s.dir, sub)); err == nil && info.IsDir() {
			dirs = append(dirs, filepath.Join(s.dir, sub))
		}
	}

	var files []messageFile
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			// the top level only holds .eml files, maildir subdirs hold bare names
			if dir == s.dir && !strings.EqualFold(filepath.Ext(entry.Name()), ".eml") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			files = append(files, messageFile{path: filepath.Join(dir, entry.Name()), modTime: info.ModTime()})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})
	return files, nil
}

// Close implements ports.InboxSource
func (s *MaildirSource) Close() error {
	return nil
}
