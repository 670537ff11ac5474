package fetcher

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/config"
)

// FTPSource reads recognizer output from an FTP drop folder. Network
// scanners upload there; we only ever read.
type FTPSource struct {
	cfg config.FTPConfig

	mu   sync.Mutex
	conn *ftp.ServerConn
}

// NewFTPSource returns a source for the configured server. The connection is
// dialed lazily on first use.
func NewFTPSource(cfg config.FTPConfig) *FTPSource {
	return &FTPSource{cfg: cfg}
}

func (s *FTPSource) List(ctx context.Context) ([]string, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := conn.List(s.cfg.Dir)
	if err != nil {
		// Drop folders live behind flaky links; one re-dial is cheap.
		s.drop()
		if conn, err = s.connect(ctx); err != nil {
			return nil, err
		}
		if entries, err = conn.List(s.cfg.Dir); err != nil {
			return nil, eris.Wrapf(err, "fetcher: ftp list %s", s.cfg.Dir)
		}
	}

	var names []string
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile || !strings.HasSuffix(strings.ToLower(e.Name), ".json") {
			continue
		}
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *FTPSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := conn.Retr(path.Join(s.cfg.Dir, name))
	if err != nil {
		s.drop()
		if conn, err = s.connect(ctx); err != nil {
			return nil, err
		}
		if resp, err = conn.Retr(path.Join(s.cfg.Dir, name)); err != nil {
			return nil, eris.Wrapf(err, "fetcher: ftp retrieve %s", name)
		}
	}
	return resp, nil
}

// Close quits the FTP session if one is open.
func (s *FTPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Quit()
	s.conn = nil
	return eris.Wrap(err, "fetcher: ftp quit")
}

func (s *FTPSource) connect(ctx context.Context) (*ftp.ServerConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}

	timeout := time.Duration(s.cfg.TimeoutSecs) * time.Second
	conn, err := ftp.Dial(s.cfg.Addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(timeout),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: ftp dial %s", s.cfg.Addr)
	}
	if err := conn.Login(s.cfg.User, s.cfg.Password); err != nil {
		conn.Quit()
		return nil, eris.Wrap(err, "fetcher: ftp login")
	}

	zap.L().Debug("fetcher: ftp connected", zap.String("addr", s.cfg.Addr))
	s.conn = conn
	return conn, nil
}

func (s *FTPSource) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Quit()
		s.conn = nil
	}
}
