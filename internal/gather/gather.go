// Package gather snapshots the working directory and piped stdin at startup.
package gather

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"golang.org/x/term"

	"github.com/aia-cli/aia/internal/session"
)

const DefaultMaxPiped = 64 << 10 // 64KB

// ErrContextUnavailable marks a failed directory listing. It is never fatal.
var ErrContextUnavailable = errors.New("context unavailable")

// Options controls what Build reads. Zero values mean the process defaults.
type Options struct {
	Dir      string    // defaults to os.Getwd
	Stdin    io.Reader // defaults to os.Stdin
	IsPiped  func() bool
	MaxPiped int
	Logger   *slog.Logger
}

// Build captures the startup context. It is best-effort: a failed listing
// leaves Entries empty and unreadable stdin leaves PipedInput empty.
func Build(opts Options) session.Context {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Warn("resolve cwd", "error", fmt.Errorf("%w: %v", ErrContextUnavailable, err))
		}
		dir = wd
	}

	ctx := session.Context{Cwd: dir}
	entries, err := List(dir)
	if err != nil {
		log.Warn("list cwd", "dir", dir, "error", err)
	}
	ctx.Entries = entries

	stdin := opts.Stdin
	isPiped := opts.IsPiped
	if stdin == nil {
		stdin = os.Stdin
		if isPiped == nil {
			isPiped = StdinPiped
		}
	}
	if isPiped != nil && isPiped() {
		limit := opts.MaxPiped
		if limit <= 0 {
			limit = DefaultMaxPiped
		}
		text, err := ReadPiped(stdin, limit)
		if err != nil {
			log.Warn("read piped stdin", "error", err)
		}
		ctx.PipedInput = text
	}
	return ctx
}

// List returns the names of dir's immediate entries, sorted. On error it
// returns an empty slice alongside an error wrapping ErrContextUnavailable.
func List(dir string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil && len(des) == 0 {
		return []string{}, fmt.Errorf("%w: %v", ErrContextUnavailable, err)
	}
	names := make([]string, 0, len(des))
	for _, de := range des {
		names = append(names, de.Name())
	}
	sort.Strings(names)
	return names, nil
}

// StdinPiped reports whether os.Stdin is something other than a terminal.
func StdinPiped() bool {
	return !term.IsTerminal(int(os.Stdin.Fd()))
}

// ReadPiped reads at most limit bytes from r and trims trailing whitespace.
func ReadPiped(r io.Reader, limit int) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(limit)))
	text := strings.TrimRight(string(data), " \t\r\n")
	if strings.TrimSpace(text) == "" {
		text = ""
	}
	return text, err
}
