package zipcore

import (
	"log/slog"

	"github.com/arlyn/zipcore/internal/zipfmt"
)

// Option configures an Archive at Open time.
type Option func(*Archive)

// WithZip64Policy sets the default ZIP64 policy applied to entries that
// don't set their own (i.e. leave zipfmt.Zip64Auto, the zero value).
func WithZip64Policy(p zipfmt.Zip64Policy) Option {
	return func(a *Archive) { a.zip64Policy = p }
}

// WithCompressionLevel sets the default codec compression level for
// entries written through this archive.
func WithCompressionLevel(level int) Option {
	return func(a *Archive) { a.compressLevel = level }
}

// WithPassword sets the default password used for entries that don't
// carry one of their own. Useful when every entry in an archive shares a
// single password.
func WithPassword(password []byte) Option {
	return func(a *Archive) { a.password = password }
}

// WithLogger attaches a structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Archive) { a.logger = l }
}

// WithMaxCommentBytes bounds the archive comment length accepted on read;
// archives with a longer comment fail to open with CodeFormat. Zero (the
// default) means the on-wire maximum (65535).
func WithMaxCommentBytes(n int) Option {
	if n == 0 {
		n = zipfmt.Uint16Max
	}
	return func(a *Archive) { a.maxCommentBytes = n }
}

// WithVersionMadeBy sets the version_madeby value stamped on new entries
// that don't specify their own.
func WithVersionMadeBy(v uint16) Option {
	return func(a *Archive) { a.versionMadeBy = v }
}
