// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// StdoutPath as an output path writes the report to standard output.
const StdoutPath = "-"

// Compression identifies the stream compression applied to a report.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseCompression parses a compression name. The empty string
// selects CompressionNone.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionGzip, CompressionZstd, CompressionLZ4:
		return Compression(name), nil
	default:
		return "", fmt.Errorf("unknown compression %q (want none, gzip, zstd, or lz4)", name)
	}
}

// Extension returns the file suffix for the compression, including
// the dot, or "" for none.
func (compression Compression) Extension() string {
	switch compression {
	case CompressionGzip:
		return ".gz"
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}

// ParseRecipients parses age X25519 public keys (age1...).
func ParseRecipients(keys []string) ([]age.Recipient, error) {
	recipients := make([]age.Recipient, 0, len(keys))
	for _, key := range keys {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return recipients, nil
}

// WriteOptions configures WriteFile.
type WriteOptions struct {
	Compression Compression

	// Recipients, when non-empty, encrypts the (compressed) report
	// to these age public keys and appends ".age" to the path.
	Recipients []string

	// Digest writes the BLAKE3 digest of the plaintext CSV to
	// "<path>.blake3". The digest is computed either way.
	Digest bool

	// SkipEmpty suppresses the file entirely when there are no rows.
	SkipEmpty bool

	// Stdout receives the report when the path is StdoutPath.
	// Defaults to os.Stdout.
	Stdout io.Writer
}

// WriteResult describes what WriteFile produced.
type WriteResult struct {
	// Path is the final file path including any appended extensions,
	// or StdoutPath.
	Path string

	Rows int

	// Bytes is the size of the plaintext CSV.
	Bytes int64

	// Digest is the hex BLAKE3 digest of the plaintext CSV.
	Digest string

	// DigestPath is the sidecar path, empty when none was written.
	DigestPath string

	// Skipped is true when SkipEmpty suppressed the file.
	Skipped bool
}

// Write writes the header and one record per row to writer.
func Write(writer io.Writer, rows []Row) error {
	csvWriter := csv.NewWriter(writer)
	if err := csvWriter.Write(Columns); err != nil {
		return fmt.Errorf("report: writing header: %w", err)
	}
	for _, row := range rows {
		if err := csvWriter.Write(row.Record()); err != nil {
			return fmt.Errorf("report: writing row for %s: %w", row.Username, err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("report: flushing csv: %w", err)
	}
	return nil
}

// WriteFile writes rows as CSV to path. The file is assembled under a
// temporary name in the same directory and renamed into place, so a
// failed run never leaves a truncated report behind.
func WriteFile(path string, rows []Row, options WriteOptions) (*WriteResult, error) {
	if len(rows) == 0 && options.SkipEmpty {
		return &WriteResult{Skipped: true}, nil
	}

	var recipients []age.Recipient
	if len(options.Recipients) > 0 {
		var err error
		recipients, err = ParseRecipients(options.Recipients)
		if err != nil {
			return nil, fmt.Errorf("report: %w", err)
		}
	}

	if path == StdoutPath {
		if options.Digest {
			return nil, fmt.Errorf("report: digest sidecar needs a file path, not stdout")
		}
		stdout := options.Stdout
		if stdout == nil {
			stdout = os.Stdout
		}
		result, err := encode(stdout, rows, options.Compression, recipients)
		if err != nil {
			return nil, err
		}
		result.Path = StdoutPath
		return result, nil
	}

	finalPath := path + options.Compression.Extension()
	if len(recipients) > 0 {
		finalPath += ".age"
	}

	directory := filepath.Dir(finalPath)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("report: creating output directory: %w", err)
	}
	temporary, err := os.CreateTemp(directory, "."+filepath.Base(finalPath)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("report: creating output file: %w", err)
	}
	defer os.Remove(temporary.Name())

	result, err := encode(temporary, rows, options.Compression, recipients)
	if err != nil {
		temporary.Close()
		return nil, err
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		return nil, fmt.Errorf("report: syncing %s: %w", finalPath, err)
	}
	if err := temporary.Close(); err != nil {
		return nil, fmt.Errorf("report: closing %s: %w", finalPath, err)
	}
	if err := os.Rename(temporary.Name(), finalPath); err != nil {
		return nil, fmt.Errorf("report: renaming into %s: %w", finalPath, err)
	}
	result.Path = finalPath

	if options.Digest {
		// The digest covers the plaintext, so the sidecar names the
		// decompressed, decrypted file.
		digestPath := finalPath + ".blake3"
		line := result.Digest + "  " + filepath.Base(path) + "\n"
		if err := os.WriteFile(digestPath, []byte(line), 0o644); err != nil {
			return nil, fmt.Errorf("report: writing digest: %w", err)
		}
		result.DigestPath = digestPath
	}
	return result, nil
}

// encode runs the CSV through hashing, compression, and encryption
// into destination. The layers are closed innermost first.
func encode(destination io.Writer, rows []Row, compression Compression, recipients []age.Recipient) (*WriteResult, error) {
	var closers []io.Closer
	// Layers still open on an error return are released here.
	defer func() { closeLayers(closers) }()
	sink := destination

	if len(recipients) > 0 {
		encryptor, err := age.Encrypt(sink, recipients...)
		if err != nil {
			return nil, fmt.Errorf("report: creating age encryptor: %w", err)
		}
		closers = append(closers, encryptor)
		sink = encryptor
	}

	switch compression {
	case CompressionGzip:
		compressor := gzip.NewWriter(sink)
		closers = append(closers, compressor)
		sink = compressor
	case CompressionZstd:
		compressor, err := zstd.NewWriter(sink)
		if err != nil {
			return nil, fmt.Errorf("report: creating zstd encoder: %w", err)
		}
		closers = append(closers, compressor)
		sink = compressor
	case CompressionLZ4:
		compressor := lz4.NewWriter(sink)
		closers = append(closers, compressor)
		sink = compressor
	case "", CompressionNone:
	default:
		return nil, fmt.Errorf("report: unsupported compression %q", compression)
	}

	hasher := blake3.New()
	counter := &countingWriter{}
	if err := Write(io.MultiWriter(sink, hasher, counter), rows); err != nil {
		return nil, err
	}

	err := closeLayers(closers)
	closers = nil
	if err != nil {
		return nil, fmt.Errorf("report: finishing output stream: %w", err)
	}

	return &WriteResult{
		Rows:   len(rows),
		Bytes:  counter.count,
		Digest: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// closeLayers closes every layer innermost first and returns the first
// error. Later layers are closed even when an earlier Close fails.
func closeLayers(closers []io.Closer) error {
	var first error
	for index := len(closers) - 1; index >= 0; index-- {
		if err := closers[index].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type countingWriter struct {
	count int64
}

func (writer *countingWriter) Write(data []byte) (int, error) {
	writer.count += int64(len(data))
	return len(data), nil
}
