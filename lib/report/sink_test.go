// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"bytes"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

var sampleRows = []Row{
	{
		Enterprise: "acme", TeamName: "Eng", Username: "alice", Email: "a@x.com",
		CreatedAt: "2020-01-01", LastActivityAt: "2024-01-01T00:00:00Z",
		LastActiveEditor: "vscode", EditorVersion: "1.2", Plugin: "copilot", PluginVersion: "1.0",
		Status: StatusActive,
	},
	{
		Enterprise: "acme", TeamName: "Eng, Platform", Username: "bob", Email: Sentinel,
		CreatedAt: Sentinel, LastActivityAt: Sentinel,
		LastActiveEditor: Sentinel, EditorVersion: Sentinel, Plugin: Sentinel, PluginVersion: Sentinel,
		Status: StatusInactive,
	},
}

const sampleCSV = "Enterprise,Team Name,Username,Email,Created At,Last Activity At,Last Active Editor,Editor Version,Plugin,Plugin Version,Status\n" +
	"acme,Eng,alice,a@x.com,2020-01-01,2024-01-01T00:00:00Z,vscode,1.2,copilot,1.0,active\n" +
	"acme,\"Eng, Platform\",bob,N/A,N/A,N/A,N/A,N/A,N/A,N/A,inactive\n"

func TestWrite(t *testing.T) {
	var buffer bytes.Buffer
	if err := Write(&buffer, sampleRows); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := buffer.String(); got != sampleCSV {
		t.Errorf("Write output:\n%s\nwant:\n%s", got, sampleCSV)
	}
}

func TestWrite_HeaderOnly(t *testing.T) {
	var buffer bytes.Buffer
	if err := Write(&buffer, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	records, err := csv.NewReader(&buffer).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if len(records) != 1 || !slices.Equal(records[0], Columns) {
		t.Errorf("records = %v, want only the header", records)
	}
}

func TestWriteFile_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "seats.csv")
	result, err := WriteFile(path, sampleRows, WriteOptions{Digest: true})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if result.Path != path {
		t.Errorf("Path = %q, want %q", result.Path, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != sampleCSV {
		t.Errorf("file content:\n%s", data)
	}
	if result.Rows != 2 || result.Bytes != int64(len(sampleCSV)) {
		t.Errorf("Rows/Bytes = %d/%d", result.Rows, result.Bytes)
	}

	sum := blake3.Sum256([]byte(sampleCSV))
	if result.Digest != hex.EncodeToString(sum[:]) {
		t.Errorf("Digest = %s", result.Digest)
	}
	sidecar, err := os.ReadFile(path + ".blake3")
	if err != nil {
		t.Fatalf("reading sidecar: %v", err)
	}
	if want := result.Digest + "  seats.csv\n"; string(sidecar) != want {
		t.Errorf("sidecar = %q, want %q", sidecar, want)
	}

	// No temporary files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Errorf("leftover temporary file %s", entry.Name())
		}
	}
}

func TestWriteFile_EmptyRows(t *testing.T) {
	directory := t.TempDir()

	t.Run("header only by default", func(t *testing.T) {
		path := filepath.Join(directory, "empty.csv")
		result, err := WriteFile(path, nil, WriteOptions{})
		if err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		data, err := os.ReadFile(result.Path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != strings.Join(Columns, ",")+"\n" {
			t.Errorf("content = %q", data)
		}
	})

	t.Run("skip empty", func(t *testing.T) {
		path := filepath.Join(directory, "skipped.csv")
		result, err := WriteFile(path, nil, WriteOptions{SkipEmpty: true})
		if err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if !result.Skipped {
			t.Error("Skipped = false")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("file created despite SkipEmpty (stat err = %v)", err)
		}
	})
}

func TestWriteFile_Compression(t *testing.T) {
	tests := []struct {
		compression Compression
		extension   string
		decompress  func(t *testing.T, reader io.Reader) []byte
	}{
		{CompressionGzip, ".gz", func(t *testing.T, reader io.Reader) []byte {
			decompressor, err := gzip.NewReader(reader)
			if err != nil {
				t.Fatalf("gzip.NewReader: %v", err)
			}
			defer decompressor.Close()
			return readAll(t, decompressor)
		}},
		{CompressionZstd, ".zst", func(t *testing.T, reader io.Reader) []byte {
			decoder, err := zstd.NewReader(reader)
			if err != nil {
				t.Fatalf("zstd.NewReader: %v", err)
			}
			defer decoder.Close()
			return readAll(t, decoder)
		}},
		{CompressionLZ4, ".lz4", func(t *testing.T, reader io.Reader) []byte {
			return readAll(t, lz4.NewReader(reader))
		}},
	}

	for _, test := range tests {
		t.Run(string(test.compression), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "seats.csv")
			result, err := WriteFile(path, sampleRows, WriteOptions{Compression: test.compression, Digest: true})
			if err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if result.Path != path+test.extension {
				t.Errorf("Path = %q, want %q", result.Path, path+test.extension)
			}
			file, err := os.Open(result.Path)
			if err != nil {
				t.Fatal(err)
			}
			defer file.Close()
			if got := test.decompress(t, file); string(got) != sampleCSV {
				t.Errorf("decompressed:\n%s", got)
			}
			if result.DigestPath != result.Path+".blake3" {
				t.Errorf("DigestPath = %q", result.DigestPath)
			}
		})
	}
}

func TestWriteFile_Encrypted(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generating identity: %v", err)
	}

	path := filepath.Join(t.TempDir(), "seats.csv")
	result, err := WriteFile(path, sampleRows, WriteOptions{
		Compression: CompressionZstd,
		Recipients:  []string{identity.Recipient().String()},
	})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if want := path + ".zst.age"; result.Path != want {
		t.Fatalf("Path = %q, want %q", result.Path, want)
	}

	file, err := os.Open(result.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	plaintext, err := age.Decrypt(file, identity)
	if err != nil {
		t.Fatalf("age.Decrypt: %v", err)
	}
	decoder, err := zstd.NewReader(plaintext)
	if err != nil {
		t.Fatalf("zstd.NewReader: %v", err)
	}
	defer decoder.Close()
	if got := readAll(t, decoder); string(got) != sampleCSV {
		t.Errorf("decrypted:\n%s", got)
	}
}

func TestWriteFile_InvalidRecipient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seats.csv")
	if _, err := WriteFile(path, sampleRows, WriteOptions{Recipients: []string{"not-a-key"}}); err == nil {
		t.Fatal("expected error for invalid recipient")
	}
	if _, err := os.Stat(path + ".age"); !os.IsNotExist(err) {
		t.Error("output created despite invalid recipient")
	}
}

func TestWriteFile_Stdout(t *testing.T) {
	var buffer bytes.Buffer
	result, err := WriteFile(StdoutPath, sampleRows, WriteOptions{Stdout: &buffer})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if result.Path != StdoutPath || result.DigestPath != "" {
		t.Errorf("Path/DigestPath = %q/%q", result.Path, result.DigestPath)
	}
	if result.Digest == "" {
		t.Error("Digest empty for stdout output")
	}
	if buffer.String() != sampleCSV {
		t.Errorf("stdout:\n%s", buffer.String())
	}
}

func TestWriteFile_StdoutRejectsDigestSidecar(t *testing.T) {
	var buffer bytes.Buffer
	if _, err := WriteFile(StdoutPath, sampleRows, WriteOptions{Stdout: &buffer, Digest: true}); err == nil {
		t.Fatal("expected error for a digest sidecar on stdout")
	}
	if buffer.Len() != 0 {
		t.Errorf("stdout written despite error: %q", buffer.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

type recordingCloser struct {
	name   string
	closed *[]string
	err    error
}

func (closer recordingCloser) Close() error {
	*closer.closed = append(*closer.closed, closer.name)
	return closer.err
}

func TestCloseLayers_ClosesEveryLayerInnermostFirst(t *testing.T) {
	var closed []string
	closers := []io.Closer{
		recordingCloser{name: "encryptor", closed: &closed},
		recordingCloser{name: "compressor", closed: &closed, err: errors.New("flush failed")},
	}
	err := closeLayers(closers)
	if err == nil || !strings.Contains(err.Error(), "flush failed") {
		t.Errorf("closeLayers error = %v, want flush failure", err)
	}
	if strings.Join(closed, ",") != "compressor,encryptor" {
		t.Errorf("closed = %v, want [compressor encryptor]", closed)
	}
}

func TestEncode_WriteFailure(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity: %v", err)
	}
	for _, compression := range []Compression{CompressionNone, CompressionGzip, CompressionZstd, CompressionLZ4} {
		t.Run(string(compression), func(t *testing.T) {
			if _, err := encode(failingWriter{}, sampleRows, compression, nil); err == nil {
				t.Error("expected error writing to a failing destination")
			}
			if _, err := encode(failingWriter{}, sampleRows, compression, []age.Recipient{identity.Recipient()}); err == nil {
				t.Error("expected error writing encrypted output to a failing destination")
			}
		})
	}
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"", "none", "gzip", "zstd", "lz4"} {
		if _, err := ParseCompression(name); err != nil {
			t.Errorf("ParseCompression(%q): %v", name, err)
		}
	}
	if _, err := ParseCompression("bzip2"); err == nil {
		t.Error("ParseCompression(bzip2) should fail")
	}
}

func readAll(t *testing.T, reader io.Reader) []byte {
	t.Helper()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	return data
}
