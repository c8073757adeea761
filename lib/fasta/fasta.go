// Package fasta reads sequences from FASTA files into an ItemSet.
package fasta

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/kpaschen/seqcluster/lib/datatypes"
	log "github.com/sirupsen/logrus"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Load reads a FASTA file, gzipped or not.
func Load(path string) (*datatypes.ItemSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, datatypes.NewStageError(datatypes.STAGE_INGEST, path, err)
	}
	defer f.Close()

	items, err := Parse(f)
	if err != nil {
		return nil, datatypes.NewStageError(datatypes.STAGE_INGEST, path, err)
	}
	log.WithFields(log.Fields{
		"file":  path,
		"items": items.Len(),
	}).Info("loaded sequences")
	return items, nil
}

// Parse reads FASTA records from r. Gzip input is recognized by its magic
// bytes, so a .gz suffix is neither needed nor trusted.
// The id of a record is the first whitespace-separated token of its header;
// sequence lines are joined without line breaks. Anything before the first
// header is ignored.
func Parse(r io.Reader) (*datatypes.ItemSet, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(gzipMagic))
	if err == nil && bytes.Equal(magic, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		return parse(gz)
	}
	return parse(br)
}

func parse(r io.Reader) (*datatypes.ItemSet, error) {
	var items []datatypes.Item
	current := -1
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) > 0 && line[0] == '>' {
			fields := strings.Fields(string(line[1:]))
			if len(fields) == 0 {
				return nil, fmt.Errorf("line %d: header without id: %w", lineNo, datatypes.ErrInvalidInput)
			}
			id := fields[0]
			if seen[id] {
				return nil, fmt.Errorf("line %d: duplicate id %q: %w", lineNo, id, datatypes.ErrInvalidInput)
			}
			seen[id] = true
			items = append(items, datatypes.Item{ID: id, Payload: []byte{}})
			current = len(items) - 1
			continue
		}
		if current < 0 {
			continue
		}
		items[current].Payload = append(items[current].Payload, bytes.TrimSpace(line)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return datatypes.NewItemSet(items)
}
