package solver

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/lox/holdem-solver/internal/fileutil"
	"github.com/lox/holdem-solver/internal/game"
)

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &game.Error{Kind: game.IoError, Msg: "creating archive directory " + dir, Err: err}
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return &game.Error{Kind: game.IoError, Msg: "encoding archive " + path, Err: err}
	}
	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return &game.Error{Kind: game.IoError, Msg: "persisting archive " + path, Err: err}
	}
	return nil
}

func writeGobAtomic(path string, v any) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return &game.Error{Kind: game.IoError, Msg: "encoding archive " + path, Err: err}
	}
	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return &game.Error{Kind: game.IoError, Msg: "persisting archive " + path, Err: err}
	}
	return nil
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return &game.Error{Kind: game.IoError, Msg: "opening archive " + path, Err: err}
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return &game.Error{Kind: game.DeserializationError, Msg: "decoding archive " + path, Err: err}
	}
	return nil
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return &game.Error{Kind: game.IoError, Msg: "opening archive " + path, Err: err}
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return &game.Error{Kind: game.DeserializationError, Msg: "decoding archive " + path, Err: err}
	}
	return nil
}
