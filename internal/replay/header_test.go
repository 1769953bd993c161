package replay

import (
	"path/filepath"
	"testing"
)

func TestWriteAndReadHeader(t *testing.T) {
	dir := t.TempDir()
	header := Header{
		SchemaVersion: HeaderSchemaVersion,
		SessionID:     "galaxy-1",
		Seed:          "seed-9",
		Parameters:    Parameters{"battle_range": 10000},
		FilePointer:   manifestFile,
	}
	path := filepath.Join(dir, "nested", headerFile)
	if err := WriteHeader(path, header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	loaded, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if loaded.SchemaVersion != header.SchemaVersion || loaded.Seed != header.Seed || loaded.SessionID != header.SessionID {
		t.Fatalf("unexpected header values: %+v", loaded)
	}
	if loaded.Parameters["battle_range"] != 10000 {
		t.Fatalf("unexpected parameters: %#v", loaded.Parameters)
	}
	if loaded.FilePointer != header.FilePointer {
		t.Fatalf("unexpected file pointer: %q", loaded.FilePointer)
	}
}

func TestHeaderValidation(t *testing.T) {
	if err := WriteHeader(filepath.Join(t.TempDir(), headerFile), Header{FilePointer: "x"}); err == nil {
		t.Fatalf("expected schema version to be required")
	}
	if err := (Header{SchemaVersion: 1}).Validate(); err == nil {
		t.Fatalf("expected file pointer to be required")
	}
	params := Parameters{"a": 1}
	clone := params.Clone()
	clone["a"] = 2
	if params["a"] != 1 {
		t.Fatalf("clone must not alias the source map")
	}
}
