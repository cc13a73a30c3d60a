// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/redis/go-redis/v9"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDictionaryFirstWins(t *testing.T) {
	d := NewDictionary()
	d.Set(1, "first")
	d.Set(1, "second")
	if name, _ := d.Lookup(1); name != "first" {
		t.Errorf("Lookup = %q, want first", name)
	}

	h := d.Add("position")
	if h != HashString("position") {
		t.Errorf("Add returned %08X", uint32(h))
	}
	if name, ok := d.Lookup(h); !ok || name != "position" {
		t.Errorf("Lookup(position) = %q, %v", name, ok)
	}

	var nilDict *Dictionary
	if _, ok := nilDict.Lookup(h); ok {
		t.Error("nil dictionary resolved a name")
	}
}

func TestDictionaryMerge(t *testing.T) {
	a := NewDictionary()
	a.Set(1, "a")
	b := NewDictionary()
	b.Set(1, "b")
	b.Set(2, "c")
	a.Merge(b)
	if a.Len() != 2 {
		t.Fatalf("Len = %d, want 2", a.Len())
	}
	if name, _ := a.Lookup(1); name != "a" {
		t.Errorf("merge replaced an existing name with %q", name)
	}
	if got := a.Names(); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("Names = %v", got)
	}
}

func TestLoadDictionaryFormats(t *testing.T) {
	dir := t.TempDir()
	pos, rot := HashString("position"), HashString("rotation")

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"text", "names.txt", "# comment\nposition\n\n  rotation  \n"},
		{"json list", "list.json", `["position", "rotation"]`},
		{"json object", "pairs.json", `{"` + FormatHash(pos) + `": "position", "` + FormatHash(rot) + `": "rotation"}`},
		{"yaml list", "list.yaml", "- position\n- rotation\n"},
		{"yaml object", "pairs.yml", `"` + FormatHash(pos) + "\": position\n\"" + FormatHash(rot) + "\": rotation\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := LoadDictionary(writeTestFile(t, dir, tt.file, tt.content))
			if err != nil {
				t.Fatalf("LoadDictionary: %v", err)
			}
			if d.Len() != 2 {
				t.Errorf("Len = %d, want 2", d.Len())
			}
			if name, _ := d.Lookup(pos); name != "position" {
				t.Errorf("Lookup(position) = %q", name)
			}
			if name, _ := d.Lookup(rot); name != "rotation" {
				t.Errorf("Lookup(rotation) = %q", name)
			}
		})
	}
}

func TestLoadDictionaryErrors(t *testing.T) {
	dir := t.TempDir()
	for _, tt := range []struct{ file, content string }{
		{"bad.json", `{"position": 1`},
		{"badhash.json", `{"XYZ": "position"}`},
		{"bad.yaml", "key: [unclosed"},
		{"scalar.yaml", "just a string"},
	} {
		if _, err := LoadDictionary(writeTestFile(t, dir, tt.file, tt.content)); err == nil {
			t.Errorf("LoadDictionary(%s) succeeded", tt.file)
		}
	}
	if _, err := LoadDictionary(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("LoadDictionary of a missing file succeeded")
	}
}

func TestDictionarySaveLoad(t *testing.T) {
	dir := t.TempDir()
	d := NewDictionary()
	d.AddAll([]string{"alpha", "beta", "gamma"})

	for _, name := range []string{"out.json", "out.yaml", "out.txt"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := d.Save(path); err != nil {
				t.Fatalf("Save: %v", err)
			}
			back, err := LoadDictionary(path)
			if err != nil {
				t.Fatalf("LoadDictionary: %v", err)
			}
			if !reflect.DeepEqual(back.Names(), d.Names()) {
				t.Errorf("Names = %v, want %v", back.Names(), d.Names())
			}
		})
	}
}

func TestDictionaryRedis(t *testing.T) {
	addr := os.Getenv("APEX_TEST_REDIS")
	if addr == "" {
		t.Skip("APEX_TEST_REDIS not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	key := "apex:test:" + t.Name()
	defer client.Del(ctx, key)

	d := NewDictionary()
	d.AddAll([]string{"alpha", "beta"})
	if err := d.SaveRedis(ctx, client, key); err != nil {
		t.Fatalf("SaveRedis: %v", err)
	}
	back, err := LoadDictionaryRedis(ctx, client, key)
	if err != nil {
		t.Fatalf("LoadDictionaryRedis: %v", err)
	}
	if !reflect.DeepEqual(back.Names(), d.Names()) {
		t.Errorf("Names = %v, want %v", back.Names(), d.Names())
	}
}
