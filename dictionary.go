// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Dictionary is a hash to name table. Fill it once, then share it freely;
// lookups do not mutate it.
type Dictionary struct {
	names map[int32]string
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{names: make(map[int32]string)}
}

// Add hashes name and stores it. The first name stored for a hash wins.
func (d *Dictionary) Add(name string) int32 {
	h := HashString(name)
	d.Set(h, name)
	return h
}

// AddAll adds every name.
func (d *Dictionary) AddAll(names []string) {
	for _, n := range names {
		d.Add(n)
	}
}

// Set stores a precomputed pair. The first name stored for a hash wins.
func (d *Dictionary) Set(hash int32, name string) {
	if _, ok := d.names[hash]; !ok {
		d.names[hash] = name
	}
}

// Lookup implements NameResolver.
func (d *Dictionary) Lookup(hash int32) (string, bool) {
	if d == nil {
		return "", false
	}
	name, ok := d.names[hash]
	return name, ok
}

// Len returns the number of entries.
func (d *Dictionary) Len() int { return len(d.names) }

// Names returns all names in sorted order.
func (d *Dictionary) Names() []string {
	out := make([]string, 0, len(d.names))
	for _, n := range d.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Merge copies entries from other that d does not have yet.
func (d *Dictionary) Merge(other *Dictionary) {
	for h, n := range other.names {
		d.Set(h, n)
	}
}

// pairs returns the entries keyed by their hex hash.
func (d *Dictionary) pairs() map[string]string {
	m := make(map[string]string, len(d.names))
	for h, n := range d.names {
		m[FormatHash(h)] = n
	}
	return m
}

func (d *Dictionary) setPairs(m map[string]string) error {
	for k, name := range m {
		h, err := ParseHash(k)
		if err != nil {
			return err
		}
		d.Set(h, name)
	}
	return nil
}

// LoadDictionary reads a dictionary file. The format follows the extension:
//
//	.txt         one name per line, '#' starts a comment line
//	.json        a list of names or an object of hex hash to name
//	.yaml, .yml  same shapes as JSON
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	d := NewDictionary()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = d.decodeJSON(data)
	case ".yaml", ".yml":
		err = d.decodeYAML(data)
	default:
		err = d.readLines(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("load dictionary %s: %w", path, err)
	}
	return d, nil
}

func (d *Dictionary) readLines(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d.Add(line)
	}
	return sc.Err()
}

func (d *Dictionary) decodeJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var names []string
		if err := json.Unmarshal(trimmed, &names); err != nil {
			return err
		}
		d.AddAll(names)
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return err
	}
	return d.setPairs(m)
}

func (d *Dictionary) decodeYAML(data []byte) error {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	if len(node.Content) == 0 {
		return nil
	}
	doc := node.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := doc.Decode(&names); err != nil {
			return err
		}
		d.AddAll(names)
		return nil
	case yaml.MappingNode:
		var m map[string]string
		if err := doc.Decode(&m); err != nil {
			return err
		}
		return d.setPairs(m)
	}
	return fmt.Errorf("unexpected yaml node at line %d", doc.Line)
}

// Save writes the dictionary as hash to name pairs. The format follows the
// extension as in LoadDictionary; .txt writes names only.
func (d *Dictionary) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(d.pairs(), "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(d.pairs())
	default:
		data = []byte(strings.Join(d.Names(), "\n") + "\n")
	}
	if err != nil {
		return fmt.Errorf("encode dictionary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write dictionary: %w", err)
	}
	return nil
}

// LoadDictionaryRedis reads a dictionary stored as a Redis hash of hex
// hash to name.
func LoadDictionaryRedis(ctx context.Context, client redis.Cmdable, key string) (*Dictionary, error) {
	m, err := client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", key, err)
	}
	d := NewDictionary()
	if err := d.setPairs(m); err != nil {
		return nil, fmt.Errorf("redis dictionary %s: %w", key, err)
	}
	return d, nil
}

// SaveRedis stores the dictionary into a Redis hash. Existing fields are
// overwritten; other fields are kept.
func (d *Dictionary) SaveRedis(ctx context.Context, client redis.Cmdable, key string) error {
	if d.Len() == 0 {
		return nil
	}
	fields := make(map[string]interface{}, d.Len())
	for k, v := range d.pairs() {
		fields[k] = v
	}
	if err := client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}
