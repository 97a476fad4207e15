package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type tomlRoster struct {
	People []Person `toml:"person"`
}

// LoadFile reads people from a .toml or .csv file.
//
// TOML files hold [[person]] tables with name, id and selected keys. CSV
// files have a header row naming at least a name or id column; an optional
// selected column accepts strconv.ParseBool values.
func LoadFile(path string) ([]Person, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var tr tomlRoster
		if _, err := toml.DecodeFile(path, &tr); err != nil {
			return nil, fmt.Errorf("decode roster %s: %w", path, err)
		}
		return tr.People, nil
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open roster: %w", err)
		}
		defer f.Close()
		people, err := ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("read roster %s: %w", path, err)
		}
		return people, nil
	default:
		return nil, fmt.Errorf("unsupported roster format %q (want .toml or .csv)", filepath.Ext(path))
	}
}

// ReadCSV parses a roster from CSV with a header row.
func ReadCSV(r io.Reader) ([]Person, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	_, hasName := cols["name"]
	_, hasID := cols["id"]
	if !hasName && !hasID {
		return nil, errors.New("csv header needs a name or id column")
	}

	get := func(rec []string, col string) string {
		i, ok := cols[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var people []Person
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		p := Person{Name: get(rec, "name"), ID: get(rec, "id")}
		if p.Name == "" && p.ID == "" {
			continue
		}
		if s := get(rec, "selected"); s != "" {
			sel, err := strconv.ParseBool(s)
			if err != nil {
				line, _ := cr.FieldPos(0)
				return nil, fmt.Errorf("line %d: invalid selected value %q", line, s)
			}
			p.Selected = sel
		}
		people = append(people, p)
	}
	return people, nil
}
