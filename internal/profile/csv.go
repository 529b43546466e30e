package profile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PairHeaders is the CSV header of a pair (review) file.
var PairHeaders = []string{"employerID", "employeeID", "score"}

// ReadCSV parses a profile file. Columns are located by header name, so
// their order does not matter and extra columns are ignored.
func ReadCSV(r io.Reader) (*Profiles, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty profile file")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	columns, err := locate(header, Headers())
	if err != nil {
		return nil, err
	}

	profiles := &Profiles{}
	seen := make(map[string]struct{})

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		p := New(
			strings.TrimSpace(record[columns["id"]]),
			strings.TrimSpace(record[columns["nameFirst"]]),
			strings.TrimSpace(record[columns["nameLast"]]),
			strings.TrimSpace(record[columns["origin"]]),
		)

		for _, name := range AttributeNames() {
			raw := strings.TrimSpace(record[columns[name]])
			v, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, name, err)
			}
			p.SetAttribute(name, v)
		}

		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("line %d: duplicate profile id %q", line, p.ID)
		}
		seen[p.ID] = struct{}{}

		profiles.Items = append(profiles.Items, p)
	}

	return profiles, nil
}

// WriteCSV writes profiles with the header returned by Headers.
func WriteCSV(w io.Writer, profiles *Profiles) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Headers()); err != nil {
		return err
	}

	names := AttributeNames()
	for _, p := range profiles.Items {
		record := make([]string, 0, 4+len(names))
		record = append(record, p.ID, p.NameFirst, p.NameLast, p.Origin)
		for _, name := range names {
			v, _ := p.Attribute(name)
			record = append(record, strconv.Itoa(v))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadPairsCSV parses a pair (review) file.
func ReadPairsCSV(r io.Reader) ([]Pair, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty pair file")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	columns, err := locate(header, PairHeaders)
	if err != nil {
		return nil, err
	}

	var pairs []Pair
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		score, err := strconv.ParseFloat(strings.TrimSpace(record[columns["score"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: column score: %w", line, err)
		}
		if score < 0 || score > 1 {
			return nil, fmt.Errorf("line %d: score %v is out of range [0,1]", line, score)
		}

		pairs = append(pairs, Pair{
			EmployerID: strings.TrimSpace(record[columns["employerID"]]),
			EmployeeID: strings.TrimSpace(record[columns["employeeID"]]),
			Score:      score,
		})
	}

	return pairs, nil
}

// WritePairsCSV writes pairs with PairHeaders.
func WritePairsCSV(w io.Writer, pairs []Pair) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(PairHeaders); err != nil {
		return err
	}

	for _, p := range pairs {
		if err := writer.Write([]string{
			p.EmployerID,
			p.EmployeeID,
			strconv.FormatFloat(p.Score, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func LoadFile(path string) (*Profiles, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	profiles, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return profiles, nil
}

func SaveFile(path string, profiles *Profiles) error {
	return writeFile(path, func(w io.Writer) error { return WriteCSV(w, profiles) })
}

func LoadPairsFile(path string) ([]Pair, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	pairs, err := ReadPairsCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pairs, nil
}

func SavePairsFile(path string, pairs []Pair) error {
	return writeFile(path, func(w io.Writer) error { return WritePairsCSV(w, pairs) })
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return file.Close()
}

func locate(header, required []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	return columns, nil
}
