package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const defaultMaxErrors = 10

type options struct {
	source    string
	encoding  string
	rules     []RowRule
	maxErrors int
}

// Option configures Load and Read.
type Option func(*options)

// WithEncoding sets the character encoding of the source: utf-8 (default),
// latin1, windows-1252 or gbk. A leading byte order mark is always honoured.
func WithEncoding(name string) Option {
	return func(o *options) { o.encoding = name }
}

// WithRules appends row rules to DefaultRules.
func WithRules(rules ...RowRule) Option {
	return func(o *options) { o.rules = append(o.rules, rules...) }
}

// WithSource names the source in errors when reading from an io.Reader.
func WithSource(name string) Option {
	return func(o *options) { o.source = name }
}

// WithMaxErrors caps how many row failures are collected before loading stops.
func WithMaxErrors(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxErrors = n
		}
	}
}

// Load reads the CSV file at path into a Table.
func Load(path string, opts ...Option) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &DataLoadError{Path: path, Err: err}
	}
	defer file.Close()

	return Read(file, append([]Option{WithSource(path)}, opts...)...)
}

// Read parses CSV data with a header row into a Table. Every failure is a
// *DataLoadError; when several rows fail, their errors are combined.
func Read(r io.Reader, opts ...Option) (*Table, error) {
	o := &options{rules: DefaultRules(), maxErrors: defaultMaxErrors}
	for _, opt := range opts {
		opt(o)
	}

	enc, err := lookupEncoding(o.encoding)
	if err != nil {
		return nil, &DataLoadError{Path: o.source, Err: err}
	}

	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &DataLoadError{Path: o.source, Err: ErrNoRecords}
	}
	if err != nil {
		return nil, &DataLoadError{Path: o.source, Line: 1, Err: fmt.Errorf("read header: %w", err)}
	}

	index, headerErr := indexHeader(header)
	if headerErr != nil {
		headerErr.Path = o.source
		return nil, headerErr
	}

	var (
		records []Record
		rowErrs []error
	)
	for len(rowErrs) < o.maxErrors {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			line := 0
			if errors.As(err, &parseErr) {
				line = parseErr.StartLine
			}
			rowErrs = append(rowErrs, &DataLoadError{Line: line, Err: fmt.Errorf("%w: %v", ErrMalformedRow, err)})
			if parseErr != nil && errors.Is(parseErr.Err, csv.ErrFieldCount) {
				continue
			}
			break
		}
		line, _ := reader.FieldPos(0)

		rec, err := parseRow(fields, index)
		if err == nil {
			err = applyRules(rec, o.rules)
		}
		if err != nil {
			loadErr := &DataLoadError{Line: line, Err: fmt.Errorf("%w: %v", ErrMalformedRow, err)}
			var re *ruleError
			if errors.As(err, &re) {
				loadErr.Column = re.column
			}
			rowErrs = append(rowErrs, loadErr)
			continue
		}
		records = append(records, rec)
	}

	switch len(rowErrs) {
	case 0:
	case 1:
		loadErr := rowErrs[0].(*DataLoadError)
		loadErr.Path = o.source
		return nil, loadErr
	default:
		return nil, &DataLoadError{Path: o.source, Err: multierr.Combine(rowErrs...)}
	}

	if len(records) == 0 {
		return nil, &DataLoadError{Path: o.source, Err: ErrNoRecords}
	}
	return NewTable(records), nil
}

type headerIndex struct {
	numeric [NumColumns]int
	label   int
}

func indexHeader(header []string) (headerIndex, *DataLoadError) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := positions[name]; !dup {
			positions[name] = i
		}
	}

	var index headerIndex
	var missing []string
	for i, name := range columnNames {
		pos, ok := positions[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		index.numeric[i] = pos
	}
	pos, ok := positions[LabelColumn]
	if !ok {
		missing = append(missing, LabelColumn)
	}
	index.label = pos

	if len(missing) > 0 {
		return index, &DataLoadError{Line: 1, Column: strings.Join(missing, ", "), Err: ErrMissingColumn}
	}
	return index, nil
}

func parseRow(fields []string, index headerIndex) (Record, error) {
	var features Features
	for i, pos := range index.numeric {
		if pos >= len(fields) {
			return Record{}, &ruleError{column: columnNames[i], err: errors.New("value missing")}
		}
		raw := strings.TrimSpace(fields[pos])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Record{}, &ruleError{column: columnNames[i], err: fmt.Errorf("%q is not numeric", raw)}
		}
		features[i] = v
	}
	if index.label >= len(fields) {
		return Record{}, &ruleError{column: LabelColumn, err: errors.New("value missing")}
	}
	return NewRecord(features, strings.TrimSpace(fields[index.label])), nil
}

func applyRules(rec Record, rules []RowRule) error {
	for _, rule := range rules {
		if err := rule.Apply(rec); err != nil {
			return fmt.Errorf("%s: %w", rule.Name(), err)
		}
	}
	return nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "gbk":
		return simplifiedchinese.GBK, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}
