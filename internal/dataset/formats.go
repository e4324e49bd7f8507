package dataset

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"
	"github.com/xuri/excelize/v2"

	verrors "github.com/visaboard/visaboard/internal/errors"
)

// Format identifies how an export object is encoded.
type Format string

const (
	FormatCSV       Format = "csv"
	FormatTSV       Format = "tsv"
	FormatCSVSnappy Format = "csv.sz"
	FormatTSVSnappy Format = "tsv.sz"
	FormatXLSX      Format = "xlsx"
	FormatSQLite    Format = "sqlite"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// table is a header plus string cells, before typing.
type table struct {
	header []string
	rows   [][]string
}

// detectFormat picks the format from the override or the object extension.
func detectFormat(objectPath, override string) (Format, error) {
	if override != "" {
		switch f := Format(strings.ToLower(override)); f {
		case FormatCSV, FormatTSV, FormatCSVSnappy, FormatTSVSnappy, FormatXLSX, FormatSQLite:
			return f, nil
		}
		return "", unsupportedFormat(override)
	}

	name := strings.ToLower(filepath.Base(objectPath))
	snappyFramed := false
	if strings.HasSuffix(name, ".sz") {
		snappyFramed = true
		name = strings.TrimSuffix(name, ".sz")
	}

	switch filepath.Ext(name) {
	case ".csv", ".txt":
		if snappyFramed {
			return FormatCSVSnappy, nil
		}
		return FormatCSV, nil
	case ".tsv":
		if snappyFramed {
			return FormatTSVSnappy, nil
		}
		return FormatTSV, nil
	case ".xlsx":
		if !snappyFramed {
			return FormatXLSX, nil
		}
	case ".db", ".sqlite", ".sqlite3":
		if !snappyFramed {
			return FormatSQLite, nil
		}
	}
	return "", unsupportedFormat(objectPath)
}

func unsupportedFormat(what string) error {
	return verrors.NewDataLoadError(verrors.CodeUnsupportedFormat,
		fmt.Sprintf("unsupported dataset format: %s", what), nil)
}

// readTable decodes raw object bytes into a table. SQLite sources are
// opened from localPath because the driver needs a file.
func readTable(ctx context.Context, format Format, data []byte, localPath string, opts Options) (*table, error) {
	switch format {
	case FormatCSV:
		return readDelimited(bytes.NewReader(data), delimiterOr(opts.Delimiter, ','))
	case FormatTSV:
		return readDelimited(bytes.NewReader(data), delimiterOr(opts.Delimiter, '\t'))
	case FormatCSVSnappy:
		return readDelimited(snappy.NewReader(bytes.NewReader(data)), delimiterOr(opts.Delimiter, ','))
	case FormatTSVSnappy:
		return readDelimited(snappy.NewReader(bytes.NewReader(data)), delimiterOr(opts.Delimiter, '\t'))
	case FormatXLSX:
		return readXLSX(data, opts.Sheet)
	case FormatSQLite:
		return readSQLite(ctx, localPath, opts.Table)
	default:
		return nil, unsupportedFormat(string(format))
	}
}

func delimiterOr(d, fallback rune) rune {
	if d == 0 {
		return fallback
	}
	return d
}

func readDelimited(r io.Reader, delimiter rune) (*table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, verrors.NewDataLoadError(verrors.CodeSchemaMismatch, "dataset is empty", nil)
	}
	if err != nil {
		return nil, unreadable(err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, unreadable(err)
		}
		if isBlankRow(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	return &table{header: header, rows: rows}, nil
}

func readXLSX(data []byte, sheet string) (*table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, unreadable(err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, unreadable(fmt.Errorf("sheet %q: %w", sheet, err))
	}
	if len(rows) == 0 {
		return nil, verrors.NewDataLoadError(verrors.CodeSchemaMismatch,
			fmt.Sprintf("sheet %q is empty", sheet), nil)
	}

	out := &table{header: rows[0]}
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

func readSQLite(ctx context.Context, path, tableName string) (*table, error) {
	if !tableNamePattern.MatchString(tableName) {
		return nil, verrors.NewConfigurationError(verrors.CodeInvalidConfig,
			fmt.Sprintf("invalid sqlite table name %q", tableName))
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, unreadable(err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM "%s"`, tableName))
	if err != nil {
		return nil, unreadable(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, unreadable(err)
	}

	out := &table{header: cols}
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, unreadable(err)
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = sqlValueString(v)
		}
		out.rows = append(out.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, unreadable(err)
	}
	return out, nil
}

func sqlValueString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func unreadable(err error) error {
	return verrors.NewDataLoadError(verrors.CodeUnreadable, "failed to decode dataset", err)
}
