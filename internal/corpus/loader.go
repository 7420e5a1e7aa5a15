package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
)

// LoadOptions tunes corpus loading.
type LoadOptions struct {
	// Sheet selects the worksheet of an .xlsx file. Empty means the first sheet.
	Sheet string
}

// Load reads a corpus from a .csv or .xlsx file. A missing file or a
// missing required column is a fatal startup error.
func Load(path string, opts LoadOptions) (*Corpus, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, grerrors.New(grerrors.ErrCodeCorpusNotFound,
				fmt.Sprintf("corpus not found: %s", path), err).
				WithSuggestion("Set corpus.path in .grantlens.yaml or GRANTLENS_CORPUS_PATH")
		}
		return nil, grerrors.New(grerrors.ErrCodeFilePermission,
			fmt.Sprintf("cannot access corpus: %s", path), err)
	}
	if info.IsDir() {
		return nil, grerrors.New(grerrors.ErrCodeCorpusNotFound,
			fmt.Sprintf("corpus path is a directory: %s", path), nil)
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path, opts.Sheet)
	default:
		rows, err = readCSVFile(path)
	}
	if err != nil {
		return nil, err
	}

	c, err := fromRows(path, rows)
	if err != nil {
		return nil, err
	}

	slog.Info("corpus_loaded",
		slog.String("path", path),
		slog.Int("grants", c.Len()))
	return c, nil
}

// ReadCSV parses a corpus from r.
func ReadCSV(source string, r io.Reader) (*Corpus, error) {
	rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return fromRows(source, rows)
}

func readCSVFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, grerrors.New(grerrors.ErrCodeFilePermission,
			fmt.Sprintf("cannot open corpus: %s", path), err)
	}
	defer f.Close()
	return readCSV(f)
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, grerrors.New(grerrors.ErrCodeCorpusCorrupt, "malformed corpus CSV", err)
	}
	return rows, nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, grerrors.New(grerrors.ErrCodeCorpusCorrupt,
			fmt.Sprintf("cannot open workbook: %s", path), err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, grerrors.New(grerrors.ErrCodeCorpusSchema, "workbook has no sheets", nil)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, grerrors.New(grerrors.ErrCodeCorpusCorrupt,
			fmt.Sprintf("cannot read sheet %q", sheet), err)
	}
	return rows, nil
}

// fromRows maps a header row plus data rows onto grants. Short rows are
// padded with empty cells.
func fromRows(source string, rows [][]string) (*Corpus, error) {
	if len(rows) == 0 {
		return nil, grerrors.New(grerrors.ErrCodeCorpusSchema, "corpus has no header row", nil).
			WithDetail("source", source)
	}

	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := header[key]; !dup {
			header[key] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := header[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, grerrors.New(grerrors.ErrCodeCorpusSchema,
			fmt.Sprintf("corpus is missing required column(s): %s", strings.Join(missing, ", ")), nil).
			WithDetail("source", source).
			WithSuggestion("The corpus needs award_title, category and abstract columns")
	}

	cell := func(row []string, col string) string {
		i := header[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	grants := make([]Grant, 0, len(rows)-1)
	for _, row := range rows[1:] {
		grants = append(grants, Grant{
			Title:    cell(row, ColumnTitle),
			Category: cell(row, ColumnCategory),
			Abstract: cell(row, ColumnAbstract),
		})
	}

	return New(source, grants), nil
}
