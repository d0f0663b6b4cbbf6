package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"drug-crossref/internal/pkg/common"

	"github.com/xuri/excelize/v2"
)

// BOM UTF-8 BOM，Excel 開啟 CSV 時需要
var BOM = []byte{0xEF, 0xBB, 0xBF}

// Format 依副檔名判斷的檔案格式
type Format string

const (
	FormatCSV    Format = "csv"
	FormatXLSX   Format = "xlsx"
	FormatSQLite Format = "sqlite"
)

// FormatOf 只看副檔名，不檢查內容
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	}
	return "", common.ErrUnsupportedFile.Wrap(fmt.Errorf("unsupported file extension: %q", filepath.Ext(name)))
}

// ReadFile 讀取磁碟上的活頁簿或 CSV
func ReadFile(path string) ([]common.Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSheets(f, filepath.Base(path))
}

// ReadSheets 讀取所有工作表；CSV 視為單一工作表，名稱為檔名
func ReadSheets(r io.Reader, name string) ([]common.Sheet, error) {
	format, err := FormatOf(name)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatCSV:
		rows, err := readCSV(r)
		if err != nil {
			return nil, err
		}
		return []common.Sheet{{Name: strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)), Rows: rows}}, nil
	case FormatXLSX:
		return readWorkbook(r, "")
	}
	return nil, common.ErrUnsupportedFile.Wrap(fmt.Errorf("%s cannot hold approval sheets", format))
}

func readCSV(r io.Reader) ([][]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimPrefix(b, BOM)

	cr := csv.NewReader(bytes.NewReader(b))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

// readWorkbook 讀取活頁簿；only 非空時只讀該工作表
func readWorkbook(r io.Reader, only string) ([]common.Sheet, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	var sheets []common.Sheet
	for _, name := range wb.GetSheetList() {
		if only != "" && name != only {
			continue
		}
		rows, err := wb.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		sheets = append(sheets, common.Sheet{Name: name, Rows: rows})
	}
	if only != "" && len(sheets) == 0 {
		return nil, fmt.Errorf("sheet %q not found", only)
	}
	return sheets, nil
}
