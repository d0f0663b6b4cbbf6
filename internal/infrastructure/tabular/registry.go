package tabular

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"drug-crossref/internal/pkg/common"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"
)

const registryHeaderScanRows = 10

// 台灣許可證欄位別名，依優先順序排列
var registryAliases = []struct {
	field   string
	aliases []string
}{
	{"ingredient", []string{"主成分略述", "主成分", "成分", "ingredient", "activeingredient"}},
	{"product_name", []string{"中文品名", "英文品名", "品名", "productname", "product"}},
	{"dosage_form", []string{"劑型", "dosageform"}},
	{"manufacturer", []string{"製造商名稱", "申請商名稱", "manufacturer", "applicant"}},
	{"license_number", []string{"許可證字號", "licensenumber", "licenseno", "license"}},
}

// registryKey 全形轉半形、去除空白與底線並轉小寫
func registryKey(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '.', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}

// registryColumns 找出各欄位所在的欄；成分欄為必要
func registryColumns(header []string) (map[string]int, bool) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := registryKey(h)
		if _, exists := index[key]; !exists && key != "" {
			index[key] = i
		}
	}

	cols := make(map[string]int)
	for _, f := range registryAliases {
		for _, alias := range f.aliases {
			if i, ok := index[alias]; ok {
				cols[f.field] = i
				break
			}
		}
	}
	_, ok := cols["ingredient"]
	return cols, ok
}

// ParseRegistryRows 在前幾列中尋找標題列並轉換成許可證資料
func ParseRegistryRows(rows [][]string) ([]common.RegistryEntry, error) {
	limit := min(len(rows), registryHeaderScanRows)
	for h := 0; h < limit; h++ {
		cols, ok := registryColumns(rows[h])
		if !ok {
			continue
		}
		get := func(row []string, field string) string {
			i, ok := cols[field]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		var entries []common.RegistryEntry
		for _, row := range rows[h+1:] {
			e := common.RegistryEntry{
				Ingredient:    get(row, "ingredient"),
				ProductName:   get(row, "product_name"),
				DosageForm:    get(row, "dosage_form"),
				Manufacturer:  get(row, "manufacturer"),
				LicenseNumber: get(row, "license_number"),
			}
			if e.Ingredient == "" {
				continue
			}
			entries = append(entries, e)
		}
		return entries, nil
	}
	return nil, common.ErrRegistryUnavailable.Wrap(fmt.Errorf("registry has no ingredient column in the first %d rows", registryHeaderScanRows))
}

// LoadRegistryFile 依副檔名讀取 CSV、活頁簿或 SQLite 許可證資料
func LoadRegistryFile(path, sheet, table string) ([]common.RegistryEntry, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if format == FormatSQLite {
		return LoadRegistrySQLite(path, table)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, common.ErrRegistryUnavailable.Wrap(err)
	}
	defer f.Close()
	return LoadRegistry(f, filepath.Base(path), sheet)
}

// LoadRegistry 從上傳的 CSV 或活頁簿讀取許可證資料；sheet 為空時用第一個工作表
func LoadRegistry(r io.Reader, name, sheet string) ([]common.RegistryEntry, error) {
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
		return ParseRegistryRows(rows)
	case FormatXLSX:
		sheets, err := readWorkbook(r, sheet)
		if err != nil {
			return nil, err
		}
		if len(sheets) == 0 {
			return nil, common.ErrRegistryUnavailable.Wrap(fmt.Errorf("workbook %s has no sheets", name))
		}
		return ParseRegistryRows(sheets[0].Rows)
	}
	return nil, common.ErrUnsupportedFile.Wrap(fmt.Errorf("registry upload must be csv or xlsx, got %s", format))
}

// LoadRegistrySQLite 讀取 SQLite 資料表，欄名套用相同別名
func LoadRegistrySQLite(path, table string) ([]common.RegistryEntry, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, common.ErrRegistryUnavailable.Wrap(err)
	}
	if table == "" {
		table = "licenses"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(fmt.Sprintf(`SELECT * FROM %q`, table))
	if err != nil {
		return nil, common.ErrRegistryUnavailable.Wrap(fmt.Errorf("query %s: %w", table, err))
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	data := [][]string{header}
	for rows.Next() {
		values := make([]sql.NullString, len(header))
		ptrs := make([]any, len(header))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(header))
		for i, v := range values {
			row[i] = v.String
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ParseRegistryRows(data)
}
