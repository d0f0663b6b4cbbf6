package tabular

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"drug-crossref/internal/core/assemble"
	"drug-crossref/internal/pkg/common"

	"github.com/xuri/excelize/v2"
)

const (
	resultSheet = "crossref"
	resultTable = "crossref"
)

// WriteCSV 輸出帶 BOM 的 CSV
func WriteCSV(w io.Writer, rows []common.ResultRow) error {
	if _, err := w.Write(BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(assemble.Columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(assemble.Values(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX 輸出單一工作表的活頁簿
func WriteXLSX(w io.Writer, rows []common.ResultRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultSheet); err != nil {
		return err
	}

	header := make([]interface{}, len(assemble.Columns))
	for i, c := range assemble.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(resultSheet, "A1", &header); err != nil {
		return err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := assemble.Values(r)
		line := make([]interface{}, len(values))
		for j, v := range values {
			line[j] = v
		}
		if err := f.SetSheetRow(resultSheet, cell, &line); err != nil {
			return err
		}
	}

	return f.Write(w)
}

// WriteSQLite 重新建立結果資料表
func WriteSQLite(path string, rows []common.ResultRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	_ = os.Remove(path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	colTypes := map[string]string{"row": "INTEGER", "similarity_score": "REAL"}
	var defs, quoted []string
	for _, c := range assemble.Columns {
		t := colTypes[c]
		if t == "" {
			t = "TEXT"
		}
		defs = append(defs, fmt.Sprintf("%q %s", c, t))
		quoted = append(quoted, fmt.Sprintf("%q", c))
	}
	if _, err := db.Exec(fmt.Sprintf(`CREATE TABLE %q (%s)`, resultTable, strings.Join(defs, ","))); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ph := strings.TrimRight(strings.Repeat("?,", len(assemble.Columns)), ",")
	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`, resultTable, strings.Join(quoted, ","), ph))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		values := assemble.Values(r)
		args := make([]any, len(values))
		for i, v := range values {
			args[i] = v
		}
		args[1] = r.Row
		if r.SimilarityScore != nil {
			args[16] = *r.SimilarityScore
		} else {
			args[16] = nil
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	_, err = db.Exec(fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_crossref_ingredient ON %q(ingredient)`, resultTable))
	return err
}
