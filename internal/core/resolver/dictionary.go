package resolver

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/unicode/norm"
)

// Entry 字典中的一筆譯名
type Entry struct {
	English string `toml:"en"`
	Chinese string `toml:"zh"`
}

// Dictionary 建構後不可變的日文名稱對照表
type Dictionary struct {
	entries map[string]Entry
}

// dictionaryFile TOML 字典檔格式
//
//	[terms]
//	"ドロスピレノン" = { en = "Drospirenone", zh = "..." }
type dictionaryFile struct {
	Terms map[string]Entry `toml:"terms"`
}

var builtinTerms = map[string]Entry{
	"ドロスピレノン":                        {English: "Drospirenone"},
	"イプタコパン塩酸塩水和物":                   {English: "Iptacopan Hydrochloride Hydrate"},
	"ファリシマブ（遺伝子組換え）":                 {English: "Faricimab"},
	"ベランタマブ マホドチン（遺伝子組換え）":           {English: "Belantamab Mafodotin"},
	"RSウイルスの融合前安定化F糖タンパク質をコードするmRNA": {English: "Respiratory Syncytial Virus Prefusion F Glycoprotein mRNA"},
}

// dictionaryKey 全形轉半形並去除前後空白
func dictionaryKey(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

// NewDictionary 建立字典，會複製輸入
func NewDictionary(terms map[string]Entry) *Dictionary {
	d := &Dictionary{entries: make(map[string]Entry, len(terms))}
	for k, v := range terms {
		if key := dictionaryKey(k); key != "" && v.English != "" {
			d.entries[key] = v
		}
	}
	return d
}

// DefaultDictionary 內建的已知譯名
func DefaultDictionary() *Dictionary {
	return NewDictionary(builtinTerms)
}

// LoadDictionary 內建字典加上 path 指定的 TOML 檔，path 為空時只用內建
func LoadDictionary(path string) (*Dictionary, error) {
	d := DefaultDictionary()
	if path == "" {
		return d, nil
	}
	terms, err := LoadDictionaryFile(path)
	if err != nil {
		return nil, err
	}
	return d.Merge(terms), nil
}

// LoadDictionaryFile 讀取 TOML 字典檔
func LoadDictionaryFile(path string) (map[string]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary %s: %w", path, err)
	}
	var file dictionaryFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse dictionary %s: %w", path, err)
	}
	return file.Terms, nil
}

// Merge 回傳合併後的新字典，terms 覆蓋既有項目
func (d *Dictionary) Merge(terms map[string]Entry) *Dictionary {
	merged := make(map[string]Entry, len(d.entries)+len(terms))
	for k, v := range d.entries {
		merged[k] = v
	}
	// 先正規化再覆蓋，全形與半形寫法視為同一項
	keys := make([]string, 0, len(terms))
	for k := range terms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if key := dictionaryKey(k); key != "" && terms[k].English != "" {
			merged[key] = terms[k]
		}
	}
	return &Dictionary{entries: merged}
}

// Lookup 查詢譯名
func (d *Dictionary) Lookup(raw string) (Entry, bool) {
	if d == nil {
		return Entry{}, false
	}
	e, ok := d.entries[dictionaryKey(raw)]
	return e, ok
}

// Len 字典項目數
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}
