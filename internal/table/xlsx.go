package table

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// Load reads a source extract, choosing the decoder from the extension:
// .xlsx reads the first worksheet, anything else is treated as delimited text.
func Load(p string) (*Table, error) {
	if strings.EqualFold(filepath.Ext(p), ".xlsx") {
		return LoadXLSX(p, "")
	}
	return LoadCSV(p)
}

// LoadXLSX reads one worksheet of an .xlsx workbook. An empty sheet name
// selects the first sheet. The first row is the header.
func LoadXLSX(p, sheet string) (*Table, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer zr.Close()

	var wb struct {
		Sheets []struct {
			Name string `xml:"name,attr"`
			RID  string `xml:"id,attr"`
		} `xml:"sheets>sheet"`
	}
	if err := decodeZipXML(&zr.Reader, "xl/workbook.xml", &wb); err != nil {
		return nil, err
	}
	if len(wb.Sheets) == 0 {
		return nil, fmt.Errorf("xlsx %s: workbook has no sheets", filepath.Base(p))
	}

	pick := -1
	names := make([]string, len(wb.Sheets))
	for i, s := range wb.Sheets {
		names[i] = s.Name
		if (sheet == "" && pick < 0) || strings.EqualFold(s.Name, sheet) {
			pick = i
		}
	}
	if pick < 0 {
		return nil, fmt.Errorf("sheet %q not found in %s (have %s)", sheet, filepath.Base(p), strings.Join(names, ", "))
	}

	var rels struct {
		Items []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if err := decodeZipXML(&zr.Reader, "xl/_rels/workbook.xml.rels", &rels); err != nil {
		return nil, err
	}
	target := ""
	for _, r := range rels.Items {
		if r.ID == wb.Sheets[pick].RID {
			target = sheetPath(r.Target)
		}
	}
	if target == "" {
		target = fmt.Sprintf("xl/worksheets/sheet%d.xml", pick+1)
	}

	var shared struct {
		Items []struct {
			T    string `xml:"t"`
			Runs []struct {
				T string `xml:"t"`
			} `xml:"r"`
		} `xml:"si"`
	}
	// sharedStrings.xml is optional
	if err := decodeZipXML(&zr.Reader, "xl/sharedStrings.xml", &shared); err != nil && !isMissing(err) {
		return nil, err
	}
	strs := make([]string, len(shared.Items))
	for i, si := range shared.Items {
		if len(si.Runs) == 0 {
			strs[i] = si.T
			continue
		}
		var b strings.Builder
		for _, r := range si.Runs {
			b.WriteString(r.T)
		}
		strs[i] = b.String()
	}

	var ws struct {
		Rows []struct {
			Cells []struct {
				Ref    string `xml:"r,attr"`
				Type   string `xml:"t,attr"`
				V      string `xml:"v"`
				Inline string `xml:"is>t"`
			} `xml:"c"`
		} `xml:"sheetData>row"`
	}
	if err := decodeZipXML(&zr.Reader, target, &ws); err != nil {
		return nil, err
	}

	var t *Table
	for _, row := range ws.Rows {
		var vals []string
		for i, c := range row.Cells {
			col := i
			if c.Ref != "" {
				col = columnIndex(c.Ref)
			}
			for len(vals) <= col {
				vals = append(vals, "")
			}
			vals[col] = cellValue(c.Type, c.V, c.Inline, strs)
		}
		if t == nil {
			t = New(filepath.Base(p), vals)
			continue
		}
		t.Append(vals)
	}
	if t == nil {
		return nil, fmt.Errorf("xlsx %s: sheet %q is empty", filepath.Base(p), names[pick])
	}
	return t, nil
}

type missingPartError struct{ name string }

func (e *missingPartError) Error() string { return "xlsx part " + e.name + " not found" }

func isMissing(err error) bool {
	var m *missingPartError
	return errors.As(err, &m)
}

func decodeZipXML(zr *zip.Reader, name string, v any) error {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		if err := xml.NewDecoder(rc).Decode(v); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		return nil
	}
	return &missingPartError{name: name}
}

// sheetPath turns a workbook relationship target into a zip entry name.
// Targets are relative to xl/ unless they start with a slash.
func sheetPath(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	if strings.HasPrefix(target, "xl/") {
		return target
	}
	return path.Join("xl", target)
}

func cellValue(typ, v, inline string, shared []string) string {
	switch typ {
	case "s":
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || i < 0 || i >= len(shared) {
			return ""
		}
		return shared[i]
	case "inlineStr":
		return inline
	case "b":
		if v == "1" {
			return "TRUE"
		}
		return "FALSE"
	}
	return v
}

// columnIndex converts a cell reference such as "AB12" to a 0-based column.
func columnIndex(ref string) int {
	idx := 0
	for _, c := range strings.ToUpper(ref) {
		if c < 'A' || c > 'Z' {
			break
		}
		idx = idx*26 + int(c-'A'+1)
	}
	return idx - 1
}
