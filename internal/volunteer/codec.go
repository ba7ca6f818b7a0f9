package volunteer

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// Column layouts are positional: the spreadsheet has a single header
// row and no runtime schema, so this table is the only place that may
// know which column holds what.
type colType int

const (
	colText colType = iota
	colNumber
	colBool
)

type column struct {
	name string
	typ  colType
}

var (
	achievementTypeColumns = []column{
		{"name", colText},
		{"hours", colNumber},
		{"createdAt", colText},
		{"id", colText},
	}
	requestColumns = []column{
		{"universityId", colText},
		{"description", colText},
		{"hours", colNumber},
		{"imageLink", colText},
		{"date", colText},
		{"approved", colBool},
		{"approvedBy", colText},
		{"id", colText},
	}
	memberColumns = []column{
		{"universityId", colText},
		{"name", colText},
		{"email", colText},
		{"phone", colText},
		{"committee", colText},
		{"totalHours", colNumber},
		{"achievements", colText},
	}
)

var (
	typeCol = indexColumns(achievementTypeColumns)
	reqCol  = indexColumns(requestColumns)
	memCol  = indexColumns(memberColumns)
)

func indexColumns(cols []column) map[string]int {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c.name] = i
	}
	return idx
}

// colLetter converts a zero-based column offset to its A1 letter.
// Layouts here never exceed 26 columns.
func colLetter(i int) string {
	return string(rune('A' + i))
}

// Codec decodes raw cell rows into typed records and encodes records
// back into rows. Missing trailing cells decode to zero values. When
// Strict is false (the default, matching how the sheet has always been
// read), unparseable numeric cells coerce to 0; every coercion is
// counted and logged so bad hand-edits stay visible.
type Codec struct {
	Strict bool
}

type rowReader struct {
	codec *Codec
	sheet string
	row   int
	cells []string
	err   error
}

func (c *Codec) reader(sheet string, row int, cells []string) *rowReader {
	return &rowReader{codec: c, sheet: sheet, row: row, cells: cells}
}

func (r *rowReader) text(col int) string {
	if col < len(r.cells) {
		return r.cells[col]
	}
	return ""
}

func (r *rowReader) number(col int) float64 {
	raw := strings.TrimSpace(r.text(col))
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		decodeAnomalies.WithLabelValues(r.sheet).Inc()
		if r.codec.Strict {
			if r.err == nil {
				r.err = fmt.Errorf("%s row %d column %s: %q is not a number", r.sheet, r.row, colLetter(col), raw)
			}
		} else {
			log.Printf("decode anomaly: %s row %d column %s: %q is not a number, coerced to 0", r.sheet, r.row, colLetter(col), raw)
		}
		return 0
	}
	return v
}

// boolean matches "TRUE" case-insensitively; anything else is false.
func (r *rowReader) boolean(col int) bool {
	return strings.EqualFold(strings.TrimSpace(r.text(col)), "TRUE")
}

// DecodeAchievementType maps one raw row to a record. offset is the
// zero-based position within the data range.
func (c *Codec) DecodeAchievementType(offset int, cells []string) (AchievementType, error) {
	r := c.reader(SheetAchievementTypes, offset, cells)
	t := AchievementType{
		RowIndex:  offset,
		Name:      r.text(typeCol["name"]),
		Hours:     r.number(typeCol["hours"]),
		CreatedAt: r.text(typeCol["createdAt"]),
		ID:        r.text(typeCol["id"]),
	}
	return t, r.err
}

// EncodeAchievementType produces the row cells in storage order.
func (c *Codec) EncodeAchievementType(t AchievementType) []string {
	row := make([]string, len(achievementTypeColumns))
	row[typeCol["name"]] = t.Name
	row[typeCol["hours"]] = formatNumber(t.Hours)
	row[typeCol["createdAt"]] = t.CreatedAt
	row[typeCol["id"]] = t.ID
	return row
}

// DecodeRequest maps one raw row to a record.
func (c *Codec) DecodeRequest(offset int, cells []string) (Request, error) {
	r := c.reader(SheetRequests, offset, cells)
	req := Request{
		RowIndex:     offset,
		UniversityID: r.text(reqCol["universityId"]),
		Description:  r.text(reqCol["description"]),
		Hours:        r.number(reqCol["hours"]),
		ImageLink:    r.text(reqCol["imageLink"]),
		Date:         r.text(reqCol["date"]),
		Approved:     r.boolean(reqCol["approved"]),
		ApprovedBy:   r.text(reqCol["approvedBy"]),
		ID:           r.text(reqCol["id"]),
	}
	return req, r.err
}

// EncodeRequest produces the row cells in storage order. An unresolved
// request keeps an empty hours cell; the admin fills it at approval.
func (c *Codec) EncodeRequest(req Request) []string {
	row := make([]string, len(requestColumns))
	row[reqCol["universityId"]] = req.UniversityID
	row[reqCol["description"]] = req.Description
	row[reqCol["hours"]] = formatNumber(req.Hours)
	row[reqCol["imageLink"]] = req.ImageLink
	row[reqCol["date"]] = req.Date
	row[reqCol["approved"]] = formatBool(req.Approved)
	row[reqCol["approvedBy"]] = req.ApprovedBy
	row[reqCol["id"]] = req.ID
	return row
}

// DecodeMember maps one raw roster row to a record. Members are never
// encoded; the roster is maintained outside this system.
func (c *Codec) DecodeMember(offset int, cells []string) (Member, error) {
	r := c.reader(SheetMembers, offset, cells)
	m := Member{
		UniversityID: r.text(memCol["universityId"]),
		Name:         r.text(memCol["name"]),
		Email:        r.text(memCol["email"]),
		Phone:        r.text(memCol["phone"]),
		Committee:    r.text(memCol["committee"]),
		TotalHours:   r.number(memCol["totalHours"]),
		Achievements: r.text(memCol["achievements"]),
	}
	return m, r.err
}

func formatNumber(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
