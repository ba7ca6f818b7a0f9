package volunteer

import (
	"context"
	"fmt"
	"log"
)

// Sheet titles inside the backing spreadsheet. Row 1 of each sheet is a
// human-readable header and is never read.
const (
	SheetMembers          = "Members"
	SheetRequests         = "Requests"
	SheetAchievementTypes = "AchievementTypes"

	headerRows = 1
)

// Gateway is the slice of the sheets client the repositories need.
type Gateway interface {
	ReadRange(ctx context.Context, rangeSpec string) ([][]string, error)
	AppendRow(ctx context.Context, rangeSpec string, row []string) (int, error)
	UpdateCellRange(ctx context.Context, rangeSpec string, values [][]string) error
	DeleteRow(ctx context.Context, sheetID int64, absRow int) error
	ResolveSheetID(ctx context.Context, sheetName string) (int64, error)
}

// dataRange spans every data row, e.g. "Requests!A2:H".
func dataRange(sheet string, cols []column) string {
	return fmt.Sprintf("%s!A%d:%s", sheet, headerRows+1, colLetter(len(cols)-1))
}

// appendRange addresses whole columns for the append API, e.g. "Requests!A:H".
func appendRange(sheet string, cols []column) string {
	return fmt.Sprintf("%s!A:%s", sheet, colLetter(len(cols)-1))
}

// colRange addresses a run of cells in one data row. offset is
// zero-based relative to the first data row.
func colRange(sheet string, firstCol, lastCol, offset int) string {
	row := offset + headerRows + 1
	if firstCol == lastCol {
		return fmt.Sprintf("%s!%s%d", sheet, colLetter(firstCol), row)
	}
	return fmt.Sprintf("%s!%s%d:%s%d", sheet, colLetter(firstCol), row, colLetter(lastCol), row)
}

func rowRange(sheet string, cols []column, offset int) string {
	return colRange(sheet, 0, len(cols)-1, offset)
}

// AchievementTypes reads and mutates the AchievementTypes sheet.
type AchievementTypes struct {
	gw    Gateway
	codec *Codec
}

func NewAchievementTypes(gw Gateway, codec *Codec) *AchievementTypes {
	return &AchievementTypes{gw: gw, codec: codec}
}

// List returns all types in storage order. A backend failure degrades
// to an empty list; listing is read-only and a transient empty view is
// less harmful than a crashed one.
func (r *AchievementTypes) List(ctx context.Context) []AchievementType {
	rows, err := r.gw.ReadRange(ctx, dataRange(SheetAchievementTypes, achievementTypeColumns))
	if err != nil {
		degradedReads.WithLabelValues(SheetAchievementTypes).Inc()
		log.Printf("list achievement types degraded to empty: %v", err)
		return []AchievementType{}
	}
	out := make([]AchievementType, 0, len(rows))
	for i, cells := range rows {
		t, err := r.codec.DecodeAchievementType(i, cells)
		if err != nil {
			log.Printf("skipping undecodable row: %v", err)
			continue
		}
		out = append(out, t)
	}
	return out
}

// Add appends a new type row. Returns false on failure so the caller
// can shape its own error.
func (r *AchievementTypes) Add(ctx context.Context, t AchievementType) bool {
	if _, err := r.gw.AppendRow(ctx, appendRange(SheetAchievementTypes, achievementTypeColumns), r.codec.EncodeAchievementType(t)); err != nil {
		log.Printf("add achievement type failed: %v", err)
		return false
	}
	return true
}

// GetAt reads the single row at offset. found is false when the row
// does not exist; err reports backend failure only.
func (r *AchievementTypes) GetAt(ctx context.Context, offset int) (AchievementType, bool, error) {
	if offset < 0 {
		return AchievementType{}, false, nil
	}
	rows, err := r.gw.ReadRange(ctx, rowRange(SheetAchievementTypes, achievementTypeColumns, offset))
	if err != nil {
		return AchievementType{}, false, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return AchievementType{}, false, nil
	}
	t, err := r.codec.DecodeAchievementType(offset, rows[0])
	if err != nil {
		return AchievementType{}, false, err
	}
	return t, true, nil
}

// DeleteAt removes the row at offset. Every later row shifts up by one;
// offsets held by callers are stale after this returns.
func (r *AchievementTypes) DeleteAt(ctx context.Context, offset int) bool {
	sheetID, err := r.gw.ResolveSheetID(ctx, SheetAchievementTypes)
	if err != nil {
		log.Printf("resolve sheet id failed: %v", err)
		return false
	}
	if err := r.gw.DeleteRow(ctx, sheetID, offset+headerRows); err != nil {
		log.Printf("delete achievement type at %d failed: %v", offset, err)
		return false
	}
	return true
}

// Requests reads and mutates the Requests sheet.
type Requests struct {
	gw    Gateway
	codec *Codec
}

func NewRequests(gw Gateway, codec *Codec) *Requests {
	return &Requests{gw: gw, codec: codec}
}

// List returns all requests in storage order, oldest first. Degrades to
// empty on backend failure.
func (r *Requests) List(ctx context.Context) []Request {
	rows, err := r.gw.ReadRange(ctx, dataRange(SheetRequests, requestColumns))
	if err != nil {
		degradedReads.WithLabelValues(SheetRequests).Inc()
		log.Printf("list requests degraded to empty: %v", err)
		return []Request{}
	}
	out := make([]Request, 0, len(rows))
	for i, cells := range rows {
		req, err := r.codec.DecodeRequest(i, cells)
		if err != nil {
			log.Printf("skipping undecodable row: %v", err)
			continue
		}
		out = append(out, req)
	}
	return out
}

// ListPending filters List down to unresolved requests. The filter is a
// pure function of the decoded record, not a separate query.
func (r *Requests) ListPending(ctx context.Context) []Request {
	all := r.List(ctx)
	pending := make([]Request, 0, len(all))
	for _, req := range all {
		if req.Pending() {
			pending = append(pending, req)
		}
	}
	return pending
}

// Add appends a new request row.
func (r *Requests) Add(ctx context.Context, req Request) bool {
	if _, err := r.gw.AppendRow(ctx, appendRange(SheetRequests, requestColumns), r.codec.EncodeRequest(req)); err != nil {
		log.Printf("add request failed: %v", err)
		return false
	}
	return true
}

// GetAt reads the single request row at offset.
func (r *Requests) GetAt(ctx context.Context, offset int) (Request, bool, error) {
	if offset < 0 {
		return Request{}, false, nil
	}
	rows, err := r.gw.ReadRange(ctx, rowRange(SheetRequests, requestColumns, offset))
	if err != nil {
		return Request{}, false, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Request{}, false, nil
	}
	req, err := r.codec.DecodeRequest(offset, rows[0])
	if err != nil {
		return Request{}, false, err
	}
	return req, true, nil
}

// SetHoursAt writes only the hours cell of the row at offset, leaving
// every other column untouched.
func (r *Requests) SetHoursAt(ctx context.Context, offset int, hours float64) bool {
	spec := colRange(SheetRequests, reqCol["hours"], reqCol["hours"], offset)
	if err := r.gw.UpdateCellRange(ctx, spec, [][]string{{formatNumber(hours)}}); err != nil {
		log.Printf("set hours at %d failed: %v", offset, err)
		return false
	}
	return true
}

// SetResolutionAt writes the approved flag and reviewer name of the row
// at offset in a single cell-range update.
func (r *Requests) SetResolutionAt(ctx context.Context, offset int, approvedBy string) bool {
	spec := colRange(SheetRequests, reqCol["approved"], reqCol["approvedBy"], offset)
	if err := r.gw.UpdateCellRange(ctx, spec, [][]string{{formatBool(true), approvedBy}}); err != nil {
		log.Printf("set resolution at %d failed: %v", offset, err)
		return false
	}
	return true
}

// DeleteAt removes the request row at offset.
func (r *Requests) DeleteAt(ctx context.Context, offset int) bool {
	sheetID, err := r.gw.ResolveSheetID(ctx, SheetRequests)
	if err != nil {
		log.Printf("resolve sheet id failed: %v", err)
		return false
	}
	if err := r.gw.DeleteRow(ctx, sheetID, offset+headerRows); err != nil {
		log.Printf("delete request at %d failed: %v", offset, err)
		return false
	}
	return true
}

// Members is the read-only roster projection.
type Members struct {
	gw    Gateway
	codec *Codec
}

func NewMembers(gw Gateway, codec *Codec) *Members {
	return &Members{gw: gw, codec: codec}
}

// List returns the roster. Degrades to empty on backend failure.
func (r *Members) List(ctx context.Context) []Member {
	rows, err := r.gw.ReadRange(ctx, dataRange(SheetMembers, memberColumns))
	if err != nil {
		degradedReads.WithLabelValues(SheetMembers).Inc()
		log.Printf("list members degraded to empty: %v", err)
		return []Member{}
	}
	out := make([]Member, 0, len(rows))
	for i, cells := range rows {
		m, err := r.codec.DecodeMember(i, cells)
		if err != nil {
			log.Printf("skipping undecodable row: %v", err)
			continue
		}
		out = append(out, m)
	}
	return out
}
