package volunteer_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// fakeGateway emulates the backing spreadsheet in memory: data rows per
// sheet, addressed by the same A1 ranges the repositories generate.
// Deletions shift later rows up, exactly like the real store.
type fakeGateway struct {
	mu    sync.Mutex
	data  map[string][][]string
	fail  bool
	calls struct {
		resolves int
	}
}

var fakeSheetIDs = map[string]int64{
	"AchievementTypes": 11,
	"Requests":         22,
	"Members":          33,
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{data: make(map[string][][]string)}
}

var errFakeDown = errors.New("fake backend down")

// parseA1 splits "Sheet!A2:H5" style specs. row 0 means unbounded.
func parseA1(spec string) (sheet string, c1, r1, c2, r2 int, err error) {
	bang := strings.IndexByte(spec, '!')
	if bang < 0 {
		return "", 0, 0, 0, 0, fmt.Errorf("no sheet in %q", spec)
	}
	sheet = spec[:bang]
	parts := strings.SplitN(spec[bang+1:], ":", 2)
	c1, r1, err = parseCell(parts[0])
	if err != nil {
		return
	}
	if len(parts) == 2 {
		c2, r2, err = parseCell(parts[1])
	} else {
		c2, r2 = c1, r1
	}
	return
}

func parseCell(s string) (col, row int, err error) {
	if s == "" || s[0] < 'A' || s[0] > 'Z' {
		return 0, 0, fmt.Errorf("bad cell %q", s)
	}
	col = int(s[0] - 'A')
	if len(s) == 1 {
		return col, 0, nil
	}
	row, err = strconv.Atoi(s[1:])
	return col, row, err
}

func (g *fakeGateway) ReadRange(_ context.Context, spec string) ([][]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return nil, errFakeDown
	}
	sheet, _, r1, _, r2, err := parseA1(spec)
	if err != nil {
		return nil, err
	}
	rows := g.data[sheet]
	if r1 == 0 {
		r1 = 2
	}
	lo := r1 - 2
	hi := len(rows)
	if r2 != 0 && r2-1 < hi {
		hi = r2 - 1
	}
	if lo >= len(rows) {
		return nil, nil
	}
	out := make([][]string, 0, hi-lo)
	for _, row := range rows[lo:hi] {
		out = append(out, append([]string(nil), row...))
	}
	return out, nil
}

func (g *fakeGateway) AppendRow(_ context.Context, spec string, row []string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return 0, errFakeDown
	}
	sheet, _, _, _, _, err := parseA1(spec)
	if err != nil {
		return 0, err
	}
	g.data[sheet] = append(g.data[sheet], append([]string(nil), row...))
	return len(g.data[sheet]) + 1, nil
}

func (g *fakeGateway) UpdateCellRange(_ context.Context, spec string, values [][]string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return errFakeDown
	}
	sheet, c1, r1, _, _, err := parseA1(spec)
	if err != nil {
		return err
	}
	rows := g.data[sheet]
	idx := r1 - 2
	if idx < 0 || idx >= len(rows) {
		return fmt.Errorf("row %d out of range", r1)
	}
	for i, cell := range values[0] {
		col := c1 + i
		for len(rows[idx]) <= col {
			rows[idx] = append(rows[idx], "")
		}
		rows[idx][col] = cell
	}
	g.data[sheet] = rows
	return nil
}

func (g *fakeGateway) DeleteRow(_ context.Context, sheetID int64, absRow int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return errFakeDown
	}
	for name, id := range fakeSheetIDs {
		if id != sheetID {
			continue
		}
		rows := g.data[name]
		idx := absRow - 1 // header occupies absolute row 0
		if idx < 0 || idx >= len(rows) {
			return fmt.Errorf("row %d out of range", absRow)
		}
		g.data[name] = append(rows[:idx], rows[idx+1:]...)
		return nil
	}
	return fmt.Errorf("unknown sheet id %d", sheetID)
}

func (g *fakeGateway) ResolveSheetID(_ context.Context, sheetName string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls.resolves++
	if g.fail {
		return 0, errFakeDown
	}
	id, ok := fakeSheetIDs[sheetName]
	if !ok {
		return 0, fmt.Errorf("unknown sheet %q", sheetName)
	}
	return id, nil
}

func (g *fakeGateway) rows(sheet string) [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]string(nil), g.data[sheet]...)
}
