package handler_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"clubhours/internal/auth"
	"clubhours/internal/config"
	"clubhours/internal/handler"
	"clubhours/internal/volunteer"
)

// memGateway holds sheet data in memory with the same positional
// semantics as the real backend: deletes shift later rows up.
type memGateway struct {
	mu   sync.Mutex
	data map[string][][]string
}

var memSheetIDs = map[string]int64{
	volunteer.SheetAchievementTypes: 11,
	volunteer.SheetRequests:         22,
	volunteer.SheetMembers:          33,
}

func newMemGateway() *memGateway {
	return &memGateway{data: map[string][][]string{}}
}

// parseA1 splits "Sheet!A2:H5" into its sheet and 1-based row bounds.
// A missing row number comes back as 0.
func parseA1(spec string) (sheet string, r1, r2 int) {
	bang := strings.IndexByte(spec, '!')
	sheet = spec[:bang]
	rest := spec[bang+1:]
	refs := strings.SplitN(rest, ":", 2)
	r1 = refRow(refs[0])
	if len(refs) == 2 {
		r2 = refRow(refs[1])
	} else {
		r2 = r1
	}
	return sheet, r1, r2
}

func refRow(ref string) int {
	for i := 0; i < len(ref); i++ {
		if ref[i] >= '0' && ref[i] <= '9' {
			n, _ := strconv.Atoi(ref[i:])
			return n
		}
	}
	return 0
}

func refCol(ref string) int {
	col := 0
	for i := 0; i < len(ref); i++ {
		if ref[i] < 'A' || ref[i] > 'Z' {
			break
		}
		col = col*26 + int(ref[i]-'A') + 1
	}
	return col - 1
}

func (g *memGateway) ReadRange(_ context.Context, spec string) ([][]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sheet, r1, r2 := parseA1(spec)
	rows := g.data[sheet]
	if r1 == 0 {
		r1 = 2
	}
	lo := r1 - 2
	hi := len(rows)
	if r2 > 0 && r2-1 < hi {
		hi = r2 - 1
	}
	if lo < 0 || lo >= len(rows) {
		return nil, nil
	}
	out := make([][]string, 0, hi-lo)
	for _, row := range rows[lo:hi] {
		out = append(out, append([]string(nil), row...))
	}
	return out, nil
}

func (g *memGateway) AppendRow(_ context.Context, spec string, row []string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sheet, _, _ := parseA1(spec)
	g.data[sheet] = append(g.data[sheet], append([]string(nil), row...))
	return len(g.data[sheet]) + 1, nil
}

func (g *memGateway) UpdateCellRange(_ context.Context, spec string, values [][]string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	sheet, r1, _ := parseA1(spec)
	bang := strings.IndexByte(spec, '!')
	startCol := refCol(spec[bang+1:])
	idx := r1 - 2
	rows := g.data[sheet]
	if idx < 0 || idx >= len(rows) {
		return fmt.Errorf("no row at %s", spec)
	}
	for i, cell := range values[0] {
		col := startCol + i
		for len(rows[idx]) <= col {
			rows[idx] = append(rows[idx], "")
		}
		rows[idx][col] = cell
	}
	return nil
}

func (g *memGateway) DeleteRow(_ context.Context, sheetID int64, absRow int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, id := range memSheetIDs {
		if id != sheetID {
			continue
		}
		rows := g.data[name]
		idx := absRow - 1
		if idx < 0 || idx >= len(rows) {
			return fmt.Errorf("no row %d in %s", absRow, name)
		}
		g.data[name] = append(rows[:idx], rows[idx+1:]...)
		return nil
	}
	return fmt.Errorf("unknown sheet id %d", sheetID)
}

func (g *memGateway) ResolveSheetID(_ context.Context, sheetName string) (int64, error) {
	id, ok := memSheetIDs[sheetName]
	if !ok {
		return 0, fmt.Errorf("unknown sheet %q", sheetName)
	}
	return id, nil
}

type stubUploader struct{}

func (stubUploader) Upload(_ context.Context, _ []byte, filename string) (string, error) {
	return "https://img.example/" + filename, nil
}

const adminPassword = "hunter2-but-longer"

func testConfig(t *testing.T) config.App {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return config.App{
		AdminEmail:        "admin@club.org",
		AdminName:         "Club Admin",
		AdminPasswordHash: string(hash),
		JWTIssuer:         "clubhours",
		JWTSigningKey:     "test-signing-key",
		AccessTTL:         time.Hour,
	}
}

// newRouter wires the handler over an in-memory gateway with the same
// route table as the api binary.
func newRouter(t *testing.T) (*gin.Engine, *memGateway, config.App) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	gw := newMemGateway()

	codec := &volunteer.Codec{}
	requests := volunteer.NewRequests(gw, codec)
	types := volunteer.NewAchievementTypes(gw, codec)
	members := volunteer.NewMembers(gw, codec)
	svc := volunteer.NewService(requests, types, stubUploader{}, nil)
	h := handler.New(svc, requests, types, members, cfg)

	r := gin.New()
	r.POST("/v1/auth/login", h.Login)
	r.GET("/v1/achievements/types", h.GetTypes)
	r.POST("/v1/requests", h.Submit)

	admin := r.Group("/v1", auth.AdminRequired(cfg.JWTSigningKey, cfg.JWTIssuer))
	admin.GET("/auth/me", h.Me)
	admin.POST("/achievements/types", h.AddType)
	admin.DELETE("/achievements/types/:rowIndex", h.DeleteType)
	admin.GET("/requests", h.GetAll)
	admin.GET("/requests/pending", h.GetPending)
	admin.POST("/requests/:rowIndex/approve", h.Approve)
	admin.DELETE("/requests/:rowIndex", h.Reject)
	admin.GET("/members", h.GetMembers)
	return r, gw, cfg
}

func doJSON(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func adminToken(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/v1/auth/login", "", gin.H{
		"email": "admin@club.org", "password": adminPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestLogin_WrongPassword(t *testing.T) {
	r, _, _ := newRouter(t)
	w := doJSON(r, http.MethodPost, "/v1/auth/login", "", gin.H{
		"email": "admin@club.org", "password": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe_ReturnsVerifiedIdentity(t *testing.T) {
	r, _, _ := newRouter(t)
	token := adminToken(t, r)

	w := doJSON(r, http.MethodGet, "/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin@club.org")
	assert.Contains(t, w.Body.String(), "Club Admin")
}

func TestAdminRoutes_RejectMissingToken(t *testing.T) {
	r, _, _ := newRouter(t)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/v1/requests"},
		{http.MethodGet, "/v1/requests/pending"},
		{http.MethodPost, "/v1/requests/0/approve"},
		{http.MethodDelete, "/v1/requests/0"},
		{http.MethodPost, "/v1/achievements/types"},
		{http.MethodDelete, "/v1/achievements/types/0"},
		{http.MethodGet, "/v1/members"},
	} {
		w := doJSON(r, route.method, route.path, "", nil)
		assert.Equalf(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}
}

func TestSubmit_JSONBodyCreatesPendingRequest(t *testing.T) {
	r, gw, _ := newRouter(t)

	image := base64.StdEncoding.EncodeToString([]byte("fake-png-bytes"))
	w := doJSON(r, http.MethodPost, "/v1/requests", "", gin.H{
		"universityId": "1001", "description": "Beach cleanup",
		"imageBase64": image, "fileName": "proof.png",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rows := gw.data[volunteer.SheetRequests]
	require.Len(t, rows, 1)
	assert.Equal(t, "1001", rows[0][0])
	assert.Equal(t, "FALSE", rows[0][5])

	token := adminToken(t, r)
	w = doJSON(r, http.MethodGet, "/v1/requests/pending", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Beach cleanup")
}

func TestSubmit_DataURLPrefixAccepted(t *testing.T) {
	r, gw, _ := newRouter(t)
	image := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png"))
	w := doJSON(r, http.MethodPost, "/v1/requests", "", gin.H{
		"universityId": "1002", "description": "Food drive",
		"imageBase64": image, "fileName": "proof.png",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, gw.data[volunteer.SheetRequests], 1)
}

func TestSubmit_MissingFields(t *testing.T) {
	r, gw, _ := newRouter(t)
	w := doJSON(r, http.MethodPost, "/v1/requests", "", gin.H{
		"universityId": "1001",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, gw.data[volunteer.SheetRequests])
}

func seedRequest(gw *memGateway, universityID, id string) {
	gw.data[volunteer.SheetRequests] = append(gw.data[volunteer.SheetRequests],
		[]string{universityID, "desc", "", "https://img.example/p.png", "2026-08-01T10:00:00Z", "FALSE", "", id})
}

func TestApprove_ResolvesRequest(t *testing.T) {
	r, gw, _ := newRouter(t)
	seedRequest(gw, "1001", "req-a")
	token := adminToken(t, r)

	w := doJSON(r, http.MethodPost, "/v1/requests/0/approve", token, gin.H{
		"hours": 1.5, "id": "req-a",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	row := gw.data[volunteer.SheetRequests][0]
	assert.Equal(t, "1.5", row[2])
	assert.Equal(t, "TRUE", row[5])
	assert.Equal(t, "Club Admin", row[6])

	w = doJSON(r, http.MethodGet, "/v1/requests/pending", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "req-a")
}

func TestApprove_NoRowAtOffsetIsConflict(t *testing.T) {
	r, _, _ := newRouter(t)
	token := adminToken(t, r)

	w := doJSON(r, http.MethodPost, "/v1/requests/3/approve", token, gin.H{"hours": 2.0})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "stale_row")
}

func TestApprove_AlreadyResolvedIsConflict(t *testing.T) {
	r, gw, _ := newRouter(t)
	seedRequest(gw, "1001", "req-a")
	token := adminToken(t, r)

	w := doJSON(r, http.MethodPost, "/v1/requests/0/approve", token, gin.H{"hours": 1.0, "id": "req-a"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/v1/requests/0/approve", token, gin.H{"hours": 1.0, "id": "req-a"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already_resolved")
}

func TestApprove_InvalidRowIndexParam(t *testing.T) {
	r, _, _ := newRouter(t)
	token := adminToken(t, r)
	w := doJSON(r, http.MethodPost, "/v1/requests/abc/approve", token, gin.H{"hours": 1.0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReject_DeletesRow(t *testing.T) {
	r, gw, _ := newRouter(t)
	seedRequest(gw, "1001", "req-a")
	seedRequest(gw, "1002", "req-b")
	token := adminToken(t, r)

	w := doJSON(r, http.MethodDelete, "/v1/requests/0?id=req-a", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rows := gw.data[volunteer.SheetRequests]
	require.Len(t, rows, 1)
	assert.Equal(t, "1002", rows[0][0])
}

func TestReject_StaleIDIsConflict(t *testing.T) {
	r, gw, _ := newRouter(t)
	seedRequest(gw, "1001", "req-a")
	token := adminToken(t, r)

	w := doJSON(r, http.MethodDelete, "/v1/requests/0?id=req-z", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Len(t, gw.data[volunteer.SheetRequests], 1)
}

func TestTypes_AddListDelete(t *testing.T) {
	r, gw, _ := newRouter(t)
	token := adminToken(t, r)

	w := doJSON(r, http.MethodPost, "/v1/achievements/types", token, gin.H{
		"name": "Blood donation", "hours": 4.0,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, gw.data[volunteer.SheetAchievementTypes], 1)

	// Catalogue is public.
	w = doJSON(r, http.MethodGet, "/v1/achievements/types", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Blood donation")

	w = doJSON(r, http.MethodDelete, "/v1/achievements/types/0", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, gw.data[volunteer.SheetAchievementTypes])
}

func TestTypes_AddRejectsNonPositiveHours(t *testing.T) {
	r, _, _ := newRouter(t)
	token := adminToken(t, r)
	w := doJSON(r, http.MethodPost, "/v1/achievements/types", token, gin.H{
		"name": "Bad", "hours": -1.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMembers_ListsRoster(t *testing.T) {
	r, gw, _ := newRouter(t)
	gw.data[volunteer.SheetMembers] = [][]string{
		{"1001", "Sara", "sara@uni.edu", "0500000000", "Media", "12.5", "Cleanup x2"},
	}
	token := adminToken(t, r)

	w := doJSON(r, http.MethodGet, "/v1/members", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sara")
	assert.Contains(t, w.Body.String(), "12.5")
}
