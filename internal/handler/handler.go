// Package handler exposes the club-hours operations over HTTP. Role
// gating happens in middleware before any of these run; handlers only
// translate requests into service calls and errors into status codes.
package handler

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"clubhours/internal/auth"
	"clubhours/internal/config"
	"clubhours/internal/volunteer"
)

// Handler carries the wired collaborators for all routes.
type Handler struct {
	svc      *volunteer.Service
	requests *volunteer.Requests
	types    *volunteer.AchievementTypes
	members  *volunteer.Members
	cfg      config.App
}

// New builds the handler set.
func New(svc *volunteer.Service, requests *volunteer.Requests, types *volunteer.AchievementTypes, members *volunteer.Members, cfg config.App) *Handler {
	return &Handler{svc: svc, requests: requests, types: types, members: members, cfg: cfg}
}

// ---------- Auth ----------

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks the configured admin credentials and issues a session token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.cfg.AdminEmail == "" || h.cfg.AdminPasswordHash == "" ||
		!strings.EqualFold(req.Email, h.cfg.AdminEmail) ||
		bcrypt.CompareHashAndPassword([]byte(h.cfg.AdminPasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, exp, err := auth.Issue(req.Email, h.cfg.AdminName, auth.RoleAdmin, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": exp.Unix()})
}

// Me echoes the verified identity for the admin UI.
func (h *Handler) Me(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": claims.Subject, "name": claims.Name, "role": claims.Role})
}

// ---------- Achievement types ----------

// GetTypes is public; members consult it before submitting.
func (h *Handler) GetTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"types": h.types.List(c.Request.Context())})
}

type addTypeRequest struct {
	Name  string  `json:"name" binding:"required"`
	Hours float64 `json:"hours" binding:"required"`
}

func (h *Handler) AddType(c *gin.Context) {
	var req addTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.AddType(c.Request.Context(), req.Name, req.Hours); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteType removes the type at the path offset. The optional id query
// parameter is the stable key from a previous list; when present the
// delete fails instead of hitting a shifted row.
func (h *Handler) DeleteType(c *gin.Context) {
	rowIndex, ok := rowIndexParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteType(c.Request.Context(), rowIndex, c.Query("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---------- Requests ----------

type submitRequest struct {
	UniversityID string `json:"universityId" binding:"required"`
	Description  string `json:"description" binding:"required"`
	ImageBase64  string `json:"imageBase64" binding:"required"`
	FileName     string `json:"fileName" binding:"required"`
}

// Submit is the only unauthenticated mutation. It accepts either a
// multipart form with a "proof" file or a JSON body with a base64
// image, matching what the submission page sends.
func (h *Handler) Submit(c *gin.Context) {
	var (
		universityID, description, fileName string
		image                               []byte
	)

	if strings.Contains(c.ContentType(), "multipart/form-data") {
		universityID = c.PostForm("universityId")
		description = c.PostForm("description")
		file, header, err := c.Request.FormFile("proof")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "proof file required"})
			return
		}
		defer file.Close()
		image, err = io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
			return
		}
		fileName = header.Filename
	} else {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		data, err := decodeImage(req.ImageBase64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image encoding"})
			return
		}
		universityID, description, fileName, image = req.UniversityID, req.Description, req.FileName, data
	}

	if err := h.svc.Submit(c.Request.Context(), universityID, description, image, fileName); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) GetPending(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"requests": h.requests.ListPending(c.Request.Context())})
}

func (h *Handler) GetAll(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"requests": h.requests.List(c.Request.Context())})
}

type approveRequest struct {
	Hours float64 `json:"hours" binding:"required"`
	ID    string  `json:"id"`
}

// Approve resolves the pending request at the path offset, crediting
// the assigned hours under the reviewing admin's name.
func (h *Handler) Approve(c *gin.Context) {
	rowIndex, ok := rowIndexParam(c)
	if !ok {
		return
	}
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	approvedBy := claims.Name
	if approvedBy == "" {
		approvedBy = claims.Subject
	}
	if err := h.svc.Approve(c.Request.Context(), rowIndex, req.ID, req.Hours, approvedBy); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Reject(c *gin.Context) {
	rowIndex, ok := rowIndexParam(c)
	if !ok {
		return
	}
	if err := h.svc.Reject(c.Request.Context(), rowIndex, c.Query("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---------- Members ----------

func (h *Handler) GetMembers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"members": h.members.List(c.Request.Context())})
}

// ---------- helpers ----------

func rowIndexParam(c *gin.Context) (int, bool) {
	rowIndex, err := strconv.Atoi(c.Param("rowIndex"))
	if err != nil || rowIndex < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rowIndex must be a non-negative integer"})
		return 0, false
	}
	return rowIndex, true
}

// decodeImage accepts raw base64 or a full data URL.
func decodeImage(s string) ([]byte, error) {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}

// fail maps lifecycle errors onto HTTP responses with stable codes.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, volunteer.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_input"})
	case errors.Is(err, volunteer.ErrStaleRow):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "stale_row"})
	case errors.Is(err, volunteer.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "already_resolved"})
	case errors.Is(err, volunteer.ErrUploadFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "code": "upload_failed"})
	case errors.Is(err, volunteer.ErrSubmitFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "code": "submit_failed"})
	case errors.Is(err, volunteer.ErrAddFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "code": "add_failed"})
	case errors.Is(err, volunteer.ErrDeleteFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "code": "delete_failed"})
	case errors.Is(err, volunteer.ErrApproveFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "code": "approve_failed"})
	case errors.Is(err, volunteer.ErrRejectFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "code": "reject_failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
