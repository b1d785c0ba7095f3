package devapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nilcar/leads-console/internal/ingest"
	"github.com/nilcar/leads-console/internal/lead"
	"github.com/nilcar/leads-console/internal/store"
	"github.com/nilcar/leads-console/internal/validate"
)

const defaultPageSize = 10

func (s *Server) listLeads(c *gin.Context) {
	q, err := lead.ParseQuery(c.Request.URL.Query(), defaultPageSize)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.store.ListLeads(c.Request.Context(), q)
	if err != nil {
		s.logger.Printf("list leads: %v", err)
		respondError(c, http.StatusInternalServerError, "failed to list leads")
		return
	}
	c.JSON(http.StatusOK, page)
}

// importLeads accepts a JSON object, a JSON array or JSON lines.
func (s *Server) importLeads(c *gin.Context) {
	if !s.limiter.Allow() {
		respondError(c, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, s.cfg.MaxBodyBytes+1))
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to read body")
		return
	}
	if int64(len(body)) > s.cfg.MaxBodyBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	format := ingest.DetectFormat(c.GetHeader("Content-Type"), body)
	records, err := ingest.SplitRecords(body, format)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	res := s.importer.Import(ctx, records)
	s.audit(ctx, "import_leads", actor(c), "", map[string]interface{}{
		"format":   format,
		"ingested": res.Ingested,
		"failed":   res.Failed,
	})
	c.JSON(http.StatusOK, res)
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.store.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list users")
		return
	}
	c.JSON(http.StatusOK, users)
}

type userUpdate struct {
	ID          int64  `json:"id" binding:"required,gt=0"`
	Username    string `json:"username" binding:"required,notblank"`
	Email       string `json:"email" binding:"omitempty,email"`
	PhoneNumber string `json:"phoneNumber"`
	Role        string `json:"role"`
}

func (s *Server) updateUser(c *gin.Context) {
	var req userUpdate
	if !bindJSON(c, &req) {
		return
	}
	if phone := strings.TrimSpace(req.PhoneNumber); phone != "" {
		if msg := validate.Phone(phone); msg != "" {
			respondError(c, http.StatusBadRequest, msg)
			return
		}
	}

	ctx := c.Request.Context()
	user, err := s.store.GetUser(ctx, req.ID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Usuário não encontrado.")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user.ID == c.GetInt64(ctxUserID) && validate.NormalizeRole(req.Role) != validate.RoleAdmin {
		respondError(c, http.StatusBadRequest, "Você não pode remover seu próprio acesso de administrador.")
		return
	}

	user.Username = strings.TrimSpace(req.Username)
	user.Email = strings.TrimSpace(req.Email)
	user.PhoneNumber = validate.Digits(req.PhoneNumber)
	user.Role = validate.NormalizeRole(req.Role)
	err = s.store.UpdateUser(ctx, *user)
	if errors.Is(err, store.ErrConflict) {
		respondError(c, http.StatusConflict, "Usuário já cadastrado.")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to update user")
		return
	}
	s.audit(ctx, "update_user", actor(c), strconv.FormatInt(user.ID, 10), map[string]interface{}{"role": user.Role})
	c.JSON(http.StatusOK, user)
}

func (s *Server) deleteUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "invalid user id")
		return
	}
	if id == c.GetInt64(ctxUserID) {
		respondError(c, http.StatusBadRequest, "Você não pode excluir a si mesmo.")
		return
	}

	ctx := c.Request.Context()
	err = s.store.DeleteUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Usuário não encontrado.")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to delete user")
		return
	}
	s.audit(ctx, "delete_user", actor(c), strconv.FormatInt(id, 10), nil)
	c.Status(http.StatusNoContent)
}

func (s *Server) internalChat(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required,notblank"`
	}
	if !bindJSON(c, &req) {
		return
	}
	answer, err := s.responder.Answer(c.Request.Context(), strings.TrimSpace(req.Message))
	if err != nil {
		s.logger.Printf("assistant: %v", err)
		respondError(c, http.StatusBadGateway, "assistant unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": answer})
}

// templateRequest leaves the phone format and variable names to validate.Template.
type templateRequest struct {
	To          string            `json:"to" binding:"required,notblank"`
	TemplateSID string            `json:"templateSid" binding:"required,notblank"`
	Variables   map[string]string `json:"variables"`
}

func (s *Server) sendTemplate(c *gin.Context) {
	var req templateRequest
	if !bindJSON(c, &req) {
		return
	}
	form := validate.Template{To: req.To, TemplateSID: req.TemplateSID, Variables: req.Variables}
	if err := form.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	id, err := s.store.SaveOutboundMessage(ctx, store.OutboundMessage{
		To:          validate.Digits(req.To),
		TemplateSID: strings.TrimSpace(req.TemplateSID),
		Variables:   req.Variables,
		Actor:       actor(c),
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to queue message")
		return
	}
	s.audit(ctx, "send_template", actor(c), validate.Digits(req.To), map[string]interface{}{"templateSid": req.TemplateSID})
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "queued"})
}

func (s *Server) listAudit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := s.store.GetAuditEntries(c.Request.Context(), c.Query("action"), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to read audit log")
		return
	}
	c.JSON(http.StatusOK, entries)
}
