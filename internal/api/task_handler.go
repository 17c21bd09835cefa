package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"epiwatch/role-portal/internal/domain"
	"epiwatch/role-portal/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskHandler exposes the upgrade request lifecycle over HTTP.
type TaskHandler struct {
	requestService service.RequestService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(requestService service.RequestService) *TaskHandler {
	return &TaskHandler{requestService: requestService}
}

// --- Request/Response Structs ---

type DecisionRequest struct {
	Comment string `json:"comment"`
}

// --- Handler Methods ---

// MyStatus returns the caller's own request state. A user who never
// submitted gets a 404, which clients map to the "none" state.
func (h *TaskHandler) MyStatus(c *gin.Context) {
	userID, ok := callerObjectID(c)
	if !ok {
		return
	}

	status, err := h.requestService.GetOwnStatus(c.Request.Context(), userID)
	if err != nil {
		abortWithMessage(c, http.StatusInternalServerError, "failed to load request status")
		return
	}
	if status.State == service.StateNone {
		abortWithMessage(c, http.StatusNotFound, "no upgrade request found")
		return
	}

	c.JSON(http.StatusOK, status)
}

// Apply handles both first submission and resubmission after rejection.
// The body is multipart: a "role" field plus zero or more "documents" files.
func (h *TaskHandler) Apply(c *gin.Context) {
	userID, ok := callerObjectID(c)
	if !ok {
		return
	}

	role, err := domain.ParseRole(c.PostForm("role"))
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, fmt.Sprintf("invalid multipart body: %v", err))
		return
	}

	var documents []service.DocumentUpload
	for _, fileHeader := range form.File["documents"] {
		file, err := fileHeader.Open()
		if err != nil {
			abortWithMessage(c, http.StatusBadRequest, "failed to read uploaded document")
			return
		}
		defer file.Close()

		documents = append(documents, service.DocumentUpload{
			FileName:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Size:        fileHeader.Size,
			Content:     file,
		})
	}

	request, err := h.requestService.Apply(c.Request.Context(), userID, role, documents)
	if err != nil {
		h.abortApplication(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// ListPending returns all pending requests for the reviewer console.
func (h *TaskHandler) ListPending(c *gin.Context) {
	reviewerRole, err := getUserRoleFromContext(c)
	if err != nil {
		abortWithMessage(c, http.StatusInternalServerError, "failed to resolve caller role")
		return
	}

	pending, err := h.requestService.ListPending(c.Request.Context(), reviewerRole)
	if err != nil {
		if errors.Is(err, service.ErrNotReviewer) {
			abortWithMessage(c, http.StatusForbidden, err.Error())
			return
		}
		abortWithMessage(c, http.StatusInternalServerError, "failed to load pending requests")
		return
	}

	c.JSON(http.StatusOK, pending)
}

// Approve moves the applicant's pending request to approved and promotes
// their role.
func (h *TaskHandler) Approve(c *gin.Context) {
	h.decide(c, service.ActionApprove)
}

// Reject moves the applicant's pending request to rejected, recording the
// reviewer comment.
func (h *TaskHandler) Reject(c *gin.Context) {
	h.decide(c, service.ActionReject)
}

func (h *TaskHandler) decide(c *gin.Context, action service.DecisionAction) {
	reviewerRole, err := getUserRoleFromContext(c)
	if err != nil {
		abortWithMessage(c, http.StatusInternalServerError, "failed to resolve caller role")
		return
	}

	applicantID, err := primitive.ObjectIDFromHex(c.Param("userId"))
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, "invalid user ID format")
		return
	}

	// The comment body is optional; an empty body means no comment.
	var req DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithMessage(c, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
			return
		}
	}

	request, err := h.requestService.Decide(c.Request.Context(), reviewerRole, applicantID, action, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotReviewer):
			abortWithMessage(c, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrAlreadyDecided):
			abortWithMessage(c, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrRequestNotFound):
			abortWithMessage(c, http.StatusNotFound, err.Error())
		default:
			abortWithMessage(c, http.StatusInternalServerError, fmt.Sprintf("failed to %s request", action))
		}
		return
	}

	c.JSON(http.StatusOK, request)
}

// Document resolves an opaque storage path to a temporary download URL and
// redirects. Document content is never parsed or proxied.
func (h *TaskHandler) Document(c *gin.Context) {
	storagePath := strings.TrimPrefix(c.Param("path"), "/")
	if storagePath == "" {
		abortWithMessage(c, http.StatusBadRequest, "document path is required")
		return
	}

	downloadURL, err := h.requestService.DocumentDownloadURL(c.Request.Context(), storagePath)
	if err != nil {
		abortWithMessage(c, http.StatusInternalServerError, "failed to resolve document")
		return
	}

	c.Redirect(http.StatusFound, downloadURL)
}

// abortApplication maps submit/resubmit errors to HTTP statuses.
func (h *TaskHandler) abortApplication(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoleNotRequestable),
		errors.Is(err, service.ErrDocumentsRequired),
		errors.Is(err, service.ErrRequestPending),
		errors.Is(err, service.ErrRequestExists),
		errors.Is(err, service.ErrAlreadyPrivileged):
		abortWithMessage(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		abortWithMessage(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrRequestNotFound):
		abortWithMessage(c, http.StatusNotFound, err.Error())
	default:
		abortWithMessage(c, http.StatusInternalServerError, "submission failed")
	}
}

// callerObjectID extracts and parses the authenticated caller's ID.
func callerObjectID(c *gin.Context) (primitive.ObjectID, bool) {
	userIDStr, err := getUserIDFromContext(c)
	if err != nil {
		abortWithMessage(c, http.StatusInternalServerError, "failed to get user ID from token")
		return primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(userIDStr)
	if err != nil {
		abortWithMessage(c, http.StatusInternalServerError, "invalid user ID in token")
		return primitive.NilObjectID, false
	}
	return userID, true
}
