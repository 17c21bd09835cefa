package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"epiwatch/role-portal/internal/domain"
	"epiwatch/role-portal/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// stubRequestService lets each test pin down just the calls it expects.
type stubRequestService struct {
	getOwnStatusFunc func(ctx context.Context, userID primitive.ObjectID) (*service.OwnStatus, error)
	applyFunc        func(ctx context.Context, userID primitive.ObjectID, role domain.Role, documents []service.DocumentUpload) (*domain.UpgradeRequest, error)
	listPendingFunc  func(ctx context.Context, reviewerRole domain.Role) ([]service.PendingRequest, error)
	decideFunc       func(ctx context.Context, reviewerRole domain.Role, applicantID primitive.ObjectID, action service.DecisionAction, comment string) (*domain.UpgradeRequest, error)
	downloadURLFunc  func(ctx context.Context, storagePath string) (string, error)
}

func (s *stubRequestService) GetOwnStatus(ctx context.Context, userID primitive.ObjectID) (*service.OwnStatus, error) {
	return s.getOwnStatusFunc(ctx, userID)
}

func (s *stubRequestService) Submit(ctx context.Context, userID primitive.ObjectID, role domain.Role, documents []service.DocumentUpload) (*domain.UpgradeRequest, error) {
	return s.applyFunc(ctx, userID, role, documents)
}

func (s *stubRequestService) Resubmit(ctx context.Context, userID primitive.ObjectID, role domain.Role, documents []service.DocumentUpload) (*domain.UpgradeRequest, error) {
	return s.applyFunc(ctx, userID, role, documents)
}

func (s *stubRequestService) Apply(ctx context.Context, userID primitive.ObjectID, role domain.Role, documents []service.DocumentUpload) (*domain.UpgradeRequest, error) {
	return s.applyFunc(ctx, userID, role, documents)
}

func (s *stubRequestService) ListPending(ctx context.Context, reviewerRole domain.Role) ([]service.PendingRequest, error) {
	return s.listPendingFunc(ctx, reviewerRole)
}

func (s *stubRequestService) Decide(ctx context.Context, reviewerRole domain.Role, applicantID primitive.ObjectID, action service.DecisionAction, comment string) (*domain.UpgradeRequest, error) {
	return s.decideFunc(ctx, reviewerRole, applicantID, action, comment)
}

func (s *stubRequestService) DocumentDownloadURL(ctx context.Context, storagePath string) (string, error) {
	return s.downloadURLFunc(ctx, storagePath)
}

// newTaskRouter wires the handler under a fake auth middleware that injects
// the given identity, bypassing JWT parsing.
func newTaskRouter(svc service.RequestService, userID primitive.ObjectID, role domain.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	handler := NewTaskHandler(svc)
	tasks := router.Group("/tasks")
	tasks.Use(func(c *gin.Context) {
		c.Set(ContextUserIDKey, userID.Hex())
		c.Set(ContextUserRoleKey, role)
		c.Next()
	})
	tasks.GET("/my-status", handler.MyStatus)
	tasks.POST("/submit", handler.Apply)
	tasks.POST("/resubmit", handler.Apply)
	tasks.GET("/pending", handler.ListPending)
	tasks.POST("/:userId/approve", handler.Approve)
	tasks.POST("/:userId/reject", handler.Reject)
	return router
}

func decodeMessage(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var payload struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body.Bytes(), &payload))
	return payload.Message
}

func TestMyStatusMapsNoneTo404(t *testing.T) {
	svc := &stubRequestService{
		getOwnStatusFunc: func(ctx context.Context, userID primitive.ObjectID) (*service.OwnStatus, error) {
			return &service.OwnStatus{State: service.StateNone}, nil
		},
	}
	router := newTaskRouter(svc, primitive.NewObjectID(), domain.RoleGeneralPublic)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tasks/my-status", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeMessage(t, rec.Body), "no upgrade request")
}

func TestMyStatusReturnsRejectedStateWithComment(t *testing.T) {
	svc := &stubRequestService{
		getOwnStatusFunc: func(ctx context.Context, userID primitive.ObjectID) (*service.OwnStatus, error) {
			return &service.OwnStatus{
				State:         service.StateRejected,
				RequestedRole: domain.RoleMedicalOfficer,
				Comment:       "blurry scan",
			}, nil
		},
	}
	router := newTaskRouter(svc, primitive.NewObjectID(), domain.RoleGeneralPublic)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tasks/my-status", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status service.OwnStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, service.StateRejected, status.State)
	assert.Equal(t, "blurry scan", status.Comment)
}

func TestApplyParsesMultipartSubmission(t *testing.T) {
	userID := primitive.NewObjectID()
	var gotRole domain.Role
	var gotDocs []service.DocumentUpload
	svc := &stubRequestService{
		applyFunc: func(ctx context.Context, uid primitive.ObjectID, role domain.Role, documents []service.DocumentUpload) (*domain.UpgradeRequest, error) {
			assert.Equal(t, userID, uid)
			gotRole = role
			gotDocs = documents
			return &domain.UpgradeRequest{UserID: uid, RequestedRole: role, Status: domain.StatusPending}, nil
		},
	}
	router := newTaskRouter(svc, userID, domain.RoleGeneralPublic)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("role", "medical officer"))
	part, err := writer.CreateFormFile("documents", "license.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("scan"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tasks/submit", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.RoleMedicalOfficer, gotRole)
	require.Len(t, gotDocs, 1)
	assert.Equal(t, "license.pdf", gotDocs[0].FileName)
}

func TestApplyRejectsUnknownRole(t *testing.T) {
	svc := &stubRequestService{}
	router := newTaskRouter(svc, primitive.NewObjectID(), domain.RoleGeneralPublic)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("role", "warlock"))
	require.NoError(t, writer.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tasks/submit", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyMapsValidationErrorsTo400(t *testing.T) {
	for _, svcErr := range []error{
		service.ErrDocumentsRequired,
		service.ErrRequestPending,
		service.ErrAlreadyPrivileged,
	} {
		svc := &stubRequestService{
			applyFunc: func(ctx context.Context, uid primitive.ObjectID, role domain.Role, documents []service.DocumentUpload) (*domain.UpgradeRequest, error) {
				return nil, svcErr
			},
		}
		router := newTaskRouter(svc, primitive.NewObjectID(), domain.RoleGeneralPublic)

		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		require.NoError(t, writer.WriteField("role", "epidemiologist"))
		require.NoError(t, writer.Close())

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/tasks/submit", &body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "error %v", svcErr)
	}
}

func TestListPendingForbiddenForNonReviewer(t *testing.T) {
	svc := &stubRequestService{
		listPendingFunc: func(ctx context.Context, reviewerRole domain.Role) ([]service.PendingRequest, error) {
			return nil, service.ErrNotReviewer
		},
	}
	router := newTaskRouter(svc, primitive.NewObjectID(), domain.RoleGeneralPublic)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tasks/pending", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDecideStatusMapping(t *testing.T) {
	applicant := primitive.NewObjectID()

	tests := []struct {
		name     string
		svcErr   error
		wantCode int
	}{
		{name: "already decided maps to 409", svcErr: service.ErrAlreadyDecided, wantCode: http.StatusConflict},
		{name: "missing record maps to 404", svcErr: service.ErrRequestNotFound, wantCode: http.StatusNotFound},
		{name: "non reviewer maps to 403", svcErr: service.ErrNotReviewer, wantCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubRequestService{
				decideFunc: func(ctx context.Context, reviewerRole domain.Role, applicantID primitive.ObjectID, action service.DecisionAction, comment string) (*domain.UpgradeRequest, error) {
					return nil, tt.svcErr
				},
			}
			router := newTaskRouter(svc, primitive.NewObjectID(), domain.RoleAdmin)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/tasks/"+applicant.Hex()+"/approve", nil)
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestDecidePassesCommentAndAction(t *testing.T) {
	applicant := primitive.NewObjectID()
	var gotAction service.DecisionAction
	var gotComment string
	svc := &stubRequestService{
		decideFunc: func(ctx context.Context, reviewerRole domain.Role, applicantID primitive.ObjectID, action service.DecisionAction, comment string) (*domain.UpgradeRequest, error) {
			assert.Equal(t, applicant, applicantID)
			assert.Equal(t, domain.RoleAdmin, reviewerRole)
			gotAction = action
			gotComment = comment
			return &domain.UpgradeRequest{UserID: applicantID, Status: domain.StatusRejected, Comment: comment}, nil
		},
	}
	router := newTaskRouter(svc, primitive.NewObjectID(), domain.RoleAdmin)

	payload := strings.NewReader(`{"comment":"blurry scan"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tasks/"+applicant.Hex()+"/reject", payload)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ActionReject, gotAction)
	assert.Equal(t, "blurry scan", gotComment)
}

func TestDecideRejectsMalformedApplicantID(t *testing.T) {
	svc := &stubRequestService{}
	router := newTaskRouter(svc, primitive.NewObjectID(), domain.RoleAdmin)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tasks/not-an-id/approve", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeMessage(t, rec.Body), "invalid user ID")
}
