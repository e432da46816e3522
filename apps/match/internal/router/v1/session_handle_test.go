package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"PairServer/apps/match/internal/dto"
	"PairServer/apps/match/internal/service"
	"PairServer/consts"
	"PairServer/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSessionHTTPService struct {
	service.ISessionService

	endFn    func(context.Context, *dto.EndSessionRequest) (*dto.EndSessionResponse, error)
	reportFn func(context.Context, *dto.ReportRequest) (*dto.ReportResponse, error)
}

func (f *fakeSessionHTTPService) End(ctx context.Context, req *dto.EndSessionRequest) (*dto.EndSessionResponse, error) {
	if f.endFn == nil {
		return &dto.EndSessionResponse{Status: "idle"}, nil
	}
	return f.endFn(ctx, req)
}

func (f *fakeSessionHTTPService) Report(ctx context.Context, req *dto.ReportRequest) (*dto.ReportResponse, error) {
	if f.reportFn == nil {
		return &dto.ReportResponse{}, nil
	}
	return f.reportFn(ctx, req)
}

type sessionHandlerResultBody struct {
	Code int `json:"code"`
}

var sessionHandlerLoggerOnce sync.Once

func initSessionHandlerLogger() {
	sessionHandlerLoggerOnce.Do(func() {
		logger.ReplaceGlobal(zap.NewNop())
		gin.SetMode(gin.TestMode)
	})
}

func decodeSessionHandlerCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var body sessionHandlerResultBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func newSessionJSONRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, target, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSessionHandlerEnd(t *testing.T) {
	initSessionHandlerLogger()

	tests := []struct {
		name       string
		body       string
		setup      func(*fakeSessionHTTPService, *bool)
		wantCode   int
		wantCalled bool
	}{
		{
			name: "success",
			body: `{"userUuid":"u1"}`,
			setup: func(s *fakeSessionHTTPService, called *bool) {
				s.endFn = func(_ context.Context, req *dto.EndSessionRequest) (*dto.EndSessionResponse, error) {
					*called = true
					assert.Equal(t, "u1", req.UserUUID)
					return &dto.EndSessionResponse{
						Status: "idle",
						Ended:  &dto.EndedInfo{PartnerUUID: "u2", SessionID: 100, Reason: "explicit"},
					}, nil
				}
			},
			wantCode:   consts.CodeSuccess,
			wantCalled: true,
		},
		{
			name:       "bind_failed",
			body:       "{",
			setup:      func(s *fakeSessionHTTPService, called *bool) {},
			wantCode:   consts.CodeParamError,
			wantCalled: false,
		},
		{
			name: "not_in_session",
			body: `{"userUuid":"u1"}`,
			setup: func(s *fakeSessionHTTPService, called *bool) {
				s.endFn = func(_ context.Context, _ *dto.EndSessionRequest) (*dto.EndSessionResponse, error) {
					*called = true
					return nil, service.ErrNotInSession
				}
			},
			wantCode:   consts.CodeNotInSession,
			wantCalled: true,
		},
		{
			name: "internal_error",
			body: `{"userUuid":"u1"}`,
			setup: func(s *fakeSessionHTTPService, called *bool) {
				s.endFn = func(_ context.Context, _ *dto.EndSessionRequest) (*dto.EndSessionResponse, error) {
					*called = true
					return nil, errors.New("internal")
				}
			},
			wantCode:   consts.CodeInternalError,
			wantCalled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &fakeSessionHTTPService{}
			tt.setup(svc, &called)
			h := NewSessionHandler(svc)

			w := httptest.NewRecorder()
			req := newSessionJSONRequest(t, http.MethodPost, "/api/v1/session/end", tt.body)
			c, _ := gin.CreateTestContext(w)
			c.Request = req

			h.End(c)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantCode, decodeSessionHandlerCode(t, w))
			assert.Equal(t, tt.wantCalled, called)
		})
	}
}

func TestSessionHandlerReport(t *testing.T) {
	initSessionHandlerLogger()

	t.Run("missing_user_uuid", func(t *testing.T) {
		h := NewSessionHandler(&fakeSessionHTTPService{})
		w := httptest.NewRecorder()
		req := newSessionJSONRequest(t, http.MethodPost, "/api/v1/report", `{"reason":"spam"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Report(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeParamError, decodeSessionHandlerCode(t, w))
	})

	t.Run("success", func(t *testing.T) {
		h := NewSessionHandler(&fakeSessionHTTPService{
			reportFn: func(_ context.Context, req *dto.ReportRequest) (*dto.ReportResponse, error) {
				require.Equal(t, "u1", req.UserUUID)
				require.Equal(t, "发送不当内容", req.Reason)
				return &dto.ReportResponse{ReportID: 42, SessionEnded: true}, nil
			},
		})
		w := httptest.NewRecorder()
		req := newSessionJSONRequest(t, http.MethodPost, "/api/v1/report", `{"userUuid":"u1","reason":"发送不当内容"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Report(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeSuccess, decodeSessionHandlerCode(t, w))
	})

	t.Run("reason_optional", func(t *testing.T) {
		h := NewSessionHandler(&fakeSessionHTTPService{
			reportFn: func(_ context.Context, req *dto.ReportRequest) (*dto.ReportResponse, error) {
				require.Empty(t, req.Reason)
				return &dto.ReportResponse{ReportID: 43, SessionEnded: true}, nil
			},
		})
		w := httptest.NewRecorder()
		req := newSessionJSONRequest(t, http.MethodPost, "/api/v1/report", `{"userUuid":"u1"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Report(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeSuccess, decodeSessionHandlerCode(t, w))
	})

	t.Run("not_in_session", func(t *testing.T) {
		h := NewSessionHandler(&fakeSessionHTTPService{
			reportFn: func(_ context.Context, _ *dto.ReportRequest) (*dto.ReportResponse, error) {
				return nil, service.ErrNotInSession
			},
		})
		w := httptest.NewRecorder()
		req := newSessionJSONRequest(t, http.MethodPost, "/api/v1/report", `{"userUuid":"u1","reason":"spam"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Report(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeNotInSession, decodeSessionHandlerCode(t, w))
	})
}
