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

type fakeMatchHTTPService struct {
	service.IMatchService

	joinFn   func(context.Context, *dto.JoinRequest) (*dto.JoinResponse, error)
	leaveFn  func(context.Context, *dto.LeaveRequest) (*dto.LeaveResponse, error)
	statusFn func(context.Context, string) (*dto.StatusResponse, error)
	nextFn   func(context.Context, *dto.NextRequest) (*dto.JoinResponse, error)
}

func (f *fakeMatchHTTPService) Join(ctx context.Context, req *dto.JoinRequest) (*dto.JoinResponse, error) {
	if f.joinFn == nil {
		return &dto.JoinResponse{Status: "waiting"}, nil
	}
	return f.joinFn(ctx, req)
}

func (f *fakeMatchHTTPService) Leave(ctx context.Context, req *dto.LeaveRequest) (*dto.LeaveResponse, error) {
	if f.leaveFn == nil {
		return &dto.LeaveResponse{Status: "idle"}, nil
	}
	return f.leaveFn(ctx, req)
}

func (f *fakeMatchHTTPService) Status(ctx context.Context, userUUID string) (*dto.StatusResponse, error) {
	if f.statusFn == nil {
		return &dto.StatusResponse{UserUUID: userUUID, Status: "idle"}, nil
	}
	return f.statusFn(ctx, userUUID)
}

func (f *fakeMatchHTTPService) Next(ctx context.Context, req *dto.NextRequest) (*dto.JoinResponse, error) {
	if f.nextFn == nil {
		return &dto.JoinResponse{Status: "waiting"}, nil
	}
	return f.nextFn(ctx, req)
}

type matchHandlerResultBody struct {
	Code int `json:"code"`
}

var matchHandlerLoggerOnce sync.Once

func initMatchHandlerLogger() {
	matchHandlerLoggerOnce.Do(func() {
		logger.ReplaceGlobal(zap.NewNop())
		gin.SetMode(gin.TestMode)
	})
}

func decodeMatchHandlerCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var body matchHandlerResultBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func newMatchJSONRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, target, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestMatchHandlerJoin(t *testing.T) {
	initMatchHandlerLogger()

	tests := []struct {
		name       string
		body       string
		setup      func(*fakeMatchHTTPService, *bool)
		wantCode   int
		wantCalled bool
	}{
		{
			name: "success",
			body: `{"userUuid":"u1"}`,
			setup: func(s *fakeMatchHTTPService, called *bool) {
				s.joinFn = func(_ context.Context, req *dto.JoinRequest) (*dto.JoinResponse, error) {
					*called = true
					assert.Equal(t, "u1", req.UserUUID)
					return &dto.JoinResponse{Status: "waiting"}, nil
				}
			},
			wantCode:   consts.CodeSuccess,
			wantCalled: true,
		},
		{
			name:       "bind_failed",
			body:       "{",
			setup:      func(s *fakeMatchHTTPService, called *bool) {},
			wantCode:   consts.CodeParamError,
			wantCalled: false,
		},
		{
			name:       "missing_user_uuid",
			body:       `{"filters":{"gender":1}}`,
			setup:      func(s *fakeMatchHTTPService, called *bool) {},
			wantCode:   consts.CodeParamError,
			wantCalled: false,
		},
		{
			name: "business_error",
			body: `{"userUuid":"u1"}`,
			setup: func(s *fakeMatchHTTPService, called *bool) {
				s.joinFn = func(_ context.Context, _ *dto.JoinRequest) (*dto.JoinResponse, error) {
					*called = true
					return nil, service.ErrAlreadyQueued
				}
			},
			wantCode:   consts.CodeAlreadyQueued,
			wantCalled: true,
		},
		{
			name: "internal_error",
			body: `{"userUuid":"u1"}`,
			setup: func(s *fakeMatchHTTPService, called *bool) {
				s.joinFn = func(_ context.Context, _ *dto.JoinRequest) (*dto.JoinResponse, error) {
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
			svc := &fakeMatchHTTPService{}
			tt.setup(svc, &called)
			h := NewMatchHandler(svc)

			w := httptest.NewRecorder()
			req := newMatchJSONRequest(t, http.MethodPost, "/api/v1/match/join", tt.body)
			c, _ := gin.CreateTestContext(w)
			c.Request = req

			h.Join(c)

			// 业务错误统一走 HTTP 200，错误语义在响应码里
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantCode, decodeMatchHandlerCode(t, w))
			assert.Equal(t, tt.wantCalled, called)
		})
	}
}

func TestMatchHandlerJoinPassesFilters(t *testing.T) {
	initMatchHandlerLogger()

	h := NewMatchHandler(&fakeMatchHTTPService{
		joinFn: func(_ context.Context, req *dto.JoinRequest) (*dto.JoinResponse, error) {
			require.NotNil(t, req.Filters)
			require.Equal(t, int8(2), req.Filters.Gender)
			require.Equal(t, int16(20), req.Filters.MinAge)
			require.Equal(t, []string{"滑雪"}, req.Filters.Interests)
			return &dto.JoinResponse{Status: "waiting"}, nil
		},
	})

	w := httptest.NewRecorder()
	body := `{"userUuid":"u1","filters":{"gender":2,"minAge":20,"interests":["滑雪"]}}`
	req := newMatchJSONRequest(t, http.MethodPost, "/api/v1/match/join", body)
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	h.Join(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, consts.CodeSuccess, decodeMatchHandlerCode(t, w))
}

func TestMatchHandlerLeave(t *testing.T) {
	initMatchHandlerLogger()

	t.Run("bind_failed", func(t *testing.T) {
		h := NewMatchHandler(&fakeMatchHTTPService{})
		w := httptest.NewRecorder()
		req := newMatchJSONRequest(t, http.MethodPost, "/api/v1/match/leave", "{")
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Leave(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeParamError, decodeMatchHandlerCode(t, w))
	})

	t.Run("success", func(t *testing.T) {
		h := NewMatchHandler(&fakeMatchHTTPService{
			leaveFn: func(_ context.Context, req *dto.LeaveRequest) (*dto.LeaveResponse, error) {
				require.Equal(t, "u1", req.UserUUID)
				return &dto.LeaveResponse{Status: "idle"}, nil
			},
		})
		w := httptest.NewRecorder()
		req := newMatchJSONRequest(t, http.MethodPost, "/api/v1/match/leave", `{"userUuid":"u1"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Leave(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeSuccess, decodeMatchHandlerCode(t, w))
	})

	t.Run("already_chatting", func(t *testing.T) {
		h := NewMatchHandler(&fakeMatchHTTPService{
			leaveFn: func(_ context.Context, _ *dto.LeaveRequest) (*dto.LeaveResponse, error) {
				return nil, service.ErrAlreadyChatting
			},
		})
		w := httptest.NewRecorder()
		req := newMatchJSONRequest(t, http.MethodPost, "/api/v1/match/leave", `{"userUuid":"u1"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Leave(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeAlreadyChatting, decodeMatchHandlerCode(t, w))
	})
}

func TestMatchHandlerStatus(t *testing.T) {
	initMatchHandlerLogger()

	t.Run("missing_query_param", func(t *testing.T) {
		h := NewMatchHandler(&fakeMatchHTTPService{})
		w := httptest.NewRecorder()
		req, err := http.NewRequest(http.MethodGet, "/api/v1/match/status", nil)
		require.NoError(t, err)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Status(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeParamError, decodeMatchHandlerCode(t, w))
	})

	t.Run("success", func(t *testing.T) {
		h := NewMatchHandler(&fakeMatchHTTPService{
			statusFn: func(_ context.Context, userUUID string) (*dto.StatusResponse, error) {
				require.Equal(t, "u1", userUUID)
				return &dto.StatusResponse{UserUUID: "u1", Status: "waiting"}, nil
			},
		})
		w := httptest.NewRecorder()
		req, err := http.NewRequest(http.MethodGet, "/api/v1/match/status?userUuid=u1", nil)
		require.NoError(t, err)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Status(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeSuccess, decodeMatchHandlerCode(t, w))
	})

	t.Run("user_not_found", func(t *testing.T) {
		h := NewMatchHandler(&fakeMatchHTTPService{
			statusFn: func(_ context.Context, _ string) (*dto.StatusResponse, error) {
				return nil, service.ErrUserNotFound
			},
		})
		w := httptest.NewRecorder()
		req, err := http.NewRequest(http.MethodGet, "/api/v1/match/status?userUuid=ghost", nil)
		require.NoError(t, err)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Status(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeResourceNotFound, decodeMatchHandlerCode(t, w))
	})
}

func TestMatchHandlerNext(t *testing.T) {
	initMatchHandlerLogger()

	t.Run("bind_failed", func(t *testing.T) {
		h := NewMatchHandler(&fakeMatchHTTPService{})
		w := httptest.NewRecorder()
		req := newMatchJSONRequest(t, http.MethodPost, "/api/v1/match/next", "{")
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Next(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeParamError, decodeMatchHandlerCode(t, w))
	})

	t.Run("success", func(t *testing.T) {
		h := NewMatchHandler(&fakeMatchHTTPService{
			nextFn: func(_ context.Context, req *dto.NextRequest) (*dto.JoinResponse, error) {
				require.Equal(t, "u1", req.UserUUID)
				return &dto.JoinResponse{
					Status:  "chatting",
					Matched: &dto.MatchInfo{PartnerUUID: "u2", SessionID: 100},
				}, nil
			},
		})
		w := httptest.NewRecorder()
		req := newMatchJSONRequest(t, http.MethodPost, "/api/v1/match/next", `{"userUuid":"u1"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Next(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeSuccess, decodeMatchHandlerCode(t, w))
	})

	t.Run("banned_user", func(t *testing.T) {
		h := NewMatchHandler(&fakeMatchHTTPService{
			nextFn: func(_ context.Context, _ *dto.NextRequest) (*dto.JoinResponse, error) {
				return nil, service.ErrUserBanned
			},
		})
		w := httptest.NewRecorder()
		req := newMatchJSONRequest(t, http.MethodPost, "/api/v1/match/next", `{"userUuid":"u1"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Next(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeUserBanned, decodeMatchHandlerCode(t, w))
	})
}
