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

type fakeAdminHTTPService struct {
	service.IAdminService

	statsFn         func(context.Context) (*dto.StatsResponse, error)
	listReportsFn   func(context.Context, string, int, int) (*dto.ListReportsResponse, error)
	resolveReportFn func(context.Context, int64, string) (*dto.ResolveReportResponse, error)
	banFn           func(context.Context, string) (*dto.BanResponse, error)
	unbanFn         func(context.Context, string) (*dto.UnbanResponse, error)
}

func (f *fakeAdminHTTPService) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	if f.statsFn == nil {
		return &dto.StatsResponse{}, nil
	}
	return f.statsFn(ctx)
}

func (f *fakeAdminHTTPService) ListReports(ctx context.Context, statusLabel string, page, pageSize int) (*dto.ListReportsResponse, error) {
	if f.listReportsFn == nil {
		return &dto.ListReportsResponse{}, nil
	}
	return f.listReportsFn(ctx, statusLabel, page, pageSize)
}

func (f *fakeAdminHTTPService) ResolveReport(ctx context.Context, reportID int64, action string) (*dto.ResolveReportResponse, error) {
	if f.resolveReportFn == nil {
		return &dto.ResolveReportResponse{ReportID: reportID, Action: action}, nil
	}
	return f.resolveReportFn(ctx, reportID, action)
}

func (f *fakeAdminHTTPService) Ban(ctx context.Context, userUUID string) (*dto.BanResponse, error) {
	if f.banFn == nil {
		return &dto.BanResponse{UserUUID: userUUID}, nil
	}
	return f.banFn(ctx, userUUID)
}

func (f *fakeAdminHTTPService) Unban(ctx context.Context, userUUID string) (*dto.UnbanResponse, error) {
	if f.unbanFn == nil {
		return &dto.UnbanResponse{UserUUID: userUUID}, nil
	}
	return f.unbanFn(ctx, userUUID)
}

type adminHandlerResultBody struct {
	Code int `json:"code"`
}

var adminHandlerLoggerOnce sync.Once

func initAdminHandlerLogger() {
	adminHandlerLoggerOnce.Do(func() {
		logger.ReplaceGlobal(zap.NewNop())
		gin.SetMode(gin.TestMode)
	})
}

func decodeAdminHandlerCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var body adminHandlerResultBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func newAdminJSONRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, target, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAdminHandlerStats(t *testing.T) {
	initAdminHandlerLogger()

	t.Run("success", func(t *testing.T) {
		h := NewAdminHandler(&fakeAdminHTTPService{
			statsFn: func(_ context.Context) (*dto.StatsResponse, error) {
				return &dto.StatsResponse{TotalUsers: 100, WaitingUsers: 5}, nil
			},
		})
		w := httptest.NewRecorder()
		req := newAdminJSONRequest(t, http.MethodGet, "/api/v1/admin/stats", "")
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Stats(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeSuccess, decodeAdminHandlerCode(t, w))
	})

	t.Run("internal_error", func(t *testing.T) {
		h := NewAdminHandler(&fakeAdminHTTPService{
			statsFn: func(_ context.Context) (*dto.StatsResponse, error) {
				return nil, errors.New("internal")
			},
		})
		w := httptest.NewRecorder()
		req := newAdminJSONRequest(t, http.MethodGet, "/api/v1/admin/stats", "")
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Stats(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeInternalError, decodeAdminHandlerCode(t, w))
	})
}

func TestAdminHandlerListReports(t *testing.T) {
	initAdminHandlerLogger()

	t.Run("defaults_passed_through", func(t *testing.T) {
		h := NewAdminHandler(&fakeAdminHTTPService{
			listReportsFn: func(_ context.Context, statusLabel string, page, pageSize int) (*dto.ListReportsResponse, error) {
				// 默认值由服务层补齐，handler 原样透传
				require.Empty(t, statusLabel)
				require.Zero(t, page)
				require.Zero(t, pageSize)
				return &dto.ListReportsResponse{}, nil
			},
		})
		w := httptest.NewRecorder()
		req, err := http.NewRequest(http.MethodGet, "/api/v1/admin/reports", nil)
		require.NoError(t, err)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.ListReports(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeSuccess, decodeAdminHandlerCode(t, w))
	})

	t.Run("passes_filters", func(t *testing.T) {
		h := NewAdminHandler(&fakeAdminHTTPService{
			listReportsFn: func(_ context.Context, statusLabel string, page, pageSize int) (*dto.ListReportsResponse, error) {
				require.Equal(t, "pending", statusLabel)
				require.Equal(t, 2, page)
				require.Equal(t, 50, pageSize)
				return &dto.ListReportsResponse{}, nil
			},
		})
		w := httptest.NewRecorder()
		req, err := http.NewRequest(http.MethodGet, "/api/v1/admin/reports?status=pending&page=2&pageSize=50", nil)
		require.NoError(t, err)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.ListReports(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeSuccess, decodeAdminHandlerCode(t, w))
	})

	t.Run("bind_query_failed", func(t *testing.T) {
		h := NewAdminHandler(&fakeAdminHTTPService{})
		w := httptest.NewRecorder()
		req, err := http.NewRequest(http.MethodGet, "/api/v1/admin/reports?page=abc", nil)
		require.NoError(t, err)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.ListReports(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeParamError, decodeAdminHandlerCode(t, w))
	})

	t.Run("invalid_status_label", func(t *testing.T) {
		h := NewAdminHandler(&fakeAdminHTTPService{
			listReportsFn: func(_ context.Context, _ string, _, _ int) (*dto.ListReportsResponse, error) {
				return nil, service.ErrInvalidArgument
			},
		})
		w := httptest.NewRecorder()
		req, err := http.NewRequest(http.MethodGet, "/api/v1/admin/reports?status=weird", nil)
		require.NoError(t, err)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.ListReports(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeParamError, decodeAdminHandlerCode(t, w))
	})
}

func TestAdminHandlerResolveReport(t *testing.T) {
	initAdminHandlerLogger()

	t.Run("invalid_id_param", func(t *testing.T) {
		h := NewAdminHandler(&fakeAdminHTTPService{})
		w := httptest.NewRecorder()
		req := newAdminJSONRequest(t, http.MethodPost, "/api/v1/admin/reports/abc/resolve", `{"action":"ignore"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req
		c.Params = gin.Params{{Key: "id", Value: "abc"}}

		h.ResolveReport(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeParamError, decodeAdminHandlerCode(t, w))
	})

	t.Run("non_positive_id", func(t *testing.T) {
		h := NewAdminHandler(&fakeAdminHTTPService{})
		w := httptest.NewRecorder()
		req := newAdminJSONRequest(t, http.MethodPost, "/api/v1/admin/reports/0/resolve", `{"action":"ignore"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req
		c.Params = gin.Params{{Key: "id", Value: "0"}}

		h.ResolveReport(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeParamError, decodeAdminHandlerCode(t, w))
	})

	t.Run("invalid_action", func(t *testing.T) {
		h := NewAdminHandler(&fakeAdminHTTPService{})
		w := httptest.NewRecorder()
		req := newAdminJSONRequest(t, http.MethodPost, "/api/v1/admin/reports/9/resolve", `{"action":"nuke"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req
		c.Params = gin.Params{{Key: "id", Value: "9"}}

		h.ResolveReport(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeParamError, decodeAdminHandlerCode(t, w))
	})

	t.Run("success", func(t *testing.T) {
		h := NewAdminHandler(&fakeAdminHTTPService{
			resolveReportFn: func(_ context.Context, reportID int64, action string) (*dto.ResolveReportResponse, error) {
				require.Equal(t, int64(9), reportID)
				require.Equal(t, "ban", action)
				return &dto.ResolveReportResponse{ReportID: 9, Action: "ban", Banned: true}, nil
			},
		})
		w := httptest.NewRecorder()
		req := newAdminJSONRequest(t, http.MethodPost, "/api/v1/admin/reports/9/resolve", `{"action":"ban"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req
		c.Params = gin.Params{{Key: "id", Value: "9"}}

		h.ResolveReport(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeSuccess, decodeAdminHandlerCode(t, w))
	})

	t.Run("report_not_found", func(t *testing.T) {
		h := NewAdminHandler(&fakeAdminHTTPService{
			resolveReportFn: func(_ context.Context, _ int64, _ string) (*dto.ResolveReportResponse, error) {
				return nil, service.ErrReportNotFound
			},
		})
		w := httptest.NewRecorder()
		req := newAdminJSONRequest(t, http.MethodPost, "/api/v1/admin/reports/404/resolve", `{"action":"ignore"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req
		c.Params = gin.Params{{Key: "id", Value: "404"}}

		h.ResolveReport(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeReportNotFound, decodeAdminHandlerCode(t, w))
	})
}

func TestAdminHandlerBanAndUnban(t *testing.T) {
	initAdminHandlerLogger()

	t.Run("ban_bind_failed", func(t *testing.T) {
		h := NewAdminHandler(&fakeAdminHTTPService{})
		w := httptest.NewRecorder()
		req := newAdminJSONRequest(t, http.MethodPost, "/api/v1/admin/ban", "{")
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Ban(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeParamError, decodeAdminHandlerCode(t, w))
	})

	t.Run("ban_success", func(t *testing.T) {
		h := NewAdminHandler(&fakeAdminHTTPService{
			banFn: func(_ context.Context, userUUID string) (*dto.BanResponse, error) {
				require.Equal(t, "u2", userUUID)
				return &dto.BanResponse{UserUUID: "u2", SessionEnded: true}, nil
			},
		})
		w := httptest.NewRecorder()
		req := newAdminJSONRequest(t, http.MethodPost, "/api/v1/admin/ban", `{"userUuid":"u2"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Ban(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeSuccess, decodeAdminHandlerCode(t, w))
	})

	t.Run("ban_user_not_found", func(t *testing.T) {
		h := NewAdminHandler(&fakeAdminHTTPService{
			banFn: func(_ context.Context, _ string) (*dto.BanResponse, error) {
				return nil, service.ErrUserNotFound
			},
		})
		w := httptest.NewRecorder()
		req := newAdminJSONRequest(t, http.MethodPost, "/api/v1/admin/ban", `{"userUuid":"ghost"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Ban(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeResourceNotFound, decodeAdminHandlerCode(t, w))
	})

	t.Run("unban_success", func(t *testing.T) {
		h := NewAdminHandler(&fakeAdminHTTPService{
			unbanFn: func(_ context.Context, userUUID string) (*dto.UnbanResponse, error) {
				require.Equal(t, "u2", userUUID)
				return &dto.UnbanResponse{UserUUID: "u2"}, nil
			},
		})
		w := httptest.NewRecorder()
		req := newAdminJSONRequest(t, http.MethodPost, "/api/v1/admin/unban", `{"userUuid":"u2"}`)
		c, _ := gin.CreateTestContext(w)
		c.Request = req

		h.Unban(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, consts.CodeSuccess, decodeAdminHandlerCode(t, w))
	})
}
