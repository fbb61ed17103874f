package routers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"lotto-server/internal/config"

	beego "github.com/beego/beego/v2/server/web"
)

// 通过全局路由表直接打请求，覆盖过滤器链本身的安装情况
func serve(req *http.Request) *httptest.ResponseRecorder {
	rw := httptest.NewRecorder()
	beego.BeeApp.Handlers.ServeHTTP(rw, req)
	return rw
}

func TestHealthzPublic(t *testing.T) {
	rw := serve(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rw.Code != 200 {
		t.Fatalf("GET /healthz = %d, want 200", rw.Code)
	}
}

// 管理路由必须在配置加载前（init 阶段）即受保护
func TestAdminRoutesDenyBeforeConfigLoaded(t *testing.T) {
	old := config.GetCurrent()
	defer config.SetCurrent(old)
	config.SetCurrent(nil)

	rw := serve(httptest.NewRequest(http.MethodPost, "/api/admin/round/tick", nil))
	if rw.Code != 401 {
		t.Fatalf("POST /api/admin/round/tick without config = %d, want 401", rw.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	old := config.GetCurrent()
	defer config.SetCurrent(old)

	cfg := &config.Config{}
	cfg.Auth.Admin.Enabled = true
	cfg.Auth.Admin.Token = "unit-admin-token"
	config.SetCurrent(cfg)

	paths := []string{
		"/api/admin/round/tick",
		"/api/admin/round/42/finalize",
		"/api/admin/withdrawal/1/approve",
		"/api/admin/withdrawal/1/reject",
		"/api/admin/user/7/withdraw-approve",
	}
	for _, p := range paths {
		rw := serve(httptest.NewRequest(http.MethodPost, p, nil))
		if rw.Code != 401 {
			t.Fatalf("POST %s without token = %d, want 401", p, rw.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/round/tick", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	if rw := serve(req); rw.Code != 401 {
		t.Fatalf("wrong admin token = %d, want 401", rw.Code)
	}
}

func TestUserRoutesRequireToken(t *testing.T) {
	paths := []struct{ method, path string }{
		{http.MethodPost, "/api/play"},
		{http.MethodGet, "/api/user/tickets"},
		{http.MethodGet, "/api/wallet/balance"},
		{http.MethodPost, "/api/withdrawal"},
	}
	for _, p := range paths {
		rw := serve(httptest.NewRequest(p.method, p.path, nil))
		if rw.Code != 401 {
			t.Fatalf("%s %s without token = %d, want 401", p.method, p.path, rw.Code)
		}
	}
}
