package middlewares

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// staffEngine -> papan station di belakang auth, seperti di router
func staffEngine(jwt *utils.JWTManager) *gin.Engine {
	r := gin.New()
	staff := r.Group("/", AuthMiddleware(jwt))

	stations := staff.Group("/stations", RoleCheck(utils.RoleCashier, utils.RoleKitchen, utils.RoleBar, utils.RolePastry))
	stations.GET("/:station/queue", StationAccess(), func(c *gin.Context) {
		station := StationFromRole(c)
		if station == nil {
			c.String(http.StatusOK, "all")
			return
		}
		c.String(http.StatusOK, string(*station))
	})

	staff.GET("/admin/ping", RoleCheck(utils.RoleAdmin), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", c.GetUint(ContextUserID))
	})
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func tokenFor(t *testing.T, jwt *utils.JWTManager, userID uint, role string) string {
	t.Helper()
	token, err := jwt.GenerateToken(userID, role)
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	jwt := utils.NewJWTManager("middleware-secret", time.Hour)
	r := staffEngine(jwt)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin/ping", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin/ping", "not-a-jwt").Code)

	foreign := tokenFor(t, utils.NewJWTManager("other-secret", time.Hour), 1, utils.RoleAdmin)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin/ping", foreign).Code)

	expired := tokenFor(t, utils.NewJWTManager("middleware-secret", -time.Minute), 1, utils.RoleAdmin)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin/ping", expired).Code)

	w := get(r, "/admin/ping", tokenFor(t, jwt, 7, utils.RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7", w.Body.String())

	// websocket mengirim token lewat query
	w = get(r, "/admin/ping?token="+tokenFor(t, jwt, 8, utils.RoleAdmin), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoleAndStationAccess(t *testing.T) {
	jwt := utils.NewJWTManager("middleware-secret", time.Hour)
	r := staffEngine(jwt)

	kitchen := tokenFor(t, jwt, 2, utils.RoleKitchen)
	cashier := tokenFor(t, jwt, 3, utils.RoleCashier)
	admin := tokenFor(t, jwt, 4, utils.RoleAdmin)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
		body   string
	}{
		{"kitchen on own board", "/stations/kitchen/queue", kitchen, http.StatusOK, "kitchen"},
		{"kitchen on bar board", "/stations/bar/queue", kitchen, http.StatusForbidden, ""},
		{"unknown station", "/stations/grill/queue", kitchen, http.StatusBadRequest, ""},
		{"cashier sees every board", "/stations/pastry/queue", cashier, http.StatusOK, "all"},
		{"admin passes role check", "/stations/bar/queue", admin, http.StatusOK, "all"},
		{"cashier is not admin", "/admin/ping", cashier, http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.path, tt.token)
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestStationFromRole(t *testing.T) {
	for role, want := range map[string]*models.Station{
		utils.RoleKitchen: ptrStation(models.StationKitchen),
		utils.RoleBar:     ptrStation(models.StationBar),
		utils.RolePastry:  ptrStation(models.StationPastry),
		utils.RoleCashier: nil,
		utils.RoleAdmin:   nil,
	} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(ContextRole, role)
		assert.Equal(t, want, StationFromRole(c), role)
	}
}

func ptrStation(s models.Station) *models.Station {
	return &s
}

func TestRateLimiterPerIP(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(time.Hour, 2).RateLimit())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = ip + ":4321"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2"))
}

func TestSecurityHeadersFollowCORSOrigin(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders("https://menu.savor.id/"))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := get(r, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'; connect-src 'self' https://menu.savor.id",
		w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=31536000")
}

func TestContentSecurityPolicyWildcardOrigin(t *testing.T) {
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'; connect-src 'self'", ContentSecurityPolicy("*"))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'; connect-src 'self'", ContentSecurityPolicy(""))
}
