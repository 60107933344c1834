package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"task-manager/api/internal/advisor"
	"task-manager/api/internal/cache"
	"task-manager/api/internal/handlers"
	"task-manager/api/internal/models"
	"task-manager/api/internal/monitoring"
	"task-manager/api/internal/repositories"
	"task-manager/api/internal/server"
	"task-manager/api/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "router-test-secret-0123456789"

type memUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func (s *memUsers) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Email]; ok {
		return repositories.ErrDuplicateKey
	}
	user.ID = primitive.NewObjectID()
	s.users[user.Email] = *user
	return nil
}

func (s *memUsers) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &user, nil
}

type memTasks struct {
	mu    sync.Mutex
	tasks map[primitive.ObjectID]models.Task
}

func (s *memTasks) CreateTask(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.ID = primitive.NewObjectID()
	s.tasks[task.ID] = *task
	return nil
}

func (s *memTasks) FindTask(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.UserID != ownerID {
		return nil, repositories.ErrNotFound
	}
	return &task, nil
}

func (s *memTasks) ListTasks(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Task, 0)
	for _, task := range s.tasks {
		task := task
		if task.UserID == ownerID && filter.Matches(&task) {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memTasks) UpdateTask(ctx context.Context, ownerID string, id primitive.ObjectID, set bson.M) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.UserID != ownerID {
		return nil, repositories.ErrNotFound
	}
	if v, ok := set["status"]; ok {
		task.Status = v.(models.Status)
	}
	if v, ok := set["title"]; ok {
		task.Title = v.(string)
	}
	s.tasks[id] = task
	return &task, nil
}

func (s *memTasks) DeleteTask(ctx context.Context, ownerID string, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.UserID != ownerID {
		return repositories.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

type stubProbe struct{}

func (stubProbe) Ping(ctx context.Context) error { return nil }
func (stubProbe) DatabaseName() string           { return "task_manager_test" }
func (stubProbe) RedactedURI() string            { return "localhost:27017" }

type RouterTestSuite struct {
	suite.Suite
	router *gin.Engine
	redis  *miniredis.Miniredis
	rc     *cache.RedisCache
}

func (s *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	s.redis = miniredis.RunT(s.T())
	cfg := cache.DefaultCacheConfig()
	cfg.Addr = s.redis.Addr()
	s.rc = cache.NewRedisCache(cfg)

	s.router = s.newRouter(100)
}

func (s *RouterTestSuite) TearDownTest() {
	s.rc.Close()
}

func (s *RouterTestSuite) newRouter(authLimit int) *gin.Engine {
	tokens := services.NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)
	users := &memUsers{users: map[string]models.User{}}
	tasks := &memTasks{tasks: map[primitive.ObjectID]models.Task{}}

	health := monitoring.NewHealthChecker(time.Second)
	health.Register("mongo", stubProbe{}.Ping)
	health.Register("redis", s.rc.Health)
	health.RegisterStats("redis_cache", s.rc.Stats)

	suggester := advisor.New(nil, advisor.Config{})
	health.RegisterStats("ai_breaker", suggester.BreakerStats)

	return server.NewRouter(server.Deps{
		APIPrefix:            "/api",
		CORSOrigins:          []string{"http://localhost:3000"},
		CORSAllowCredentials: true,
		Cookie:               handlers.RefreshCookie{MaxAge: 7 * 24 * time.Hour},
		Auth:                 services.NewAuthService(users, tokens),
		Register:             services.NewRegisterService(users),
		Tasks:                services.NewTaskService(tasks),
		Tokens:               tokens,
		Suggester:            suggester,
		Database:             stubProbe{},
		Health:               health,
		RateLimitEnabled:     true,
		AuthLimit:            authLimit,
		AuthWindow:           time.Minute,
		Counter:              s.rc,
	})
}

func (s *RouterTestSuite) do(method, path, body, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterTestSuite) login(email, password string) (string, *http.Cookie) {
	w := s.do(http.MethodPost, "/api/auth/login", `{"email":"`+email+`","password":"`+password+`"}`, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var tok handlers.TokenResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &tok))

	for _, c := range w.Result().Cookies() {
		if c.Name == handlers.RefreshCookieName {
			return tok.AccessToken, c
		}
	}
	s.FailNow("login did not set a refresh cookie")
	return "", nil
}

func (s *RouterTestSuite) signupAndLogin(email string) string {
	w := s.do(http.MethodPost, "/api/auth/signup", `{"email":"`+email+`","password":"longpassword"}`, "")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	access, _ := s.login(email, "longpassword")
	return access
}

func (s *RouterTestSuite) TestEndToEndScenario() {
	w := s.do(http.MethodPost, "/api/auth/signup", `{"email":"a@x.com","password":"longpassword"}`, "")
	s.Equal(http.StatusCreated, w.Code)

	w = s.do(http.MethodPost, "/api/auth/signup", `{"email":"A@X.COM","password":"longpassword"}`, "")
	s.Equal(http.StatusConflict, w.Code)

	access, cookie := s.login("a@x.com", "longpassword")
	s.NotEmpty(access)
	s.True(cookie.HttpOnly)

	w = s.do(http.MethodPost, "/api/tasks", `{"title":"write report"}`, access)
	s.Require().Equal(http.StatusCreated, w.Code)
	var task models.TaskOut
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &task))
	s.Equal(models.StatusTodo, task.Status)
	s.Equal(models.PriorityMedium, task.Priority)

	other := s.signupAndLogin("b@x.com")
	w = s.do(http.MethodDelete, "/api/tasks/"+task.ID, "", other)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/tasks", "", other)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("[]", w.Body.String())

	w = s.do(http.MethodPatch, "/api/tasks/"+task.ID, `{"status":"done"}`, access)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"done"`)

	w = s.do(http.MethodDelete, "/api/tasks/"+task.ID, "", access)
	s.Equal(http.StatusNoContent, w.Code)
}

func (s *RouterTestSuite) TestProtectedRoutesRequireAccessToken() {
	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/tasks"},
		{http.MethodPost, "/api/tasks"},
		{http.MethodGet, "/api/tasks/65f000000000000000000001"},
		{http.MethodPatch, "/api/tasks/65f000000000000000000001"},
		{http.MethodDelete, "/api/tasks/65f000000000000000000001"},
		{http.MethodPost, "/api/ai/suggest-due-date"},
	}
	for _, p := range paths {
		w := s.do(p.method, p.path, "", "")
		s.Equal(http.StatusUnauthorized, w.Code, p.path)
		s.Equal("Bearer", w.Header().Get("WWW-Authenticate"), p.path)
		s.JSONEq(`{"detail":"Not authenticated"}`, w.Body.String(), p.path)
	}
}

func (s *RouterTestSuite) TestRefreshTokenCannotAuthorizeRequests() {
	s.signupAndLogin("c@x.com")
	_, cookie := s.login("c@x.com", "longpassword")

	w := s.do(http.MethodGet, "/api/tasks", "", cookie.Value)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/auth/refresh", "", "", cookie)
	s.Require().Equal(http.StatusOK, w.Code)
	var tok handlers.TokenResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &tok))

	w = s.do(http.MethodGet, "/api/tasks", "", tok.AccessToken)
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterTestSuite) TestAccessTokenCannotRefresh() {
	access := s.signupAndLogin("d@x.com")

	w := s.do(http.MethodPost, "/api/auth/refresh", `{"refresh_token":"`+access+`"}`, "")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterTestSuite) TestSuggestDueDateWithoutKeyFallsBack() {
	access := s.signupAndLogin("e@x.com")

	w := s.do(http.MethodPost, "/api/ai/suggest-due-date", `{"title":"Plan offsite"}`, access)

	s.Require().Equal(http.StatusOK, w.Code)
	var got advisor.Suggestion
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &got))
	s.Equal(advisor.ConfidenceLow, got.Confidence)

	today := advisor.Today(time.Now())
	s.Equal(today.AddDate(0, 0, advisor.NotConfiguredOffset).Format("2006-01-02"), got.DueDate)
}

func (s *RouterTestSuite) TestHealthEndpoints() {
	w := s.do(http.MethodGet, "/api/health", "", "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"ok"`)

	w = s.do(http.MethodGet, "/api/mongo-health", "", "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"db":"task_manager_test"`)

	w = s.do(http.MethodGet, "/ready", "", "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"ready"`)
	s.Contains(w.Body.String(), `"redis_cache":{`)
	s.Contains(w.Body.String(), `"hit_rate"`)
	s.Contains(w.Body.String(), `"ai_breaker":{`)
	s.Contains(w.Body.String(), `"state":"closed"`)

	s.redis.Close()
	w = s.do(http.MethodGet, "/ready", "", "")
	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func (s *RouterTestSuite) TestMetricsExposed() {
	s.do(http.MethodGet, "/api/health", "", "")

	w := s.do(http.MethodGet, "/metrics", "", "")

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "http_requests_total")
}

func (s *RouterTestSuite) TestUnknownRoute() {
	w := s.do(http.MethodGet, "/api/nothing-here", "", "")
	s.Equal(http.StatusNotFound, w.Code)
	s.JSONEq(`{"detail":"Not Found"}`, w.Body.String())

	w = s.do(http.MethodPut, "/api/tasks", "", "")
	s.Equal(http.StatusMethodNotAllowed, w.Code)
}

func (s *RouterTestSuite) TestCORSPreflight() {
	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusNoContent, w.Code)
	s.Equal("http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	s.Equal("true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func (s *RouterTestSuite) TestAuthRoutesAreRateLimited() {
	s.router = s.newRouter(2)

	for i := 0; i < 2; i++ {
		w := s.do(http.MethodPost, "/api/auth/login", `{"email":"nobody@x.com","password":"longpassword"}`, "")
		s.Equal(http.StatusUnauthorized, w.Code)
	}

	w := s.do(http.MethodPost, "/api/auth/login", `{"email":"nobody@x.com","password":"longpassword"}`, "")
	s.Equal(http.StatusTooManyRequests, w.Code)
	s.JSONEq(`{"detail":"rate limit exceeded"}`, w.Body.String())
	s.NotEmpty(w.Header().Get("Retry-After"))

	w = s.do(http.MethodPost, "/api/auth/signup", `{"email":"new@x.com","password":"longpassword"}`, "")
	s.Equal(http.StatusTooManyRequests, w.Code, "signup shares the credential limit")

	for i := 0; i < 3; i++ {
		w = s.do(http.MethodPost, "/api/auth/logout", "", "")
		s.Equal(http.StatusNoContent, w.Code, "logout is never limited")

		w = s.do(http.MethodPost, "/api/auth/refresh", "", "")
		s.Equal(http.StatusUnauthorized, w.Code, "refresh is never limited")
	}

	w = s.do(http.MethodGet, "/api/health", "", "")
	s.Equal(http.StatusOK, w.Code, "limit applies to credential routes only")
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
