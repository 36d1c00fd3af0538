package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/eduassist/core"
	"github.com/trezcool/eduassist/core/cache"
	"github.com/trezcool/eduassist/core/progress"
	"github.com/trezcool/eduassist/core/recommendation"
	"github.com/trezcool/eduassist/core/user"
	emailsvc "github.com/trezcool/eduassist/services/email"
	inmemdb "github.com/trezcool/eduassist/storage/database/inmem"
)

var errMissingTokenResp = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

type testApp struct {
	server Server

	usrSvc      *user.Service
	recSvc      *recommendation.Service
	progressSvc *progress.Service
	usrRepo     user.Repository
}

func newTestConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "EduAssist",
		SecretKey:        "secret",
		JWTExpiration:    10 * time.Minute,
		DigestMaxItems:   5,
		WeakAreaCutoff:   60,
		LeaderboardLimit: 20,
	}
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	conf := newTestConfig()

	logger := core.NewStdLogger(log.New(os.Stdout, "API-TEST : ", log.LstdFlags))
	logger.Enable(false)

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)

	usrSvc := user.NewService(usrRepo)
	recSvc := recommendation.NewService(
		conf,
		inmemdb.NewRecommendationRepository(db),
		inmemdb.NewPerformanceRepository(db),
		emailsvc.NewConsoleServiceMock(conf),
	)
	progressSvc := progress.NewService(
		conf,
		inmemdb.NewProgressRepository(db),
		cache.NewMutator(newMapCache(), nil, logger),
	)

	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	server := NewServer(&Options{
		Conf:           conf,
		Logger:         logger,
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		RecSvc:         recSvc,
		ProgressSvc:    progressSvc,
		Validate:       validate,
		Translator:     translator,
	})

	return &testApp{
		server:      server,
		usrSvc:      usrSvc,
		recSvc:      recSvc,
		progressSvc: progressSvc,
		usrRepo:     usrRepo,
	}
}

type mapCache struct {
	values map[string]interface{}
}

var _ cache.Cache = (*mapCache)(nil)

func newMapCache() *mapCache { return &mapCache{values: make(map[string]interface{})} }

func (c *mapCache) Get(_ context.Context, key cache.Key) (interface{}, bool, error) {
	v, ok := c.values[key.String()]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key cache.Key, value interface{}) error {
	c.values[key.String()] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key cache.Key) error {
	delete(c.values, key.String())
	return nil
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func createUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
