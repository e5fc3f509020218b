package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func testServiceConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Env: EnvTesting,
		HTTP: HTTPConfig{
			Host:            "127.0.0.1",
			Port:            0,
			ShutdownTimeout: time.Second,
		},
		Database: DatabaseConfig{
			Driver:      "sqlite",
			DSN:         fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
			AutoMigrate: true,
		},
		Auth: AuthConfig{
			JWTSecret:      testSecret,
			ValidationMode: "strict",
			AppName:        "Test Campus",
		},
	}
}

func TestModuleGraphValidates(t *testing.T) {
	err := fx.ValidateApp(
		fx.Supply(testServiceConfig(t), zap.NewNop()),
		Module(),
	)
	require.NoError(t, err)
}

func TestModuleServesAPI(t *testing.T) {
	cfg := testServiceConfig(t)
	cfg.Redis.Addr = miniredis.RunT(t).Addr()
	cfg.Auth.LoginThrottle = true

	var srv *HTTPServer
	app := fxtest.New(t,
		fx.Supply(cfg, zap.NewNop()),
		Module(),
		fx.Populate(&srv),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, srv.Addr())
	base := "http://" + srv.Addr().String()

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	payload, err := json.Marshal(map[string]string{
		"name": "Service Test", "email": "svc@example.com", "password": "s3cret-pass",
	})
	require.NoError(t, err)
	resp, err = http.Post(base+"/api/users/register", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	req, err := http.NewRequest(http.MethodGet, base+"/api/users/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	me, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	me.Body.Close()
	assert.Equal(t, http.StatusOK, me.StatusCode)
}

func TestNewRedisWithoutAddress(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	client, err := NewRedis(lc, testServiceConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testServiceConfig(t)
	cfg.Redis.Addr = mr.Addr()
	mr.Close()

	_, err := NewRedis(fxtest.NewLifecycle(t), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestNewMailerFallsBackToLog(t *testing.T) {
	sender, err := NewMailer(testServiceConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, sender)
}
