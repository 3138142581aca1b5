package auth_test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/hostdesk/pkg/authsdk"
)

/*
 * Common constants and helper functions for hostdesk end-to-end tests.
 * This includes container setup, login helpers, and assertions.
 */

const (
	testImageName = "hostdesk-test:latest"

	setupToken    = "test-setup-token-12345"
	ownerEmail    = "owner@example.com"
	ownerName     = "Owner"
	ownerPassword = "OwnerPass123"
)

// TestMain builds the Docker image once before all tests and removes it
// afterwards. Nothing is built with -short.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	fmt.Fprintf(os.Stdout, "Building hostdesk Docker image...")
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up hostdesk Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/hostdesk/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // Ignore errors - image might not exist
}

// relaxedLimits lifts the per-route limits so flows with many calls do not
// trip them.
var relaxedLimits = map[string]string{
	"RATELIMIT_STRICT_REQUESTS":   "1000",
	"RATELIMIT_STRICT_WINDOW_SEC": "60",
	"RATELIMIT_STRICT_BURST":      "1000",
	"RATELIMIT_MODERATE_REQUESTS": "1000",
	"RATELIMIT_MODERATE_BURST":    "1000",
}

// setupContainer starts hostdesk in a container and returns the base URL.
// extraEnv is merged over the defaults.
func setupContainer(t *testing.T, extraEnv map[string]string) (string, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("end-to-end test skipped with -short")
	}
	ctx := context.Background()

	env := map[string]string{
		"HOSTDESK_SETUP_TOKEN":      setupToken,
		"HOSTDESK_DATABASE_FILE":    "/data/hostdesk.db",
		"HOSTDESK_PEPPER_FILE":      "/data/pepper",
		"HOSTDESK_SIGNING_KEY_FILE": "/data/signing.pem",
		"HOSTDESK_ISSUER":           "hostdesk-e2e",
		"ENV":                       "test",
		"LOG_LEVEL":                 "info",
		"LOG_FORMAT":                "json",
	}
	for k, v := range extraEnv {
		env[k] = v
	}

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return baseURL, cleanup
}

// setupOwner runs first-run setup and signs the owner in.
func setupOwner(t *testing.T, client *authsdk.SDKClient) *authsdk.Session {
	t.Helper()

	user, err := client.Setup(t.Context(), setupToken, authsdk.SetupRequest{
		Email:    ownerEmail,
		Name:     ownerName,
		Password: ownerPassword,
	})
	require.NoError(t, err, "Setup should succeed")
	require.Equal(t, "superadmin", user.Role)

	resp, err := client.Login(t.Context(), authsdk.LoginRequest{Email: ownerEmail, Password: ownerPassword})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token, "Owner has no second factor yet")

	return client.NewSession(resp.Token)
}

// totpNow returns the current authenticator code for secret.
func totpNow(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}

// requireAPIError checks err is an API error with the given kind.
func requireAPIError(t *testing.T, err error, code string) *authsdk.APIError {
	t.Helper()
	require.Error(t, err)

	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr), "expected *authsdk.APIError, got %T: %v", err, err)
	require.Equal(t, code, apiErr.Code)
	return apiErr
}

func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
