package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/assetaudit/backend/internal/application/audit/audittest"
	"github.com/assetaudit/backend/internal/application/auditsession"
	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/assetaudit/backend/internal/interfaces/http/handler"
	"github.com/assetaudit/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliTestEnv struct {
	harness *audittest.Harness
	server  *httptest.Server
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := audittest.New(t)
	engine, err := router.New(router.Config{}, router.Handlers{
		Audit: handler.NewAuditHandler(h.Service),
		Code:  handler.NewCodeHandler(h.Service),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return &cliTestEnv{harness: h, server: srv}
}

func (env *cliTestEnv) run(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	base := []string{
		"--server", env.server.URL,
		"--tenant", env.harness.Catalog.TenantID.String(),
		"--log-level", "error",
	}
	cmd.SetArgs(append(args, base...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (env *cliTestEnv) openAudit(t *testing.T) uuid.UUID {
	t.Helper()
	h := env.harness
	created, err := h.Service.CreateAudit(context.Background(), h.Catalog.TenantID, appaudit.CreateAuditRequest{
		Name:               "Warehouse count",
		ContextType:        string(audit.ContextTypeLocation),
		ContextID:          &h.Catalog.Warehouse.ID,
		IncludeDescendants: true,
	}, nil)
	require.NoError(t, err)
	return created.ID
}

func TestStartCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, nil, "start",
		"--name", "Warehouse count",
		"--context-id", env.harness.Catalog.Warehouse.ID.String(),
		"--descendants",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "3 assets expected")

	_, err = env.run(t, nil, "start", "--name", "Bad", "--context-id", "nope")
	assert.Error(t, err)

	_, err = env.run(t, nil, "start", "--context-id", env.harness.Catalog.Warehouse.ID.String())
	assert.Error(t, err, "--name is required")
}

func TestScanCommand_CompletesAudit(t *testing.T) {
	env := setupCLITestEnv(t)
	id := env.openAudit(t)

	photo := filepath.Join(t.TempDir(), "shelf.png")
	require.NoError(t, os.WriteFile(photo, []byte("png"), 0o600))

	stdin := strings.NewReader(strings.Join([]string{
		audittest.CodeLadder,
		"",
		"# aisle 2",
		audittest.CodeDrill,
		audittest.CodeLadder,
		"QR-NOT-PRINTED",
	}, "\n"))
	out, err := env.run(t, stdin, "scan", id.String(), "--complete", "--note", "aisle 2 blocked", "--attach", photo)
	require.NoError(t, err)
	assert.Contains(t, out, "Code not found")
	assert.Contains(t, out, "completed with 1 attachment(s)")
	assert.Equal(t, 1, env.harness.Storage.Len())

	h := env.harness
	got, err := h.Service.GetAudit(context.Background(), h.Catalog.TenantID, id)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", got.Status)
	assert.Equal(t, 1, got.FoundAssetCount)
	assert.Equal(t, 2, got.MissingAssetCount)
	assert.Equal(t, 1, got.UnexpectedAssetCount)
	assert.Equal(t, "aisle 2 blocked", got.CompletionNote)

	out, err = env.run(t, nil, "report", id.String())
	require.NoError(t, err)
	assert.Contains(t, out, "COMPLETED")
	assert.Contains(t, out, "Ladder")
	assert.Contains(t, out, "Forklift")
	assert.Contains(t, out, "unexpected")
	assert.Contains(t, out, "Missing value:")
}

func TestScanCommand_WithoutComplete(t *testing.T) {
	env := setupCLITestEnv(t)
	id := env.openAudit(t)

	out, err := env.run(t, strings.NewReader(audittest.CodeForklift+"\n"), "scan", id.String())
	require.NoError(t, err)
	assert.Contains(t, out, "found 1/3")
	assert.Contains(t, out, "Ladder")
	assert.Regexp(t, `Forklift\s+│ found`, out)

	h := env.harness
	got, err := h.Service.GetAudit(context.Background(), h.Catalog.TenantID, id)
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", got.Status)
	assert.Equal(t, 1, got.FoundAssetCount)
}

func TestCancelCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	id := env.openAudit(t)

	out, err := env.run(t, nil, "cancel", id.String(), "--reason", "wrong room")
	require.NoError(t, err)
	assert.Contains(t, out, "CANCELLED")

	_, err = env.run(t, strings.NewReader(audittest.CodeForklift+"\n"), "scan", id.String())
	assert.Error(t, err)

	_, err = env.run(t, nil, "cancel", "not-a-uuid")
	assert.EqualError(t, err, "audit id must be a UUID")
}

func TestTables(t *testing.T) {
	out := countsTable(audit.Counts{Expected: 3, Found: 1, Missing: 2})
	assert.True(t, strings.HasPrefix(out, "╭"))
	assert.Contains(t, out, "Unexpected")

	assert.Empty(t, problemsTable([]auditsession.ScannedItem{{Code: "QR-1", Payload: auditsession.Unresolved{}}}))
	out = problemsTable([]auditsession.ScannedItem{{Code: "QR-1", Payload: auditsession.Errored{Reason: "Code not found"}}})
	assert.Contains(t, out, "Code")
	assert.Contains(t, out, "QR-1")

	rec := audit.Reconcile(
		[]audit.ExpectedAsset{{ID: uuid.New(), Name: "Ladder"}, {ID: uuid.New(), Name: "Camera"}},
		nil,
	)
	out = checklistTable(rec.Checklist())
	assert.Contains(t, out, "Camera")
	assert.Contains(t, out, "missing")
}
