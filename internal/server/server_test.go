package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
	"github.com/leonardo-meireles/vm-remediator/pkg/inventory"
	"github.com/leonardo-meireles/vm-remediator/pkg/metrics"
	"github.com/leonardo-meireles/vm-remediator/pkg/remediation"
	"github.com/leonardo-meireles/vm-remediator/pkg/security"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	secret = "S"
	target = "203.0.113.10"
)

func fleet(status string) *inventory.Static {
	return inventory.NewStatic(
		inventory.StaticZone{Name: "asia-east1-a"},
		inventory.StaticZone{Name: "us-central1-a", Instances: []inventory.StaticInstance{{
			Instance: inventory.Instance{
				Name: "web-1",
				NetworkInterfaces: []inventory.NetworkInterface{{
					AccessConfigs: []inventory.AccessConfig{{NatIP: target}},
				}},
			},
			Status: status,
		}}},
	)
}

func newTestServer(inv inventory.Client, m *metrics.Metrics, opts Options) *Server {
	workflow := remediation.NewWorkflow(
		remediation.NewLocator(inv, "p", target, 1, m),
		remediation.NewExecutor(inv, "p", false, m),
		nil,
		m,
	)
	return New(security.NewValidator(secret), workflow, m, opts)
}

func post(t *testing.T, s *Server, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRemediateRunningInstanceIsReset(t *testing.T) {
	inv := fleet("RUNNING")
	m := metrics.New()
	s := newTestServer(inv, m, Options{})

	w := post(t, s, "/", `{"secret":"S","responseState":"Not Responding"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "reset", body["action"])
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Operation completed on web-1", body["detail"])
	assert.Equal(t, map[string]any{"name": "web-1", "zone": "us-central1-a"}, body["instance"])

	assert.Equal(t, 1, inv.CountOp(inventory.OpResetInstance))
	assert.Zero(t, inv.CountOp(inventory.OpStartInstance))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportsTotal.WithLabelValues("ok")))
}

func TestRemediateUnrecognizedStateMakesNoRemoteCalls(t *testing.T) {
	inv := fleet("RUNNING")
	s := newTestServer(inv, nil, Options{})

	w := post(t, s, "/", `{"secret":"S","responseState":"ok"}`, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decode(t, w)["error"])
	assert.Empty(t, inv.Calls())
}

func TestRemediateStoppedInstanceIsStarted(t *testing.T) {
	inv := fleet("TERMINATED")
	s := newTestServer(inv, nil, Options{})

	w := post(t, s, "/remediate", `{"responseState":"Reporting Error: connection refused"}`, map[string]string{security.HeaderSecret: secret})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "start", decode(t, w)["action"])
	assert.Equal(t, 1, inv.CountOp(inventory.OpStartInstance))
}

func TestRemediateAuthorization(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		header map[string]string
		want   int
	}{
		{"PayloadSecret", `{"secret":"S","responseState":"Request Timeout"}`, nil, http.StatusOK},
		{"HeaderSecret", `{"secret":"wrong","responseState":"Request Timeout"}`, map[string]string{security.HeaderSecret: secret}, http.StatusOK},
		{"NoSecret", `{"responseState":"Request Timeout"}`, nil, http.StatusForbidden},
		{"WrongBoth", `{"secret":"x","responseState":"Request Timeout"}`, map[string]string{security.HeaderSecret: "y"}, http.StatusForbidden},
		{"WrongSecretBadSignal", `{"secret":"x","responseState":"ok"}`, nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := fleet("RUNNING")
			s := newTestServer(inv, nil, Options{})

			w := post(t, s, "/", tt.body, tt.header)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusForbidden {
				assert.Empty(t, inv.Calls())
			}
		})
	}
}

func TestRemediateRejectionsAreIndistinguishable(t *testing.T) {
	m := metrics.New()
	s := newTestServer(fleet("RUNNING"), m, Options{})

	badSecret := post(t, s, "/", `{"secret":"guess","responseState":"Not Responding"}`, nil)
	badSignal := post(t, s, "/", `{"secret":"S","responseState":"Healthy"}`, nil)

	require.Equal(t, http.StatusForbidden, badSecret.Code)
	require.Equal(t, http.StatusForbidden, badSignal.Code)
	assert.Equal(t, badSecret.Body.String(), badSignal.Body.String())
	assert.NotContains(t, badSecret.Body.String(), "guess")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportsTotal.WithLabelValues("authorization")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportsTotal.WithLabelValues("signal_validation")))
}

func TestRemediateMalformedBody(t *testing.T) {
	inv := fleet("RUNNING")
	s := newTestServer(inv, nil, Options{})

	for _, body := range []string{`not json`, `{"secret":"S","responseState":42}`, ``} {
		w := post(t, s, "/", body, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, body)
	}
	assert.Empty(t, inv.Calls())
}

func TestRemediateNotFound(t *testing.T) {
	inv := inventory.NewStatic(inventory.StaticZone{Name: "z1"})
	s := newTestServer(inv, nil, Options{})

	w := post(t, s, "/", `{"secret":"S","responseState":"Not Responding"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["error"])
}

func TestRemediateServerErrorsNameInstance(t *testing.T) {
	t.Run("UnsupportedState", func(t *testing.T) {
		inv := fleet("STOPPING")
		s := newTestServer(inv, nil, Options{})

		w := post(t, s, "/", `{"secret":"S","responseState":"Not Responding"}`, nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode(t, w)
		assert.Equal(t, "unsupported_state", body["error"])
		assert.Equal(t, "web-1", body["instance"])
		assert.Zero(t, inv.CountOp(inventory.OpResetInstance))
		assert.Zero(t, inv.CountOp(inventory.OpStartInstance))
	})

	t.Run("ResetFails", func(t *testing.T) {
		inv := fleet("RUNNING")
		inv.FailOn(inventory.OpResetInstance, stderrors.New("backend unavailable"))
		s := newTestServer(inv, nil, Options{})

		w := post(t, s, "/", `{"secret":"S","responseState":"Not Responding"}`, nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode(t, w)
		assert.Equal(t, "remote_call", body["error"])
		assert.Equal(t, "web-1", body["instance"])
	})

	t.Run("ListZonesFails", func(t *testing.T) {
		inv := fleet("RUNNING")
		inv.FailOn(inventory.OpListZones, stderrors.New("permission denied"))
		s := newTestServer(inv, nil, Options{})

		w := post(t, s, "/", `{"secret":"S","responseState":"Not Responding"}`, nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, decode(t, w), "instance")
	})
}

func TestRateLimit(t *testing.T) {
	inv := fleet("RUNNING")
	m := metrics.New()
	s := newTestServer(inv, m, Options{RateLimit: 0.001, RateBurst: 1})

	first := post(t, s, "/", `{"secret":"S","responseState":"Not Responding"}`, nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := post(t, s, "/", `{"secret":"S","responseState":"Not Responding"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, 1, inv.CountOp(inventory.OpResetInstance))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportsTotal.WithLabelValues("rate_limited")))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(fleet("RUNNING"), metrics.New(), Options{RateLimit: 0.001, RateBurst: 1})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code, "healthz is not rate limited")
	}

	post(t, s, "/", `{"secret":"S","responseState":"Not Responding"}`, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vm_remediator_reports_total")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, StatusFor(errors.Newf(errors.KindAuthorization, "op", "x")))
	assert.Equal(t, http.StatusForbidden, StatusFor(errors.Newf(errors.KindSignalValidation, "op", "x")))
	assert.Equal(t, http.StatusNotFound, StatusFor(errors.Newf(errors.KindNotFound, "op", "x")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.Newf(errors.KindUnsupportedState, "op", "x")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.Newf(errors.KindRemoteCall, "op", "x")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(assert.AnError))
}

type stubRemediator struct{ ctxSeen context.Context }

func (s *stubRemediator) Remediate(ctx context.Context, _ security.Report) (*remediation.Outcome, error) {
	s.ctxSeen = ctx
	return &remediation.Outcome{Action: remediation.ActionReset, Success: true}, nil
}

func TestRemediatorReceivesRequestContext(t *testing.T) {
	stub := &stubRemediator{}
	s := New(security.NewValidator(secret), stub, nil, Options{})

	w := post(t, s, "/", `{"secret":"S","responseState":"Not Responding"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, stub.ctxSeen)
}
