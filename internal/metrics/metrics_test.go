// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordEnrollment(t *testing.T) {
	m := New()
	m.RecordEnrollment("success")
	m.RecordEnrollment("success")
	m.RecordEnrollment("timeout")

	require.Equal(t, float64(2), testutil.ToFloat64(m.EnrollmentTotal.WithLabelValues("success")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.EnrollmentTotal.WithLabelValues("timeout")))
}

func TestHandler_ServesExposition(t *testing.T) {
	m := New()
	m.Neighbors.Set(3)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "ipcpd_neighbors 3")
}
