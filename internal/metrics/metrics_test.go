package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersRegistered(t *testing.T) {
	before := testutil.ToFloat64(PacketsTotal.WithLabelValues(StageRead))
	PacketsTotal.WithLabelValues(StageRead).Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(PacketsTotal.WithLabelValues(StageRead)))

	before = testutil.ToFloat64(AuditRecordsTotal)
	AuditRecordsTotal.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AuditRecordsTotal))
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestServerExposesMetrics(t *testing.T) {
	addr := freeAddr(t)
	s := NewServer(addr, "")
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	RewriteErrorsTotal.Inc()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return false
		}
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	assert.True(t, strings.Contains(body, "netanon_rewrite_errors_total"))
}

func TestStopWithoutStart(t *testing.T) {
	assert.NoError(t, NewServer(":0", "/m").Stop(context.Background()))
}
