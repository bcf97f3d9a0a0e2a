package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medibook-api/internal/email"
	"github.com/jwalitptl/medibook-api/internal/model"
	"github.com/jwalitptl/medibook-api/pkg/metrics"
)

type recordingSender struct {
	sent []email.Message
	err  error
}

func (r *recordingSender) Provider() string { return "recording" }

func (r *recordingSender) Send(_ context.Context, msg email.Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func notification() *model.AppointmentNotification {
	return &model.AppointmentNotification{
		Email:   "jane@example.com",
		Patient: "Jane",
		Doctor:  "Dr. Nuhu Gidado",
		Date:    time.Date(2030, time.March, 11, 10, 0, 0, 0, time.UTC),
	}
}

func TestRender(t *testing.T) {
	svc := NewService(&recordingSender{}, nil)

	msg, err := svc.Render(notification())
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "Jane", msg.ToName)
	assert.Equal(t, Subject, msg.Subject)
	assert.Contains(t, msg.Body, "Hi Jane,")
	assert.Contains(t, msg.Body, "with Dr. Nuhu Gidado has been scheduled for Mar 11, 2030 | 10:00 AM.")
	assert.Contains(t, msg.HTML, "Mar 11, 2030 | 10:00 AM")
}

func TestRenderInLocation(t *testing.T) {
	svc := NewService(&recordingSender{}, nil, WithLocation(time.FixedZone("WAT", 3600)))

	msg, err := svc.Render(notification())
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "Mar 11, 2030 | 11:00 AM")
}

func TestRenderEscapesHTML(t *testing.T) {
	svc := NewService(&recordingSender{}, nil)
	n := notification()
	n.Patient = "<script>alert(1)</script>"

	msg, err := svc.Render(n)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestSend(t *testing.T) {
	sender := &recordingSender{}
	m := metrics.NewMetricsWith(prometheus.NewRegistry(), "medibook", "test")
	svc := NewService(sender, nil, WithMetrics(m))

	require.NoError(t, svc.Send(context.Background(), notification()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("recording", "sent")))

	sender.err = errors.New("provider down")
	assert.Error(t, svc.Send(context.Background(), notification()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("recording", "failed")))
}
