// Package metrics holds the Prometheus collectors for the API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector. A nil *Metrics is valid and records
// nothing, so services can be built without one in tests.
type Metrics struct {
	PostsCreated       prometheus.Counter
	CommentsCreated    prometheus.Counter
	LikesToggled       *prometheus.CounterVec
	FollowsToggled     *prometheus.CounterVec
	NotificationsSent  *prometheus.CounterVec
	EventPublishErrors prometheus.Counter
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PostsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "social_posts_created_total",
			Help: "Total number of posts created",
		}),
		CommentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "social_comments_created_total",
			Help: "Total number of comments created",
		}),
		LikesToggled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "social_likes_toggled_total",
				Help: "Total number of like toggles, by resulting action",
			},
			[]string{"action"},
		),
		FollowsToggled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "social_follows_toggled_total",
				Help: "Total number of follow toggles, by resulting action",
			},
			[]string{"action"},
		),
		NotificationsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "social_notifications_created_total",
				Help: "Total number of notifications stored, by type",
			},
			[]string{"type"},
		),
		EventPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "social_event_publish_errors_total",
			Help: "Total number of domain events that could not be published",
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "social_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "social_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		m.PostsCreated,
		m.CommentsCreated,
		m.LikesToggled,
		m.FollowsToggled,
		m.NotificationsSent,
		m.EventPublishErrors,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

func (m *Metrics) PostCreated() {
	if m != nil {
		m.PostsCreated.Inc()
	}
}

func (m *Metrics) CommentCreated() {
	if m != nil {
		m.CommentsCreated.Inc()
	}
}

func (m *Metrics) LikeToggled(liked bool) {
	if m != nil {
		m.LikesToggled.WithLabelValues(action(liked, "like", "unlike")).Inc()
	}
}

func (m *Metrics) FollowToggled(following bool) {
	if m != nil {
		m.FollowsToggled.WithLabelValues(action(following, "follow", "unfollow")).Inc()
	}
}

func (m *Metrics) NotificationCreated(kind string) {
	if m != nil {
		m.NotificationsSent.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) EventPublishFailed() {
	if m != nil {
		m.EventPublishErrors.Inc()
	}
}

// ObserveRequest records one finished HTTP request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func action(on bool, yes, no string) string {
	if on {
		return yes
	}
	return no
}
