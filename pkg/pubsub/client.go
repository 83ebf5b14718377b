package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
)

// Client owns the Pub/Sub connection and the operator alert topic.
type Client struct {
	client     *pubsub.Client
	alertTopic string
}

// NewClient connects to Pub/Sub and fails fast when the alert topic is missing.
// PUBSUB_EMULATOR_HOST is honoured by the underlying library.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	topic := topicResourceName(gcp.ProjectID, cfg.AlertTopic)
	if topic == "" {
		return nil, errors.New("pubsub needs a gcp project id and an alert topic")
	}

	psClient, err := pubsub.NewClient(ctx, strings.TrimSpace(gcp.ProjectID), credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, alertTopic: topic}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub.connected")
	}
	return c, nil
}

func credentials(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// AlertPublisher returns an ordered publisher for operator alerts. Alerts are rare and
// time sensitive, so messages are flushed one at a time.
func (c *Client) AlertPublisher() *AlertPublisher {
	if c == nil || c.client == nil {
		return nil
	}
	pub := c.client.Publisher(c.alertTopic)
	pub.EnableMessageOrdering = true
	pub.PublishSettings.CountThreshold = 1
	pub.PublishSettings.DelayThreshold = 10 * time.Millisecond
	return &AlertPublisher{publisher: pub}
}

// Ping checks that the alert topic exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.alertTopic})
	switch status.Code(err) {
	case codes.OK:
		return nil
	case codes.NotFound:
		return fmt.Errorf("topic %s does not exist", c.alertTopic)
	default:
		return fmt.Errorf("checking topic %s: %w", c.alertTopic, err)
	}
}

// Close releases the Pub/Sub client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// topicResourceName expands a short topic id into projects/<p>/topics/<id>. Full resource
// names pass through unchanged.
func topicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if n == "" || p == "" {
		return ""
	}
	return "projects/" + p + "/topics/" + n
}
