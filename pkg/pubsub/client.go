package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gatsis/gatsishub-backend/pkg/config"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoSubscriptions   = errors.New("pubsub subscription name is required")
)

// Client exposes publishers and subscribers for the configured topics. It
// never creates resources; topics and subscriptions must be provisioned
// ahead of time and missing ones fail the health check.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// NewClient connects and verifies every configured subscription exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}

	raw, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: raw, projectID: project, cfg: cfg}
	if err := c.checkSubscriptions(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(ctx, "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) checkSubscriptions(ctx context.Context) error {
	checked := 0
	for _, name := range []string{c.cfg.WorkerSubscription, c.cfg.AnalyticsSubscription} {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := c.checkSubscription(ctx, name); err != nil {
			return err
		}
		checked++
	}
	if checked == 0 {
		return errNoSubscriptions
	}
	return nil
}

func (c *Client) checkSubscription(ctx context.Context, name string) error {
	resource := c.resourceName("subscriptions", name)
	if resource == "" {
		return fmt.Errorf("subscription %q not configured", name)
	}

	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
		Subscription: resource,
	})
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("subscription %q does not exist", name)
	case err != nil:
		return fmt.Errorf("checking subscription %q: %w", name, err)
	}
	return nil
}

// Subscription returns a subscriber handle. The name may be a bare ID or a
// full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	resource := c.resourceName("subscriptions", name)
	if resource == "" {
		return nil
	}
	return c.client.Subscriber(resource)
}

// WorkerSubscription feeds the notification worker.
func (c *Client) WorkerSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.WorkerSubscription)
}

// AnalyticsSubscription feeds the BigQuery sink.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// Publisher returns a publisher handle for a topic ID or resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	resource := c.resourceName("topics", name)
	if resource == "" {
		return nil
	}
	return c.client.Publisher(resource)
}

func (c *Client) OrdersPublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.OrdersTopic)
}

func (c *Client) MessagingPublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.MessagingTopic)
}

func (c *Client) ProductionPublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.ProductionTopic)
}

// Ping re-checks that every configured subscription still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.checkSubscriptions(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a bare ID into projects/<id>/<kind>/<name>. Names
// that already carry the projects/ prefix pass through untouched.
func (c *Client) resourceName(kind, name string) string {
	if c == nil {
		return ""
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	project := strings.TrimSpace(c.projectID)
	if project == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", project, kind, name)
}
