package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/internal/changefeed"
	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
	"github.com/gatsis/gatsishub-backend/pkg/outbox"
	"github.com/gatsis/gatsishub-backend/pkg/outbox/payloads"
)

type fakeNotificationWriter struct {
	rows []*models.Notification
	err  error
}

func (f *fakeNotificationWriter) Create(_ context.Context, notification *models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, notification)
	return nil
}

type fakeAdminWriter struct {
	rows []*models.AdminNotification
	err  error
}

func (f *fakeAdminWriter) Create(_ context.Context, notification *models.AdminNotification) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, notification)
	return nil
}

type fakeFeed struct {
	events []changefeed.ChangeEvent
	err    error
}

func (f *fakeFeed) Publish(_ context.Context, event changefeed.ChangeEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type consumerFixture struct {
	consumer *Consumer
	repo     *fakeNotificationWriter
	admin    *fakeAdminWriter
	feed     *fakeFeed
}

func newConsumerFixture(t *testing.T) consumerFixture {
	t.Helper()
	repo := &fakeNotificationWriter{}
	admin := &fakeAdminWriter{}
	feed := &fakeFeed{}
	consumer := &Consumer{
		repo:      repo,
		adminRepo: admin,
		feed:      feed,
		logg: logger.New(logger.Options{
			ServiceName: "notifications-test",
			Level:       logger.ParseLevel("error"),
			Output:      io.Discard,
		}),
	}
	return consumerFixture{consumer: consumer, repo: repo, admin: admin, feed: feed}
}

func buildEnvelope(t *testing.T, payload any) outbox.PayloadEnvelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

func TestConsumerOrderCreatedTargetsSalesAdmin(t *testing.T) {
	fixture := newConsumerFixture(t)
	customerID := uuid.New()
	payload := payloads.OrderCreatedEvent{
		OrderID:     uuid.New(),
		OrderNumber: "GH-20260115-AB12CD34",
		CustomerID:  customerID,
		MaterialID:  uuid.New(),
		Quantity:    400,
		TotalAmount: "940.00",
	}

	err := fixture.consumer.Handle(context.Background(), enums.EventOrderCreated, buildEnvelope(t, payload))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	if len(fixture.admin.rows) != 1 {
		t.Fatalf("expected 1 admin notification, got %d", len(fixture.admin.rows))
	}
	row := fixture.admin.rows[0]
	if row.TargetRole != enums.AdminTargetSalesAdmin {
		t.Fatalf("unexpected target role: %s", row.TargetRole)
	}
	if !strings.Contains(row.Message, payload.OrderNumber) {
		t.Fatalf("message should mention the order number: %s", row.Message)
	}
	if len(fixture.repo.rows) != 0 {
		t.Fatalf("order.created should not notify the customer")
	}

	if len(fixture.feed.events) != 1 {
		t.Fatalf("expected 1 change event, got %d", len(fixture.feed.events))
	}
	event := fixture.feed.events[0]
	if event.Table != "orders" || event.Action != "insert" {
		t.Fatalf("unexpected change event: %+v", event)
	}
	wantScope := changefeed.CustomerScope(customerID)
	if !containsScope(event.Scopes, wantScope) {
		t.Fatalf("change event missing customer scope %s: %v", wantScope, event.Scopes)
	}
}

func TestConsumerStatusChangeNotifiesCustomer(t *testing.T) {
	fixture := newConsumerFixture(t)
	customerID := uuid.New()
	from := enums.OrderStatusPending
	payload := payloads.OrderStatusChangedEvent{
		OrderID:     uuid.New(),
		OrderNumber: "GH-20260115-AB12CD34",
		CustomerID:  customerID,
		FromStatus:  &from,
		ToStatus:    enums.OrderStatusApproved,
	}

	err := fixture.consumer.Handle(context.Background(), enums.EventOrderStatusChanged, buildEnvelope(t, payload))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	if len(fixture.repo.rows) != 1 {
		t.Fatalf("expected 1 customer notification, got %d", len(fixture.repo.rows))
	}
	row := fixture.repo.rows[0]
	if row.CustomerID != customerID {
		t.Fatalf("notification assigned to wrong customer")
	}
	if row.Type != enums.NotificationTypeOrderUpdate {
		t.Fatalf("unexpected notification type: %s", row.Type)
	}
	if !strings.Contains(row.Message, string(enums.OrderStatusApproved)) {
		t.Fatalf("message should mention the new status: %s", row.Message)
	}
}

func TestConsumerVerifyingPaymentUsesPaymentType(t *testing.T) {
	fixture := newConsumerFixture(t)
	payload := payloads.OrderStatusChangedEvent{
		OrderID:     uuid.New(),
		OrderNumber: "GH-20260115-AB12CD34",
		CustomerID:  uuid.New(),
		ToStatus:    enums.OrderStatusVerifyingPayment,
		Note:        "bank transfer pending",
	}

	err := fixture.consumer.Handle(context.Background(), enums.EventOrderStatusChanged, buildEnvelope(t, payload))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	if len(fixture.repo.rows) != 1 {
		t.Fatalf("expected 1 customer notification, got %d", len(fixture.repo.rows))
	}
	row := fixture.repo.rows[0]
	if row.Type != enums.NotificationTypePayment {
		t.Fatalf("expected payment notification type, got %s", row.Type)
	}
	if !strings.Contains(row.Message, payload.Note) {
		t.Fatalf("message should carry the transition note: %s", row.Message)
	}
}

func TestConsumerDeadlineApproachingTargetsBothRoles(t *testing.T) {
	fixture := newConsumerFixture(t)
	payload := payloads.OrderDeadlineApproachingEvent{
		OrderID:     uuid.New(),
		OrderNumber: "GH-20260115-AB12CD34",
		CustomerID:  uuid.New(),
		Status:      enums.OrderStatusInProduction,
		Deadline:    time.Now().Add(36 * time.Hour),
		HoursLeft:   36,
	}

	err := fixture.consumer.Handle(context.Background(), enums.EventOrderDeadlineApproaching, buildEnvelope(t, payload))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	if len(fixture.admin.rows) != 1 {
		t.Fatalf("expected 1 admin notification, got %d", len(fixture.admin.rows))
	}
	if fixture.admin.rows[0].TargetRole != enums.AdminTargetBoth {
		t.Fatalf("deadline reminders should reach both staff roles")
	}
}

func TestConsumerCustomerMessageNotifiesSalesAdmin(t *testing.T) {
	fixture := newConsumerFixture(t)
	customerID := uuid.New()
	payload := payloads.MessageCreatedEvent{
		MessageID:  uuid.New(),
		CustomerID: customerID,
		Sender:     enums.MessageSenderCustomer,
		Preview:    "When can we expect delivery?",
	}

	err := fixture.consumer.Handle(context.Background(), enums.EventMessageCreated, buildEnvelope(t, payload))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	if len(fixture.admin.rows) != 1 {
		t.Fatalf("expected 1 admin notification, got %d", len(fixture.admin.rows))
	}
	if fixture.admin.rows[0].TargetRole != enums.AdminTargetSalesAdmin {
		t.Fatalf("customer messages should notify sales admins")
	}
	if len(fixture.repo.rows) != 0 {
		t.Fatalf("customer message should not notify the customer")
	}

	event := fixture.feed.events[0]
	if !containsScope(event.Scopes, changefeed.ConversationScope(customerID)) {
		t.Fatalf("change event missing conversation scope: %v", event.Scopes)
	}
}

func TestConsumerAdminMessageNotifiesCustomer(t *testing.T) {
	fixture := newConsumerFixture(t)
	customerID := uuid.New()
	payload := payloads.MessageCreatedEvent{
		MessageID:     uuid.New(),
		CustomerID:    customerID,
		Sender:        enums.MessageSenderAdmin,
		HasAttachment: true,
	}

	err := fixture.consumer.Handle(context.Background(), enums.EventMessageCreated, buildEnvelope(t, payload))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	if len(fixture.repo.rows) != 1 {
		t.Fatalf("expected 1 customer notification, got %d", len(fixture.repo.rows))
	}
	row := fixture.repo.rows[0]
	if row.CustomerID != customerID {
		t.Fatalf("notification assigned to wrong customer")
	}
	if row.Message == "" {
		t.Fatalf("attachment-only messages should still carry a message body")
	}
	if len(fixture.admin.rows) != 0 {
		t.Fatalf("admin message should not create admin notifications")
	}
}

func TestConsumerSubmissionEventsTargetOperationalManager(t *testing.T) {
	fixture := newConsumerFixture(t)
	teamID := uuid.New()
	created := payloads.SubmissionCreatedEvent{
		SubmissionID: uuid.New(),
		QuotaID:      uuid.New(),
		TeamID:       teamID,
		EmployeeID:   uuid.New(),
		Units:        250,
	}

	err := fixture.consumer.Handle(context.Background(), enums.EventSubmissionCreated, buildEnvelope(t, created))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	reviewed := payloads.SubmissionReviewedEvent{
		SubmissionID: created.SubmissionID,
		QuotaID:      created.QuotaID,
		TeamID:       teamID,
		EmployeeID:   created.EmployeeID,
		Units:        250,
		Status:       enums.SubmissionStatusRejected,
		ReviewedBy:   uuid.New(),
		RejectReason: "units exceed remaining target",
	}
	err = fixture.consumer.Handle(context.Background(), enums.EventSubmissionReviewed, buildEnvelope(t, reviewed))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	if len(fixture.admin.rows) != 2 {
		t.Fatalf("expected 2 admin notifications, got %d", len(fixture.admin.rows))
	}
	for _, row := range fixture.admin.rows {
		if row.TargetRole != enums.AdminTargetOperationalManager {
			t.Fatalf("submission events should target the operational manager")
		}
		if row.Type != enums.NotificationTypeProduction {
			t.Fatalf("unexpected notification type: %s", row.Type)
		}
	}
	if !strings.Contains(fixture.admin.rows[1].Message, reviewed.RejectReason) {
		t.Fatalf("rejection should carry the reason: %s", fixture.admin.rows[1].Message)
	}

	if len(fixture.feed.events) != 2 {
		t.Fatalf("expected 2 change events, got %d", len(fixture.feed.events))
	}
	for _, event := range fixture.feed.events {
		if !containsScope(event.Scopes, changefeed.TeamScope(teamID)) {
			t.Fatalf("change event missing team scope: %v", event.Scopes)
		}
	}
}

func TestConsumerPropagatesWriteFailures(t *testing.T) {
	fixture := newConsumerFixture(t)
	fixture.admin.err = errors.New("insert failed")

	payload := payloads.SubmissionCreatedEvent{
		SubmissionID: uuid.New(),
		QuotaID:      uuid.New(),
		TeamID:       uuid.New(),
		EmployeeID:   uuid.New(),
		Units:        10,
	}
	err := fixture.consumer.Handle(context.Background(), enums.EventSubmissionCreated, buildEnvelope(t, payload))
	if err == nil {
		t.Fatalf("expected error when the notification write fails")
	}
	if len(fixture.feed.events) != 0 {
		t.Fatalf("change event should not publish when the write fails")
	}
}

func TestConsumerIgnoresUnknownEventTypes(t *testing.T) {
	fixture := newConsumerFixture(t)
	envelope := buildEnvelope(t, map[string]any{"anything": true})

	err := fixture.consumer.Handle(context.Background(), enums.OutboxEventType("order.shipped"), envelope)
	if err != nil {
		t.Fatalf("unknown event types should be skipped, got %v", err)
	}
	if len(fixture.repo.rows) != 0 || len(fixture.admin.rows) != 0 || len(fixture.feed.events) != 0 {
		t.Fatalf("unknown event types should produce no side effects")
	}
}

func containsScope(scopes []string, want string) bool {
	for _, scope := range scopes {
		if scope == want {
			return true
		}
	}
	return false
}
