package controllers

import (
	"time"

	"github.com/gatsis/gatsishub-backend/internal/notifications"
	"github.com/gatsis/gatsishub-backend/pkg/db/models"
)

// Response shapes for rows the services return as gorm models. Attachment
// bytes never ride along; clients fetch them from the attachment endpoint.

type materialResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description,omitempty"`
	Features     []string  `json:"features"`
	UnitPrice    string    `json:"unitPrice"`
	ImageURL     *string   `json:"imageUrl,omitempty"`
	IsActive     bool      `json:"isActive"`
	DisplayOrder int       `json:"displayOrder"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func newMaterialResponse(m *models.Material) materialResponse {
	features := make([]string, len(m.Features))
	copy(features, m.Features)
	return materialResponse{
		ID:           m.ID.String(),
		Name:         m.Name,
		Description:  m.Description,
		Features:     features,
		UnitPrice:    m.UnitPrice.StringFixed(2),
		ImageURL:     m.ImageURL,
		IsActive:     m.IsActive,
		DisplayOrder: m.DisplayOrder,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func newMaterialResponses(rows []models.Material) []materialResponse {
	out := make([]materialResponse, 0, len(rows))
	for i := range rows {
		out = append(out, newMaterialResponse(&rows[i]))
	}
	return out
}

type messageResponse struct {
	ID             string     `json:"id"`
	CustomerID     string     `json:"customerId"`
	Sender         string     `json:"sender"`
	SenderStaffID  *string    `json:"senderStaffId,omitempty"`
	Body           string     `json:"body"`
	AttachmentName *string    `json:"attachmentName,omitempty"`
	AttachmentMime *string    `json:"attachmentMime,omitempty"`
	HasAttachment  bool       `json:"hasAttachment"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func newMessageResponse(m *models.Message) messageResponse {
	resp := messageResponse{
		ID:             m.ID.String(),
		CustomerID:     m.CustomerID.String(),
		Sender:         string(m.Sender),
		Body:           m.Body,
		AttachmentName: m.AttachmentName,
		AttachmentMime: m.AttachmentMime,
		HasAttachment:  len(m.AttachmentData) > 0,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
	if m.SenderStaffID != nil {
		id := m.SenderStaffID.String()
		resp.SenderStaffID = &id
	}
	return resp
}

func newMessageResponses(rows []models.Message) []messageResponse {
	out := make([]messageResponse, 0, len(rows))
	for i := range rows {
		out = append(out, newMessageResponse(&rows[i]))
	}
	return out
}

type notificationResponse struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Link      *string    `json:"link,omitempty"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type notificationPage struct {
	Items  []notificationResponse `json:"items"`
	Cursor string                 `json:"cursor"`
}

func newNotificationPage(result *notifications.ListResult) notificationPage {
	items := make([]notificationResponse, 0, len(result.Items))
	for i := range result.Items {
		n := &result.Items[i]
		items = append(items, notificationResponse{
			ID:        n.ID.String(),
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			Link:      n.Link,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		})
	}
	return notificationPage{Items: items, Cursor: result.Cursor}
}

type adminNotificationResponse struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	TargetRole string     `json:"targetRole"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Link       *string    `json:"link,omitempty"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type adminNotificationPage struct {
	Items  []adminNotificationResponse `json:"items"`
	Cursor string                      `json:"cursor"`
}

func newAdminNotificationPage(result *notifications.AdminListResult) adminNotificationPage {
	items := make([]adminNotificationResponse, 0, len(result.Items))
	for i := range result.Items {
		row := &result.Items[i]
		items = append(items, adminNotificationResponse{
			ID:         row.ID.String(),
			Type:       string(row.Type),
			TargetRole: string(row.TargetRole),
			Title:      row.Title,
			Message:    row.Message,
			Link:       row.Link,
			ReadAt:     row.ReadAt,
			CreatedAt:  row.CreatedAt,
		})
	}
	return adminNotificationPage{Items: items, Cursor: result.Cursor}
}

type orderLogResponse struct {
	ID         string    `json:"id"`
	FromStatus *string   `json:"fromStatus,omitempty"`
	ToStatus   string    `json:"toStatus"`
	ActorKind  string    `json:"actorKind"`
	ActorID    string    `json:"actorId"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newOrderLogResponses(rows []models.OrderLog) []orderLogResponse {
	out := make([]orderLogResponse, 0, len(rows))
	for i := range rows {
		l := &rows[i]
		resp := orderLogResponse{
			ID:        l.ID.String(),
			ToStatus:  string(l.ToStatus),
			ActorKind: string(l.ActorKind),
			ActorID:   l.ActorID.String(),
			Note:      l.Note,
			CreatedAt: l.CreatedAt,
		}
		if l.FromStatus != nil {
			from := string(*l.FromStatus)
			resp.FromStatus = &from
		}
		out = append(out, resp)
	}
	return out
}

type orderResponse struct {
	ID              string             `json:"id"`
	OrderNumber     string             `json:"orderNumber"`
	CustomerID      string             `json:"customerId"`
	CompanyName     *string            `json:"companyName,omitempty"`
	MaterialID      string             `json:"materialId"`
	MaterialName    *string            `json:"materialName,omitempty"`
	Status          string             `json:"status"`
	Quantity        int                `json:"quantity"`
	UnitPrice       string             `json:"unitPrice"`
	TotalAmount     string             `json:"totalAmount"`
	LogoURL         *string            `json:"logoUrl,omitempty"`
	Specifications  *string            `json:"specifications,omitempty"`
	PaymentVerified bool               `json:"paymentVerified"`
	Deadline        *time.Time         `json:"deadline,omitempty"`
	Logs            []orderLogResponse `json:"logs,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func newOrderResponse(o *models.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID.String(),
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID.String(),
		MaterialID:      o.MaterialID.String(),
		Status:          string(o.Status),
		Quantity:        o.Quantity,
		UnitPrice:       o.UnitPrice.StringFixed(2),
		TotalAmount:     o.TotalAmount.StringFixed(2),
		LogoURL:         o.LogoURL,
		Specifications:  o.Specifications,
		PaymentVerified: o.PaymentVerified,
		Deadline:        o.Deadline,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.Customer != nil {
		resp.CompanyName = &o.Customer.CompanyName
	}
	if o.Material != nil {
		resp.MaterialName = &o.Material.Name
	}
	if len(o.Logs) > 0 {
		resp.Logs = newOrderLogResponses(o.Logs)
	}
	return resp
}

func newOrderResponses(rows []models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(rows))
	for i := range rows {
		out = append(out, newOrderResponse(&rows[i]))
	}
	return out
}

type orderPage struct {
	Items  []orderResponse `json:"items"`
	Cursor string          `json:"cursor"`
}

type quotaOrderResponse struct {
	OrderID string `json:"orderId"`
	Units   int    `json:"units"`
}

type quotaResponse struct {
	ID            string               `json:"id"`
	TeamID        string               `json:"teamId"`
	TeamName      *string              `json:"teamName,omitempty"`
	Status        string               `json:"status"`
	TargetUnits   int                  `json:"targetUnits"`
	FinishedUnits int                  `json:"finishedUnits"`
	StartsAt      time.Time            `json:"startsAt"`
	EndsAt        time.Time            `json:"endsAt"`
	Orders        []quotaOrderResponse `json:"orders"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

func newQuotaResponse(q *models.Quota) quotaResponse {
	orders := make([]quotaOrderResponse, 0, len(q.Orders))
	for _, link := range q.Orders {
		orders = append(orders, quotaOrderResponse{OrderID: link.OrderID.String(), Units: link.Units})
	}
	resp := quotaResponse{
		ID:            q.ID.String(),
		TeamID:        q.TeamID.String(),
		Status:        string(q.Status),
		TargetUnits:   q.TargetUnits,
		FinishedUnits: q.FinishedUnits,
		StartsAt:      q.StartsAt,
		EndsAt:        q.EndsAt,
		Orders:        orders,
		CreatedAt:     q.CreatedAt,
		UpdatedAt:     q.UpdatedAt,
	}
	if q.Team != nil {
		resp.TeamName = &q.Team.Name
	}
	return resp
}

func newQuotaResponses(rows []models.Quota) []quotaResponse {
	out := make([]quotaResponse, 0, len(rows))
	for i := range rows {
		out = append(out, newQuotaResponse(&rows[i]))
	}
	return out
}

type submissionResponse struct {
	ID           string     `json:"id"`
	QuotaID      string     `json:"quotaId"`
	EmployeeID   string     `json:"employeeId"`
	OrderID      *string    `json:"orderId,omitempty"`
	Units        int        `json:"units"`
	Note         *string    `json:"note,omitempty"`
	Priority     *string    `json:"priority,omitempty"`
	Status       string     `json:"status"`
	ReviewedBy   *string    `json:"reviewedBy,omitempty"`
	ReviewedAt   *time.Time `json:"reviewedAt,omitempty"`
	RejectReason *string    `json:"rejectReason,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func newSubmissionResponse(s *models.Submission) submissionResponse {
	resp := submissionResponse{
		ID:           s.ID.String(),
		QuotaID:      s.QuotaID.String(),
		EmployeeID:   s.EmployeeID.String(),
		Units:        s.Units,
		Note:         s.Note,
		Priority:     s.Priority,
		Status:       string(s.Status),
		ReviewedAt:   s.ReviewedAt,
		RejectReason: s.RejectReason,
		CreatedAt:    s.CreatedAt,
	}
	if s.OrderID != nil {
		id := s.OrderID.String()
		resp.OrderID = &id
	}
	if s.ReviewedBy != nil {
		id := s.ReviewedBy.String()
		resp.ReviewedBy = &id
	}
	return resp
}

func newSubmissionResponses(rows []models.Submission) []submissionResponse {
	out := make([]submissionResponse, 0, len(rows))
	for i := range rows {
		out = append(out, newSubmissionResponse(&rows[i]))
	}
	return out
}
