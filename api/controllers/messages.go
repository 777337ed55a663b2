package controllers

import (
	"encoding/base64"
	"net/http"

	"github.com/gatsis/gatsishub-backend/api/middleware"
	"github.com/gatsis/gatsishub-backend/api/responses"
	"github.com/gatsis/gatsishub-backend/api/validators"
	"github.com/gatsis/gatsishub-backend/internal/messages"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
)

type sendMessageRequest struct {
	Body       string                   `json:"body"`
	Attachment *messageAttachmentUpload `json:"attachment"`
}

type messageAttachmentUpload struct {
	Name string `json:"name" validate:"required"`
	Mime string `json:"mime"`
	Data string `json:"data" validate:"required"`
}

func (u *messageAttachmentUpload) decode() (*messages.Attachment, error) {
	if u == nil {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(u.Data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "attachment data is not valid base64")
	}
	return &messages.Attachment{Name: u.Name, Mime: u.Mime, Data: data}, nil
}

// MessageThread returns the calling customer's full conversation, oldest
// first. Reading the thread marks staff messages as read.
func MessageThread(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messages service unavailable"))
			return
		}

		customerID, err := requireCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Thread(r.Context(), customerID, enums.ActorKindCustomer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newMessageResponses(rows))
	}
}

func SendMessage(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messages service unavailable"))
			return
		}

		customerID, err := requireCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body sendMessageRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		attachment, err := body.Attachment.decode()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		message, err := svc.Send(r.Context(), messages.SendInput{
			CustomerID: customerID,
			Sender:     enums.MessageSenderCustomer,
			Body:       body.Body,
			Attachment: attachment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newMessageResponse(message))
	}
}

func AdminConversations(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messages service unavailable"))
			return
		}

		rows, err := svc.Conversations(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func AdminConversationThread(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messages service unavailable"))
			return
		}

		customerID, err := parseUUIDParam(r, "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Thread(r.Context(), customerID, enums.ActorKindStaff)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newMessageResponses(rows))
	}
}

func AdminSendMessage(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messages service unavailable"))
			return
		}

		customerID, err := parseUUIDParam(r, "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		staffID, err := requireActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body sendMessageRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		attachment, err := body.Attachment.decode()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		message, err := svc.Send(r.Context(), messages.SendInput{
			CustomerID:    customerID,
			Sender:        enums.MessageSenderAdmin,
			SenderStaffID: &staffID,
			SenderRole:    middleware.RoleFromContext(r.Context()),
			Body:          body.Body,
			Attachment:    attachment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newMessageResponse(message))
	}
}
