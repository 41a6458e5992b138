package http

import (
	"net/http"

	"feeledger/internal/core"
	"feeledger/internal/ledger"
	"feeledger/internal/services"
)

type paidAmountRequest struct {
	PaidAmount *core.Money `json:"paid_amount" validate:"required"`
}

type paymentRequest struct {
	PaymentDate core.Date        `json:"payment_date"`
	PaymentMode core.PaymentMode `json:"payment_mode"`
	AmountPaid  core.Money       `json:"amount_paid"`
	Note        string           `json:"note" validate:"max=500"`
}

type refreshResponse struct {
	Records int `json:"records"`
}

type receiptResponse struct {
	FeeRecordID     core.ID         `json:"fee_record_id"`
	Student         core.StudentRef `json:"student"`
	CourseName      string          `json:"course_name"`
	TotalFee        core.Money      `json:"total_fee"`
	Payment         core.Payment    `json:"payment"`
	Position        int             `json:"position"`
	PreviousBalance core.Money      `json:"previous_balance"`
	CurrentBalance  core.Money      `json:"current_balance"`
}

func newReceiptResponse(r ledger.Receipt) receiptResponse {
	return receiptResponse{
		FeeRecordID:     r.FeeRecordID,
		Student:         r.Student,
		CourseName:      r.CourseName,
		TotalFee:        r.TotalFee,
		Payment:         r.Payment,
		Position:        r.Position,
		PreviousBalance: r.PreviousBalance,
		CurrentBalance:  r.CurrentBalance,
	}
}

func (s *Server) handleListFees(w http.ResponseWriter, r *http.Request) {
	q, err := ParseListQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.fees.List(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateFee(w http.ResponseWriter, r *http.Request) {
	var in core.NewFeeRecord
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.fees.CreateFeeRecord(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/fees/"+string(rec.ID)).
		Body(rec).
		Write(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	n, err := s.fees.Refresh(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s.lookups != nil {
		s.lookups.Invalidate()
	}
	writeJSON(w, http.StatusOK, refreshResponse{Records: n})
}

func (s *Server) handleGetFee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.fees.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdatePaidAmount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in paidAmountRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := services.ValidateStruct(s.validate, in); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.fees.UpdatePaidAmount(r.Context(), id, *in.PaidAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteFee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.fees.DeleteFeeRecord(r.Context(), id, confirmerFor(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in paymentRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := services.ValidateStruct(s.validate, in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.fees.RecordPayment(r.Context(), core.NewPayment{
		FeeRecordID: id,
		PaymentDate: in.PaymentDate,
		PaymentMode: in.PaymentMode,
		AmountPaid:  in.AmountPaid,
		Note:        in.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	paymentID, err := pathID(r, "paymentID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.fees.DeletePayment(r.Context(), id, paymentID, confirmerFor(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	paymentID, err := pathID(r, "paymentID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rc, err := s.fees.Receipt(id, paymentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReceiptResponse(rc))
}

// confirmerFor answers delete prompts from the confirm query parameter.
func confirmerFor(r *http.Request) services.Confirmer {
	if confirmed(r) {
		return services.Confirmed
	}
	return services.Declined
}
