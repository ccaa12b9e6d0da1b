package api

import (
	"io"
	"net/http"

	"threesquare.land/tsl/internal/txapp"
)

// @Title: Submit Transaction
// @Route: POST /api/tx
// @Description: Verify a signed transaction and apply it to the ledger
// @Response: {"code": 0, "data": {...}} or {"code": 4, "log": "...", "reason": "NOT_OWNER"}
func (s *Service) HandleSubmitTx(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	res := s.app.DeliverTx(body)
	if !res.IsOK() {
		s.log.Warningf("rejected transaction: code=%d reason=%s log=%s", res.Code, res.Reason, res.Log)
	}
	s.writeJSON(w, resultStatus(res), res)
}

// @Title: Check Transaction
// @Route: POST /api/tx/check
// @Description: Run signature, payload and replay checks without applying the transaction
// @Response: {"code": 0}
func (s *Service) HandleCheckTx(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	res := s.app.CheckTx(body)
	s.writeJSON(w, resultStatus(res), res)
}

func (s *Service) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return nil, false
	}
	if len(body) == 0 {
		s.writeError(w, http.StatusBadRequest, "Request body is empty")
		return nil, false
	}
	return body, true
}

// resultStatus maps a transaction result to an HTTP status.
func resultStatus(res txapp.Result) int {
	switch res.Code {
	case txapp.CodeTypeOK:
		return http.StatusOK
	case txapp.CodeTypeEncodingError, txapp.CodeTypeInvalidTx:
		return http.StatusBadRequest
	case txapp.CodeTypeAuthError:
		return http.StatusUnauthorized
	case txapp.CodeTypeReplay:
		return http.StatusConflict
	case txapp.CodeTypeRejected:
		return res.Reason.HTTPStatus()
	case txapp.CodeTypeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
