package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	callbackdomain "github.com/smallbiznis/payrelay/internal/callback/domain"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	"go.uber.org/zap"
)

// Callback handlers always answer 200. Outcomes travel in ResultCode.

func (s *Server) HandleCallback(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		s.log.Warn("read callback body", zap.Error(err))
		s.respond(c, "", callbackdomain.Rejected(callbackdomain.ReasonInvalidJSON))
		return
	}

	result := s.callbacks.HandleCallback(c.Request.Context(), body)
	s.respond(c, peekTransID(body), result)
}

func (s *Server) HandleValidate(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		s.log.Warn("read validation body", zap.Error(err))
		s.respond(c, "", callbackdomain.Rejected(callbackdomain.ReasonInvalidJSON))
		return
	}

	result := s.callbacks.Validate(c.Request.Context(), body)
	s.respond(c, peekTransID(body), result)
}

type ledgerWriteResponse struct {
	Success bool                        `json:"success"`
	Data    paymentdomain.PaymentRecord `json:"data"`
}

// DebugLedgerWrite appends an already-normalized record, skipping duplicate
// and authorization checks.
func (s *Server) DebugLedgerWrite(c *gin.Context) {
	if s.cfg.IsProduction() {
		AbortWithError(c, ErrNotFound)
		return
	}

	var rec paymentdomain.PaymentRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rec.TransactionID = strings.TrimSpace(rec.TransactionID)
	rec.AccountNumber = strings.TrimSpace(rec.AccountNumber)
	if rec.TransactionID == "" {
		AbortWithError(c, newValidationError("transId", "required", "transId is required"))
		return
	}
	if rec.AccountNumber == "" {
		AbortWithError(c, newValidationError("accountNumber", "required", "accountNumber is required"))
		return
	}

	c.Set("trans_id", rec.TransactionID)
	ok, written := s.callbacks.ForceWrite(c.Request.Context(), rec)

	status := http.StatusOK
	if !ok {
		status = http.StatusBadGateway
	}
	c.JSON(status, ledgerWriteResponse{Success: ok, Data: written})
}

func (s *Server) respond(c *gin.Context, transID string, result callbackdomain.Result) {
	c.Set("result_code", result.ResultCode)
	if transID != "" {
		c.Set("trans_id", transID)
	}
	c.JSON(http.StatusOK, result)
}

// peekTransID extracts the transaction id for request logging only.
func peekTransID(body []byte) string {
	var probe struct {
		TransID any `json:"TransID"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	switch v := probe.TransID.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
