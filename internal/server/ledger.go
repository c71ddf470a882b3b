package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/hashledger/internal/auth"
	"github.com/jmerrifield20/hashledger/internal/ledger"
	"go.uber.org/zap"
)

// Chain is the ledger surface served over HTTP. *ledger.Ledger implements it.
type Chain interface {
	Append(payload string) ledger.Record
	Get(position uint64) (ledger.Record, error)
	Len() int
	Records() []ledger.Record
	Verify() error
}

// LedgerHandler exposes HTTP endpoints for the ledger.
type LedgerHandler struct {
	chain  Chain
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
// tokens may be nil to leave the append route open.
func NewLedgerHandler(chain Chain, tokens *auth.TokenIssuer, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{chain: chain, tokens: tokens, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.Verify)
		l.GET("/records", h.ListRecords)
		l.GET("/records/:position", h.GetRecord)
		l.POST("/records", auth.RequireWriter(h.tokens), h.AppendRecord)
	}
}

// Overview handles GET /ledger. Returns the chain length, root digest and validity,
// all taken from one snapshot of the records.
func (h *LedgerHandler) Overview(c *gin.Context) {
	records := h.chain.Records()
	err := ledger.VerifyRecords(records)
	RecordIntegrityCheck(err == nil)

	var root string
	if n := len(records); n > 0 {
		root = records[n-1].Digest
	}
	c.JSON(http.StatusOK, gin.H{
		"records": len(records),
		"root":    root,
		"valid":   err == nil,
	})
}

// Verify handles GET /ledger/verify. Walks the full chain and reports integrity.
// A broken chain is reported with 200; it is a result, not a server fault.
func (h *LedgerHandler) Verify(c *gin.Context) {
	err := h.chain.Verify()
	RecordIntegrityCheck(err == nil)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"valid": true})
		return
	}

	h.logger.Warn("ledger integrity check failed", zap.Error(err))
	resp := gin.H{
		"valid": false,
		"error": err.Error(),
	}
	var ie *ledger.IntegrityError
	if errors.As(err, &ie) {
		resp["position"] = ie.Position
	}
	c.JSON(http.StatusOK, resp)
}

// ListRecords handles GET /ledger/records. Returns every record in chain order.
func (h *LedgerHandler) ListRecords(c *gin.Context) {
	c.JSON(http.StatusOK, h.chain.Records())
}

// GetRecord handles GET /ledger/records/:position. Returns a single record.
func (h *LedgerHandler) GetRecord(c *gin.Context) {
	position, err := strconv.ParseUint(c.Param("position"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position must be a non-negative integer"})
		return
	}

	rec, err := h.chain.Get(position)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		h.logger.Error("ledger Get", zap.Uint64("position", position), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// Payload is a pointer so that an explicit empty string is accepted.
type appendRequest struct {
	Payload *string `json:"payload" binding:"required"`
}

// AppendRecord handles POST /ledger/records. Appends a record carrying the payload.
func (h *LedgerHandler) AppendRecord(c *gin.Context) {
	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload is required"})
		return
	}

	rec := h.chain.Append(*req.Payload)
	recordAppend(h.chain.Len())

	h.logger.Info("record appended",
		zap.Uint64("position", rec.Position),
		zap.String("digest", rec.Digest),
		zap.String("writer", auth.WriterFromCtx(c)),
		zap.String("request_id", RequestIDFromCtx(c)),
	)
	c.JSON(http.StatusCreated, rec)
}
