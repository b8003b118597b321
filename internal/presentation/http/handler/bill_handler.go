package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/smartbill/internal/application/service"
	"github.com/sangkips/smartbill/internal/domain/analytics"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/enum"
	"github.com/sangkips/smartbill/internal/presentation/http/dto/request"
	"github.com/sangkips/smartbill/internal/presentation/http/dto/response"
	"github.com/sangkips/smartbill/pkg/apperror"
	"github.com/sangkips/smartbill/pkg/pagination"
)

// BillFeed is the merged view of remote and queued bills
type BillFeed interface {
	Bills(ctx context.Context) ([]entity.Bill, error)
	Listen() (<-chan service.BillSnapshot, func())
}

// BillHandler handles bill capture, history and the live stream
type BillHandler struct {
	billingService *service.BillingService
	printerService *service.PrinterService
	feed           BillFeed
	loc            *time.Location
}

// NewBillHandler creates a new bill handler
func NewBillHandler(billingService *service.BillingService, printerService *service.PrinterService, feed BillFeed, loc *time.Location) *BillHandler {
	if loc == nil {
		loc = time.Local
	}
	return &BillHandler{billingService: billingService, printerService: printerService, feed: feed, loc: loc}
}

// GetDraft returns the session's draft items and running totals
func (h *BillHandler) GetDraft(c *gin.Context) {
	response.OK(c, "Draft retrieved", h.billingService.Draft(GetSessionID(c)))
}

// AddItem adds a line to the draft
func (h *BillHandler) AddItem(c *gin.Context) {
	var req request.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindingError(err))
		return
	}

	session := GetSessionID(c)
	item, err := h.billingService.AddItem(session, req.Name, req.Quantity, req.UnitPrice)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Item added", gin.H{
		"item":  item,
		"draft": h.billingService.Draft(session),
	})
}

// RemoveItem drops a line from the draft; unknown IDs are ignored
func (h *BillHandler) RemoveItem(c *gin.Context) {
	session := GetSessionID(c)
	h.billingService.RemoveItem(session, c.Param("id"))
	response.OK(c, "Item removed", h.billingService.Draft(session))
}

// DiscardDraft empties the draft
func (h *BillHandler) DiscardDraft(c *gin.Context) {
	h.billingService.DiscardDraft(GetSessionID(c))
	response.OK(c, "Draft discarded", nil)
}

// Generate finalizes the draft into a bill
func (h *BillHandler) Generate(c *gin.Context) {
	var req request.GenerateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindingError(err))
		return
	}

	result, err := h.billingService.GenerateBill(c.Request.Context(), service.GenerateBillInput{
		Session:       GetSessionID(c),
		CreatedBy:     GetStaffID(c),
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Delivery == enum.DeliveryQueued {
		response.Accepted(c, "Bill saved offline and will sync when online", result)
		return
	}
	response.Created(c, "Bill created successfully", result)
}

// List returns the filtered bill history, newest first
func (h *BillHandler) List(c *gin.Context) {
	var q request.BillHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindingError(err))
		return
	}

	filter, err := h.historyFilter(q)
	if err != nil {
		response.Error(c, err)
		return
	}

	bills, err := h.feed.Bills(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	params := &pagination.PaginationParams{Page: q.Page, PerPage: q.PerPage}
	result := pagination.Slice(analytics.FilterHistory(bills, filter), params)
	c.Header("X-Pending-Sync", strconv.Itoa(analytics.PendingCount(bills)))
	response.SuccessWithPagination(c, http.StatusOK, "Bills retrieved successfully", result)
}

func (h *BillHandler) historyFilter(q request.BillHistoryQuery) (analytics.HistoryFilter, error) {
	start, err := parseDate("start_date", q.StartDate, h.loc)
	if err != nil {
		return analytics.HistoryFilter{}, err
	}
	end, err := parseDate("end_date", q.EndDate, h.loc)
	if err != nil {
		return analytics.HistoryFilter{}, err
	}
	minAmount, err := parseAmount("min_amount", q.MinAmount)
	if err != nil {
		return analytics.HistoryFilter{}, err
	}
	maxAmount, err := parseAmount("max_amount", q.MaxAmount)
	if err != nil {
		return analytics.HistoryFilter{}, err
	}
	return analytics.HistoryFilter{
		Search:     q.Search,
		StartDate:  start,
		EndDate:    end,
		MinAmount:  minAmount,
		MaxAmount:  maxAmount,
		SyncStatus: enum.SyncFilter(q.SyncStatus),
	}, nil
}

func (h *BillHandler) find(c *gin.Context) (*entity.Bill, error) {
	localID, err := parseLocalID(c)
	if err != nil {
		return nil, err
	}
	bills, err := h.feed.Bills(c.Request.Context())
	if err != nil {
		return nil, err
	}
	for i := range bills {
		if bills[i].LocalID == localID {
			return &bills[i], nil
		}
	}
	return nil, apperror.NewNotFoundError("Bill")
}

// Get returns one bill by its local ID
func (h *BillHandler) Get(c *gin.Context) {
	bill, err := h.find(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Bill retrieved successfully", bill)
}

// Print sends the bill's receipt to the printer
func (h *BillHandler) Print(c *gin.Context) {
	bill, err := h.find(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	receipt, err := h.printerService.PrintBill(c.Request.Context(), bill)
	if err != nil {
		// The receipt is still useful to the caller when no printer is attached
		response.OK(c, "Receipt generated but printing failed", gin.H{
			"receipt": receipt,
			"warning": err.Error(),
		})
		return
	}
	response.OK(c, "Receipt printed successfully", gin.H{"receipt": receipt})
}

// Stream pushes every live snapshot as a server-sent event
func (h *BillHandler) Stream(c *gin.Context) {
	updates, stop := h.feed.Listen()
	defer stop()

	ctx := c.Request.Context()
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-updates:
			if !ok {
				return false
			}
			event := "bills"
			if snap.Degraded {
				event = "degraded"
			}
			c.SSEvent(event, snap)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
