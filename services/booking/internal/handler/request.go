package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/service"
)

// RequestHandler - обработчик заявок.
type RequestHandler struct {
	requests service.RequestService
}

// NewRequestHandler создаёт обработчик заявок.
func NewRequestHandler(requests service.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// Create создаёт заявку вендору.
// POST /api/v1/requests
func (h *RequestHandler) Create(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	eventDate, err := time.Parse(dateLayout, req.EventDate)
	if err != nil {
		badRequest(c, err)
		return
	}

	items := make([]domain.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = domain.LineItem{Name: it.Name, Price: it.Price}
	}

	created, err := h.requests.Create(c.Request.Context(), caller, service.CreateRequestInput{
		VendorID:     req.VendorID,
		VendorName:   req.VendorName,
		VendorPhone:  req.VendorPhone,
		ListingID:    req.ListingID,
		ListingTitle: req.ListingTitle,
		Items:        items,
		EventDate:    eventDate,
		EventTime:    req.EventTime,
		Address:      req.Address,
		Instructions: req.Instructions,
	})
	if err != nil {
		HandleError(c, err, "CreateRequest")
		return
	}

	c.JSON(http.StatusCreated, toRequestResponse(created))
}

// Get возвращает заявку с учетом правила раскрытия адреса.
// GET /api/v1/requests/:id
func (h *RequestHandler) Get(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	req, err := h.requests.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		HandleError(c, err, "GetRequest")
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(req))
}

// List возвращает заявки вызывающего.
// GET /api/v1/requests?status=&limit=&offset=
func (h *RequestHandler) List(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	reqs, err := h.requests.ListMine(c.Request.Context(), caller, domain.RequestStatus(c.Query("status")), limit, offset)
	if err != nil {
		HandleError(c, err, "ListRequests")
		return
	}

	resp := ListRequestsResponse{Requests: make([]RequestResponse, 0, len(reqs)), Limit: limit, Offset: offset}
	for _, r := range reqs {
		resp.Requests = append(resp.Requests, toRequestResponse(r))
	}
	c.JSON(http.StatusOK, resp)
}

// Accept - вендор принимает заявку.
// POST /api/v1/requests/:id/accept
func (h *RequestHandler) Accept(c *gin.Context) {
	h.transition(c, "AcceptRequest", h.requests.Accept)
}

// Decline - вендор отклоняет заявку.
// POST /api/v1/requests/:id/decline
func (h *RequestHandler) Decline(c *gin.Context) {
	h.transition(c, "DeclineRequest", h.requests.Decline)
}

// Cancel - заказчик отменяет заявку до оплаты.
// POST /api/v1/requests/:id/cancel
func (h *RequestHandler) Cancel(c *gin.Context) {
	h.transition(c, "CancelRequest", h.requests.Cancel)
}

type requestTransition func(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error)

func (h *RequestHandler) transition(c *gin.Context, op string, fn requestTransition) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	req, err := fn(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		HandleError(c, err, op)
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(req))
}

func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return service.NormalizePage(limit, offset)
}
