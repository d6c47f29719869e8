package products

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const genericErrorMessage = "Something went wrong, please try again later."

type productInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log.Named("handler")}
}

func (h *Handler) Routes(api *gin.RouterGroup) {
	api.GET("/products", h.ListProducts)
	api.POST("/products", h.CreateProduct)
	api.GET("/products/:id", h.GetProduct)
	api.PUT("/products/:id", h.UpdateProduct)
	api.DELETE("/products/:id", h.DeleteProduct)
	api.GET("/products/:id/offers", h.ListOffers)
	api.GET("/products/:id/history", h.GetPriceHistory)
}

// fail maps domain errors to responses. Internal detail only goes to the log.
func (h *Handler) fail(c *gin.Context, op string, err error, input *productInput) {
	switch {
	case errors.Is(err, ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Product id %s does not exist", c.Param("id"))})
	case errors.Is(err, ErrConflict) && input != nil:
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Name %q is already used by another product.", input.Name)})
	case errors.Is(err, ErrRemote):
		h.log.Error(op, zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": genericErrorMessage})
	default:
		h.log.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericErrorMessage})
	}
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var input productInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	p, err := h.svc.Register(c.Request.Context(), input.Name, input.Description)
	if err != nil {
		h.fail(c, "CreateProduct", err, &input)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListProducts(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, "ListProducts", err, nil)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "GetProduct", err, nil)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	var input productInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	p, err := h.svc.Update(c.Request.Context(), c.Param("id"), input.Name, input.Description)
	if err != nil {
		h.fail(c, "UpdateProduct", err, &input)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "DeleteProduct", err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListOffers(c *gin.Context) {
	offers, err := h.svc.Offers(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "ListOffers", err, nil)
		return
	}
	c.JSON(http.StatusOK, offers)
}

func (h *Handler) GetPriceHistory(c *gin.Context) {
	hist, err := h.svc.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "GetPriceHistory", err, nil)
		return
	}
	c.JSON(http.StatusOK, hist)
}
