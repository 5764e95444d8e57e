package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"order_composer/internal/models"
	"order_composer/internal/services"
)

const maxDocumentSize = 10 << 20

// LookupHandler exposes the read side the order form needs: catalog,
// customers, address helpers and orders.
type LookupHandler struct {
	catalog services.CatalogService
	backend services.Backend
	logger  logrus.FieldLogger
}

func NewLookupHandler(catalog services.CatalogService, backend services.Backend, logger logrus.FieldLogger) *LookupHandler {
	useJSONFieldNames()
	return &LookupHandler{catalog: catalog, backend: backend, logger: logger}
}

func (h *LookupHandler) RegisterRoutes(r gin.IRouter) {
	catalog := r.Group("/catalog")
	{
		catalog.GET("/products", h.Products)
		catalog.GET("/products/:id/variants", h.Variants)
		catalog.GET("/services", h.Services)
		catalog.GET("/bundles", h.Bundles)
		catalog.GET("/discounts", h.Discounts)
		catalog.GET("/shipping-settings", h.ShippingSettings)
		catalog.POST("/invalidate", h.InvalidateCatalog)
	}

	customers := r.Group("/customers")
	{
		customers.GET("", h.ListCustomers)
		customers.GET("/:id", h.GetCustomer)
		customers.PATCH("/:id", h.PatchCustomer)
		customers.GET("/:id/shipping-addresses", h.ShippingAddresses)
	}

	lookups := r.Group("/lookups")
	{
		lookups.POST("/facebook-profile", h.FacebookProfile)
		lookups.POST("/parse-address", h.ParseAddress)
		lookups.GET("/geocode", h.Geocode)
		lookups.GET("/address-autocomplete", h.AutocompleteAddress)
	}

	r.POST("/documents", h.UploadDocument)
	r.GET("/orders", h.ListOrders)
	r.GET("/orders/:orderId", h.GetOrder)
}

// Catalog
func (h *LookupHandler) Products(c *gin.Context) {
	products, err := h.catalog.Products(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *LookupHandler) Variants(c *gin.Context) {
	variants, err := h.catalog.Variants(c.Request.Context(), models.RefID(c.Param("id")))
	if err != nil {
		respondError(c, h.logger, "Variants", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"variants": variants})
}

func (h *LookupHandler) Services(c *gin.Context) {
	list, err := h.catalog.Services(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Services", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": list})
}

func (h *LookupHandler) Bundles(c *gin.Context) {
	bundles, err := h.catalog.Bundles(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Bundles", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bundles": bundles})
}

func (h *LookupHandler) Discounts(c *gin.Context) {
	rules, err := h.catalog.Discounts(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Discounts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"discounts": rules})
}

func (h *LookupHandler) ShippingSettings(c *gin.Context) {
	settings, err := h.catalog.ShippingSettings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "ShippingSettings", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *LookupHandler) InvalidateCatalog(c *gin.Context) {
	if err := h.catalog.Invalidate(c.Request.Context()); err != nil {
		respondError(c, h.logger, "InvalidateCatalog", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Customers
func (h *LookupHandler) ListCustomers(c *gin.Context) {
	customers, err := h.backend.ListCustomers(c.Request.Context(), c.Query("search"))
	if err != nil {
		respondError(c, h.logger, "ListCustomers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

func (h *LookupHandler) GetCustomer(c *gin.Context) {
	customer, err := h.backend.GetCustomer(c.Request.Context(), models.RefID(c.Param("id")))
	if err != nil {
		respondError(c, h.logger, "GetCustomer", err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *LookupHandler) PatchCustomer(c *gin.Context) {
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		bindError(c, err)
		return
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}
	customer, err := h.backend.PatchCustomer(c.Request.Context(), models.RefID(c.Param("id")), fields)
	if err != nil {
		respondError(c, h.logger, "PatchCustomer", err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *LookupHandler) ShippingAddresses(c *gin.Context) {
	addresses, err := h.backend.ShippingAddresses(c.Request.Context(), models.RefID(c.Param("id")))
	if err != nil {
		respondError(c, h.logger, "ShippingAddresses", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addresses})
}

// Lookups
func (h *LookupHandler) FacebookProfile(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	profile, err := h.backend.FacebookProfile(c.Request.Context(), req.URL)
	if err != nil {
		respondError(c, h.logger, "FacebookProfile", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *LookupHandler) ParseAddress(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required,max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	address, err := h.backend.ParseAddress(c.Request.Context(), req.Text)
	if err != nil {
		respondError(c, h.logger, "ParseAddress", err)
		return
	}
	c.JSON(http.StatusOK, address)
}

func (h *LookupHandler) Geocode(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"address": "is required"}})
		return
	}
	results, err := h.backend.Geocode(c.Request.Context(), address)
	if err != nil {
		respondError(c, h.logger, "Geocode", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *LookupHandler) AutocompleteAddress(c *gin.Context) {
	input := c.Query("input")
	if input == "" {
		c.JSON(http.StatusOK, gin.H{"suggestions": []interface{}{}})
		return
	}
	suggestions, err := h.backend.AutocompleteAddress(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logger, "AutocompleteAddress", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// Documents
func (h *LookupHandler) UploadDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxDocumentSize)
	header, err := c.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds the %d MiB limit", maxDocumentSize>>20)})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"file": "is required"}})
		return
	}
	file, err := header.Open()
	if err != nil {
		respondError(c, h.logger, "UploadDocument", err)
		return
	}
	defer file.Close()

	doc, err := h.backend.UploadDocument(c.Request.Context(), filepath.Base(header.Filename), file)
	if err != nil {
		respondError(c, h.logger, "UploadDocument", err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// Orders
func (h *LookupHandler) ListOrders(c *gin.Context) {
	orders, err := h.backend.Orders(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "ListOrders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *LookupHandler) GetOrder(c *gin.Context) {
	order, err := h.backend.Order(c.Request.Context(), models.RefID(c.Param("orderId")))
	if err != nil {
		respondError(c, h.logger, "GetOrder", err)
		return
	}
	c.JSON(http.StatusOK, order)
}
