package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"order_composer/internal/models"
)

const IdempotencyHeader = "Idempotency-Key"

// Client talks to the order-management backend that owns customers, catalog,
// discounts and orders.
type Client struct {
	BaseURL    string
	APIToken   string
	HTTPClient *http.Client
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend %s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend %s %s: status %d", e.Method, e.Path, e.StatusCode)
}

type Document struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	URL      string `json:"url,omitempty"`
}

type FacebookProfile struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Username  string `json:"username,omitempty"`
	ProfileID string `json:"profileId,omitempty"`
}

type GeocodeResult struct {
	FormattedAddress string  `json:"formattedAddress"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
}

type AddressSuggestion struct {
	PlaceID     string `json:"placeId"`
	Description string `json:"description"`
}

func NewClient(baseURL, apiToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		APIToken: apiToken,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, dest interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			Path:       req.URL.Path,
			Message:    errorMessage(body),
		}
	}
	if dest == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := decodeBody(body, dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// decodeBody accepts both bare payloads and {"data": ...} envelopes.
func decodeBody(body []byte, dest interface{}) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err == nil {
			if data, ok := envelope["data"]; ok {
				return json.Unmarshal(data, dest)
			}
		}
	}
	return json.Unmarshal(trimmed, dest)
}

func errorMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, dest)
}

func (c *Client) send(ctx context.Context, method, path string, payload interface{}, idempotencyKey string, dest interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}
	req, err := c.newRequest(ctx, method, path, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(IdempotencyHeader, idempotencyKey)
	}
	return c.do(req, dest)
}

func escape(id models.RefID) string {
	return url.PathEscape(id.String())
}

// Customers

func (c *Client) ListCustomers(ctx context.Context, search string) ([]models.Customer, error) {
	var query url.Values
	if search = strings.TrimSpace(search); search != "" {
		query = url.Values{"search": {search}}
	}
	var customers []models.Customer
	if err := c.get(ctx, "/api/customers", query, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

func (c *Client) GetCustomer(ctx context.Context, id models.RefID) (*models.Customer, error) {
	var customer models.Customer
	if err := c.get(ctx, "/api/customers/"+escape(id), nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (c *Client) ShippingAddresses(ctx context.Context, customerID models.RefID) ([]models.ShippingAddress, error) {
	var addresses []models.ShippingAddress
	if err := c.get(ctx, "/api/customers/"+escape(customerID)+"/shipping-addresses", nil, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

func (c *Client) CustomerPrices(ctx context.Context, customerID models.RefID) ([]models.CustomerPrice, error) {
	var prices []models.CustomerPrice
	if err := c.get(ctx, "/api/customers/"+escape(customerID)+"/prices", nil, &prices); err != nil {
		return nil, err
	}
	return prices, nil
}

func (c *Client) PendingServices(ctx context.Context, customerID models.RefID) ([]models.PendingService, error) {
	var services []models.PendingService
	if err := c.get(ctx, "/api/customers/"+escape(customerID)+"/pending-services", nil, &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (c *Client) CreateCustomer(ctx context.Context, customer models.NewCustomer, idempotencyKey string) (*models.Customer, error) {
	var created models.Customer
	if err := c.send(ctx, http.MethodPost, "/api/customers", customer, idempotencyKey, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) CreateShippingAddress(ctx context.Context, customerID models.RefID, address models.ShippingAddress, idempotencyKey string) (*models.ShippingAddress, error) {
	var created models.ShippingAddress
	path := "/api/customers/" + escape(customerID) + "/shipping-addresses"
	if err := c.send(ctx, http.MethodPost, path, address, idempotencyKey, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) PatchCustomer(ctx context.Context, id models.RefID, fields map[string]interface{}) (*models.Customer, error) {
	var updated models.Customer
	if err := c.send(ctx, http.MethodPatch, "/api/customers/"+escape(id), fields, "", &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Catalog

func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := c.get(ctx, "/api/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) Variants(ctx context.Context, productID models.RefID) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	if err := c.get(ctx, "/api/products/"+escape(productID)+"/variants", nil, &variants); err != nil {
		return nil, err
	}
	return variants, nil
}

func (c *Client) Services(ctx context.Context) ([]models.Service, error) {
	var services []models.Service
	if err := c.get(ctx, "/api/services", nil, &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (c *Client) Bundles(ctx context.Context) ([]models.Bundle, error) {
	var bundles []models.Bundle
	if err := c.get(ctx, "/api/bundles", nil, &bundles); err != nil {
		return nil, err
	}
	return bundles, nil
}

func (c *Client) Discounts(ctx context.Context) ([]models.DiscountRule, error) {
	var rules []models.DiscountRule
	if err := c.get(ctx, "/api/discounts", nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (c *Client) ShippingSettings(ctx context.Context) (*models.ShippingSettings, error) {
	var settings models.ShippingSettings
	if err := c.get(ctx, "/api/shipping-settings", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Orders

func (c *Client) Orders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := c.get(ctx, "/api/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) Order(ctx context.Context, id models.RefID) (*models.Order, error) {
	var order models.Order
	if err := c.get(ctx, "/api/orders/"+escape(id), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CreateOrder(ctx context.Context, payload interface{}, idempotencyKey string) (*models.Order, error) {
	var order models.Order
	if err := c.send(ctx, http.MethodPost, "/api/orders", payload, idempotencyKey, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) PatchOrder(ctx context.Context, id models.RefID, payload interface{}, idempotencyKey string) (*models.Order, error) {
	var order models.Order
	if err := c.send(ctx, http.MethodPatch, "/api/orders/"+escape(id), payload, idempotencyKey, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) UploadDocument(ctx context.Context, fileName string, content io.Reader) (*Document, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to copy document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/orders/documents/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var doc Document
	if err := c.do(req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Lookups

func (c *Client) FacebookProfile(ctx context.Context, profileURL string) (*FacebookProfile, error) {
	var profile FacebookProfile
	if err := c.send(ctx, http.MethodPost, "/api/facebook/profile", map[string]string{"url": profileURL}, "", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) ParseAddress(ctx context.Context, text string) (*models.ShippingAddress, error) {
	var address models.ShippingAddress
	if err := c.send(ctx, http.MethodPost, "/api/addresses/parse", map[string]string{"text": text}, "", &address); err != nil {
		return nil, err
	}
	return &address, nil
}

func (c *Client) Geocode(ctx context.Context, address string) ([]GeocodeResult, error) {
	var results []GeocodeResult
	if err := c.get(ctx, "/api/geocode", url.Values{"address": {address}}, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) AutocompleteAddress(ctx context.Context, input string) ([]AddressSuggestion, error) {
	var suggestions []AddressSuggestion
	if err := c.get(ctx, "/api/addresses/autocomplete-google", url.Values{"input": {input}}, &suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}
