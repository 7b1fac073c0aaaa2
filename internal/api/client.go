package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/freight-booking/internal/models"
)

// envelope is the wire shape every endpoint responds with.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// APIError carries the server-provided message for a failed call so the UI
// layer can surface it verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("api error: status %d", e.Status)
}

// Client wraps the booking platform's REST endpoints.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	var out models.Order
	if err := c.do(ctx, http.MethodPost, "/orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var out models.Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+orderID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AcceptItem claims an order item for the given driver.
func (c *Client) AcceptItem(ctx context.Context, orderID, itemID, driverID string) error {
	body := map[string]string{"driverId": driverID}
	path := fmt.Sprintf("/orders/%s/items/%s/accept", orderID, itemID)
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// UpdateItemStatus requests a status transition; the server validates it.
func (c *Client) UpdateItemStatus(ctx context.Context, orderID, itemID string, status models.ItemStatus) error {
	body := map[string]string{"status": string(status)}
	path := fmt.Sprintf("/orders/%s/items/%s/status", orderID, itemID)
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// RejectItem declines an offered item on behalf of the driver.
func (c *Client) RejectItem(ctx context.Context, orderID, itemID, driverID string) error {
	body := map[string]string{"driverId": driverID}
	path := fmt.Sprintf("/orders/%s/items/%s/reject", orderID, itemID)
	return c.do(ctx, http.MethodPut, path, body, nil)
}

func (c *Client) AvailableOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	if err := c.do(ctx, http.MethodGet, "/orders/driver/available", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateDriverLocation is the driver agent's location heartbeat.
func (c *Client) UpdateDriverLocation(ctx context.Context, d models.Driver) error {
	return c.do(ctx, http.MethodPost, "/drivers/location", d, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
