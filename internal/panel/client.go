package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"log/slog"

	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/logger"
)

var (
	// ErrPanelUnavailable marks transport-level failures reaching the panel.
	ErrPanelUnavailable = errors.New("panel unavailable")
	// ErrNotFound marks a 404 from the panel.
	ErrNotFound = errors.New("panel: not found")
)

// Timeouts bounds panel calls by operation class.
type Timeouts struct {
	Status  time.Duration
	Request time.Duration
	Upload  time.Duration
}

func (t *Timeouts) fill() {
	if t.Status <= 0 {
		t.Status = 5 * time.Second
	}
	if t.Request <= 0 {
		t.Request = 10 * time.Second
	}
	if t.Upload <= 0 {
		t.Upload = 30 * time.Second
	}
}

// Client talks to the marketplace panel API.
type Client struct {
	baseURL  string
	http     *http.Client
	timeouts Timeouts
}

// New builds a Client for the given panel base URL.
func New(baseURL string, timeouts Timeouts) *Client {
	timeouts.fill()
	return &Client{
		baseURL:  baseURL,
		http:     buildHTTPClient(),
		timeouts: timeouts,
	}
}

// UserStatusInfo is the panel's view of a Telegram user's registration.
type UserStatusInfo struct {
	State      domain.UserState
	Role       domain.Role
	Commission float64
}

// MechanicRegistration carries the fields of a mechanic sign-up.
type MechanicRegistration struct {
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	Phone        string
	CardNumber   string
	ShebaNumber  string
	ShopAddress  string
	LicenseImage []byte
	LicenseName  string
}

// CustomerRegistration carries the fields of a customer sign-up.
type CustomerRegistration struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name"`
	Phone      string `json:"phone_number"`
	Province   string `json:"province"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Address    string `json:"address"`
}

// SubmissionItem is one order line plus its optional downloaded photo.
type SubmissionItem struct {
	ProductName string
	Quantity    int
	Photo       []byte
	PhotoName   string
}

// OrderSubmission is the canonical order creation request for both roles.
type OrderSubmission struct {
	TelegramID int64
	Role       domain.Role
	Items      []SubmissionItem
}

// OrderDetail is a panel order plus payment details when present.
type OrderDetail struct {
	Order   domain.Order
	Payment *domain.PaymentDetails
}

// OrdersFilter narrows the Orders listing.
type OrdersFilter struct {
	TelegramID int64
	Status     domain.OrderStatus
	Limit      int
}

type itemPayload struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	TotalPrice  int64  `json:"total_price"`
	Photo       string `json:"photo,omitempty"`
}

type orderPayload struct {
	ID         int64         `json:"id"`
	TelegramID int64         `json:"telegram_id"`
	Status     string        `json:"status"`
	Items      []itemPayload `json:"items"`
	TotalPrice int64         `json:"total_price"`
	CreatedAt  string        `json:"created_at"`

	CardNumber string `json:"card_number"`
	CardHolder string `json:"card_holder"`
	Bank       string `json:"bank"`
}

func (p orderPayload) toDomain() (domain.Order, error) {
	status, err := domain.ParseOrderStatus(p.Status)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %d: %w", p.ID, err)
	}
	order := domain.Order{
		ID:         p.ID,
		TelegramID: p.TelegramID,
		Status:     status,
		TotalPrice: p.TotalPrice,
	}
	for _, it := range p.Items {
		order.Items = append(order.Items, domain.Item{
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		})
	}
	if p.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
			order.CreatedAt = ts
		}
	}
	return order, nil
}

// UserStatus fetches the registration state of a Telegram user.
func (c *Client) UserStatus(ctx context.Context, telegramID int64) (*UserStatusInfo, error) {
	q := url.Values{"telegram_id": {strconv.FormatInt(telegramID, 10)}}
	var resp struct {
		Status     string  `json:"status"`
		Role       string  `json:"user_type"`
		Commission float64 `json:"commission_percentage"`
	}
	if err := c.getJSON(ctx, c.timeouts.Status, "/mechanics/api/user/status?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	state, err := domain.ParseUserState(resp.Status)
	if err != nil {
		return nil, err
	}
	info := &UserStatusInfo{State: state, Commission: resp.Commission}
	if resp.Role != "" {
		role, err := domain.ParseRole(resp.Role)
		if err != nil {
			return nil, err
		}
		info.Role = role
	}
	return info, nil
}

// RegisterMechanic submits a mechanic sign-up with the license photo.
func (c *Client) RegisterMechanic(ctx context.Context, reg MechanicRegistration) error {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	fields := map[string]string{
		"telegram_id":  strconv.FormatInt(reg.TelegramID, 10),
		"username":     reg.Username,
		"first_name":   reg.FirstName,
		"last_name":    reg.LastName,
		"phone_number": reg.Phone,
		"card_number":  reg.CardNumber,
		"sheba_number": reg.ShebaNumber,
		"shop_address": reg.ShopAddress,
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return fmt.Errorf("write field %s: %w", name, err)
		}
	}
	name := reg.LicenseName
	if name == "" {
		name = "business_license.jpg"
	}
	fw, err := mw.CreateFormFile("business_license_image", name)
	if err != nil {
		return fmt.Errorf("create license part: %w", err)
	}
	if _, err := fw.Write(reg.LicenseImage); err != nil {
		return fmt.Errorf("write license part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	return c.do(ctx, c.timeouts.Upload, http.MethodPost, "/mechanics/api/register",
		body.Bytes(), mw.FormDataContentType(), nil)
}

// RegisterCustomer submits a customer sign-up.
func (c *Client) RegisterCustomer(ctx context.Context, reg CustomerRegistration) error {
	return c.postJSON(ctx, c.timeouts.Request, "/customers/api/register", reg, nil)
}

// CreateOrder submits an order with all item photos and returns the order id.
func (c *Client) CreateOrder(ctx context.Context, sub OrderSubmission) (int64, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	idField := "customer_id"
	if sub.Role == domain.RoleMechanic {
		idField = "mechanic_id"
	}
	if err := mw.WriteField(idField, strconv.FormatInt(sub.TelegramID, 10)); err != nil {
		return 0, fmt.Errorf("write id field: %w", err)
	}

	items := make([]itemPayload, 0, len(sub.Items))
	for i, it := range sub.Items {
		p := itemPayload{ProductName: it.ProductName, Quantity: it.Quantity}
		if len(it.Photo) > 0 {
			p.Photo = fmt.Sprintf("item_%d_photo", i)
		}
		items = append(items, p)
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return 0, fmt.Errorf("encode items: %w", err)
	}
	if err := mw.WriteField("items", string(itemsJSON)); err != nil {
		return 0, fmt.Errorf("write items field: %w", err)
	}

	for i, it := range sub.Items {
		if len(it.Photo) == 0 {
			continue
		}
		name := it.PhotoName
		if name == "" {
			name = fmt.Sprintf("item_%d.jpg", i)
		}
		fw, err := mw.CreateFormFile(fmt.Sprintf("item_%d_photo", i), name)
		if err != nil {
			return 0, fmt.Errorf("create photo part %d: %w", i, err)
		}
		if _, err := fw.Write(it.Photo); err != nil {
			return 0, fmt.Errorf("write photo part %d: %w", i, err)
		}
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("close multipart: %w", err)
	}

	var resp struct {
		OrderID int64 `json:"order_id"`
	}
	if err := c.do(ctx, c.timeouts.Upload, http.MethodPost, "/bot-orders/api/create_order",
		body.Bytes(), mw.FormDataContentType(), &resp); err != nil {
		return 0, err
	}
	if resp.OrderID == 0 {
		return 0, fmt.Errorf("panel returned no order id")
	}
	return resp.OrderID, nil
}

// Order fetches one order with payment details when the panel includes them.
func (c *Client) Order(ctx context.Context, orderID int64) (*OrderDetail, error) {
	var payload orderPayload
	path := fmt.Sprintf("/telegram-bot/api/orders/%d", orderID)
	if err := c.getJSON(ctx, c.timeouts.Request, path, &payload); err != nil {
		return nil, err
	}
	order, err := payload.toDomain()
	if err != nil {
		return nil, err
	}
	detail := &OrderDetail{Order: order}
	if payload.CardNumber != "" {
		detail.Payment = &domain.PaymentDetails{
			CardNumber: payload.CardNumber,
			CardHolder: payload.CardHolder,
			Bank:       payload.Bank,
			Total:      payload.TotalPrice,
		}
	}
	return detail, nil
}

// Orders lists orders matching the filter.
func (c *Client) Orders(ctx context.Context, filter OrdersFilter) ([]domain.Order, error) {
	q := url.Values{}
	if filter.TelegramID != 0 {
		q.Set("telegram_id", strconv.FormatInt(filter.TelegramID, 10))
	}
	if filter.Status != domain.OrderStatusUnknown {
		q.Set("status", filter.Status.Display())
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	var resp struct {
		Orders []orderPayload `json:"orders"`
	}
	if err := c.getJSON(ctx, c.timeouts.Request, "/telegram-bot/api/orders?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(resp.Orders))
	for _, p := range resp.Orders {
		order, err := p.toDomain()
		if err != nil {
			logger.Warn(ctx, "panel", "order.parse.skip",
				slog.Int64("order_id", p.ID),
				slog.String("err", err.Error()),
			)
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

// UploadReceipt sends a payment receipt photo for an order.
func (c *Client) UploadReceipt(ctx context.Context, orderID int64, image []byte, filename string) error {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if filename == "" {
		filename = "receipt.jpg"
	}
	fw, err := mw.CreateFormFile("receipt_image", filename)
	if err != nil {
		return fmt.Errorf("create receipt part: %w", err)
	}
	if _, err := fw.Write(image); err != nil {
		return fmt.Errorf("write receipt part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}
	path := fmt.Sprintf("/telegram-bot/api/orders/%d/upload_receipt", orderID)
	return c.do(ctx, c.timeouts.Upload, http.MethodPost, path, body.Bytes(), mw.FormDataContentType(), nil)
}

// SetOrderStatus moves an order to the given status.
func (c *Client) SetOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error {
	path := fmt.Sprintf("/telegram-bot/api/orders/%d/status", orderID)
	payload := map[string]string{"status": status.Display()}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return c.do(ctx, c.timeouts.Request, http.MethodPut, path, data, "application/json", nil)
}

// ConfirmOrder records the user's final confirmation of an order.
func (c *Client) ConfirmOrder(ctx context.Context, orderID, telegramID int64) error {
	path := fmt.Sprintf("/bot-orders/api/order_status/%d/confirm", orderID)
	return c.postJSON(ctx, c.timeouts.Request, path, map[string]int64{"telegram_id": telegramID}, nil)
}

// CancelOrder records the user's cancellation of an order.
func (c *Client) CancelOrder(ctx context.Context, orderID, telegramID int64) error {
	path := fmt.Sprintf("/bot-orders/api/order_status/%d/cancel", orderID)
	return c.postJSON(ctx, c.timeouts.Request, path, map[string]int64{"telegram_id": telegramID}, nil)
}

// SetUserState updates a user's registration state on the panel.
func (c *Client) SetUserState(ctx context.Context, telegramID int64, state domain.UserState) error {
	payload := map[string]any{"telegram_id": telegramID, "status": string(state)}
	return c.postJSON(ctx, c.timeouts.Request, "/mechanics/api/user/status", payload, nil)
}

// NotifyMechanicRegistered pings the panel notification hook. Best effort.
func (c *Client) NotifyMechanicRegistered(ctx context.Context, telegramID int64) error {
	payload := map[string]int64{"telegram_id": telegramID}
	return c.postJSON(ctx, c.timeouts.Request, "/notifications/api/mechanic-registered", payload, nil)
}

// NotifyOrderRegistered pings the panel notification hook. Best effort.
func (c *Client) NotifyOrderRegistered(ctx context.Context, telegramID, orderID int64) error {
	payload := map[string]int64{"telegram_id": telegramID, "order_id": orderID}
	return c.postJSON(ctx, c.timeouts.Request, "/notifications/api/order-registered", payload, nil)
}

// Health probes panel connectivity, falling back to the root path.
func (c *Client) Health(ctx context.Context) error {
	if err := c.do(ctx, c.timeouts.Status, http.MethodGet, "/health", nil, "", nil); err == nil {
		return nil
	}
	return c.do(ctx, c.timeouts.Status, http.MethodGet, "/", nil, "", nil)
}

func (c *Client) getJSON(ctx context.Context, timeout time.Duration, path string, dst any) error {
	return c.do(ctx, timeout, http.MethodGet, path, nil, "", dst)
}

func (c *Client) postJSON(ctx context.Context, timeout time.Duration, path string, payload, dst any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return c.do(ctx, timeout, http.MethodPost, path, data, "application/json", dst)
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, body []byte, contentType string, dst any) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	took := logger.Took(start)
	if err != nil {
		logger.Error(ctx, "panel", "panel.request",
			slog.String("method", method),
			slog.String("endpoint", path),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%w: %s %s: %v", ErrPanelUnavailable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "panel", "panel.request",
			slog.String("method", method),
			slog.String("endpoint", path),
			slog.Int("http_code", resp.StatusCode),
			slog.Duration("duration", took),
		)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("panel %s %s: status %d: %s",
			method, path, resp.StatusCode, logger.SanitizeLimit(string(snippet), 200))
	}

	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
