package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/supwarden/pkg/api"
)

// APIError - ответ сервера с кодом вне 2xx
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// IsStatus сообщает, что err - ответ сервера с указанным кодом
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// SetToken задает bearer токен для защищенных запросов
func (c *Client) SetToken(token string) {
	c.token = token
}

// BaseURL возвращает адрес сервера
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Me возвращает профиль текущего пользователя
func (c *Client) Me(ctx context.Context) (*api.UserResponse, error) {
	var resp api.UserResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/users/me", nil, &resp); err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	return &resp, nil
}

// ListVaults возвращает хранилища пользователя
func (c *Client) ListVaults(ctx context.Context) ([]api.VaultResponse, error) {
	var resp []api.VaultResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/vaults", nil, &resp); err != nil {
		return nil, fmt.Errorf("list vaults request failed: %w", err)
	}
	return resp, nil
}

// ListSharedVaults возвращает хранилища, в которые пользователя пригласили
func (c *Client) ListSharedVaults(ctx context.Context) ([]api.SharedVaultResponse, error) {
	var resp []api.SharedVaultResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/vaults/shared", nil, &resp); err != nil {
		return nil, fmt.Errorf("list shared vaults request failed: %w", err)
	}
	return resp, nil
}

// AcceptInvitation принимает приглашение в хранилище
func (c *Client) AcceptInvitation(ctx context.Context, vaultID string) error {
	path := fmt.Sprintf("/api/v1/vaults/%s/invitation/accept", url.PathEscape(vaultID))
	if err := c.doRequest(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("accept invitation request failed: %w", err)
	}
	return nil
}

// ListElements возвращает элементы хранилища
func (c *Client) ListElements(ctx context.Context, vaultID string) ([]api.ElementResponse, error) {
	var resp []api.ElementResponse
	path := fmt.Sprintf("/api/v1/vaults/%s/elements", url.PathEscape(vaultID))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list elements request failed: %w", err)
	}
	return resp, nil
}

// Challenge запрашивает у сервера, каким фактором подтверждать раскрытие пароля
func (c *Client) Challenge(ctx context.Context, elementID string) (*api.ChallengeResponse, error) {
	var resp api.ChallengeResponse
	path := fmt.Sprintf("/api/v1/elements/%s/challenge", url.PathEscape(elementID))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("challenge request failed: %w", err)
	}
	return &resp, nil
}

// Reveal раскрывает пароль элемента, proof - PIN или пароль аккаунта
func (c *Client) Reveal(ctx context.Context, elementID, proof string) (*api.RevealResponse, error) {
	var resp api.RevealResponse
	path := fmt.Sprintf("/api/v1/elements/%s/reveal", url.PathEscape(elementID))
	if err := c.doRequest(ctx, http.MethodPost, path, api.RevealRequest{Proof: proof}, &resp); err != nil {
		return nil, fmt.Errorf("reveal request failed: %w", err)
	}
	return &resp, nil
}

// Export скачивает bundle всех хранилищ пользователя в формате json или cbor
func (c *Client) Export(ctx context.Context, format string) ([]byte, error) {
	path := "/api/v1/transfer/export"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}

	resp, err := c.send(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, fmt.Errorf("export request failed: %w", err)
	}
	return resp.body, nil
}

// Import загружает bundle на сервер.
// Частичный импорт (207) не считается ошибкой, отчет содержит поле Error.
func (c *Client) Import(ctx context.Context, data []byte, contentType string) (*api.ImportResponse, error) {
	resp, err := c.send(ctx, http.MethodPost, "/api/v1/transfer/import", bytes.NewReader(data), contentType)
	if err != nil {
		return nil, fmt.Errorf("import request failed: %w", err)
	}

	var report api.ImportResponse
	if err := json.Unmarshal(resp.body, &report); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &report, nil
}

// doRequest выполняет JSON запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	contentType := ""
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
		contentType = "application/json"
	}

	resp, err := c.send(ctx, method, path, bodyReader, contentType)
	if err != nil {
		return err
	}

	// Декодируем успешный ответ
	if result != nil && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

type rawResponse struct {
	body   []byte
	status int
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*rawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			apiErr.Message = errResp.Message
			if apiErr.Message == "" {
				apiErr.Message = errResp.Error
			}
		}
		return nil, apiErr
	}

	return &rawResponse{status: resp.StatusCode, body: respBody}, nil
}
