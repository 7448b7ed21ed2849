package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"

	"sudooom.im.client/internal/config"
	apperrors "sudooom.im.client/internal/errors"
	"sudooom.im.client/internal/model"
)

// Client REST API 客户端
// 凭据走 cookie 会话：登录后 jar 自动携带，websocket 握手也复用同一份 cookie
type Client struct {
	baseURL string
	http    *http.Client
	jar     *cookiejar.Jar
	logger  *slog.Logger
}

// NewClient 创建 API 客户端
func NewClient(cfg config.APIConfig, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: cfg.BaseURL,
		jar:     jar,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		logger: logger,
	}, nil
}

// Header 实时通道握手用的请求头（携带会话 cookie）
func (c *Client) Header() http.Header {
	h := http.Header{}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return h
	}
	for _, ck := range c.jar.Cookies(u) {
		h.Add("Cookie", ck.String())
	}
	return h
}

// ============== 请求执行 ==============

// do 执行一次 JSON 请求并解析响应体到 out（out 可为 nil）
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.ErrNetwork.Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.mapError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.ErrNetwork.Wrap(err)
	}
	return nil
}

// mapError 把 HTTP 错误映射进错误分类
// 401 → 登录失效；聊天资源的 403/404 与登录失效是两种界面，须区分
func (c *Client) mapError(resp *http.Response) error {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	detail := payload.Error
	if detail == "" {
		detail = payload.Message
	}
	if detail == "" {
		detail = resp.Status
	}
	err := fmt.Errorf("%s", detail)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return apperrors.ErrUnauthorized.Wrap(err)
	case http.StatusForbidden:
		return apperrors.ErrChatForbidden.Wrap(err)
	case http.StatusNotFound:
		return apperrors.ErrConversationNotFound.Wrap(err)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperrors.ErrValidation.Wrap(err)
	default:
		return apperrors.ErrNetwork.Wrap(err)
	}
}

func pageQuery(path string, page, limit int) string {
	return path + "?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)
}

// ============== 认证 ==============

// LoginRequest 登录入参
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest 注册入参
type SignupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// authResponse 登录/注册响应
type authResponse struct {
	Data  model.User `json:"data"`
	Token string     `json:"token"`
}

// Login 登录，返回用户与可选的会话 token
func (c *Client) Login(ctx context.Context, req LoginRequest) (model.User, string, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return model.User{}, "", err
	}
	return resp.Data, resp.Token, nil
}

// Signup 注册
func (c *Client) Signup(ctx context.Context, req SignupRequest) (model.User, string, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", req, &resp); err != nil {
		return model.User{}, "", err
	}
	return resp.Data, resp.Token, nil
}

// Logout 登出（服务端销毁会话 cookie）
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", struct{}{}, nil)
}

// ============== 个人资料 ==============

// Profile 查看当前用户资料
func (c *Client) Profile(ctx context.Context) (model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, "/api/profile/view", nil, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// EditProfileRequest 资料编辑入参
type EditProfileRequest struct {
	FirstName  string   `json:"firstName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	About      string   `json:"about,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	ProfileURL string   `json:"profileUrl,omitempty"`
}

// EditProfile 更新资料
func (c *Client) EditProfile(ctx context.Context, req EditProfileRequest) (model.User, error) {
	var resp struct {
		Data model.User `json:"data"`
	}
	if err := c.do(ctx, http.MethodPatch, "/api/profile/edit", req, &resp); err != nil {
		return model.User{}, err
	}
	return resp.Data, nil
}

// UploadProfileImage 上传头像，返回可访问的 URL
func (c *Client) UploadProfileImage(ctx context.Context, filename string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/upload/upload-profile", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.ErrNetwork.Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.mapError(resp)
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.ErrNetwork.Wrap(err)
	}
	return out.URL, nil
}

// ============== 发现与连接请求 ==============

// Feed 待浏览的用户推荐
func (c *Client) Feed(ctx context.Context) ([]model.User, error) {
	var resp struct {
		Users []model.User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/user/feed", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// PendingRequests 收到的待处理连接请求
func (c *Client) PendingRequests(ctx context.Context) ([]model.ConnectionRequest, error) {
	var resp struct {
		Data []model.ConnectionRequest `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/user/requests", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// SendRequest 对目标用户表态（interested / ignored）
func (c *Client) SendRequest(ctx context.Context, userID, status string) error {
	body := struct {
		Status string `json:"status"`
	}{Status: status}
	return c.do(ctx, http.MethodPost, "/api/requests/send/"+userID, body, nil)
}

// ReviewRequest 处理收到的请求（accepted / rejected）
func (c *Client) ReviewRequest(ctx context.Context, requestID, status string) error {
	body := struct {
		Status string `json:"status"`
	}{Status: status}
	return c.do(ctx, http.MethodPatch, "/api/requests/review/"+requestID, body, nil)
}

// Connections 已接受的连接（分页）
func (c *Client) Connections(ctx context.Context, page, limit int) ([]model.User, model.PageMeta, error) {
	var resp struct {
		Connections []model.User   `json:"connections"`
		Meta        model.PageMeta `json:"meta"`
	}
	path := pageQuery("/api/chat/connections", page, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, model.PageMeta{}, err
	}
	return resp.Connections, resp.Meta, nil
}

// ============== 聊天 ==============

// Conversations 会话列表（分页）
func (c *Client) Conversations(ctx context.Context, page, limit int) ([]model.Conversation, model.PageMeta, error) {
	var resp struct {
		Conversations []model.Conversation `json:"conversations"`
		Meta          model.PageMeta       `json:"meta"`
	}
	path := pageQuery("/api/chat/conversations", page, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, model.PageMeta{}, err
	}
	return resp.Conversations, resp.Meta, nil
}

// Conversation 按 ID 取单个会话摘要
func (c *Client) Conversation(ctx context.Context, conversationID string) (model.Conversation, error) {
	var resp struct {
		Conversation model.Conversation `json:"conversation"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/conversation/"+conversationID, nil, &resp); err != nil {
		return model.Conversation{}, err
	}
	return resp.Conversation, nil
}

// CreateConversation 与指定连接建立（或取回已有）会话
func (c *Client) CreateConversation(ctx context.Context, participantID string) (model.Conversation, error) {
	body := struct {
		ParticipantID string `json:"participantId"`
	}{ParticipantID: participantID}

	var resp struct {
		Conversation model.Conversation `json:"conversation"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chat/conversation", body, &resp); err != nil {
		return model.Conversation{}, err
	}
	return resp.Conversation, nil
}

// Messages 会话消息页（分页向历史方向走）
func (c *Client) Messages(ctx context.Context, conversationID string, page, limit int) ([]model.Message, model.PageMeta, error) {
	var resp struct {
		Messages []model.Message `json:"messages"`
		Meta     model.PageMeta  `json:"meta"`
	}
	path := pageQuery("/api/chat/messages/"+conversationID, page, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, model.PageMeta{}, err
	}
	return resp.Messages, resp.Meta, nil
}
