package telegram

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.telegram.org"

type Client struct {
	token  string
	client *resty.Client
}

func NewClient(token string) *Client {
	return NewClientWithBaseURL(token, defaultBaseURL)
}

// NewClientWithBaseURL points the client at a Bot API compatible server.
func NewClientWithBaseURL(token, baseURL string) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(10 * time.Second)

	return &Client{token: token, client: client}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

type sendMessageReq struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	var out apiResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(sendMessageReq{ChatID: chatID, Text: text}).
		SetResult(&out).
		SetError(&out).
		Post(c.method("sendMessage"))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return check(resp, out)
}

// SendDocument uploads data as a file to chatID.
func (c *Client) SendDocument(ctx context.Context, chatID int64, data []byte, fileName, caption string) error {
	form := map[string]string{"chat_id": strconv.FormatInt(chatID, 10)}
	if caption != "" {
		form["caption"] = caption
	}

	var out apiResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetFileReader("document", fileName, bytes.NewReader(data)).
		SetResult(&out).
		SetError(&out).
		Post(c.method("sendDocument"))
	if err != nil {
		return fmt.Errorf("failed to send telegram document: %w", err)
	}
	return check(resp, out)
}

func (c *Client) method(name string) string {
	return "/bot" + c.token + "/" + name
}

func check(resp *resty.Response, out apiResponse) error {
	if resp.IsError() || !out.OK {
		return fmt.Errorf("telegram api returned status: %s, description: %s", resp.Status(), out.Description)
	}
	return nil
}
