package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// PushClient sends fire-and-forget notifications through the platform's
// notification endpoint. Failures are logged and never retried; nothing in
// the matchmaking flow waits on a delivery.
type PushClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type PushNotification struct {
	PushToken        string `json:"pushToken"`
	Title            string `json:"title,omitempty"`
	Message          string `json:"message"`
	UserID           string `json:"userId"`
	NotificationType string `json:"notificationType"`
}

func NewPushClient(baseURL, token string) *PushClient {
	return &PushClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send POSTs the notification. Callers run it on its own goroutine; the
// returned error is for logging only.
func (c *PushClient) Send(n PushNotification) error {
	if c == nil || c.BaseURL == "" {
		return nil
	}
	if n.PushToken == "" {
		return nil // device never registered a token, nothing to deliver
	}

	body, _ := json.Marshal(n)
	req, err := http.NewRequest("POST", fmt.Sprintf("%s/send-notification", c.BaseURL), bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notification endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// SendAsync fires the notification without blocking the caller.
func (c *PushClient) SendAsync(n PushNotification) {
	go func() {
		if err := c.Send(n); err != nil {
			log.Printf("[PUSH] ⚠️ notification to %s failed: %v", n.UserID, err)
		}
	}()
}
