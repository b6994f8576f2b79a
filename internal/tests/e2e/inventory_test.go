//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"testing"

	"github.com/hostel-inventory/apiserver/types"
)

type apiClient struct {
	t    *testing.T
	http *http.Client
}

func newClient(t *testing.T) *apiClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &apiClient{t: t, http: &http.Client{Jar: jar}}
}

// call sends a JSON request and decodes the response into out when the status matches want.
func (c *apiClient) call(method, path string, body any, want int, out any) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.do(req, want, out)
}

func (c *apiClient) do(req *http.Request, want int, out any) {
	c.t.Helper()
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(resp.Body)
		c.t.Fatalf("%s %s: status %d, want %d: %s", req.Method, req.URL.Path, resp.StatusCode, want, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", req.Method, req.URL.Path, err)
		}
	}
}

type userResponse struct {
	User    types.User `json:"user"`
	Message string     `json:"message"`
}

func TestInventoryLifecycle(t *testing.T) {
	warden := newClient(t)

	var registered userResponse
	warden.call(http.MethodPost, "/api/users/register", map[string]string{
		"username": "warden", "password": "warden-pass", "email": "warden@example.com",
	}, http.StatusCreated, &registered)
	if registered.User.Role != types.RoleWarden {
		t.Fatalf("expected first user to be Warden, got %s", registered.User.Role)
	}

	pending := newClient(t)
	pending.call(http.MethodPost, "/api/users/register", map[string]string{
		"username": "newbie", "password": "newbie-pass", "email": "newbie@example.com",
	}, http.StatusCreated, &registered)
	if registered.User.Role != types.RolePending {
		t.Fatalf("expected second user to be Pending, got %s", registered.User.Role)
	}
	pending.call(http.MethodPost, "/api/users/login", map[string]string{
		"username": "newbie", "password": "newbie-pass",
	}, http.StatusForbidden, nil)
	pending.call(http.MethodGet, "/api/rooms", nil, http.StatusUnauthorized, nil)

	warden.call(http.MethodPost, "/api/users/login", map[string]string{
		"username": "warden", "password": "warden-pass",
	}, http.StatusOK, nil)

	var room types.Room
	warden.call(http.MethodPost, "/api/rooms", map[string]any{
		"room_number": "A-101", "hostel_name": "North", "floor": 1,
	}, http.StatusCreated, &room)
	if room.Capacity != 2 {
		t.Fatalf("expected default capacity 2, got %d", room.Capacity)
	}
	warden.call(http.MethodPost, "/api/rooms", map[string]any{
		"room_number": "A-101", "hostel_name": "North",
	}, http.StatusBadRequest, nil)

	var asset types.Asset
	warden.call(http.MethodPost, "/api/assets", map[string]any{
		"name": "Study chairs", "asset_type": "Chair", "total_quantity": 2, "room": room.ID,
	}, http.StatusCreated, &asset)
	if asset.RoomDisplay == nil || !strings.Contains(*asset.RoomDisplay, "A-101") {
		t.Fatalf("expected room display, got %v", asset.RoomDisplay)
	}

	markPath := fmt.Sprintf("/api/assets/%d/mark-damaged", asset.ID)
	warden.call(http.MethodPost, markPath, nil, http.StatusOK, nil)
	warden.call(http.MethodPost, markPath, nil, http.StatusOK, nil)
	warden.call(http.MethodPost, markPath, nil, http.StatusBadRequest, nil)

	var report types.DamageReport
	warden.call(http.MethodPost, "/api/damage-reports", map[string]any{
		"room": room.ID, "asset_type": "Chair", "description": "Both chairs have cracked legs",
	}, http.StatusCreated, &report)
	if report.Status != types.ReportNotFixed {
		t.Fatalf("expected Not Fixed, got %s", report.Status)
	}
	uploadPhoto(t, warden, report.ID)

	var summary types.Summary
	warden.call(http.MethodGet, "/api/dashboard/summary", nil, http.StatusOK, &summary)
	if summary.TotalAssets != 1 || summary.DamagedAssets != 1 || summary.OpenDamageReports != 1 || summary.TotalRooms != 1 || summary.TotalUsers != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	warden.call(http.MethodDelete, fmt.Sprintf("/api/rooms/%d", room.ID), nil, http.StatusNoContent, nil)

	var orphan types.Asset
	warden.call(http.MethodGet, fmt.Sprintf("/api/assets/%d", asset.ID), nil, http.StatusOK, &orphan)
	if orphan.RoomID != nil || orphan.DamagedQuantity != 2 {
		t.Fatalf("expected asset to survive unassigned, got %+v", orphan)
	}
	warden.call(http.MethodGet, fmt.Sprintf("/api/damage-reports/%d", report.ID), nil, http.StatusNotFound, nil)

	warden.call(http.MethodPost, "/api/users/logout", nil, http.StatusOK, nil)
	warden.call(http.MethodGet, "/api/users/me", nil, http.StatusUnauthorized, nil)
}

func uploadPhoto(t *testing.T, c *apiClient, reportID int) {
	t.Helper()
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("photo", "chair.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(png); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/api/damage-reports/%d/photo", baseURL, reportID), &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.do(req, http.StatusOK, nil)

	req, err = http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/damage-reports/%d/photo", baseURL, reportID), nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	c.do(req, http.StatusOK, nil)
}
