package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"lashclub/internal/models"
)

func TestParseID(t *testing.T) {
	id, err := parseID("123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 123 {
		t.Fatalf("unexpected id: %d", id)
	}
	if _, err := parseID(""); err == nil {
		t.Fatalf("expected error for empty id")
	}
	if _, err := parseID("abc"); err == nil {
		t.Fatalf("expected error for non-numeric id")
	}
}

func TestParseRangeDefaults(t *testing.T) {
	req := &http.Request{URL: &url.URL{}}
	from, to, err := parseRange(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if to.Before(from) {
		t.Fatalf("expected to >= from")
	}
	if to.Sub(from) < 29*24*time.Hour {
		t.Fatalf("expected default range around 30 days")
	}
}

func TestParseRangeCustom(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	q := url.Values{}
	q.Set("from", from.Format(time.RFC3339))
	q.Set("to", to.Format(time.RFC3339))
	req := &http.Request{URL: &url.URL{RawQuery: q.Encode()}}
	parsedFrom, parsedTo, err := parseRange(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !parsedFrom.Equal(from) || !parsedTo.Equal(to) {
		t.Fatalf("range mismatch")
	}
}

func TestParseRangeRequiresBothBounds(t *testing.T) {
	q := url.Values{}
	q.Set("from", time.Now().UTC().Format(time.RFC3339))
	req := &http.Request{URL: &url.URL{RawQuery: q.Encode()}}
	if _, _, err := parseRange(req); err == nil {
		t.Fatalf("expected error when only from is set")
	}
}

func TestParsePagination(t *testing.T) {
	req := &http.Request{URL: &url.URL{}}
	page, pageSize := parsePagination(req)
	if page != 1 || pageSize != 20 {
		t.Fatalf("unexpected defaults: page=%d size=%d", page, pageSize)
	}

	q := url.Values{}
	q.Set("page", "3")
	q.Set("page_size", "50")
	req = &http.Request{URL: &url.URL{RawQuery: q.Encode()}}
	page, pageSize = parsePagination(req)
	if page != 3 || pageSize != 50 {
		t.Fatalf("unexpected values: page=%d size=%d", page, pageSize)
	}

	q.Set("page_size", "5000")
	req = &http.Request{URL: &url.URL{RawQuery: q.Encode()}}
	_, pageSize = parsePagination(req)
	if pageSize != 20 {
		t.Fatalf("expected oversized page_size to fall back to default, got %d", pageSize)
	}
}

func TestCanAccessUser(t *testing.T) {
	memberCtx := context.WithValue(context.Background(), contextKeyUserID, int64(7))
	memberCtx = context.WithValue(memberCtx, contextKeyRole, models.UserRoleUser)
	if !canAccessUser(memberCtx, 7) {
		t.Fatalf("member should access own resources")
	}
	if canAccessUser(memberCtx, 8) {
		t.Fatalf("member should not access other users")
	}

	adminCtx := context.WithValue(context.Background(), contextKeyUserID, int64(1))
	adminCtx = context.WithValue(adminCtx, contextKeyRole, models.UserRoleAdmin)
	if !canAccessUser(adminCtx, 42) {
		t.Fatalf("admin should access any user")
	}
}
