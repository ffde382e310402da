package tracking

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend-trackbench/internal/aggregate"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func newApp(svc *Service) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app.Group("/tracking"), svc, svc.Variants(), func(c *fiber.Ctx) error { return c.Next() })
	return app
}

func TestResultsHandler(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`ORDER BY t.tracking_id`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "male").
		WillReturnRows(rawRows())

	app := newApp(NewService(mock, aggregate.Engine{}))
	req := httptest.NewRequest(http.MethodGet, "/tracking/results?variant=memory&gender=male&start=2025-06-01&end=2025-06-05&mode=behind&order_by=best&limit=10", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("results status: %v %v", err, resp.StatusCode)
	}

	var body struct {
		Variant string           `json:"variant"`
		Mode    string           `json:"mode"`
		Count   int              `json:"count"`
		Records []map[string]any `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Variant != VariantMemory || body.Mode != "behind" || body.Count != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Records[0]["username"] != "alice" || body.Records[0]["rounds"] != 2.0 {
		t.Fatalf("unexpected first session: %v", body.Records[0])
	}
}

func TestResultsHandlerDefaultsToSQL(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`ORDER BY t.start_date_time DESC`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), 100).
		WillReturnRows(pgxmock.NewRows([]string{"tracking_id", "start_date_time", "seconds", "distance", "name", "username"}).
			AddRow("1", t0, 900.0, 5.0, nil, aggregate.Str("alice")))

	app := newApp(NewService(mock, aggregate.Engine{}))
	req := httptest.NewRequest(http.MethodGet, "/tracking/results?start=2025-06-01&end=2025-06-05", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("results status: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResultsHandlerBadRequest(t *testing.T) {
	app := newApp(NewService(nil, aggregate.Engine{}))

	for _, q := range []string{
		"variant=python&start=2025-06-01&end=2025-06-05",
		"mode=weekly&start=2025-06-01&end=2025-06-05",
		"order_by=worst&start=2025-06-01&end=2025-06-05",
		"limit=0&start=2025-06-01&end=2025-06-05",
		"start=yesterday&end=2025-06-05",
		"start=2025-06-01",
	} {
		req := httptest.NewRequest(http.MethodGet, "/tracking/results?"+q, nil)
		resp, _ := app.Test(req)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected bad request, got %d", q, resp.StatusCode)
		}
	}
}

func TestResultsHandlerQueryError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`GROUP BY u.username`).WillReturnError(errTrack)

	app := newApp(NewService(mock, aggregate.Engine{}))
	req := httptest.NewRequest(http.MethodGet, "/tracking/results?mode=all&start=2025-06-01&end=2025-06-05", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected server error, got %d", resp.StatusCode)
	}
}

func TestUpdateHandlers(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE users SET username`).
		WithArgs("user-1", "bench_user").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE users SET gender`).
		WithArgs("user-1", "female").
		WillReturnError(errTrack)

	app := newApp(NewService(mock, aggregate.Engine{}))

	body, _ := json.Marshal(UsernameUpdate{Username: "bench_user"})
	req := httptest.NewRequest(http.MethodPatch, "/tracking/users/user-1/username", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("username status: %v", err)
	}

	body, _ = json.Marshal(GenderUpdate{Gender: "female"})
	req = httptest.NewRequest(http.MethodPatch, "/tracking/users/user-1/gender", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected server error, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPatch, "/tracking/users/user-1/gender", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", resp.StatusCode)
	}
}

func TestHandlersWithoutDatabase(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/tracking"), nil, Variants{}, func(c *fiber.Ctx) error { return c.Next() })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/tracking/results?start=2025-06-01&end=2025-06-05", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for the missing sql variant, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodPatch, "/tracking/users/u-1/username", bytes.NewReader([]byte(`{"username":"x"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected service unavailable, got %d", resp.StatusCode)
	}
}
