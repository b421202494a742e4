package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/meeting-stake-calendar/internal/calendar"
	"github.com/iliyamo/meeting-stake-calendar/internal/repository"
	"github.com/iliyamo/meeting-stake-calendar/internal/service"
)

// Fixture day 2030-01-01 UTC, window 09:00-17:00, 10 units per minute.
const testDay = int64(1893456000)

func bookingAt(hour, minute int) int64 {
	return testDay + int64(hour)*3600 + int64(minute)*60
}

func newBookingHandler(t *testing.T) *MeetingHandler {
	t.Helper()
	store := calendar.NewMemStore()
	err := store.SaveConfig(context.Background(), calendar.Config{
		PricePerMinute: 10,
		UTCOffset:      0,
		DayStart:       calendar.NewTimeOfDay(9, 0, 0),
		DayEnd:         calendar.NewTimeOfDay(17, 0, 0),
		Denom:          "unit",
	})
	if err != nil {
		t.Fatalf("save config: %v", err)
	}
	log := zerolog.Nop()
	engine := calendar.NewEngine(store, calendar.NewStaticAuthority("authority@example.com"), nil)
	return NewMeetingHandler(engine, repository.NewCalendarStore(nil, log), service.NewPublisher(log), log)
}

func postBooking(h *MeetingHandler, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/meetings", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("email", "alice@example.com")
	_ = h.RequestMeeting(c)
	return rec
}

// The booking route must surface the engine's own rejection for each
// failure, not a generic handler message: clients rely on the distinct
// error texts, and the check ordering is only observable if the request
// always reaches the engine.
func TestRequestMeetingHandlerSurfacesEngineErrors(t *testing.T) {
	h := newBookingHandler(t)

	cases := []struct {
		name       string
		body       string
		wantStatus int
		wantSubstr string
	}{
		{
			name: "end equals start",
			body: fmt.Sprintf(`{"start_time":%d,"end_time":%d,"payment":{"amount":0,"denom":"unit"}}`,
				bookingAt(10, 0), bookingAt(10, 0)),
			wantStatus: http.StatusBadRequest,
			wantSubstr: "end time must be after start time",
		},
		{
			name: "end before start",
			body: fmt.Sprintf(`{"start_time":%d,"end_time":%d,"payment":{"amount":300,"denom":"unit"}}`,
				bookingAt(10, 30), bookingAt(10, 0)),
			wantStatus: http.StatusBadRequest,
			wantSubstr: "end time must be after start time",
		},
		{
			name: "empty denom",
			body: fmt.Sprintf(`{"start_time":%d,"end_time":%d,"payment":{"amount":300}}`,
				bookingAt(10, 0), bookingAt(10, 30)),
			wantStatus: http.StatusBadRequest,
			wantSubstr: "wrong denom",
		},
		{
			name: "wrong stake amount carries expected",
			body: fmt.Sprintf(`{"start_time":%d,"end_time":%d,"payment":{"amount":1,"denom":"unit"}}`,
				bookingAt(10, 0), bookingAt(10, 30)),
			wantStatus: http.StatusBadRequest,
			wantSubstr: `"expected_amount":300`,
		},
	}
	for _, tc := range cases {
		rec := postBooking(h, tc.body)
		if rec.Code != tc.wantStatus {
			t.Errorf("%s: status = %d, want %d (body %s)", tc.name, rec.Code, tc.wantStatus, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), tc.wantSubstr) {
			t.Errorf("%s: body = %s, want substring %q", tc.name, rec.Body.String(), tc.wantSubstr)
		}
	}
}
