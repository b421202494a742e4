package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/iliyamo/meeting-stake-calendar/internal/calendar"
	"github.com/iliyamo/meeting-stake-calendar/internal/repository"
)

func TestParseDayKey(t *testing.T) {
	cases := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "1893456000", want: 1893456000},
		{raw: "2030-01-01", want: 1893456000},
		{raw: "0", want: 0},
		{raw: "-86400", want: -86400},
		{raw: "1970-01-01", want: 0},
		{raw: "not-a-day", wantErr: true},
		{raw: "2030-13-01", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseDayKey(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseDayKey(%q): expected error, got %d", tc.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDayKey(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseDayKey(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestDomainStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{calendar.ErrUnauthorized, http.StatusForbidden},
		{calendar.ErrMeetingDoesNotExist, http.StatusNotFound},
		{calendar.ErrNoMeetingsAtGivenDayDateTime, http.StatusNotFound},
		{calendar.ErrMeetingConflictExists, http.StatusConflict},
		{calendar.ErrStakeAlreadyHandled, http.StatusConflict},
		{calendar.ErrMeetingNotFinishedYet, http.StatusConflict},
		{repository.ErrPositionTaken, http.StatusConflict},
		{calendar.ErrConfigNotFound, http.StatusServiceUnavailable},
		{calendar.ErrStartTimeMustBeInFuture, http.StatusBadRequest},
		{calendar.ErrWrongDenom, http.StatusBadRequest},
		{&calendar.InvalidStakeAmountError{Expected: 300}, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := domainStatus(tc.err); got != tc.want {
			t.Errorf("domainStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
