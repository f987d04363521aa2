package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabd/tabd/pkg/broadcast"
	"github.com/tabd/tabd/pkg/tlog"
)

func TestRecordIngestHandlerPublishesDecodedRecord(t *testing.T) {
	b := broadcast.New(4)
	updates, _ := b.Subscribe("file://doc")

	handler := recordIngestHandler(b, tlog.Nop())
	body := `{"version":1,"changes":[{"start":{"line":0,"character":0},"end":{"line":0,"character":1},"type":"USER_EDIT","creationTimestamp":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/records/file://doc", strings.NewReader(body))
	rr := httptest.NewRecorder()

	handler(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	upd := <-updates
	require.Len(t, upd.Items, 1)
}

func TestRecordIngestHandlerRejectsNonPost(t *testing.T) {
	b := broadcast.New(4)
	handler := recordIngestHandler(b, tlog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/records/file://doc", nil)
	rr := httptest.NewRecorder()
	handler(rr, req)

	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRecordIngestHandlerRejectsMissingURI(t *testing.T) {
	b := broadcast.New(4)
	handler := recordIngestHandler(b, tlog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/records/", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	handler(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRecordIngestHandlerRejectsMalformedJSON(t *testing.T) {
	b := broadcast.New(4)
	handler := recordIngestHandler(b, tlog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/records/file://doc", strings.NewReader("not json"))
	rr := httptest.NewRecorder()
	handler(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}
