package whatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = Reminder{PatientName: "Maria", ClinicName: "Clínica A", Date: "12/02/2026", Time: "14:30"}

func TestSendReminderNotConfigured(t *testing.T) {
	for _, cfg := range []Config{
		{},
		{AuthToken: "token", From: "whatsapp:+15551234567"},
		{AccountSid: "sid", AuthToken: "token"},
	} {
		assert.NoError(t, NewClient(cfg).SendReminder(context.Background(), "+5511999990000", sample))
	}
}

func TestE164(t *testing.T) {
	assert.Equal(t, "+5547999998888", E164("(47) 99999-8888"))
	assert.Equal(t, "+5547999998888", E164("+55 47 99999-8888"))
	assert.Equal(t, "", E164(" - "))
}

func TestSendReminderPostsToTwilio(t *testing.T) {
	var got http.Header
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header
		require.NoError(t, r.ParseForm())
		form = map[string]string{"To": r.PostForm.Get("To"), "From": r.PostForm.Get("From"), "Body": r.PostForm.Get("Body")}
		assert.Equal(t, "/Accounts/sid/Messages.json", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(Config{AccountSid: "sid", AuthToken: "token", From: "+15551234567", BaseURL: srv.URL})
	require.NoError(t, c.SendReminder(context.Background(), "47 99999-8888", sample))
	assert.Contains(t, got.Get("Authorization"), "Basic ")
	assert.Equal(t, "whatsapp:+5547999998888", form["To"])
	assert.Equal(t, "whatsapp:+15551234567", form["From"])
	assert.Contains(t, form["Body"], "Maria")
	assert.Contains(t, form["Body"], "14:30")
}

func TestSendReminderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(Config{AccountSid: "sid", AuthToken: "token", From: "+15551234567", BaseURL: srv.URL})
	err := c.SendReminder(context.Background(), "4799999888", sample)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid number")
}
