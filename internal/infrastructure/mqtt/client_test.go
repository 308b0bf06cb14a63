package mqtt

import (
	"errors"
	"testing"
)

func TestPublish_NotConnected(t *testing.T) {
	c := &Client{}
	err := c.Publish("netpanel/status/system", []byte("{}"), false)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestPublish_EmptyTopic(t *testing.T) {
	c := &Client{}
	err := c.Publish("", []byte("{}"), false)
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
	}
}

func TestStatusTopic(t *testing.T) {
	if got := statusTopic("netpanel"); got != "netpanel/service/status" {
		t.Errorf("statusTopic() = %q, want %q", got, "netpanel/service/status")
	}
}

func TestClose_NilClientIsSafe(t *testing.T) {
	c := &Client{}
	c.Close() // must not panic
}
