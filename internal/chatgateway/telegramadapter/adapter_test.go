package telegramadapter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nextlevelbuilder/chatgate/internal/chatgateway"
	"github.com/nextlevelbuilder/chatgate/internal/store"
)

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(json.RawMessage(`{"token":""}`)); err == nil {
		t.Fatalf("expected an error for an empty token")
	}
	if _, err := New(json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected an error when token is absent")
	}
}

func TestNewRejectsMalformedJSON(t *testing.T) {
	if _, err := New(json.RawMessage(`not json`)); err == nil {
		t.Fatalf("expected an error for malformed platform config")
	}
}

func TestNewParsesValidConfig(t *testing.T) {
	a, err := New(json.RawMessage(`{"token":"abc123"}`))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.cfg.Token != "abc123" {
		t.Fatalf("expected token abc123, got %q", a.cfg.Token)
	}
	if a.GatewayType() != "telegram" {
		t.Fatalf("expected GatewayType telegram, got %q", a.GatewayType())
	}
}

func TestInfoReportsType(t *testing.T) {
	a, err := New(json.RawMessage(`{"token":"abc123"}`))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := a.Info()["type"]; got != "telegram" {
		t.Fatalf("expected info type telegram, got %q", got)
	}
}

func TestNewRejectsInvalidProxyURL(t *testing.T) {
	a, err := New(json.RawMessage(`{"token":"abc123","proxy":":://bad"}`))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := a.newBot(); err == nil {
		t.Fatalf("expected newBot to reject an invalid proxy URL")
	}
}

func TestSendMessageUnknownChatForNonNumericUserIDFails(t *testing.T) {
	a, err := New(json.RawMessage(`{"token":"abc123"}`))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	user := store.PlatformUser{Platform: "telegram", UserID: "not-a-number"}
	err = a.SendMessage(context.Background(), user, chatgateway.TextMessage("hi"))
	if err == nil {
		t.Fatalf("expected an error for an uncached, non-numeric user ID")
	}
}
